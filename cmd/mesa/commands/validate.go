package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/mesadata/mesa/pkg/config"
	"github.com/mesadata/mesa/pkg/policy"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// watchDebounce coalesces bursts of config file events into one reload.
const watchDebounce = 500 * time.Millisecond

// validationReport is the full outcome of one validation pass.
type validationReport struct {
	Valid    bool                    `json:"valid"`
	Issues   config.ValidationErrors `json:"issues,omitempty"`
	Policies *policy.Result          `json:"policies,omitempty"`
}

func newValidateCommand() *cobra.Command {
	var (
		watch bool
	)

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the project configuration",
		Long: `Load and validate the project configuration, then evaluate the
guardrail policies against it.

This command checks:
  - YAML / Starlark syntax
  - Schema conformance (unknown keys, enum values, types)
  - Cross-field rules (mapping regexes, fallback chains, references)
  - Guardrail policy compliance (OPA/Rego)

The exit status is nonzero when validation errors or blocking policy
violations are found.`,
		Example: `  # Validate the project in the current directory
  mesa validate

  # Validate another project
  mesa validate -p ./analytics

  # Revalidate whenever config or policy files change
  mesa validate --watch`,
		RunE: func(cmd *cobra.Command, args []string) error {
			log.Info().
				Str("project_dir", projectDir).
				Bool("watch", watch).
				Msg("Validating configuration")

			ctx := cmd.Context()

			engine, err := policy.NewEngine(log.Logger)
			if err != nil {
				return fmt.Errorf("failed to create policy engine: %w", err)
			}

			report, err := validateOnce(ctx, engine)
			if err != nil {
				return err
			}
			printReport(report)

			if !watch {
				if !report.Valid {
					return fmt.Errorf("validation failed")
				}
				return nil
			}

			return watchAndRevalidate(ctx, engine)
		},
	}

	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "revalidate when config or policy files change")

	return cmd
}

// validateOnce runs one full validation pass: config load, user policy
// loading and policy evaluation.
func validateOnce(ctx context.Context, engine *policy.Engine) (*validationReport, error) {
	report := &validationReport{Valid: true}

	result, err := loadProject(ctx)
	if err != nil {
		// Validation errors become the report; anything else is fatal.
		if _, ok := err.(config.ValidationErrors); !ok {
			return nil, err
		}
	}
	report.Issues = result.Issues
	if result.Issues.HasErrors() {
		report.Valid = false
	}

	// Policies run against the raw merged tree even when decoding failed,
	// as long as there is a tree to inspect.
	if result.Tree == nil {
		return report, nil
	}

	if result.Config != nil {
		if err := configurePolicies(ctx, engine, result.Config); err != nil {
			return nil, err
		}
	}

	eval, err := engine.Evaluate(ctx, policy.NewInput(result.Tree, "validate"))
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate policies: %w", err)
	}
	report.Policies = eval
	if !eval.Allowed {
		report.Valid = false
	}

	return report, nil
}

// configurePolicies loads user policies and applies the disabled list.
func configurePolicies(ctx context.Context, engine *policy.Engine, cfg *config.Config) error {
	if len(cfg.Policies.Paths) > 0 {
		if err := engine.LoadPolicies(ctx, cfg.Policies.Paths); err != nil {
			return err
		}
	}
	for _, name := range cfg.Policies.Disabled {
		if err := engine.DisablePolicy(name); err != nil {
			log.Warn().Str("policy", name).Msg("Cannot disable unknown policy")
		}
	}
	return nil
}

// printReport renders a validation report to stdout.
func printReport(report *validationReport) {
	if jsonOutput {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			log.Error().Err(err).Msg("Failed to encode report")
			return
		}
		fmt.Println(string(data))
		return
	}

	for _, issue := range report.Issues {
		marker := "✗"
		if issue.Severity != "error" {
			marker = "⚠"
		}
		fmt.Printf("%s %s\n", marker, issue.Error())
	}

	if report.Policies != nil {
		for _, v := range report.Policies.Violations {
			fmt.Printf("✗ policy %s: %s", v.Policy, v.Message)
			if v.Path != "" {
				fmt.Printf(" (%s)", v.Path)
			}
			fmt.Println()
		}
		for _, v := range report.Policies.Warnings {
			fmt.Printf("⚠ policy %s: %s", v.Policy, v.Message)
			if v.Path != "" {
				fmt.Printf(" (%s)", v.Path)
			}
			fmt.Println()
		}
	}

	if report.Valid {
		fmt.Println("✅ Configuration is valid")
	} else {
		fmt.Println("❌ Configuration is invalid")
	}
}

// watchAndRevalidate blocks revalidating on config and policy changes
// until the context is cancelled.
func watchAndRevalidate(ctx context.Context, engine *policy.Engine) error {
	var mu sync.Mutex

	revalidate := func() {
		mu.Lock()
		defer mu.Unlock()

		report, err := validateOnce(ctx, engine)
		if err != nil {
			log.Error().Err(err).Msg("Revalidation failed")
			return
		}
		fmt.Println("---")
		printReport(report)
	}

	// Policy files reload through the policy loader so the engine keeps
	// its compiled builtins.
	if cfg := watchedPoliciesConfig(ctx); cfg != nil && len(cfg.Policies.Paths) > 0 {
		loader := policy.NewLoader(log.Logger)
		err := loader.Watch(ctx, cfg.Policies.Paths, func(policies []policy.Policy) error {
			if err := engine.SetPolicies(ctx, policies); err != nil {
				return err
			}
			revalidate()
			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to watch policy paths: %w", err)
		}
		defer func() { _ = loader.StopWatching() }()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	// Watch the directories, not the files: editors replace files on save.
	dirs := map[string]bool{projectDir: true}
	if home, err := config.HomeDir(); err == nil {
		if _, statErr := os.Stat(home); statErr == nil {
			dirs[home] = true
		}
	}
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			log.Warn().Err(err).Str("dir", dir).Msg("Failed to watch directory")
		}
	}

	log.Info().Msg("Watching for config changes (ctrl-c to stop)")

	var reloadTimer *time.Timer
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove) == 0 || !isConfigFile(event.Name) {
				continue
			}
			log.Debug().Str("file", event.Name).Str("op", event.Op.String()).Msg("Config file changed")

			if reloadTimer != nil {
				reloadTimer.Stop()
			}
			reloadTimer = time.AfterFunc(watchDebounce, revalidate)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Error().Err(err).Msg("Watcher error")
		}
	}
}

// watchedPoliciesConfig reloads the config to find the policy paths to
// watch. Returns nil when the project does not load.
func watchedPoliciesConfig(ctx context.Context) *config.Config {
	result, err := loadProject(ctx)
	if err != nil || result.Config == nil {
		return nil
	}
	return result.Config
}

// isConfigFile reports whether a changed path is a mesa config file.
func isConfigFile(path string) bool {
	switch filepath.Base(path) {
	case "config.yaml", "config.yml", "config.star":
		return true
	}
	return false
}
