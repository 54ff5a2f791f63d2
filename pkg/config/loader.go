package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config file names probed in a config directory. config.yaml wins over
// config.yml when both exist; config.star overlays the YAML file.
const (
	yamlConfigFile    = "config.yaml"
	yamlAltConfigFile = "config.yml"
	starConfigFile    = "config.star"
)

// DefaultConfigName is the Starlark global a config file must define unless
// another name is selected with --config.
const DefaultConfigName = "config"

// LoadOptions controls a config load.
type LoadOptions struct {
	// ProjectDir is the project directory. Defaults to the working directory.
	ProjectDir string

	// HomeDir overrides the user config directory. Defaults to HomeDir().
	HomeDir string

	// ConfigName selects a named Starlark config global. Defaults to "config".
	ConfigName string

	// Environ is the environment used for overrides and env_var(). Defaults
	// to os.Environ().
	Environ []string

	// AllowMissing makes a project without any config file load as empty
	// instead of failing.
	AllowMissing bool

	// StarlarkTimeout bounds config.star evaluation. Defaults to 30s.
	StarlarkTimeout time.Duration
}

// LoadResult is the outcome of a config load. Issues carries warnings even
// when the load succeeded; on failure Config may still be set so callers can
// report against the partially loaded config.
type LoadResult struct {
	// Config is the decoded, defaulted and validated configuration.
	Config *Config

	// Tree is the merged raw config before decoding, with environment
	// overrides applied. Policy evaluation runs against this tree so that
	// fallbacks the user never wrote stay invisible to policies.
	Tree map[string]interface{}

	// Issues lists all validation errors and warnings found during the load.
	Issues ValidationErrors
}

// Loader loads mesa configuration from a project directory, the user config
// directory and the process environment, in ascending precedence.
type Loader struct {
	schemas *SchemaRegistry
}

// NewLoader creates a loader with the built-in config schemas.
func NewLoader() *Loader {
	return &Loader{schemas: NewSchemaRegistry()}
}

// Schemas exposes the loader's schema registry.
func (l *Loader) Schemas() *SchemaRegistry {
	return l.schemas
}

// Load runs the full pipeline: discover and parse the project and user
// config files, merge them, overlay environment variables, validate the
// merged tree against the schema, decode it, apply defaults and validate
// the result. The returned error is the ValidationErrors when validation
// failed.
func (l *Loader) Load(ctx context.Context, opts LoadOptions) (*LoadResult, error) {
	if opts.ProjectDir == "" {
		opts.ProjectDir = "."
	}
	if opts.ConfigName == "" {
		opts.ConfigName = DefaultConfigName
	}
	if opts.Environ == nil {
		opts.Environ = os.Environ()
	}
	if opts.HomeDir == "" {
		if home, err := HomeDir(); err == nil {
			opts.HomeDir = home
		}
	}

	result := &LoadResult{}

	projectTree, projectFiles, errs := l.loadDir(ctx, opts.ProjectDir, opts.ConfigName, opts)
	result.Issues = append(result.Issues, errs...)
	if len(projectFiles) == 0 && !opts.AllowMissing && !result.Issues.HasErrors() {
		return result, fmt.Errorf("no config file found in %s (expected %s, %s or %s)",
			opts.ProjectDir, yamlConfigFile, yamlAltConfigFile, starConfigFile)
	}

	var homeTree map[string]interface{}
	var homeFiles []string
	if opts.HomeDir != "" && !sameDir(opts.HomeDir, opts.ProjectDir) {
		// The user config always uses the default global name
		homeTree, homeFiles, errs = l.loadDir(ctx, opts.HomeDir, DefaultConfigName, opts)
		result.Issues = append(result.Issues, errs...)
	}

	if result.Issues.HasErrors() {
		return result, result.Issues
	}

	merged := MergeMaps(projectTree, homeTree)

	envTree, envWarnings := EnvOverrides(opts.Environ)
	for _, w := range envWarnings {
		result.Issues = append(result.Issues, ValidationError{Message: w, Severity: "warning"})
	}
	merged = MergeMaps(merged, envTree)
	result.Tree = merged

	if errs := l.schemas.ValidateConfigTree(ctx, merged); len(errs) > 0 {
		result.Issues = append(result.Issues, errs...)
		if result.Issues.HasErrors() {
			return result, result.Issues
		}
	}

	cfg, err := decodeTree(merged)
	if err != nil {
		result.Issues = append(result.Issues, ValidationError{
			Message:  err.Error(),
			Severity: "error",
		})
		return result, result.Issues
	}

	applyDefaults(cfg)
	cfg.sourceFiles = append(projectFiles, homeFiles...)
	result.Config = cfg

	if errs := cfg.Validate(); len(errs) > 0 {
		result.Issues = append(result.Issues, errs...)
	}

	if result.Issues.HasErrors() {
		return result, result.Issues
	}
	return result, nil
}

// sameDir reports whether two paths name the same directory, tolerating
// trailing slashes, relative segments and symlinks.
func sameDir(a, b string) bool {
	return canonicalDir(a) == canonicalDir(b)
}

func canonicalDir(dir string) string {
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}
	if resolved, err := filepath.EvalSymlinks(dir); err == nil {
		dir = resolved
	}
	return filepath.Clean(dir)
}

// loadDir parses the config files of one directory into a raw tree. A
// missing directory or a directory without config files yields an empty
// tree and no files.
func (l *Loader) loadDir(ctx context.Context, dir, configName string, opts LoadOptions) (map[string]interface{}, []string, ValidationErrors) {
	var issues ValidationErrors
	var files []string
	tree := map[string]interface{}{}

	yamlPath := filepath.Join(dir, yamlConfigFile)
	altPath := filepath.Join(dir, yamlAltConfigFile)
	if _, err := os.Stat(yamlPath); err != nil {
		if _, altErr := os.Stat(altPath); altErr == nil {
			yamlPath = altPath
		} else {
			yamlPath = ""
		}
	} else if _, altErr := os.Stat(altPath); altErr == nil {
		issues = append(issues, ValidationError{
			File:     altPath,
			Message:  fmt.Sprintf("ignored because %s exists", yamlConfigFile),
			Severity: "warning",
		})
	}

	if yamlPath != "" {
		doc, errs := parseYAMLFile(yamlPath)
		issues = append(issues, errs...)
		if doc != nil {
			tree = MergeMaps(tree, doc)
			files = append(files, yamlPath)
		}
	}

	starPath := filepath.Join(dir, starConfigFile)
	script, err := os.ReadFile(starPath)
	switch {
	case err == nil:
		overlay, errs := l.evalStarlarkConfig(ctx, starPath, string(script), configName, opts)
		issues = append(issues, errs...)
		if overlay != nil {
			tree = MergeMaps(tree, overlay)
			files = append(files, starPath)
		}
	case os.IsNotExist(err):
		if configName != DefaultConfigName {
			issues = append(issues, ValidationError{
				Message:  fmt.Sprintf("config %q requires a %s file in %s", configName, starConfigFile, dir),
				Severity: "error",
			})
		}
	default:
		issues = append(issues, ValidationError{
			File:     starPath,
			Message:  fmt.Sprintf("failed to read config: %v", err),
			Severity: "error",
		})
	}

	return tree, files, issues
}

// parseYAMLFile reads one YAML config file into a raw tree.
func parseYAMLFile(path string) (map[string]interface{}, ValidationErrors) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, ValidationErrors{{
			File:     path,
			Message:  fmt.Sprintf("failed to read config: %v", err),
			Severity: "error",
		}}
	}

	var doc map[string]interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, ValidationErrors{{
			File:     path,
			Message:  strings.TrimPrefix(err.Error(), "yaml: "),
			Severity: "error",
		}}
	}
	if doc == nil {
		doc = map[string]interface{}{}
	}
	return doc, nil
}

// evalStarlarkConfig evaluates a config.star file and extracts the selected
// config global as a raw tree.
func (l *Loader) evalStarlarkConfig(ctx context.Context, path, script, configName string, opts LoadOptions) (map[string]interface{}, ValidationErrors) {
	evaluator := NewStarlarkEvaluator(opts.StarlarkTimeout)
	evaluator.lookupEnv = environLookup(opts.Environ)

	res, err := evaluator.Evaluate(ctx, path, script)
	if err != nil {
		return nil, ValidationErrors{{
			File:     path,
			Message:  err.Error(),
			Severity: "error",
		}}
	}

	value, ok := res.Globals[configName]
	if !ok {
		return nil, ValidationErrors{{
			File:     path,
			Message:  fmt.Sprintf("does not define a %q global", configName),
			Severity: "error",
		}}
	}
	tree, ok := value.(map[string]interface{})
	if !ok {
		return nil, ValidationErrors{{
			File:     path,
			Message:  fmt.Sprintf("global %q must be a dict, got %T", configName, value),
			Severity: "error",
		}}
	}
	return tree, nil
}

// decodeTree converts a raw config tree into the typed Config by a YAML
// round trip, so the custom unmarshalers on connections, schedulers and
// durations apply.
func decodeTree(tree map[string]interface{}) (*Config, error) {
	data, err := yaml.Marshal(tree)
	if err != nil {
		return nil, fmt.Errorf("failed to encode config tree: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// environLookup adapts an environ slice to a lookup function.
func environLookup(environ []string) func(string) (string, bool) {
	return func(name string) (string, bool) {
		for i := len(environ) - 1; i >= 0; i-- {
			key, value, ok := strings.Cut(environ[i], "=")
			if ok && key == name {
				return value, true
			}
		}
		return "", false
	}
}
