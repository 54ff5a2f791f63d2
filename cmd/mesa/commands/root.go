package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	projectDir  string
	gatewayName string
	configName  string
	verbose     bool
	jsonOutput  bool

	// buildVersion is the version baked into the binary, recorded in
	// state_meta by migrate and attached to telemetry.
	buildVersion = "dev"
)

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	buildVersion = version
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "mesa",
		Short: "Mesa - configuration layer for data transformation projects",
		Long: `Mesa loads, validates and resolves the configuration of a data
transformation project.

Features:
  - Hierarchical config: environment > user config dir > project dir
  - Two equivalent syntaxes: YAML (config.yaml) and Starlark (config.star)
  - MESA__ environment variable overrides with YAML-typed values
  - Gateways with connection and scheduler fallback chains
  - Physical/virtual naming with schema and catalog mappings
  - Environment state backend on SQLite or Postgres
  - Config guardrail policies (OPA/Rego)`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Persistent flags available to all commands
	rootCmd.PersistentFlags().StringVarP(&projectDir, "project-dir", "p", ".", "project directory")
	rootCmd.PersistentFlags().StringVarP(&gatewayName, "gateway", "g", "", "gateway to use (default: the project's default gateway)")
	rootCmd.PersistentFlags().StringVar(&configName, "config-name", "config", "Starlark config global to load")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")

	// Add subcommands
	rootCmd.AddCommand(newInitCommand())
	rootCmd.AddCommand(newValidateCommand())
	rootCmd.AddCommand(newInfoCommand())
	rootCmd.AddCommand(newTableNameCommand())
	rootCmd.AddCommand(newMigrateCommand())
	rootCmd.AddCommand(newEnvsCommand())
	rootCmd.AddCommand(newInvalidateCommand())
	rootCmd.AddCommand(newJanitorCommand())
	rootCmd.AddCommand(newConfigCommand())

	return rootCmd
}
