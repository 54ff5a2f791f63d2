package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// Project directories created by init.
var projectDirs = []string{"models", "seeds", "audits", "tests", ".mesa"}

var projectNameCleanRe = regexp.MustCompile(`[^a-z0-9_]+`)

const sqliteConfigTemplate = `# Mesa project configuration

project: %s

default_gateway: local

gateways:
  local:
    connection:
      type: sqlite
      database: .mesa/warehouse.db
    state_connection:
      type: sqlite
      database: .mesa/state.db

model_defaults:
  dialect: sqlite

default_target_environment: prod
`

const postgresConfigTemplate = `# Mesa project configuration

project: %s

default_gateway: warehouse

gateways:
  warehouse:
    connection:
      type: postgres
      host: localhost
      port: 5432
      user: mesa
      database: warehouse
    state_connection:
      type: postgres
      host: localhost
      port: 5432
      user: mesa
      database: mesa_state
    state_schema: mesa

model_defaults:
  dialect: postgres

default_target_environment: prod
`

func newInitCommand() *cobra.Command {
	var (
		dialect string
	)

	cmd := &cobra.Command{
		Use:   "init [dir]",
		Short: "Initialize a mesa project",
		Long: `Initialize a new mesa project with a config file and the standard
directory layout.

Creates config.yaml from a template for the chosen dialect plus the
models/, seeds/, audits/, tests/ and .mesa/ directories. An existing
config file is never overwritten.`,
		Example: `  # Initialize a project in the current directory
  mesa init

  # Initialize a project in a new directory
  mesa init ./analytics

  # Initialize with a Postgres warehouse
  mesa init --dialect postgres`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}

			log.Info().
				Str("dir", dir).
				Str("dialect", dialect).
				Msg("Initializing project")

			var template string
			switch dialect {
			case "sqlite":
				template = sqliteConfigTemplate
			case "postgres":
				template = postgresConfigTemplate
			default:
				return fmt.Errorf("unsupported dialect %q (supported: sqlite, postgres)", dialect)
			}

			if err := os.MkdirAll(dir, 0755); err != nil {
				return fmt.Errorf("failed to create directory %s: %w", dir, err)
			}

			// Refuse to clobber an existing project
			for _, name := range []string{"config.yaml", "config.yml", "config.star"} {
				path := filepath.Join(dir, name)
				if _, err := os.Stat(path); err == nil {
					return fmt.Errorf("config file already exists: %s", path)
				}
			}

			fmt.Printf("Initializing mesa project in %s\n\n", dir)

			for _, sub := range projectDirs {
				path := filepath.Join(dir, sub)
				if err := os.MkdirAll(path, 0755); err != nil {
					return fmt.Errorf("failed to create directory %s: %w", path, err)
				}
				fmt.Printf("✓ Created directory: %s\n", path)
			}

			configPath := filepath.Join(dir, "config.yaml")
			content := fmt.Sprintf(template, projectNameFor(dir))
			if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
				return fmt.Errorf("failed to write config file: %w", err)
			}
			fmt.Printf("✓ Created config file: %s\n", configPath)

			fmt.Printf("\n✅ Project initialized!\n\n")
			fmt.Printf("Next steps:\n")
			fmt.Printf("  1. Review the config:\n")
			fmt.Printf("     mesa validate -p %s\n\n", dir)
			fmt.Printf("  2. Initialize the state schema:\n")
			fmt.Printf("     mesa migrate -p %s\n\n", dir)

			return nil
		},
	}

	cmd.Flags().StringVar(&dialect, "dialect", "sqlite", "SQL dialect of the warehouse (sqlite, postgres)")

	return cmd
}

// projectNameFor derives a valid project name from the target directory.
func projectNameFor(dir string) string {
	abs, err := filepath.Abs(dir)
	if err != nil {
		abs = dir
	}
	name := strings.ToLower(filepath.Base(abs))
	name = projectNameCleanRe.ReplaceAllString(name, "_")
	name = strings.Trim(name, "_")
	if name == "" || name[0] >= '0' && name[0] <= '9' {
		name = "mesa_" + name
	}
	return strings.Trim(name, "_")
}
