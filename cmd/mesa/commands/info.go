package commands

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/mesadata/mesa/pkg/config"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// pingTimeout bounds each connection check so an unreachable warehouse
// does not hang the command.
const pingTimeout = 5 * time.Second

func newInfoCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "info",
		Short: "Show project and connection information",
		Long: `Show a summary of the project configuration and check that the
configured connections are reachable.

This command:
  - Prints the project name, config sources and gateways
  - Pings the warehouse, state and test connections
  - Reports the state schema migration status`,
		Example: `  # Show info for the project in the current directory
  mesa info

  # Show info for a specific gateway
  mesa info -g production`,
		RunE: func(cmd *cobra.Command, args []string) error {
			log.Info().
				Str("project_dir", projectDir).
				Str("gateway", gatewayName).
				Msg("Collecting project info")

			return run(cmd, runInfo)
		},
	}

	return cmd
}

func runInfo(ctx context.Context, a *app) error {
	cfg := a.config

	fmt.Printf("Project:             %s\n", orDash(cfg.Project))
	fmt.Printf("Config files:        %s\n", strings.Join(cfg.SourceFiles(), ", "))
	fmt.Printf("Default gateway:     %s\n", orDash(cfg.DefaultGateway))
	fmt.Printf("Target environment:  %s\n", cfg.DefaultTargetEnvironment)
	if cfg.ModelDefaults.Dialect != "" {
		fmt.Printf("Dialect:             %s\n", cfg.ModelDefaults.Dialect)
	}

	names := cfg.GatewayNames()
	sort.Strings(names)
	fmt.Printf("Gateways:            %s\n", orDash(strings.Join(names, ", ")))

	gw, err := cfg.ResolveGateway(gatewayName)
	if err != nil {
		return err
	}
	fmt.Println()
	if gw.Name != "" {
		fmt.Printf("Gateway %q:\n", gw.Name)
	} else {
		fmt.Println("Default gateway:")
	}

	checkConnection(ctx, "warehouse connection", gw.Connection)
	checkConnection(ctx, "state connection", gw.StateConnection)
	checkConnection(ctx, "test connection", gw.TestConnection)

	reportSchemaVersion(ctx, a)
	return nil
}

// checkConnection pings one connection and prints the outcome. Failures are
// reported but do not abort the command so all checks run.
func checkConnection(ctx context.Context, label string, conn config.ConnectionConfig) {
	if err := pingConnection(ctx, conn); err != nil {
		fmt.Printf("  ✗ %s (%s): %v\n", label, conn.ConnectionType(), err)
		return
	}
	fmt.Printf("  ✓ %s (%s) ok\n", label, conn.ConnectionType())
}

func pingConnection(ctx context.Context, conn config.ConnectionConfig) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	db, err := conn.Connect(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	return db.PingContext(ctx)
}

func reportSchemaVersion(ctx context.Context, a *app) {
	store, _, err := openStore(ctx, a.config)
	if err != nil {
		fmt.Printf("  ✗ state schema: %v\n", err)
		return
	}
	defer func() { _ = store.Close() }()

	version, ok, err := store.SchemaVersion(ctx)
	switch {
	case err != nil:
		fmt.Printf("  ✗ state schema: %v\n", err)
	case !ok:
		fmt.Println("  - state schema: not initialized (run 'mesa migrate')")
	default:
		fmt.Printf("  ✓ state schema: version %d\n", version)
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
