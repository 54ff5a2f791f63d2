package commands

import (
	"context"
	"fmt"

	"github.com/mesadata/mesa/pkg/state"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newMigrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Migrate the state schema",
		Long: `Create or upgrade the state schema on the gateway's state connection.

Migrations are embedded in the binary and applied in order. Running
migrate on an up-to-date schema is a no-op. The state connection and
schema come from the selected gateway.`,
		Example: `  # Migrate the default gateway's state
  mesa migrate

  # Migrate a specific gateway's state
  mesa migrate -g production`,
		RunE: func(cmd *cobra.Command, args []string) error {
			log.Info().
				Str("project_dir", projectDir).
				Str("gateway", gatewayName).
				Msg("Migrating state schema")

			return run(cmd, runMigrate)
		},
	}

	return cmd
}

func runMigrate(ctx context.Context, a *app) error {
	store, gw, err := openStore(ctx, a.config)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	version, _, err := store.SchemaVersion(ctx)
	if err != nil {
		return err
	}

	// Record which mesa version last touched the schema.
	if err := store.SetMeta(ctx, state.MetaKeyVersion, buildVersion); err != nil {
		return err
	}

	fmt.Printf("✅ State schema at version %d (%s, schema %s)\n",
		version, gw.StateConnection.ConnectionType(), gw.StateSchema)
	return nil
}
