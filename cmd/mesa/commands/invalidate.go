package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/mesadata/mesa/pkg/naming"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newInvalidateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "invalidate <environment>",
		Short: "Mark an environment as expired",
		Long: `Mark an environment as expired so the janitor deletes it on its next
run.

The environment's views stay queryable until the janitor actually deletes
it. The default target environment cannot be invalidated.`,
		Example: `  # Invalidate a development environment
  mesa invalidate dev_alice

  # Then delete it immediately
  mesa janitor`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log.Info().
				Str("environment", args[0]).
				Msg("Invalidating environment")

			return run(cmd, func(ctx context.Context, a *app) error {
				return runInvalidate(ctx, a, args[0])
			})
		},
	}

	return cmd
}

func runInvalidate(ctx context.Context, a *app, name string) error {
	env, err := naming.NormalizeEnvironment(name)
	if err != nil {
		return err
	}
	// The config value is not normalized, so compare case-insensitively
	// the way the naming layer does.
	if strings.EqualFold(env, a.config.DefaultTargetEnvironment) {
		return fmt.Errorf("cannot invalidate the default target environment %q", env)
	}

	store, _, err := openMigratedStore(ctx, a.config)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	if err := store.InvalidateEnvironment(ctx, env); err != nil {
		return err
	}

	fmt.Printf("✅ Environment %q invalidated, run 'mesa janitor' to delete it\n", env)
	return nil
}
