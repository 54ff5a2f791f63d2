package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newJanitorCommand() *cobra.Command {
	var (
		dryRun bool
	)

	cmd := &cobra.Command{
		Use:   "janitor",
		Short: "Delete expired environments",
		Long: `Delete environments whose expiry has passed.

The default target environment, pinned environments and names listed in
pinned_environments are never deleted, expired or not. Use --dry-run to
see what would be deleted without deleting anything.`,
		Example: `  # Delete expired environments
  mesa janitor

  # Show what would be deleted
  mesa janitor --dry-run`,
		RunE: func(cmd *cobra.Command, args []string) error {
			log.Info().
				Str("project_dir", projectDir).
				Str("gateway", gatewayName).
				Bool("dry_run", dryRun).
				Msg("Running janitor")

			return run(cmd, func(ctx context.Context, a *app) error {
				return runJanitor(ctx, a, dryRun)
			})
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "list expired environments without deleting them")

	return cmd
}

func runJanitor(ctx context.Context, a *app, dryRun bool) error {
	store, _, err := openMigratedStore(ctx, a.config)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	protected := protectedEnvironments(a.config)
	now := time.Now().UTC()

	if dryRun {
		envs, err := store.ListEnvironments(ctx)
		if err != nil {
			return err
		}

		keep := make(map[string]bool, len(protected))
		for _, name := range protected {
			keep[name] = true
		}

		count := 0
		for _, env := range envs {
			if keep[env.Name] || env.Pinned || !env.Expired(now) {
				continue
			}
			fmt.Printf("would delete %s (expired %s)\n", env.Name, env.ExpiresAt.Format("2006-01-02 15:04"))
			count++
		}
		if count == 0 {
			fmt.Println("Nothing to delete")
			return nil
		}
		fmt.Printf("%d environment(s) would be deleted\n", count)
		return nil
	}

	deleted, err := store.DeleteExpired(ctx, protected, now)
	if err != nil {
		return err
	}

	if len(deleted) == 0 {
		fmt.Println("Nothing to delete")
		return nil
	}
	for _, name := range deleted {
		fmt.Printf("deleted %s\n", name)
	}
	fmt.Printf("✅ Deleted %d environment(s)\n", len(deleted))
	return nil
}
