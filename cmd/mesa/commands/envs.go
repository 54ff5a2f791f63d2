package commands

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newEnvsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "envs",
		Short: "List environments in the state store",
		Long: `List the environments recorded in the state store, including their
catalog, expiry and the plan that last modified them.

Environments past their expiry are deleted by the janitor unless they are
pinned or listed in pinned_environments.`,
		Example: `  # List environments
  mesa envs

  # List environments as JSON
  mesa envs --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			log.Info().
				Str("project_dir", projectDir).
				Str("gateway", gatewayName).
				Msg("Listing environments")

			return run(cmd, runEnvs)
		},
	}

	return cmd
}

func runEnvs(ctx context.Context, a *app) error {
	store, _, err := openMigratedStore(ctx, a.config)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	envs, err := store.ListEnvironments(ctx)
	if err != nil {
		return err
	}

	if jsonOutput {
		data, err := json.MarshalIndent(envs, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	if len(envs) == 0 {
		fmt.Println("No environments found")
		return nil
	}

	fmt.Printf("%-24s %-8s %-16s %-17s %-7s %s\n", "NAME", "SUFFIX", "CATALOG", "EXPIRES", "PINNED", "PLAN")
	for _, env := range envs {
		expires := "-"
		if env.ExpiresAt != nil {
			expires = env.ExpiresAt.Format("2006-01-02 15:04")
		}
		pinned := "-"
		if env.Pinned {
			pinned = "yes"
		}
		fmt.Printf("%-24s %-8s %-16s %-17s %-7s %s\n",
			env.Name, env.SuffixTarget, orDash(env.Catalog), expires, pinned, orDash(env.PlanID))
	}
	return nil
}
