package commands

import (
	"context"
	"fmt"

	"github.com/mesadata/mesa/pkg/naming"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newTableNameCommand() *cobra.Command {
	var (
		version     string
		environment string
	)

	cmd := &cobra.Command{
		Use:   "table-name <model>",
		Short: "Resolve the physical or virtual name of a model",
		Long: `Resolve the fully qualified object a model maps to.

With --version the physical table name is printed: the versioned table in
the physical schema that holds the model's data. Otherwise the virtual
view name is printed: the view consumers query in the given environment
(the default target environment when --environment is not given).

Physical schema mappings, environment catalog mappings and the configured
suffix target all apply, exactly as they do during a plan.`,
		Example: `  # Virtual view in the default target environment
  mesa table-name analytics.orders

  # Virtual view in a development environment
  mesa table-name analytics.orders -e dev_alice

  # Physical table for a specific model version
  mesa table-name analytics.orders --version 3204799542`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log.Info().
				Str("model", args[0]).
				Str("version", version).
				Str("environment", environment).
				Msg("Resolving table name")

			if version != "" && environment != "" {
				return fmt.Errorf("--version and --environment are mutually exclusive")
			}

			return run(cmd, func(ctx context.Context, a *app) error {
				return runTableName(a, args[0], version, environment)
			})
		},
	}

	cmd.Flags().StringVar(&version, "version", "", "model version to resolve the physical table for")
	cmd.Flags().StringVarP(&environment, "environment", "e", "", "environment to resolve the virtual view for")

	return cmd
}

func runTableName(a *app, modelName, version, environment string) error {
	model, err := naming.ParseModelName(modelName)
	if err != nil {
		return err
	}

	gw, err := a.config.ResolveGateway(gatewayName)
	if err != nil {
		return err
	}
	resolver := naming.NewResolver(a.config, gw.Connection.DefaultCatalog())

	var obj naming.ObjectName
	if version != "" {
		obj, err = resolver.PhysicalTableName(model, version)
	} else {
		env := environment
		if env == "" {
			env = a.config.DefaultTargetEnvironment
		}
		obj, err = resolver.VirtualViewName(model, env)
	}
	if err != nil {
		return err
	}

	fmt.Println(obj.String())
	return nil
}
