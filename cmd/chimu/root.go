package main

import (
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	var envFiles []string

	cmd := &cobra.Command{
		Use:          "chimu",
		Short:        "Customer hierarchy and org chart service",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringSliceVar(&envFiles, "env-file", []string{".env"}, "dotenv files to load before reading the environment")

	cmd.AddCommand(
		newServeCmd(&envFiles),
		newMigrateCmd(&envFiles),
		newRepairCmd(&envFiles),
		newImportCmd(&envFiles),
	)
	return cmd
}
