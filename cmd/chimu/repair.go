package main

import (
	"context"
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
)

func newRepairCmd(envFiles *[]string) *cobra.Command {
	var accountID string

	cmd := &cobra.Command{
		Use:   "repair",
		Short: "Restore link symmetry for an account (or every customer)",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), *envFiles)
			if err != nil {
				return err
			}
			defer a.Close(context.Background())

			report, err := a.svc.Repair(cmd.Context(), accountID)
			if err != nil {
				return err
			}
			return writeJSON(report)
		},
	}
	cmd.Flags().StringVar(&accountID, "account", "", "Account ID to repair (empty repairs every customer)")
	return cmd
}

func writeJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
