package main

import (
	"context"
	"fmt"
	"os"

	"github.com/boddenberg/chimu-org-go/internal/infra/csvimport"

	"github.com/spf13/cobra"
)

func newImportCmd(envFiles *[]string) *cobra.Command {
	var (
		accountID   string
		emailDomain string
	)

	cmd := &cobra.Command{
		Use:   "import <file.csv>",
		Short: "Import customers and reporting lines from a CSV export",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), *envFiles)
			if err != nil {
				return err
			}
			defer a.Close(context.Background())

			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open csv: %w", err)
			}
			defer f.Close()

			if emailDomain == "" {
				emailDomain = a.cfg.ImportEmailDomain
			}
			recs, err := csvimport.Parse(f, emailDomain)
			if err != nil {
				return err
			}

			report, err := a.svc.Import(cmd.Context(), accountID, recs)
			if err != nil {
				return err
			}
			return writeJSON(report)
		},
	}
	cmd.Flags().StringVar(&accountID, "account", "", "Account ID assigned to every imported customer (required)")
	cmd.Flags().StringVar(&emailDomain, "email-domain", "", "Domain for generated emails (default IMPORT_EMAIL_DOMAIN)")
	_ = cmd.MarkFlagRequired("account")
	return cmd
}
