package main

import (
	"context"
	"fmt"

	"github.com/boddenberg/chimu-org-go/internal/config"
	"github.com/boddenberg/chimu-org-go/internal/infra/observability"
	"github.com/boddenberg/chimu-org-go/internal/infra/postgres"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newMigrateCmd(envFiles *[]string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply postgres schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*envFiles)
			if err != nil {
				return err
			}
			if cfg.StoreDriver != config.DriverPostgres {
				return fmt.Errorf("migrate needs STORE_DRIVER=%s, got %q", config.DriverPostgres, cfg.StoreDriver)
			}
			logger := observability.NewLogger(cfg.LogLevel)
			defer logger.Sync()

			pool, err := postgres.Connect(cmd.Context(), cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer pool.Close()
			return postgres.Migrate(cmd.Context(), pool, logger)
		},
	}
}

// runMigrations applies migrations for the serve command. Other drivers
// have no schema to manage.
func runMigrations(ctx context.Context, a *app) error {
	if a.cfg.StoreDriver != config.DriverPostgres {
		a.logger.Info("skipping migrations", zap.String("store_driver", a.cfg.StoreDriver))
		return nil
	}
	pool, err := postgres.Connect(ctx, a.cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()
	return postgres.Migrate(ctx, pool, a.logger)
}
