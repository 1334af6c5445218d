package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/boddenberg/chimu-org-go/internal/handler"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newServeCmd(envFiles *[]string) *cobra.Command {
	var migrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, *envFiles)
			if err != nil {
				return err
			}
			defer a.Close(context.Background())

			if migrate {
				if err := runMigrations(ctx, a); err != nil {
					return err
				}
			}

			router := handler.NewRouter(a.svc, handler.Options{
				JWTSecret: a.cfg.JWTSecret,
				Store:     a.store,
			}, a.metrics, a.logger)

			srv := &http.Server{
				Addr:         fmt.Sprintf(":%d", a.cfg.Port),
				Handler:      router,
				ReadTimeout:  10 * time.Second,
				WriteTimeout: 30 * time.Second,
				IdleTimeout:  60 * time.Second,
			}

			// --- Graceful shutdown ---
			errCh := make(chan error, 1)
			go func() {
				a.logger.Info("server starting", zap.Int("port", a.cfg.Port))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				if err != nil {
					return fmt.Errorf("server failed: %w", err)
				}
			case <-ctx.Done():
			}

			a.logger.Info("server shutting down...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("server forced shutdown: %w", err)
			}
			a.logger.Info("server stopped")
			return nil
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", false, "Apply postgres migrations before serving")
	return cmd
}
