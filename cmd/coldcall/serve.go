package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ent0n29/coldcall/internal/app"
)

func newServeCmd(root *rootOptions) *cobra.Command {
	var bindAddr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, call websocket and web UI",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := root.loadRuntime()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			if v := strings.TrimSpace(bindAddr); v != "" {
				cfg.BindAddr = v
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			built, err := app.Build(ctx, cfg, logger)
			if err != nil {
				return err
			}
			logger.Info("providers resolved",
				zap.String("live", built.Provider.Live),
				zap.String("evaluator", built.Provider.Evaluator),
				zap.String("detail", built.Provider.Detail),
			)

			httpServer := &http.Server{
				Addr:              cfg.BindAddr,
				Handler:           built.API.Router(),
				ReadHeaderTimeout: 10 * time.Second,
			}
			built.Sessions.StartJanitor(ctx, app.JanitorInterval(cfg.SessionInactivityTimeout))

			errCh := make(chan error, 1)
			go func() {
				logger.Info("server listening", zap.String("addr", cfg.BindAddr))
				if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
			}()

			select {
			case <-ctx.Done():
				logger.Info("shutdown signal received")
			case err := <-errCh:
				return fmt.Errorf("listen error: %w", err)
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
			defer cancel()
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				logger.Warn("graceful shutdown failed", zap.Error(err))
				_ = httpServer.Close()
			}
			logger.Info("shutdown complete")
			return nil
		},
	}
	cmd.Flags().StringVar(&bindAddr, "bind", "", "override APP_BIND_ADDR")
	return cmd
}
