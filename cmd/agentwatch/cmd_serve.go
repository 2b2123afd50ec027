package main

import (
	"context"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const shutdownTimeout = 5 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the API server, collector and scheduled jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, logger, err := bootstrap(cmd)
			if err != nil {
				return err
			}
			defer logger.Sync()
			defer a.Close()

			logger.Info("Starting agentwatch...")

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a.Warm(ctx)
			a.Metrics.Refresh()

			srv := a.Server()
			serverErr := make(chan error, 1)
			go func() {
				serverErr <- srv.Start(a.Config.Server.Port)
			}()

			var wg sync.WaitGroup
			wg.Add(1)
			go func() {
				defer wg.Done()
				a.Run(ctx)
			}()

			logger.Info("agentwatch is running", zap.String("port", a.Config.Server.Port))

			select {
			case <-ctx.Done():
			case err = <-serverErr:
				if err != nil {
					logger.Error("Server failed", zap.Error(err))
				}
				stop()
			}

			logger.Info("Shutting down server...")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil {
				logger.Error("Server forced to shutdown", zap.Error(shutdownErr))
			}
			wg.Wait()

			logger.Info("Server exited")
			return err
		},
	}
}
