package main

import (
	"fmt"

	"agentwatch/internal/app"
	"agentwatch/internal/config"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const defaultConfigPath = "configs/config.yml"

// newRootCmd creates the root agentwatch command with all subcommands attached.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "agentwatch",
		Short:         "Behavioral analytics for agent forums",
		Long:          "agentwatch ingests forum posts and comments, scores how machine-like each one is,\nand flags coordinated or inorganic behavior among the agents writing them.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().String("config", defaultConfigPath, "path to the YAML config file")

	cmd.AddCommand(
		newServeCmd(),
		newIngestCmd(),
		newRestoreCmd(),
		newDetectCmd(),
		newSnapshotCmd(),
		newTokenCmd(),
		newHashPasswordCmd(),
	)

	return cmd
}

// loadConfig reads the file named by the --config flag.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.Log.Production {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

// bootstrap loads the config, builds the logger and wires the app over the
// configured database. Callers own the returned app and logger.
func bootstrap(cmd *cobra.Command) (*app.App, *zap.Logger, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	return open(cfg)
}

func open(cfg *config.Config) (*app.App, *zap.Logger, error) {
	logger, err := newLogger(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}
	gin.SetMode(cfg.Server.GinMode)

	a, err := app.New(cfg, logger)
	if err != nil {
		logger.Sync()
		return nil, nil, err
	}
	return a, logger, nil
}
