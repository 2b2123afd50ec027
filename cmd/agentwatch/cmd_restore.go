package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newRestoreCmd() *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "restore",
		Short: "Rebuild the message log from the backup file",
		Long:  "Replay the JSON lines backup through the ingest pipeline. Messages already\nin the database are skipped, so restore can be run against a partially populated store.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if path == "" {
				path = cfg.Backup.Path
			}
			// Replayed messages must not be appended to the file being read.
			cfg.Backup.Enabled = false

			a, logger, err := open(cfg)
			if err != nil {
				return err
			}
			defer logger.Sync()
			defer a.Close()

			f, err := os.Open(path)
			if err != nil {
				return fmt.Errorf("restore: %w", err)
			}
			defer f.Close()

			ctx := context.Background()
			a.Warm(ctx)

			res, err := ingestStream(ctx, a.Pipeline, f, logger)
			if err != nil {
				return fmt.Errorf("restore: %w", err)
			}
			logger.Info("Restore completed",
				zap.String("path", path),
				zap.Int("admitted", res.Admitted),
				zap.Int("duplicates", res.Duplicates))
			fmt.Fprintf(cmd.OutOrStdout(), "restored %d of %d messages from %s\n", res.Admitted, res.Received, path)
			return nil
		},
	}
	cmd.Flags().StringVar(&path, "file", "", "backup file to replay (defaults to backup.path)")
	return cmd
}
