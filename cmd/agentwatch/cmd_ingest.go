package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newIngestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ingest <file>",
		Short: "Ingest messages from a JSON lines file",
		Long:  "Read one raw message per line from file (or stdin when file is \"-\"),\nclassify each one and fold it into the analytics state. Known messages are skipped.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, logger, err := bootstrap(cmd)
			if err != nil {
				return err
			}
			defer logger.Sync()
			defer a.Close()

			var in io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("ingest: %w", err)
				}
				defer f.Close()
				in = f
			}

			ctx := context.Background()
			a.Warm(ctx)

			res, err := ingestStream(ctx, a.Pipeline, in, logger)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			logger.Info("Ingest completed",
				zap.Int("received", res.Received),
				zap.Int("admitted", res.Admitted),
				zap.Int("duplicates", res.Duplicates),
				zap.Int("skipped", res.Skipped))
			fmt.Fprintf(cmd.OutOrStdout(), "received=%d admitted=%d duplicates=%d skipped=%d\n",
				res.Received, res.Admitted, res.Duplicates, res.Skipped)
			return nil
		},
	}
}
