package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newDetectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "detect",
		Short: "Run pattern detection once and print the findings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, logger, err := bootstrap(cmd)
			if err != nil {
				return err
			}
			defer logger.Sync()
			defer a.Close()

			ctx := context.Background()
			a.Warm(ctx)

			out := cmd.OutOrStdout()
			patterns := a.Detector.RunDetection(ctx, time.Now().UTC())
			for _, p := range patterns {
				fmt.Fprintf(out, "%s\t%s\t%s\tconfidence=%d\tagents=%v\n",
					p.ID, p.Severity, p.PatternType, p.ConfidenceScore, p.AgentIDs)
			}
			fmt.Fprintf(out, "%d patterns detected\n", len(patterns))
			return nil
		},
	}
}
