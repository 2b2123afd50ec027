package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newSnapshotCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "snapshot",
		Short: "Record today's growth snapshot for every agent",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, logger, err := bootstrap(cmd)
			if err != nil {
				return err
			}
			defer logger.Sync()
			defer a.Close()

			a.Warm(context.Background())

			snapshots, err := a.Growth.SnapshotToday()
			if err != nil {
				return fmt.Errorf("snapshot: %w", err)
			}
			inorganic := 0
			for _, s := range snapshots {
				if !s.IsOrganic {
					inorganic++
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d snapshots written, %d inorganic\n", len(snapshots), inorganic)
			return nil
		},
	}
}
