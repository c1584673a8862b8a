package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// newSweepCommand exists for operator recovery after a crash: running records
// whose process died would otherwise sit in the active set forever.
func newSweepCommand(ctx *commandContext) *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Mark long-stale running jobs as failed",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.openStatusStore()
			if err != nil {
				return fmt.Errorf("open job status store: %w", err)
			}
			defer store.Close()

			swept, err := store.MarkStaleRunning(time.Now().UTC().Add(-olderThan))
			if err != nil {
				return fmt.Errorf("sweep stale jobs: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Marked %d stale jobs as failed.\n", swept)
			return nil
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", time.Hour, "Age at which a running job counts as stale")
	return cmd
}
