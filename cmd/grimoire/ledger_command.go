package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newLedgerCommand(ctx *commandContext) *cobra.Command {
	ledgerCmd := &cobra.Command{
		Use:   "ledger",
		Short: "Inspect the processed-source ledger",
	}
	ledgerCmd.AddCommand(newLedgerListCommand(ctx))
	ledgerCmd.AddCommand(newLedgerForgetCommand(ctx))
	return ledgerCmd
}

func newLedgerListCommand(ctx *commandContext) *cobra.Command {
	var environment string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List sources that completed extraction",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.openLedger()
			if err != nil {
				return fmt.Errorf("open processing ledger: %w", err)
			}
			defer store.Close()

			records, err := store.List(cmd.Context(), environment)
			if err != nil {
				return fmt.Errorf("list ledger records: %w", err)
			}
			out := cmd.OutOrStdout()
			if len(records) == 0 {
				fmt.Fprintln(out, "No processed sources recorded.")
				return nil
			}

			rows := make([][]string, 0, len(records))
			for _, record := range records {
				rows = append(rows, []string{
					truncate(record.SourceHash, 12),
					record.SourcePath,
					record.Environment,
					fmt.Sprintf("%d", record.ChunkCount),
					displayTime(record.LastProcessedAt).Format("2006-01-02 15:04"),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]column{
					{title: "Hash"},
					{title: "Source"},
					{title: "Env"},
					{title: "Chunks", numeric: true},
					{title: "Processed", numeric: true},
				},
				rows,
			))
			return nil
		},
	}

	cmd.Flags().StringVarP(&environment, "environment", "e", "", "Filter by environment")
	return cmd
}

func newLedgerForgetCommand(ctx *commandContext) *cobra.Command {
	var environment string

	cmd := &cobra.Command{
		Use:   "forget <source-hash>",
		Short: "Drop a ledger record so the next run re-extracts the source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			env := environment
			if env == "" {
				env = cfg.Pipeline.Environment
			}

			store, err := ctx.openLedger()
			if err != nil {
				return fmt.Errorf("open processing ledger: %w", err)
			}
			defer store.Close()

			removed, err := store.Delete(cmd.Context(), args[0], env)
			if err != nil {
				return fmt.Errorf("delete ledger record: %w", err)
			}
			out := cmd.OutOrStdout()
			if !removed {
				fmt.Fprintf(out, "No ledger record for %s in %s\n", args[0], env)
				return nil
			}
			fmt.Fprintf(out, "Forgot %s in %s; the next run will re-extract it.\n", args[0], env)
			return nil
		},
	}

	cmd.Flags().StringVarP(&environment, "environment", "e", "", "Environment of the record (defaults to the configured one)")
	return cmd
}
