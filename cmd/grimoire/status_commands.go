package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"grimoire/internal/jobstatus"
	"grimoire/internal/progress"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status [job-id]",
		Short: "Show active jobs, or the full pass breakdown for one job",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.openStatusStore()
			if err != nil {
				return fmt.Errorf("open job status store: %w", err)
			}
			defer store.Close()

			out := cmd.OutOrStdout()
			if len(args) == 1 {
				record, ok := store.JobStatus(args[0])
				if !ok {
					return fmt.Errorf("no job with ID %s", args[0])
				}
				printJobDetail(out, record)
				return nil
			}

			active := store.ActiveJobs()
			if len(active) == 0 {
				fmt.Fprintln(out, "No active jobs.")
				return nil
			}

			rows := make([][]string, 0, len(active))
			for _, record := range active {
				rows = append(rows, []string{
					record.JobID,
					record.SourcePath,
					string(record.State),
					passLabel(record.CurrentPass),
					fmt.Sprintf("%.0f%%", record.ProgressPercent),
					displayTime(record.QueuedAt).Format("15:04:05"),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]column{
					{title: "Job"},
					{title: "Source"},
					{title: "State"},
					{title: "Pass"},
					{title: "Progress", numeric: true},
					{title: "Queued", numeric: true},
				},
				rows,
			))
			return nil
		},
	}
}

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var environment string

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recently completed jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.openStatusStore()
			if err != nil {
				return fmt.Errorf("open job status store: %w", err)
			}
			defer store.Close()

			records := store.History(limit, environment)
			out := cmd.OutOrStdout()
			if len(records) == 0 {
				fmt.Fprintln(out, "No completed jobs.")
				return nil
			}

			rows := make([][]string, 0, len(records))
			for _, record := range records {
				ended := ""
				if record.EndedAt != nil {
					ended = displayTime(*record.EndedAt).Format("2006-01-02 15:04")
				}
				outcome := string(record.State)
				if record.State == jobstatus.StateFailed && record.ErrorMessage != "" {
					outcome = "failed: " + truncate(record.ErrorMessage, 40)
				}
				rows = append(rows, []string{
					record.JobID,
					record.SourcePath,
					record.Environment,
					outcome,
					formatSeconds(record.ProcessingTime),
					ended,
				})
			}
			fmt.Fprintln(out, renderTable(
				[]column{
					{title: "Job"},
					{title: "Source"},
					{title: "Env"},
					{title: "Outcome"},
					{title: "Duration", numeric: true},
					{title: "Ended", numeric: true},
				},
				rows,
			))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum records to show")
	cmd.Flags().StringVarP(&environment, "environment", "e", "", "Filter by environment")
	return cmd
}

func newStatsCommand(ctx *commandContext) *cobra.Command {
	var environment string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show aggregate processing statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.openStatusStore()
			if err != nil {
				return fmt.Errorf("open job status store: %w", err)
			}
			defer store.Close()

			stats := store.Statistics(environment)
			out := cmd.OutOrStdout()
			scope := environment
			if scope == "" {
				scope = "all environments"
			}
			fmt.Fprintf(out, "Statistics (%s)\n", scope)
			fmt.Fprintf(out, "  Active jobs:        %d\n", stats.ActiveJobs)
			fmt.Fprintf(out, "  Completed jobs:     %d\n", stats.TotalCompleted)
			fmt.Fprintf(out, "  Successful:         %d\n", stats.Successful)
			fmt.Fprintf(out, "  Failed:             %d\n", stats.Failed)
			fmt.Fprintf(out, "  Success rate:       %.1f%%\n", stats.SuccessRate)
			fmt.Fprintf(out, "  Avg processing:     %s\n", formatSeconds(stats.AverageProcessingTime))
			return nil
		},
	}

	cmd.Flags().StringVarP(&environment, "environment", "e", "", "Filter by environment")
	return cmd
}

func printJobDetail(out io.Writer, record *jobstatus.Record) {
	fmt.Fprintf(out, "Job %s\n", record.JobID)
	fmt.Fprintf(out, "  Source:      %s\n", record.SourcePath)
	fmt.Fprintf(out, "  Environment: %s\n", record.Environment)
	fmt.Fprintf(out, "  State:       %s\n", record.State)
	fmt.Fprintf(out, "  Progress:    %.0f%%\n", record.ProgressPercent)
	if record.ErrorMessage != "" {
		fmt.Fprintf(out, "  Error:       %s\n", record.ErrorMessage)
	}
	if record.ArtifactsPath != "" {
		fmt.Fprintf(out, "  Artifacts:   %s\n", record.ArtifactsPath)
	}
	if len(record.Passes) == 0 {
		return
	}

	rows := make([][]string, 0, len(record.Passes))
	for _, passType := range progress.AllPasses() {
		summary, ok := record.Passes[string(passType)]
		if !ok {
			continue
		}
		detail := ""
		switch {
		case summary.ErrorMessage != "":
			detail = truncate(summary.ErrorMessage, 50)
		case summary.BypassReason != "":
			detail = "bypassed: " + truncate(summary.BypassReason, 40)
		case summary.ChunksProcessed > 0:
			detail = fmt.Sprintf("%d chunks", summary.ChunksProcessed)
		case summary.TOCEntries > 0:
			detail = fmt.Sprintf("%d entries", summary.TOCEntries)
		case summary.VectorsCreated > 0:
			detail = fmt.Sprintf("%d vectors", summary.VectorsCreated)
		case summary.GraphNodes > 0:
			detail = fmt.Sprintf("%d nodes, %d edges", summary.GraphNodes, summary.GraphEdges)
		}
		rows = append(rows, []string{
			passLabel(string(passType)),
			summary.Status,
			formatMillis(summary.DurationMillis),
			detail,
		})
	}
	fmt.Fprintln(out, renderTable(
		[]column{
			{title: "Pass"},
			{title: "Status"},
			{title: "Duration", numeric: true},
			{title: "Detail"},
		},
		rows,
	))
}

var titleCaser = cases.Title(language.Und)

func passLabel(passType string) string {
	if passType == "" {
		return "-"
	}
	if parsed, ok := progress.ParsePassType(passType); ok {
		return titleCaser.String(parsed.Label())
	}
	return passType
}

func formatSeconds(seconds float64) string {
	if seconds <= 0 {
		return "-"
	}
	return time.Duration(seconds * float64(time.Second)).Round(100 * time.Millisecond).String()
}

func formatMillis(millis int64) string {
	if millis <= 0 {
		return "-"
	}
	return (time.Duration(millis) * time.Millisecond).String()
}

func truncate(value string, max int) string {
	value = strings.TrimSpace(value)
	if len(value) <= max {
		return value
	}
	return value[:max-3] + "..."
}

// stdoutIsTerminal reports whether stdout is attached to an interactive
// terminal.
func stdoutIsTerminal() bool {
	fd := os.Stdout.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// displayTime localizes timestamps for interactive use and keeps them in UTC
// when output is piped, so scraped logs stay stable.
func displayTime(t time.Time) time.Time {
	if stdoutIsTerminal() {
		return t.Local()
	}
	return t.UTC()
}
