package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"pipecopy/internal/ledger"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var runID string
	var failedOnly bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent copy results from the ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			stdout := cmd.OutOrStdout()
			if !cfg.Ledger.Enabled {
				fmt.Fprintln(stdout, "Copy ledger is disabled (ledger.enabled = false)")
				return nil
			}
			if _, err := os.Stat(cfg.Ledger.Path); os.IsNotExist(err) {
				fmt.Fprintln(stdout, "No copies recorded yet")
				return nil
			}

			store, err := ledger.Open(cfg.Ledger.Path)
			if err != nil {
				return fmt.Errorf("open ledger: %w", err)
			}
			defer store.Close()

			filter := ledger.Filter{RunID: strings.TrimSpace(runID), Limit: limit}
			if failedOnly {
				filter.Outcome = ledger.OutcomeFailed
			}
			entries, err := store.Recent(cmd.Context(), filter)
			if err != nil {
				return err
			}
			summary, err := store.Summarize(cmd.Context(), filter.RunID)
			if err != nil {
				return err
			}
			renderHistory(stdout, entries, summary, time.Now())
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum entries to show")
	cmd.Flags().StringVar(&runID, "run", "", "Only show entries from this run id")
	cmd.Flags().BoolVar(&failedOnly, "failed", false, "Only show failed copies")
	return cmd
}

func renderHistory(w io.Writer, entries []ledger.Entry, summary ledger.Summary, now time.Time) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No copies recorded yet")
		return
	}
	rows := make([][]string, 0, len(entries))
	for _, entry := range entries {
		detail := entry.Destination
		size := humanize.IBytes(uint64(entry.Bytes))
		if entry.Outcome == ledger.OutcomeFailed {
			detail = entry.Error
			size = "-"
		}
		rows = append(rows, []string{
			humanize.RelTime(entry.RecordedAt, now, "ago", "from now"),
			string(entry.Outcome),
			size,
			entry.Source,
			detail,
		})
	}
	fmt.Fprintln(w, renderTable([]column{
		{title: "When"},
		{title: "Outcome"},
		{title: "Size", align: alignRight},
		{title: "Source"},
		{title: "Destination / Error"},
	}, rows))
	fmt.Fprintf(w, "%s copied (%s), %s failed\n",
		humanize.Comma(summary.Copied), humanize.IBytes(uint64(summary.Bytes)), humanize.Comma(summary.Failed))
}
