package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"pipecopy/internal/ipc"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the state of a running pipecopy",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Status()
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd.OutOrStdout(), resp)
				}
				renderStatus(newStatusPrinter(cmd.OutOrStdout()), resp)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the status as JSON")
	return cmd
}

func renderStatus(p statusPrinter, resp *ipc.StatusResponse) {
	p.section("Pipeline")
	p.line("State", stateKind(resp.State), resp.State)
	p.line("Run", statusInfo, resp.RunID)
	p.line("PID", statusInfo, strconv.Itoa(resp.PID))
	if !resp.StartedAt.IsZero() {
		p.line("Started", statusInfo, humanize.Time(resp.StartedAt))
	}
	p.line("Transport", statusInfo, resp.Transport)
	p.line("Destination", statusInfo, resp.Destination)

	queueKind := statusOK
	if resp.QueueCapacity > 0 && resp.QueueDepth >= resp.QueueCapacity {
		// Full queue: producers are blocked behind the copier.
		queueKind = statusWarn
	}
	p.line("Queue", queueKind, fmt.Sprintf("%d/%d", resp.QueueDepth, resp.QueueCapacity))
	fmt.Fprintln(p.w)

	p.section("Activity")
	rows := [][]string{
		{"Records accepted", humanize.Comma(resp.RecordsAccepted)},
		{"Records dropped", humanize.Comma(resp.RecordsDropped)},
		{"Files copied", humanize.Comma(resp.CopiesSucceeded)},
		{"Copies failed", humanize.Comma(resp.CopiesFailed)},
		{"Bytes copied", humanize.IBytes(uint64(resp.BytesCopied))},
	}
	fmt.Fprintln(p.w, renderTable([]column{{title: "Metric"}, {title: "Value", align: alignRight}}, rows))

	if resp.LedgerPath == "" && resp.LogPath == "" {
		return
	}
	fmt.Fprintln(p.w)
	p.section("Files")
	if resp.LedgerPath != "" {
		p.line("Ledger", statusInfo, resp.LedgerPath)
	}
	if resp.LogPath != "" {
		p.line("Log", statusInfo, resp.LogPath)
	}
}

func writeJSON(w io.Writer, value any) error {
	return newJSONEncoder(w).Encode(value)
}
