package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"pipecopy/internal/daemonctl"
)

func newStopCommand(ctx *commandContext) *cobra.Command {
	var grace time.Duration

	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Shut down a running pipecopy after queued paths are copied",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			stdout := cmd.OutOrStdout()
			result, err := daemonctl.StopAndTerminate(ctx.socketPath(), cfg.PIDPath(), grace)
			if errors.Is(err, daemonctl.ErrNotRunning) {
				fmt.Fprintln(stdout, "pipecopy is not running")
				return nil
			}
			if err != nil {
				return err
			}
			if !result.StopAcknowledged {
				fmt.Fprintln(stdout, "Stop request sent")
			}
			if result.ForcedKill {
				fmt.Fprintf(stdout, "pipecopy did not stop within %s; killed pid %d\n", grace, result.PID)
				return nil
			}
			fmt.Fprintln(stdout, "pipecopy stopped")
			return nil
		},
	}
	cmd.Flags().DurationVar(&grace, "grace", 0, "Kill the process if it has not stopped after this long (0 waits for the queue to drain)")
	return cmd
}
