package main

import (
	"github.com/spf13/cobra"

	"pipecopy/internal/daemonrun"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var noStdin bool
	var verify bool
	var capacity int
	var logLevel string

	cmd := &cobra.Command{
		Use:   "run [transport] [destination]",
		Short: "Listen on a named pipe and copy every path written to it",
		Long: `Create the named pipe at <transport> and copy each newline-terminated
file path written to it into <destination>. Type the exit command (default
"exit") on stdin, send SIGINT/SIGTERM, or run 'pipecopy stop' to shut down
after queued paths have been copied.

Both arguments fall back to transport.path and copy.destination_dir from the
configuration file.`,
		Args: cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			var transportArg, destinationArg string
			if len(args) > 0 {
				transportArg = args[0]
			}
			if len(args) > 1 {
				destinationArg = args[1]
			}
			if err := cfg.ApplyArgs(transportArg, destinationArg); err != nil {
				return err
			}

			flags := cmd.Flags()
			if noStdin {
				cfg.Control.Stdin = false
			}
			if flags.Changed("verify") {
				cfg.Copy.Verify = verify
			}
			if flags.Changed("capacity") {
				cfg.Queue.Capacity = capacity
			}
			if flags.Changed("log-level") {
				cfg.Logging.Level = logLevel
			}

			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{
				Stdin:  cmd.InOrStdin(),
				Prompt: cmd.OutOrStdout(),
			})
		},
	}

	cmd.Flags().BoolVar(&noStdin, "no-stdin", false, "Ignore stdin; stop with a signal or 'pipecopy stop'")
	cmd.Flags().BoolVar(&verify, "verify", false, "Verify each copy with a SHA-256 comparison")
	cmd.Flags().IntVar(&capacity, "capacity", 0, "Queue capacity between listener and copier")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	return cmd
}
