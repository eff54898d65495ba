package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var socketFlag string
	var configFlag string

	ctx := newCommandContext(&socketFlag, &configFlag)

	rootCmd := &cobra.Command{
		Use:   "pipecopy",
		Short: "Copy files named on a pipe into a destination directory",
		Long: `pipecopy listens on a named pipe for newline-terminated file paths and
copies each file into a destination directory through a bounded queue.

Start a pipeline with 'pipecopy run <transport> <destination>', feed it with
'pipecopy send <file>...' or any program that writes to the pipe, and stop it
by typing "exit" or with 'pipecopy stop'.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if shouldSkipConfig(cmd) {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
	}

	rootCmd.PersistentFlags().StringVar(&socketFlag, "socket", "", "Path to the pipecopy control socket")
	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")

	rootCmd.AddCommand(
		newRunCommand(ctx),
		newSendCommand(ctx),
		newStatusCommand(ctx),
		newStopCommand(ctx),
		newHistoryCommand(ctx),
		newLogsCommand(ctx),
		newConfigCommand(ctx),
	)
	return rootCmd
}
