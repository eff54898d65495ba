package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"pipecopy/internal/failure"
	"pipecopy/internal/pipeline"
)

func main() {
	os.Exit(execute(newRootCommand(), os.Stderr))
}

// execute runs cmd and maps its outcome to a process exit status: 0 after a
// clean shutdown, 1 for any failure including startup errors.
func execute(cmd *cobra.Command, stderr io.Writer) int {
	err := cmd.Execute()
	if err == nil {
		return 0
	}
	if !errors.Is(err, context.Canceled) {
		fmt.Fprintln(stderr, "pipecopy:", err)
		switch {
		case errors.Is(err, failure.ErrConfiguration):
			fmt.Fprintln(stderr, "Run 'pipecopy config validate' or 'pipecopy run --help' for the expected settings.")
		case pipeline.IsStartupError(err):
			fmt.Fprintln(stderr, "The transport could not be created; no files were copied.")
		case errors.Is(err, failure.ErrTransportCreation):
			fmt.Fprintln(stderr, "The transport failed while running; paths already queued were copied.")
		}
	}
	return 1
}
