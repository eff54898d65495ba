package main

import (
	"bufio"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"pipecopy/internal/transport"
)

func newSendCommand(ctx *commandContext) *cobra.Command {
	var transportPath string
	var fromStdin bool

	cmd := &cobra.Command{
		Use:   "send [path...]",
		Short: "Queue files for copying by a running pipecopy",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			target := strings.TrimSpace(transportPath)
			if target == "" {
				target = cfg.Transport.Path
			}
			if target == "" {
				return fmt.Errorf("no transport configured; pass --transport")
			}

			paths := append([]string(nil), args...)
			if fromStdin {
				scanner := bufio.NewScanner(cmd.InOrStdin())
				for scanner.Scan() {
					if line := strings.TrimSpace(scanner.Text()); line != "" {
						paths = append(paths, line)
					}
				}
				if err := scanner.Err(); err != nil {
					return fmt.Errorf("read stdin: %w", err)
				}
			}
			if len(paths) == 0 {
				return fmt.Errorf("no paths given")
			}

			records := make([]string, 0, len(paths))
			for _, p := range paths {
				abs, err := filepath.Abs(p)
				if err != nil {
					return fmt.Errorf("resolve %q: %w", p, err)
				}
				records = append(records, abs)
			}

			n, err := transport.Send(target, records)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Sent %d path(s) to %s\n", n, target)
			return nil
		},
	}

	cmd.Flags().StringVarP(&transportPath, "transport", "t", "", "Named pipe to write to (defaults to transport.path)")
	cmd.Flags().BoolVar(&fromStdin, "stdin", false, "Also read paths from stdin, one per line")
	return cmd
}
