package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"pipecopy/internal/config"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}
	configCmd.AddCommand(newConfigInitCommand(), newConfigValidateCommand(ctx))
	return configCmd
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string
	var overwrite bool

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Write a commented sample configuration file",
		Annotations: map[string]string{skipConfigAnnotation: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := initTarget(targetPath)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return fmt.Errorf("create config directory: %w", err)
			}
			if !overwrite {
				_, statErr := os.Stat(target)
				switch {
				case statErr == nil:
					return fmt.Errorf("config file already exists at %s (use --overwrite to replace it)", target)
				case !errors.Is(statErr, os.ErrNotExist):
					return fmt.Errorf("check config path: %w", statErr)
				}
			}
			if err := config.CreateSample(target); err != nil {
				return fmt.Errorf("create sample config: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote sample configuration to %s\n", target)
			fmt.Fprintln(out, "Set transport.path and copy.destination_dir, or pass them to 'pipecopy run'.")
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the configuration file")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Overwrite existing configuration if present")
	return cmd
}

func initTarget(flagPath string) (string, error) {
	if path := strings.TrimSpace(flagPath); path != "" {
		expanded, err := config.ExpandPath(path)
		if err != nil {
			return "", fmt.Errorf("resolve config path: %w", err)
		}
		return expanded, nil
	}
	path, err := config.DefaultConfigPath()
	if err != nil {
		return "", fmt.Errorf("determine default config path: %w", err)
	}
	return path, nil
}

func newConfigValidateCommand(ctx *commandContext) *cobra.Command {
	var transportPath string
	var destinationDir string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check the configuration a run would use",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := cfg.ApplyArgs(transportPath, destinationDir); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			printConfigSummary(cmd.OutOrStdout(), ctx.configPath, cfg)
			return nil
		},
	}

	cmd.Flags().StringVar(&transportPath, "transport", "", "Transport path to check instead of transport.path")
	cmd.Flags().StringVar(&destinationDir, "destination", "", "Destination to check instead of copy.destination_dir")
	return cmd
}

func printConfigSummary(w io.Writer, path string, cfg *config.Config) {
	source := path
	if _, err := os.Stat(path); err != nil {
		source = "defaults (no file at " + path + ")"
	}
	fmt.Fprintf(w, "Config:      %s\n", source)
	fmt.Fprintf(w, "Transport:   %s\n", cfg.Transport.Path)
	fmt.Fprintf(w, "Destination: %s\n", cfg.Copy.DestinationDir)
	fmt.Fprintf(w, "Queue:       %d\n", cfg.Queue.Capacity)
	fmt.Fprintf(w, "Verify:      %s\n", yesNo(cfg.Copy.Verify))
	fmt.Fprintf(w, "Ledger:      %s\n", yesNo(cfg.Ledger.Enabled))
	fmt.Fprintln(w, "Configuration valid")
}
