package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"lenslink/pkg/config"
)

// defaultConfigPaths are tried in order when --config is not given.
var defaultConfigPaths = []string{
	"configs/config.yaml",
	"/etc/lenslink/config.yaml",
	"config.yaml",
}

type rootOptions struct {
	ConfigPath string
	Format     string // "text" | "json"
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:          "lenslink",
		Short:        "Device coordination hub for camera capture and AI analysis",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.Format != "text" && opts.Format != "json" {
				return fmt.Errorf("invalid format %q: must be text or json", opts.Format)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "path to config.yaml")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(newServeCommand(opts))
	cmd.AddCommand(newHistoryCommand(opts))
	cmd.AddCommand(newPairsCommand(opts))

	return cmd
}

// loadConfig reads the explicit path, or the first default path that exists.
// Without any file the defaults plus environment overrides apply.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file %s: %w", path, err)
		}
		return config.Load(path)
	}

	for _, candidate := range defaultConfigPaths {
		if _, err := os.Stat(candidate); err == nil {
			return config.Load(candidate)
		}
	}
	return config.Load(defaultConfigPaths[0])
}
