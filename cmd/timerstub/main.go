package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/NavarchProject/timerstub/pkg/config"
)

var (
	verbose      bool
	debug        bool
	configPath   string
	outputFormat string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "timerstub",
		Short: "Deterministic virtual-clock timer scheduler",
		Long: `timerstub runs timer scenarios against a virtual clock.

Timers only fire when a scenario waits, so the order and timing of every
callback is reproducible. Scenarios are YAML files; plain JavaScript files
can be run with the fake timers installed as globals.`,
		SilenceUsage: true,
	}

	defaultConfig := os.Getenv("TIMERSTUB_CONFIG")

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug output")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", defaultConfig, "Path to config file (env: TIMERSTUB_CONFIG)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "", "Output format (table, json); overrides the config file")

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(validateCmd())
	rootCmd.AddCommand(evalCmd())
	rootCmd.AddCommand(versionCmd())

	return rootCmd
}

// loadConfig reads the config file if one was given and applies the
// output flag on top of it.
func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if configPath != "" {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}

	if outputFormat != "" {
		cfg.Output.Format = outputFormat
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
