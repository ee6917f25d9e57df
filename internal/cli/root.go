// Package cli provides the command-line interface for seedforge.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/raphaelgruber/seedforge/internal/config"
	"github.com/spf13/cobra"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	verbose bool

	// Global config and logger
	cfg      config.Config
	logger   *slog.Logger
	closeLog func() error
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "seedforge",
	Short: "Grow an instruction dataset from seed examples",
	Long: `Seedforge expands a small set of (instruction, input, output) seed
examples into a larger dataset by asking a language model for variations
of each seed, in parallel, and writing the results to a JSON file.

Provider credentials come from the environment (or a .env file);
run parameters come from flags or a YAML/TOML run config.`,
	Version:      Version,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}

		cfg = config.Load()
		level := cfg.LogLevel
		if verbose {
			level = slog.LevelDebug
		}
		logger, closeLog = config.SetupLogger(cfg.LogFile, level)
		slog.SetDefault(logger)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if closeLog != nil {
			if err := closeLog(); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to close log file: %v\n", err)
			}
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (debug logging, raw model replies)")

	rootCmd.AddCommand(runCmd)
}
