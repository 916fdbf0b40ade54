// Package cli implements the sim command line interface.
package cli

import (
	"fmt"
	"os"

	"github.com/rovshanmuradov/solana-sim/internal/config"
	"github.com/rovshanmuradov/solana-sim/internal/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	cfgPath string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:           "sim",
	Short:         "Paper-trading simulator for Solana tokens",
	Long:          "sim tracks simulated token positions against live polled prices,\nwith a durable virtual cash balance and trade history.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to config file")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(wipeTokenCmd)
	rootCmd.AddCommand(resetTokenCmd)
	rootCmd.AddCommand(exportCmd)
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// setup loads configuration and builds the logger shared by all commands.
func setup() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	log := logger.New(debug || cfg.DebugLogging)
	return cfg, log, nil
}
