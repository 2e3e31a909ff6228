// Package cmd provides CLI commands for bookkeeper.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/shunichi-ikebuchi/bookkeeper/pkg/chart"
	"github.com/shunichi-ikebuchi/bookkeeper/pkg/config"
)

var (
	cfgFile string
	debug   bool
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "bookkeeper",
	Short: "Double-entry bookkeeping for a personal or small-business book",
	Long: `bookkeeper is a double-entry bookkeeping engine backed by a
single SQLite file per book.

It supports:
- A typed chart of accounts seeded from YAML
- Balanced transactions with GST-aware postings
- Account balances and register views with running balance
- Statement reconciliation with tiered automatic matching
- An HTTP API for the ledger core

Example:
  bookkeeper init
  bookkeeper balance --account Checking
  bookkeeper serve`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Setup logging
		logLevel := slog.LevelInfo
		if debug {
			logLevel = slog.LevelDebug
		}

		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: logLevel,
		}))
		slog.SetDefault(logger)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .env)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	// Add subcommands
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(balanceCmd)
	rootCmd.AddCommand(registerCmd)
	rootCmd.AddCommand(serveCmd)
}

// Helper function to get config file path.
func getConfigFile() string {
	if cfgFile != "" {
		return cfgFile
	}
	return "" // Will use default .env loading
}

// Helper function to handle errors and exit.
func exitOnError(err error, msg string) {
	if err != nil {
		slog.Error(msg, "error", err)
		fmt.Fprintf(os.Stderr, "Error: %s: %v\n", msg, err)
		os.Exit(1)
	}
}

// loadChart loads the configured chart file, or the built-in default
// chart when none is configured.
func loadChart(cfg *config.Config) (*chart.Chart, error) {
	if cfg.Book.ChartPath == "" {
		return chart.Default(), nil
	}
	return chart.Load(cfg.Book.ChartPath)
}
