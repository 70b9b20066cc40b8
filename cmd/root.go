package cmd

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	// Shared CLI flags
	logLevel    string // Log verbosity level
	metricsPath string // Path to a profiling JSONL export
	nodesPath   string // Path to the YAML node inventory
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "shardplan",
	Short: "Profile-driven pipeline partition planner for layered models",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Fatalf("Invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)
	},
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// init sets up shared CLI flags and attaches the subcommands
func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log", "error", "Log level (trace, debug, info, warn, error, fatal, panic)")

	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(summarizeCmd)
}
