package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath string // YAML config file
	logLevel   string // overrides the config log level when set
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "udpqueue",
	Short: "Paced UDP egress for real-time streams",
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (trace, debug, info, warn, error)")

	rootCmd.AddCommand(runCmd)
}
