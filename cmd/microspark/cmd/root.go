// Package cmd provides the CLI commands for microspark.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var envFile string

var rootCmd = &cobra.Command{
	Use:   "microspark",
	Short: "microspark - a small HTTP server with a Drive index",
	Long: `microspark serves a middleware-driven HTTP router with static files,
an optional Google Drive folder index, health checks and Prometheus metrics.

Configuration is read from the environment. A .env file in the working
directory is loaded when present; --env-file loads another one instead.
Variables already set in the environment always win.

Commands:
  serve       Start the HTTP server
  routes      Print the registered routes
  version     Print version information`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "env file to load (default: ./.env when present)")
}

func envFiles() []string {
	if envFile == "" {
		return nil
	}
	return []string{envFile}
}
