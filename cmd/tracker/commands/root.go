package commands

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	envFile string
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "tracker",
	Short: "Market Day Tracker - daily stock market tracking",
	Long: `Market Day Tracker CLI

Fetches daily quotes for the configured indices, analyzes the day,
projects 5-day price targets and serves the results to the dashboard.

Usage:
  go run ./cmd/tracker [command]

Examples:
  go run ./cmd/tracker track
  go run ./cmd/tracker api
  go run ./cmd/tracker scheduler
  go run ./cmd/tracker symbols --index "S&P 500"
  go run ./cmd/tracker report 2025-07-03`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// An explicit env file wins over .env discovery; godotenv
		// never overrides variables already set.
		if envFile != "" {
			return godotenv.Load(envFile)
		}
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "env file to load (default is .env)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (debug logging)")
}
