package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "rebalance",
	Short: "Ranking and rebalancing decision engine",
	Long: `Rebalance CLI

Ingests daily bars, computes momentum and moving-average indicators,
ranks the universe into tiers, and turns tier transitions into
idempotent trade signals.

Examples:
  go run ./cmd/rebalance ingest
  go run ./cmd/rebalance plan --dry-run
  go run ./cmd/rebalance signals
  go run ./cmd/rebalance execute --all
  go run ./cmd/rebalance serve`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main().
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
