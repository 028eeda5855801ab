package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// syncCmd reconciles holdings against the broker
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Reconcile holdings against the broker",
	Long: `Polls open trades for fills, then compares local holdings with the
broker's positions. The broker is authoritative for quantities.

Example:
  go run ./cmd/rebalance sync`,
	RunE: runSync,
}

func init() {
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	app, cleanup, err := newApp()
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := context.Background()

	settled, err := app.engine.PollTrades(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Settled %d open trades\n", settled)

	report, err := app.engine.SyncPositions(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Positions matched: %d\n", report.Matched)
	for _, d := range report.Drifts {
		fmt.Printf("  DRIFT %-6s local %s, broker %s\n",
			d.Symbol, d.LocalQty.String(), d.BrokerQty.String())
	}
	return nil
}
