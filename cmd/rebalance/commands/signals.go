package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// signalsCmd lists pending signals
var signalsCmd = &cobra.Command{
	Use:   "signals",
	Short: "List pending signals",
	Long: `Lists the portfolio's pending signals in execution order: sells
first so their proceeds are available before the buys.

Example:
  go run ./cmd/rebalance signals`,
	RunE: runSignals,
}

func init() {
	rootCmd.AddCommand(signalsCmd)
}

func runSignals(cmd *cobra.Command, args []string) error {
	app, cleanup, err := newApp()
	if err != nil {
		return err
	}
	defer cleanup()

	signals, err := app.engine.PendingSignals(context.Background())
	if err != nil {
		return err
	}

	fmt.Printf("=== Pending Signals (%d) ===\n\n", len(signals))
	for _, s := range signals {
		fmt.Printf("%s  %-4s %-6s qty %-10s notional %-12s %s (%s)\n",
			s.ID, s.Direction, s.Symbol, s.Quantity.String(),
			s.Notional.StringFixed(2), s.Reason, s.AsOf.Format("2006-01-02"))
	}
	return nil
}
