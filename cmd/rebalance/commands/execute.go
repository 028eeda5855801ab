package commands

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/wonny/rebalance/internal/contracts"
)

var executeAll bool

// executeCmd submits pending signals to the broker
var executeCmd = &cobra.Command{
	Use:   "execute [signal-id]",
	Short: "Execute pending signals",
	Long: `Submits a pending signal's order to the broker. With --all, every
pending signal is executed in order, sells first.

Example:
  go run ./cmd/rebalance execute 7e3f1a52-9c44-4b7d-8f21-6a0d2e9b5c18
  go run ./cmd/rebalance execute --all`,
	Args: cobra.MaximumNArgs(1),
	RunE: runExecute,
}

func init() {
	rootCmd.AddCommand(executeCmd)

	executeCmd.Flags().BoolVar(&executeAll, "all", false, "execute every pending signal")
}

func runExecute(cmd *cobra.Command, args []string) error {
	if !executeAll && len(args) == 0 {
		return fmt.Errorf("pass a signal ID or --all")
	}

	app, cleanup, err := newApp()
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := context.Background()

	if executeAll {
		report, err := app.engine.ExecutePending(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Executed %d signals, %d failed\n", report.Executed, report.Failed)
		for id, msg := range report.Errors {
			fmt.Printf("  ERROR %s: %s\n", id, msg)
		}
		return nil
	}

	signalID, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid signal ID: %w", err)
	}

	trade, err := app.engine.ExecuteSignal(ctx, signalID)
	if err != nil {
		return err
	}

	fmt.Printf("Trade %s: %s %s x%s -> %s\n",
		trade.ID, trade.Direction, trade.Symbol, trade.Quantity.String(), trade.Status)
	if trade.Status == contracts.TradeFilled {
		fmt.Printf("Filled %s @ %s\n", trade.FilledQty.String(), trade.FilledPrice.StringFixed(2))
	}
	return nil
}
