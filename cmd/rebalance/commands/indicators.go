package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var indicatorsAsOf string

// indicatorsCmd recomputes the strategy's indicators
var indicatorsCmd = &cobra.Command{
	Use:   "indicators",
	Short: "Compute and store indicator values",
	Long: `Computes the configured strategy's indicators (momentum or moving
averages) for every instrument with sufficient history and stores them
for the as-of date.

Example:
  go run ./cmd/rebalance indicators
  go run ./cmd/rebalance indicators --as-of 2026-03-02`,
	RunE: runIndicators,
}

func init() {
	rootCmd.AddCommand(indicatorsCmd)

	indicatorsCmd.Flags().StringVar(&indicatorsAsOf, "as-of", "", "as-of date (YYYY-MM-DD, default today)")
}

func parseAsOf(value string) (time.Time, error) {
	if value == "" {
		return time.Now(), nil
	}
	return time.Parse("2006-01-02", value)
}

func runIndicators(cmd *cobra.Command, args []string) error {
	asOf, err := parseAsOf(indicatorsAsOf)
	if err != nil {
		return fmt.Errorf("invalid --as-of: %w", err)
	}

	app, cleanup, err := newApp()
	if err != nil {
		return err
	}
	defer cleanup()

	report, err := app.engine.RunIndicatorUpdate(context.Background(), asOf)
	if err != nil {
		return err
	}

	fmt.Printf("=== Indicator Update ===\n\n")
	fmt.Printf("Strategy:     %s\n", app.engine.Strategy())
	fmt.Printf("As of:        %s\n", report.AsOf.Format("2006-01-02"))
	fmt.Printf("Computed:     %d\n", report.Computed)
	fmt.Printf("Insufficient: %d\n", report.Insufficient)
	return nil
}
