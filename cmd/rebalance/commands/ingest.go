package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/rebalance/internal/ingest"
)

var (
	ingestLookback int
	ingestForce    bool
)

// ingestCmd pulls historical bars for the active universe
var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Ingest daily bars for the universe",
	Long: `Fetches missing daily bars for every active instrument, respecting
the data source's rate budget. Already-stored dates are skipped unless
--force re-fetches the whole window.

Example:
  go run ./cmd/rebalance ingest
  go run ./cmd/rebalance ingest --lookback 420 --force`,
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)

	ingestCmd.Flags().IntVar(&ingestLookback, "lookback", 0, "history window in days (default from config)")
	ingestCmd.Flags().BoolVar(&ingestForce, "force", false, "re-fetch dates that are already stored")
}

func runIngest(cmd *cobra.Command, args []string) error {
	app, cleanup, err := newApp()
	if err != nil {
		return err
	}
	defer cleanup()

	report, err := app.engine.RunIngestion(context.Background(), ingest.Options{
		LookbackDays: ingestLookback,
		Force:        ingestForce,
	})
	if err != nil {
		return err
	}

	fmt.Printf("=== Bar Ingestion ===\n\n")
	fmt.Printf("Window:       %s .. %s\n", report.From.Format("2006-01-02"), report.To.Format("2006-01-02"))
	fmt.Printf("Instruments:  %d (ok %d, skipped %d, failed %d)\n",
		report.Instruments, report.Succeeded, report.Skipped, report.Failed)
	fmt.Printf("Bars:         %d inserted, %d updated\n", report.BarsInserted, report.BarsUpdated)
	fmt.Printf("Duration:     %s\n", report.Duration)

	if len(report.Restatements) > 0 {
		fmt.Printf("\nRestatements:\n")
		for _, r := range report.Restatements {
			fmt.Printf("  %s %s: %.4f -> %.4f\n",
				r.Instrument, r.Date.Format("2006-01-02"), r.OldClose, r.NewClose)
		}
	}
	for instrument, msg := range report.Errors {
		fmt.Printf("  ERROR %s: %s\n", instrument, msg)
	}
	return nil
}
