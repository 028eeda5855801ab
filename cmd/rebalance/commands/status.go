package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// statusCmd prints an engine snapshot
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show portfolio and recent cycle status",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	app, cleanup, err := newApp()
	if err != nil {
		return err
	}
	defer cleanup()

	status, err := app.engine.GetStatus(context.Background())
	if err != nil {
		return err
	}

	fmt.Printf("=== Status ===\n\n")
	fmt.Printf("Portfolio:       %s\n", status.Portfolio)
	fmt.Printf("Strategy:        %s\n", status.Strategy)
	fmt.Printf("Pending signals: %d\n", status.PendingSignals)

	if len(status.RecentCycles) > 0 {
		fmt.Printf("\nRecent cycles:\n")
		for _, c := range status.RecentCycles {
			fmt.Printf("  %s  %-18s as-of %s\n",
				c.ID, c.Status, c.AsOf.Format("2006-01-02"))
		}
	}
	return nil
}
