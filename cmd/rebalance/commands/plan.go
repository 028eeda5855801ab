package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/rebalance/internal/rebalance"
)

var (
	planAsOf   string
	planDryRun bool
	planForce  bool
)

// planCmd runs a rank-and-plan cycle
var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Rank the universe and plan rebalance signals",
	Long: `Runs one rebalance cycle: classifies the universe for the as-of
date, diffs against the previous classification, and creates pending
signals. Replanning the same date never creates duplicates.

A dry run produces the identical report without persisting anything.

Example:
  go run ./cmd/rebalance plan --dry-run
  go run ./cmd/rebalance plan --as-of 2026-03-02 --force`,
	RunE: runPlan,
}

func init() {
	rootCmd.AddCommand(planCmd)

	planCmd.Flags().StringVar(&planAsOf, "as-of", "", "as-of date (YYYY-MM-DD, default today)")
	planCmd.Flags().BoolVar(&planDryRun, "dry-run", false, "report the plan without persisting signals")
	planCmd.Flags().BoolVar(&planForce, "force", false, "skip the rebalance frequency gate")
}

func runPlan(cmd *cobra.Command, args []string) error {
	asOf, err := parseAsOf(planAsOf)
	if err != nil {
		return fmt.Errorf("invalid --as-of: %w", err)
	}

	app, cleanup, err := newApp()
	if err != nil {
		return err
	}
	defer cleanup()

	report, err := app.engine.RunRankAndPlan(context.Background(), asOf, rebalance.Options{
		DryRun: planDryRun,
		Force:  planForce,
	})
	if err != nil {
		return err
	}

	mode := "live"
	if report.DryRun {
		mode = "dry-run"
	}

	fmt.Printf("=== Rebalance Plan (%s) ===\n\n", mode)
	fmt.Printf("Portfolio:  %s\n", report.Portfolio)
	fmt.Printf("Strategy:   %s\n", report.Strategy)
	fmt.Printf("As of:      %s\n", report.AsOf.Format("2006-01-02"))
	fmt.Printf("Analyzed:   %d instruments, %d ranked\n", report.Analyzed, report.Ranked)
	if report.Stats.Count > 0 {
		fmt.Printf("Scores:     mean %.4f, min %.4f, max %.4f, tier-1 cutoff %.4f\n",
			report.Stats.Mean, report.Stats.Min, report.Stats.Max, report.Stats.Tier1Cutoff)
	}
	fmt.Printf("Signals:    %d sells, %d buys", report.Sells, report.Buys)
	if !report.DryRun {
		fmt.Printf(" (%d created, %d already existed)", report.Created, report.Duplicates)
	}
	fmt.Println()

	for _, s := range report.Signals {
		fmt.Printf("  %-4s %-6s qty %-10s notional %-12s %s\n",
			s.Direction, s.Symbol, s.Quantity.String(), s.Notional.StringFixed(2), s.Reason)
	}
	return nil
}
