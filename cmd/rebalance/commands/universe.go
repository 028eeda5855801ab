package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/rebalance/internal/contracts"
)

var (
	universeProxy string
	universeName  string
)

// universeCmd manages the investable universe
var universeCmd = &cobra.Command{
	Use:   "universe",
	Short: "Manage the investable universe",
}

var universeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List active instruments",
	RunE:  runUniverseList,
}

var universeAddCmd = &cobra.Command{
	Use:   "add <id> <symbol>",
	Short: "Add or update an instrument",
	Long: `Adds an instrument to the universe, or updates it if the ID already
exists. Instruments that are not directly tradable take a --proxy ETF
symbol that orders are placed against.

Example:
  go run ./cmd/rebalance universe add spx SPX --proxy SPY --name "S&P 500"`,
	Args: cobra.ExactArgs(2),
	RunE: runUniverseAdd,
}

var universeDeactivateCmd = &cobra.Command{
	Use:   "deactivate <id>",
	Short: "Remove an instrument from ranking",
	Args:  cobra.ExactArgs(1),
	RunE:  runUniverseDeactivate,
}

func init() {
	rootCmd.AddCommand(universeCmd)
	universeCmd.AddCommand(universeListCmd)
	universeCmd.AddCommand(universeAddCmd)
	universeCmd.AddCommand(universeDeactivateCmd)

	universeAddCmd.Flags().StringVar(&universeProxy, "proxy", "", "tradable proxy symbol")
	universeAddCmd.Flags().StringVar(&universeName, "name", "", "display name")
}

func runUniverseList(cmd *cobra.Command, args []string) error {
	app, cleanup, err := newApp()
	if err != nil {
		return err
	}
	defer cleanup()

	instruments, err := app.engine.Universe.ListActive(context.Background())
	if err != nil {
		return err
	}

	fmt.Printf("=== Universe (%d active) ===\n\n", len(instruments))
	for _, inst := range instruments {
		proxy := "-"
		if inst.Proxy != "" {
			proxy = inst.Proxy
		}
		fmt.Printf("  %-12s %-8s proxy %-8s %s\n", inst.ID, inst.Symbol, proxy, inst.Name)
	}
	return nil
}

func runUniverseAdd(cmd *cobra.Command, args []string) error {
	app, cleanup, err := newApp()
	if err != nil {
		return err
	}
	defer cleanup()

	inst := &contracts.Instrument{
		ID:     args[0],
		Symbol: args[1],
		Proxy:  universeProxy,
		Name:   universeName,
		Active: true,
	}
	if err := app.engine.Universe.Upsert(context.Background(), inst); err != nil {
		return err
	}

	fmt.Printf("Saved %s (%s)\n", inst.ID, inst.TradeSymbol())
	return nil
}

func runUniverseDeactivate(cmd *cobra.Command, args []string) error {
	app, cleanup, err := newApp()
	if err != nil {
		return err
	}
	defer cleanup()

	if err := app.engine.Universe.Deactivate(context.Background(), args[0]); err != nil {
		return err
	}

	fmt.Printf("Deactivated %s\n", args[0])
	return nil
}
