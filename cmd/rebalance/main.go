package main

import (
	"os"

	"github.com/wonny/rebalance/cmd/rebalance/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
