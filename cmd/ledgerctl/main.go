package main

import (
	"fmt"
	"os"

	"approval-ledger/cmd/ledgerctl/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
