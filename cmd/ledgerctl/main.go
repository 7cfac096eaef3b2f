// Package main is the entry point for the ledgerctl CLI.
package main

import (
	"os"

	"github.com/otoco-io/ledger-web3-subprovider/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(cli.ExitCode(err))
	}
}
