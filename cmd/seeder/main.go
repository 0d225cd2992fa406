// Package main is the entry point for the ledger seeder CLI.
package main

import (
	"os"

	"github.com/punchamoorthee/txledger/cmd/seeder/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
