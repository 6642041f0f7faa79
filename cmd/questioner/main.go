// Package main is the entry point for the questioner CLI.
package main

import (
	"os"

	"github.com/stpbots/questioner/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
