package main

import (
	"os"

	"budgetpredictor/internal/cli"
)

var Version = "dev"

func main() {
	cli.SetVersion(Version)
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
