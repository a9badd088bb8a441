// Package main provides the CLI entry point for the wallet.
package main

import (
	"context"
	"os"

	"github.com/monolythium/wallet-cli/internal/cli"
	"github.com/monolythium/wallet-cli/internal/output"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	printer := output.NewPrinter(os.Stdout)

	inv, err := cli.Parse(args, cli.ParseOptions{
		Version: version,
		Out:     os.Stdout,
		Err:     os.Stderr,
	})
	if err != nil {
		printer.Error(err)
		return 1
	}
	if inv.Handled {
		return 0
	}

	if err := cli.NewSession(cli.SessionOptions{Printer: printer}).Run(context.Background(), inv); err != nil {
		printer.Error(err)
		return 1
	}
	return 0
}
