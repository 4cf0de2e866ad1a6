// Package main is the entry point for the reservoir CLI.
//
// reservoir reserves machines and networks on one or several testbeds at a
// common start date, images the machines and hands the resulting inventory
// over to the experiment.
//
// Commands: up, slot, destroy, simulate, version.
//
// For detailed usage information, run:
//
//	reservoir --help
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/imamik/reservoir/cmd/reservoir/commands"
)

// Version information set by goreleaser at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	commands.SetVersionInfo(version, commit, date)
	if err := commands.Root().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
