package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/artpar/dcg/internal/cli"
)

// Version information (set by build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return cli.Execute(ctx, cli.Options{
		Args:     os.Args[1:],
		Terminal: cli.DetectTerminalCapabilities(),
		Version:  Version,
		Built:    BuildTime,
	})
}
