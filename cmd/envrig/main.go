// Command envrig prints the configuration keys an environment produces.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/Azhovan/envrig/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.Run(ctx, os.Args, os.Stdout, os.Stderr, nil); err != nil {
		stop()
		os.Exit(1)
	}
}
