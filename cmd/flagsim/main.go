// Command flagsim runs flagging agents over a simulated dataset.
package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/hupe1980/flagcube/internal/cli"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	return cli.New().ExecuteContext(ctx)
}
