package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alphabill-org/guild/cli/guild/cmd"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.New(nil).Execute(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "guild: %v\n", err)
		stop()
		os.Exit(1)
	}
}
