package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jayal13/nebo-release/cmd"
	"github.com/jayal13/nebo-release/internal/appcontext"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	rootCmd := cmd.NewRootCommand(appcontext.New())

	err := rootCmd.ExecuteContext(ctx)
	stop()

	if err != nil {
		os.Exit(1)
	}
}
