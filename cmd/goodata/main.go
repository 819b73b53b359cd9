package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/pboyd04/goodata/cmd/goodata/app"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := app.Execute(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
