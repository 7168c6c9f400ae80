package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/custodia-labs/scholar/internal/adapters/driving/cli"
	"github.com/custodia-labs/scholar/internal/app"
	"github.com/custodia-labs/scholar/internal/logger"
)

// version is set via -ldflags at release time.
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(app.Options{DotEnv: []string{".env"}})
	if err != nil {
		logger.Error("startup failed: %v", err)
		return 1
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Warn("close catalog: %v", err)
		}
	}()

	cli.SetVersion(version)
	cli.SetServices(a.Services)
	if err := cli.Execute(ctx); err != nil {
		return 1
	}
	return 0
}
