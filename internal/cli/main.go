// Package cli implements the mediaops command line.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/maauso/mediaops/internal/bootstrap"
	"github.com/maauso/mediaops/internal/config"
)

// Main runs the CLI and exits non-zero on failure.
func Main() {
	_ = godotenv.Load() // best-effort: load .env if present

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := NewRootCommand(setupFromEnv)
	root.SetOut(os.Stdout)
	root.SetErr(os.Stderr)
	root.SetIn(os.Stdin)

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

// setupFromEnv builds the command environment from configuration.
func setupFromEnv() (*Env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger := cfg.NewLogger()

	return &Env{
		Processor: bootstrap.NewProcessor(cfg, logger),
		NewChat: func() (ChatSession, error) {
			return bootstrap.NewCoordinator(cfg, logger)
		},
	}, nil
}
