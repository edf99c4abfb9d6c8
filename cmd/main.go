package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/desertthunder/rsc/internal/shared"
	"github.com/desertthunder/rsc/internal/tasks"
)

const version = "0.1.0"

func main() {
	logger := shared.NewLogger(nil)
	runner := NewRunner(RunnerOpts{Logger: logger})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := runner.app().Run(ctx, os.Args)
	stop()

	if err == nil {
		return
	}

	switch {
	case errors.Is(err, shared.ErrNotImplemented):
		logger.Warn("not implemented")
		os.Exit(0)
	case tasks.IsAuthError(err):
		logger.Error(reauthHint(err))
		os.Exit(2)
	case errors.Is(err, context.Canceled):
		logger.Warn("cancelled")
		os.Exit(130)
	default:
		logger.Fatalf("application error: %v", err)
	}
}

// reauthHint turns a credential error into the next command to run.
func reauthHint(err error) string {
	if errors.Is(err, shared.ErrNotAuthenticated) {
		return "not logged in: run `rsc auth login` first"
	}
	return "your Spotify session has expired and you must re-authenticate: run `rsc auth refresh` or `rsc auth login`"
}
