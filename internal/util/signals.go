package util

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

// exitFunc is swapped out in tests
var exitFunc = os.Exit

// SetupSignalHandler returns a context that is cancelled on the first SIGINT or
// SIGTERM, which lets a running batch finish its in-flight round and report.
// A second signal exits immediately with status 130.
func SetupSignalHandler(logger *slog.Logger) context.Context {
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal, stopping after current round", "signal", sig.String())
		cancel()

		sig = <-sigCh
		logger.Warn("received second shutdown signal, abandoning batch", "signal", sig.String())
		exitFunc(130)
	}()

	return ctx
}
