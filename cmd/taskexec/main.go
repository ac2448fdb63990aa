package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/Yuplx-HU/task-executor/internal/cli"
	"github.com/Yuplx-HU/task-executor/internal/util"
)

func main() {
	// Cancel the running batch on SIGINT/SIGTERM
	ctx := util.SetupSignalHandler(slog.Default())

	if err := cli.Execute(ctx); err != nil {
		// Task failures are already in the printed report
		if !errors.Is(err, util.ErrTasksFailed) {
			slog.Error("command failed", "error", err)
		}
		fmt.Fprintln(os.Stderr, util.FriendlyError(err))
		os.Exit(1)
	}
}
