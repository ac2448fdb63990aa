package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/Yuplx-HU/task-executor/internal/executor"
	"github.com/Yuplx-HU/task-executor/internal/journal"
	"github.com/Yuplx-HU/task-executor/internal/output"
	"github.com/Yuplx-HU/task-executor/internal/util"
)

// historyOptions holds the flags of the history command
type historyOptions struct {
	dsn       string
	driver    string
	wide      bool
	failed    bool
	succeeded bool
}

func newHistoryCmd(global *globalOptions) *cobra.Command {
	opts := &historyOptions{}

	cmd := &cobra.Command{
		Use:   "history [batch-id]",
		Short: "Show batches recorded in a journal",
		Long: `Show batches recorded in a journal.

Without arguments every recorded batch is listed, most recent first.
With a batch id every recorded attempt of that batch is listed in order.`,
		Example: `  # List recorded batches
  taskexec history --journal ~/.taskexec.db

  # Show every attempt of one batch as JSON
  taskexec history 6f1c2f7e-3d1a-4c51-9a43-2d8b8c1e0f6a -o json

  # Show only the failed attempts of one batch
  taskexec history 6f1c2f7e-3d1a-4c51-9a43-2d8b8c1e0f6a --failed`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			batchID := ""
			if len(args) == 1 {
				batchID = args[0]
			}
			return runHistory(cmd.Context(), cmd, global, opts, batchID)
		},
	}

	cmd.Flags().StringVar(&opts.dsn, "journal", "", "Journal data source name (default from config)")
	cmd.Flags().StringVar(&opts.driver, "journal-driver", "", "Journal driver (sqlite3, postgres, mysql)")
	cmd.Flags().BoolVar(&opts.wide, "wide", false, "Show payload and outcome id columns")
	cmd.Flags().BoolVar(&opts.failed, "failed", false, "Only show timed-out and errored attempts of the batch")
	cmd.Flags().BoolVar(&opts.succeeded, "succeeded", false, "Only show successful attempts of the batch")

	cmd.MarkFlagsMutuallyExclusive("failed", "succeeded")

	return cmd
}

func runHistory(ctx context.Context, cmd *cobra.Command, global *globalOptions, opts *historyOptions, batchID string) error {
	mgr, err := global.config()
	if err != nil {
		return err
	}

	dsn, driver := opts.dsn, opts.driver
	if dsn == "" {
		dsn = mgr.GetConfig().Journal.DSN
	}
	if driver == "" {
		driver = mgr.GetConfig().Journal.Driver
	}
	if dsn == "" {
		return util.NewValidationError("journal", "", "no journal configured (use --journal or journal.dsn in the config file)")
	}

	var id uuid.UUID
	if batchID != "" {
		if id, err = uuid.Parse(batchID); err != nil {
			return util.NewValidationError("batch-id", batchID, "must be a UUID")
		}
	} else if opts.failed || opts.succeeded {
		return util.NewValidationError("batch-id", "", "--failed and --succeeded need a batch id")
	}

	formatter, err := global.formatter(output.WithWide(opts.wide))
	if err != nil {
		return err
	}

	j, err := journal.Open(ctx, driver, dsn, nil)
	if err != nil {
		return err
	}
	defer j.Close()

	out := cmd.OutOrStdout()

	if batchID != "" {
		outcomes, err := j.List(ctx, id)
		if err != nil {
			return err
		}
		switch {
		case opts.failed:
			outcomes = executor.FilterFailed(outcomes)
		case opts.succeeded:
			outcomes = executor.FilterSuccessful(outcomes)
		}
		return formatter.FormatOutcomes(out, outcomes)
	}

	batches, err := j.Batches(ctx)
	if err != nil {
		return err
	}

	if _, ok := formatter.(*output.TableFormatter); !ok {
		return formatter.Format(out, batches)
	}
	return printBatchTable(out, batches, global.noColor())
}

func printBatchTable(w io.Writer, batches []journal.Batch, noColor bool) error {
	if len(batches) == 0 {
		fmt.Fprintln(w, "No batches recorded")
		return nil
	}

	table := newTable(w, "Batch", "Started", "Took", "Tasks", "Succeeded", "Failed", "Attempts")

	colors := output.NewColorScheme(w, noColor)

	for _, b := range batches {
		failed := fmt.Sprintf("%d", b.Failed())
		if b.Failed() > 0 {
			failed = colors.Error("%s", failed)
		}

		table.Append([]string{
			colors.TaskID("%s", b.BatchID),
			b.StartedAt.Local().Format(time.DateTime),
			b.FinishedAt.Sub(b.StartedAt).Round(time.Millisecond).String(),
			fmt.Sprintf("%d", b.Tasks),
			colors.Success("%d", b.Succeeded),
			failed,
			fmt.Sprintf("%d", b.Attempts),
		})
	}

	table.Render()
	return nil
}
