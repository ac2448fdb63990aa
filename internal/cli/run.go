package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/Yuplx-HU/task-executor/internal/executor"
	"github.com/Yuplx-HU/task-executor/internal/journal"
	"github.com/Yuplx-HU/task-executor/internal/manifest"
	"github.com/Yuplx-HU/task-executor/internal/output"
	"github.com/Yuplx-HU/task-executor/internal/progress"
	"github.com/Yuplx-HU/task-executor/internal/util"
	"github.com/Yuplx-HU/task-executor/internal/workload"
)

// runOptions holds the flags of the run command
type runOptions struct {
	filename      string
	workload      string
	parallel      bool
	timeout       time.Duration
	retries       int
	retryOn       string
	workers       int
	description   string
	shared        map[string]string
	journalDSN    string
	journalDriver string
	schedule      string
	wide          bool
}

func newRunCmd(global *globalOptions) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a batch of tasks",
		Long: `Run every task of a manifest through a workload and print the final report.

Settings are resolved in order: configuration file, manifest options, then flags
given on the command line. The command exits non-zero when any task has not
succeeded after its last round.`,
		Example: `  # Run a batch with the settings from the manifest
  taskexec run -f batch.yaml

  # Run sequentially, retrying only errors up to three rounds
  taskexec run -f batch.yaml --parallel=false --retries 3 --retry-on error

  # Enforce a 2s deadline per attempt with at most 8 tasks in flight
  taskexec run -f batch.yaml --timeout 2s --workers 8

  # Record outcomes in a SQLite journal and show progress
  taskexec run -f batch.yaml --journal ~/.taskexec.db -v

  # Repeat the batch every five minutes until interrupted
  taskexec run -f batch.yaml --schedule "@every 5m"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(cmd.Context(), cmd, global, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.filename, "filename", "f", "", "Path to the batch manifest (required)")
	cmd.Flags().StringVar(&opts.workload, "workload", "", "Workload to run, overriding the manifest (see 'taskexec workloads')")
	cmd.Flags().BoolVar(&opts.parallel, "parallel", true, "Dispatch tasks concurrently")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 0, "Per-attempt deadline in parallel mode (0 disables it)")
	cmd.Flags().IntVar(&opts.retries, "retries", 1, "Maximum number of rounds (1 means no retry)")
	cmd.Flags().StringVar(&opts.retryOn, "retry-on", "timeout,error", "Outcome kinds to retry (comma-separated, empty disables retries)")
	cmd.Flags().IntVar(&opts.workers, "workers", 0, "Maximum tasks in flight in parallel mode (0 means one per task)")
	cmd.Flags().StringVar(&opts.description, "description", "", "Label for progress output")
	cmd.Flags().StringToStringVar(&opts.shared, "shared", nil, "Shared parameters as key=value, overriding the manifest")
	cmd.Flags().StringVar(&opts.journalDSN, "journal", "", "Record outcomes in this journal (data source name)")
	cmd.Flags().StringVar(&opts.journalDriver, "journal-driver", "", "Journal driver (sqlite3, postgres, mysql)")
	cmd.Flags().StringVar(&opts.schedule, "schedule", "", "Repeat the batch on a cron schedule until interrupted")
	cmd.Flags().BoolVar(&opts.wide, "wide", false, "Show payload and outcome id columns")

	cmd.MarkFlagRequired("filename")

	return cmd
}

// batchRun is a fully resolved batch, ready to be executed any number of times
type batchRun struct {
	exec      *executor.Executor
	fn        executor.WorkFunc
	ids       []string
	params    []executor.Params
	shared    executor.Params
	formatter output.Formatter
	out       io.Writer
}

func runRun(ctx context.Context, cmd *cobra.Command, global *globalOptions, opts *runOptions) error {
	logger := slog.Default()

	mgr, err := global.config()
	if err != nil {
		return err
	}

	batch, err := manifest.Load(opts.filename)
	if err != nil {
		return err
	}

	workloadName := batch.Workload
	if opts.workload != "" {
		workloadName = opts.workload
	}
	if workloadName == "" {
		return util.NewValidationError("workload", "", "set it in the manifest or with --workload")
	}

	cfg, err := resolveConfig(cmd, mgr.ExecutorConfig, batch.Options, opts)
	if err != nil {
		return err
	}
	cfg.Verbose = global.verbose()
	if cfg.Description == executor.DefaultDescription {
		cfg.Description = fmt.Sprintf("Running %s", workloadName)
	}

	shared := mgr.SharedParams(workloadName, batch.Shared)
	for k, v := range opts.shared {
		shared[k] = v
	}

	factory, err := workload.Lookup(workloadName)
	if err != nil {
		return err
	}
	// Released when the run, scheduled or not, returns
	wctx, release := context.WithCancel(ctx)
	defer release()

	fn, err := factory(wctx, shared)
	if err != nil {
		return fmt.Errorf("failed to prepare workload %s: %w", workloadName, err)
	}

	formatter, err := global.formatter(output.WithWide(opts.wide))
	if err != nil {
		return err
	}

	execOpts := make([]executor.Option, 0, 2)

	dsn, driver := opts.journalDSN, opts.journalDriver
	if dsn == "" {
		dsn = mgr.GetConfig().Journal.DSN
	}
	if driver == "" {
		driver = mgr.GetConfig().Journal.Driver
	}
	if dsn != "" {
		j, err := journal.Open(ctx, driver, dsn, logger)
		if err != nil {
			return err
		}
		defer j.Close()
		execOpts = append(execOpts, executor.WithOutcomeFunc(j.OutcomeFunc(ctx)))
	}

	execOpts = append(execOpts, executor.WithProgress(newProgress(cmd.ErrOrStderr(), cfg, global.noColor(), opts.schedule != "", logger)))

	exec, err := executor.New(cfg, logger, execOpts...)
	if err != nil {
		return err
	}

	run := &batchRun{
		exec:      exec,
		fn:        fn,
		ids:       batch.IDs(),
		params:    batch.Params(),
		shared:    shared,
		formatter: formatter,
		out:       cmd.OutOrStdout(),
	}

	logger.Debug("resolved batch",
		"workload", workloadName,
		"tasks", len(run.ids),
		"parallel", cfg.Parallel,
		"timeout", cfg.Timeout,
		"max_retry_rounds", cfg.MaxRetryRounds,
		"retry_on", cfg.RetryOn.String(),
		"workers", cfg.Workers)

	if opts.schedule != "" {
		return runScheduled(ctx, opts.schedule, logger, run.execute)
	}
	return run.execute(ctx)
}

// execute runs the batch once and prints the report
func (r *batchRun) execute(ctx context.Context) error {
	report, err := r.exec.Execute(ctx, r.fn, r.ids, r.params, r.shared)
	if report == nil {
		return err
	}

	if ferr := r.formatter.FormatReport(r.out, report); ferr != nil {
		return util.CombineErrors(err, fmt.Errorf("failed to print report: %w", ferr))
	}
	if err != nil {
		return err
	}

	if report.HasFailures() {
		return fmt.Errorf("%w: %d of %d tasks did not succeed", util.ErrTasksFailed, len(report.Failed), report.Total())
	}
	return nil
}

// newProgress picks the progress display: nothing unless verbose, a bar otherwise,
// plus round records in the log when the batch repeats on a schedule
func newProgress(w io.Writer, cfg executor.Config, noColor, scheduled bool, logger *slog.Logger) executor.Progress {
	if !cfg.Verbose {
		return progress.Nop{}
	}
	bar := progress.NewBar(w, cfg.Description, noColor)
	if !scheduled {
		return bar
	}
	return progress.Multi{bar, progress.NewLog(logger)}
}

// resolveConfig layers the configured defaults, the manifest options and the flags set on the command line
func resolveConfig(cmd *cobra.Command, base func() (executor.Config, error), manifestOpts manifest.Options, opts *runOptions) (executor.Config, error) {
	cfg, err := base()
	if err != nil {
		return executor.Config{}, err
	}

	if err := manifestOpts.Apply(&cfg); err != nil {
		return executor.Config{}, err
	}

	flags := cmd.Flags()
	if flags.Changed("parallel") {
		cfg.Parallel = opts.parallel
	}
	if flags.Changed("timeout") {
		cfg.Timeout = opts.timeout
	}
	if flags.Changed("retries") {
		cfg.MaxRetryRounds = opts.retries
	}
	if flags.Changed("retry-on") {
		set, err := executor.ParseKinds(opts.retryOn)
		if err != nil {
			return executor.Config{}, util.NewValidationError("retry-on", opts.retryOn, err.Error())
		}
		cfg.RetryOn = set
	}
	if flags.Changed("workers") {
		cfg.Workers = opts.workers
	}
	if flags.Changed("description") {
		cfg.Description = opts.description
	}

	if err := cfg.Validate(); err != nil {
		return executor.Config{}, err
	}
	return cfg, nil
}
