package executor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Yuplx-HU/task-executor/internal/util"
)

// Progress is advanced once per outcome so a caller can drive a progress display
// It is only used when Config.Verbose is set
type Progress interface {
	// Start is called before a round is dispatched
	Start(round, total int)

	// Advance is called once per outcome of the current round
	Advance(o Outcome)

	// Finish is called after every outcome of the round has been classified
	Finish(round int)
}

// Executor runs batches of tasks with retry rounds
// An Executor holds no per-batch state, so Execute may be called concurrently
type Executor struct {
	cfg       Config
	logger    *slog.Logger
	onOutcome OutcomeFunc
	progress  Progress
}

// Option configures an Executor
type Option func(*Executor)

// WithOutcomeFunc registers a callback invoked for every outcome as it becomes known
func WithOutcomeFunc(fn OutcomeFunc) Option {
	return func(e *Executor) {
		e.onOutcome = fn
	}
}

// WithProgress registers a progress hook
func WithProgress(p Progress) Option {
	return func(e *Executor) {
		e.progress = p
	}
}

// New creates an executor after validating cfg
func New(cfg Config, logger *slog.Logger, opts ...Option) (*Executor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if logger == nil {
		logger = slog.Default()
	}

	if cfg.Description == "" {
		cfg.Description = DefaultDescription
	}

	e := &Executor{
		cfg:    cfg,
		logger: logger,
	}
	for _, opt := range opts {
		opt(e)
	}

	return e, nil
}

// Config returns the executor configuration
func (e *Executor) Config() Config {
	return e.cfg
}

// Execute runs fn once per task id and re-dispatches failures whose kind is in RetryOn
// until none remain or MaxRetryRounds rounds have run.
//
// params must be nil or hold exactly one entry per id. shared is passed to every call.
// Input errors are returned before anything is dispatched.
//
// Once dispatch starts the returned report is never nil and accounts for every id
// exactly once. The error is non-nil only if the outcome callback failed
// (wrapping util.ErrCallback) or ctx was cancelled (wrapping util.ErrCancelled).
// Task failures are reported in Report.Failed, not as an error.
func (e *Executor) Execute(ctx context.Context, fn WorkFunc, ids []string, params []Params, shared Params) (*Report, error) {
	tasks, err := buildTasks(fn, ids, params)
	if err != nil {
		return nil, err
	}

	if shared == nil {
		shared = Params{}
	}

	report := &Report{
		BatchID:   uuid.New(),
		Succeeded: make([]Outcome, 0, len(tasks)),
		Failed:    make([]Outcome, 0),
	}
	logger := e.logger.With("batch_id", report.BatchID.String())

	logger.Info("starting batch",
		"tasks", len(tasks),
		"parallel", e.cfg.Parallel,
		"timeout", e.cfg.Timeout,
		"max_retry_rounds", e.cfg.MaxRetryRounds,
		"retry_on", e.cfg.RetryOn.String())

	if e.cfg.RetryOn.Empty() && e.cfg.MaxRetryRounds > 1 {
		logger.Debug("retry filter is empty, running a single round", "max_retry_rounds", e.cfg.MaxRetryRounds)
	}
	if !e.cfg.Parallel && e.cfg.Timeout > 0 {
		logger.Debug("timeout is not enforced in sequential mode", "timeout", e.cfg.Timeout)
	}

	startTime := time.Now()
	callbackErrs := &util.MultiError{}

	emit := func(o Outcome) Outcome {
		o.BatchID = report.BatchID
		report.Attempts++
		e.logOutcome(logger, o)

		if e.cfg.Verbose && e.progress != nil {
			e.progress.Advance(o)
		}

		if e.onOutcome != nil {
			if err := e.onOutcome(o); err != nil {
				logger.Error("outcome callback failed", "task", o.TaskID, "attempt", o.Attempt, "error", err)
				callbackErrs.Add(util.WrapTaskError(o.TaskID, err))
			}
		}
		return o
	}

	pending := tasks
	var retriable []Outcome

	for round := 1; ; round++ {
		report.Rounds = round
		outcomes := e.dispatch(ctx, round, fn, pending, shared, emit)

		retriable = make([]Outcome, 0)
		for _, o := range outcomes {
			switch {
			case o.Kind == KindSuccess:
				report.Succeeded = append(report.Succeeded, o)
			case e.cfg.RetryOn.Has(o.Kind):
				retriable = append(retriable, o)
			default:
				report.Failed = append(report.Failed, o)
			}
		}

		if len(retriable) == 0 {
			break
		}
		if round >= e.cfg.MaxRetryRounds {
			logger.Debug("retry budget exhausted", "round", round, "remaining", len(retriable))
			break
		}
		if ctx.Err() != nil {
			logger.Warn("batch cancelled, skipping remaining rounds", "round", round, "remaining", len(retriable))
			break
		}

		logger.Info("retrying failed tasks", "round", round+1, "tasks", len(retriable))
		logger.Debug("retry set", "round", round+1, "task_ids", TaskIDs(retriable))
		pending = retryTasks(retriable)
	}

	// Whatever is still retriable after the last round is final
	report.Failed = append(report.Failed, retriable...)
	report.Duration = time.Since(startTime)

	logger.Info("batch completed",
		"total", report.Total(),
		"succeeded", len(report.Succeeded),
		"failed", len(report.Failed),
		"rounds", report.Rounds,
		"attempts", report.Attempts,
		"duration", report.Duration)

	var errs []error
	if callbackErrs.Len() > 0 {
		errs = append(errs, fmt.Errorf("%w: %w", util.ErrCallback, callbackErrs))
	}
	if err := ctx.Err(); err != nil {
		errs = append(errs, fmt.Errorf("%w: %w", util.ErrCancelled, err))
	}

	return report, util.CombineErrors(errs...)
}

// dispatch runs one round with the configured strategy
func (e *Executor) dispatch(ctx context.Context, round int, fn WorkFunc, tasks []Task, shared Params, emit func(Outcome) Outcome) []Outcome {
	if e.cfg.Verbose && e.progress != nil {
		e.progress.Start(round, len(tasks))
		defer e.progress.Finish(round)
	}

	if e.cfg.Parallel {
		return e.runConcurrent(ctx, round, fn, tasks, shared, emit)
	}
	return e.runSequential(ctx, round, fn, tasks, shared, emit)
}

func (e *Executor) logOutcome(logger *slog.Logger, o Outcome) {
	if o.Kind == KindSuccess {
		logger.Debug("task succeeded",
			"task", o.TaskID,
			"attempt", o.Attempt,
			"duration", o.Duration)
		return
	}

	// A verbose run with a progress display already prints the failure
	level := slog.LevelDebug
	if e.cfg.Verbose && e.progress == nil {
		level = slog.LevelWarn
	}
	logger.Log(context.Background(), level, "task failed",
		"task", o.TaskID,
		"kind", o.Kind.String(),
		"attempt", o.Attempt,
		"message", o.Message,
		"duration", o.Duration)
}

// buildTasks validates the batch input and pairs ids with their parameters
func buildTasks(fn WorkFunc, ids []string, params []Params) ([]Task, error) {
	if fn == nil {
		return nil, util.NewValidationError("work_fn", nil, "work function is required")
	}

	if params != nil && len(params) != len(ids) {
		return nil, util.NewValidationError("per_task_params", len(params),
			fmt.Sprintf("expected one entry per task id (%d ids)", len(ids)))
	}

	seen := make(map[string]struct{}, len(ids))
	tasks := make([]Task, len(ids))
	for i, id := range ids {
		if id == "" {
			return nil, util.NewValidationError("task_ids", i, "task id must not be empty")
		}
		if _, dup := seen[id]; dup {
			return nil, util.NewValidationError("task_ids", id, "duplicate task id")
		}
		seen[id] = struct{}{}

		p := Params{}
		if params != nil && params[i] != nil {
			p = params[i]
		}
		tasks[i] = Task{ID: id, Params: p}
	}

	return tasks, nil
}

// retryTasks rebuilds the task list of the next round from retriable failures
func retryTasks(failed []Outcome) []Task {
	tasks := make([]Task, len(failed))
	for i, o := range failed {
		tasks[i] = Task{ID: o.TaskID, Params: o.Params}
	}
	return tasks
}
