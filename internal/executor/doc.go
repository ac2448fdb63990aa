// Package executor runs batches of independent, synchronous tasks with
// per-task timeouts and selective retry rounds.
//
// # Dispatch
//
// A batch is dispatched one of two ways, selected by Config.Parallel:
//
//   - Sequential: tasks run one at a time on the calling goroutine, in
//     submission order. No deadline is enforced, so a work function that
//     never returns blocks the whole batch.
//   - Concurrent: every pending task of the round is handed to a worker pool
//     (one worker per task unless Config.Workers bounds it). Each attempt runs
//     under Config.Timeout; outcomes arrive in completion order.
//
// # Outcomes
//
// Every attempt yields exactly one Outcome of kind success, timeout or error.
// Errors and panics from the work function are caught at the task boundary and
// never abort the batch.
//
//	exec, err := executor.New(executor.Config{
//	    Parallel:       true,
//	    Timeout:        5 * time.Second,
//	    MaxRetryRounds: 3,
//	    RetryOn:        executor.NewKindSet(executor.KindTimeout, executor.KindError),
//	}, logger, executor.WithOutcomeFunc(func(o executor.Outcome) error {
//	    fmt.Println(o.TaskID, o.Kind)
//	    return nil
//	}))
//
//	report, err := exec.Execute(ctx, fetch, ids, params, shared)
//
// # Retry rounds
//
// After each round, failures whose kind is in Config.RetryOn form the next
// round, with the same ids and parameters. The loop stops early when no
// retriable failure remains, and stops at Config.MaxRetryRounds otherwise.
// Report.Succeeded and Report.Failed together hold each task exactly once.
//
// # Timeouts are best-effort
//
// Go cannot preempt a goroutine. When an attempt's deadline elapses the
// executor records a timeout and moves on, but the work function keeps
// running until it returns. Work functions should watch ctx.Done() if they
// can stop early.
//
// # Callbacks
//
// The outcome callback and the Progress hook are called from the dispatch
// loop's goroutine, one outcome at a time, as soon as each outcome is known.
// A slow callback delays reporting of later outcomes but not task deadlines.
// Callback errors are logged and returned from Execute wrapped in
// util.ErrCallback after the batch completes.
//
// # Cancellation
//
// Cancelling ctx stops further rounds. Tasks of the current round that have
// not started are reported as errors without being run, and Execute returns
// the partial report with an error wrapping util.ErrCancelled.
package executor
