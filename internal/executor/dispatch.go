package executor

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"
)

// runSequential runs tasks one at a time in submission order
// No deadline is applied: a work function that never returns blocks the batch
func (e *Executor) runSequential(ctx context.Context, round int, fn WorkFunc, tasks []Task, shared Params, emit func(Outcome) Outcome) []Outcome {
	outcomes := make([]Outcome, 0, len(tasks))

	for _, task := range tasks {
		var o Outcome
		if err := ctx.Err(); err != nil {
			o = notExecuted(task, round, err)
		} else {
			o = e.invoke(ctx, round, fn, task, shared)
		}

		outcomes = append(outcomes, emit(o))
	}

	return outcomes
}

// runConcurrent fans the round out to a bounded set of workers
// Outcomes are emitted from the calling goroutine in completion order, so the
// outcome callback and progress hook are never invoked concurrently
func (e *Executor) runConcurrent(ctx context.Context, round int, fn WorkFunc, tasks []Task, shared Params, emit func(Outcome) Outcome) []Outcome {
	taskCount := len(tasks)
	if taskCount == 0 {
		return []Outcome{}
	}

	workerCount := e.cfg.Workers
	if workerCount <= 0 || workerCount > taskCount {
		// Don't create more workers than tasks
		workerCount = taskCount
	}

	e.logger.Debug("starting workers", "round", round, "workers", workerCount, "tasks", taskCount)

	// Buffer size = task count so neither side blocks
	taskChan := make(chan Task, taskCount)
	resultChan := make(chan Outcome, taskCount)

	var wg sync.WaitGroup
	for i := 0; i < workerCount; i++ {
		wg.Add(1)
		go e.worker(ctx, round, fn, shared, taskChan, resultChan, &wg)
	}

	for _, task := range tasks {
		taskChan <- task
	}
	close(taskChan)

	outcomes := make([]Outcome, 0, taskCount)
	for i := 0; i < taskCount; i++ {
		o := <-resultChan
		outcomes = append(outcomes, emit(o))
	}

	wg.Wait()
	return outcomes
}

// worker drains the task channel; every task it receives yields exactly one outcome
func (e *Executor) worker(ctx context.Context, round int, fn WorkFunc, shared Params, taskChan <-chan Task, resultChan chan<- Outcome, wg *sync.WaitGroup) {
	defer wg.Done()

	for task := range taskChan {
		if err := ctx.Err(); err != nil {
			resultChan <- notExecuted(task, round, err)
			continue
		}
		resultChan <- e.attempt(ctx, round, fn, task, shared)
	}
}

type callResult struct {
	payload any
	err     error
}

// attempt runs one task with the configured deadline.
// When the deadline (or the batch context) fires first the caller is released at
// once and the goroutine running fn is abandoned; it keeps running until fn returns.
func (e *Executor) attempt(ctx context.Context, round int, fn WorkFunc, task Task, shared Params) Outcome {
	attemptCtx := ctx
	if e.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, e.cfg.Timeout)
		defer cancel()
	}

	startTime := time.Now()

	// Buffered so an abandoned call can still deliver its result and exit
	done := make(chan callResult, 1)
	go func() {
		payload, err := e.call(attemptCtx, fn, task, shared)
		done <- callResult{payload: payload, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil && e.deadlineExceeded(ctx, attemptCtx) {
			// fn noticed the deadline before we did
			return e.timedOut(task, round, time.Since(startTime))
		}
		return classify(task, round, res.payload, res.err, time.Since(startTime))

	case <-attemptCtx.Done():
		if e.deadlineExceeded(ctx, attemptCtx) {
			return e.timedOut(task, round, time.Since(startTime))
		}
		o := notExecuted(task, round, ctx.Err())
		o.Message = fmt.Sprintf("task cancelled: %v", ctx.Err())
		o.Duration = time.Since(startTime)
		return o
	}
}

// invoke runs one task on the calling goroutine without a deadline
func (e *Executor) invoke(ctx context.Context, round int, fn WorkFunc, task Task, shared Params) Outcome {
	startTime := time.Now()
	payload, err := e.call(ctx, fn, task, shared)
	return classify(task, round, payload, err, time.Since(startTime))
}

// call invokes fn and converts a panic into an error
func (e *Executor) call(ctx context.Context, fn WorkFunc, task Task, shared Params) (payload any, err error) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Debug("task panicked", "task", task.ID, "panic", r, "stack", string(debug.Stack()))
			payload = nil
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	return fn(ctx, task.Params, shared)
}

// deadlineExceeded reports whether the attempt deadline, rather than the batch context, fired
func (e *Executor) deadlineExceeded(ctx, attemptCtx context.Context) bool {
	return e.cfg.Timeout > 0 &&
		ctx.Err() == nil &&
		errors.Is(attemptCtx.Err(), context.DeadlineExceeded)
}

func (e *Executor) timedOut(task Task, round int, elapsed time.Duration) Outcome {
	o := newOutcome(task, KindTimeout, round)
	o.Message = timeoutMessage(e.cfg.Timeout)
	o.Duration = elapsed
	return o
}

func classify(task Task, round int, payload any, err error, elapsed time.Duration) Outcome {
	if err != nil {
		o := newOutcome(task, KindError, round)
		o.Message = err.Error()
		o.Duration = elapsed
		return o
	}

	o := newOutcome(task, KindSuccess, round)
	o.Payload = payload
	o.Duration = elapsed
	return o
}

// notExecuted accounts for a task that was never started because the batch was cancelled
func notExecuted(task Task, round int, cause error) Outcome {
	o := newOutcome(task, KindError, round)
	o.Message = fmt.Sprintf("task not executed: %v", cause)
	return o
}

func timeoutMessage(timeout time.Duration) string {
	if timeout <= 0 {
		return "timeout"
	}
	return fmt.Sprintf("timeout (>=%s)", timeout)
}
