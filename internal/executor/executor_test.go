package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Yuplx-HU/task-executor/internal/util"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestExecutor(t *testing.T, cfg Config, opts ...Option) *Executor {
	t.Helper()
	exec, err := New(cfg, newTestLogger(), opts...)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	return exec
}

func doubleID(ctx context.Context, unique, shared Params) (any, error) {
	return unique["id"].(int) * 2, nil
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
		field   string
	}{
		{
			name: "default config",
			cfg:  DefaultConfig(),
		},
		{
			name: "sequential single round",
			cfg:  Config{MaxRetryRounds: 1},
		},
		{
			name:    "zero rounds",
			cfg:     Config{MaxRetryRounds: 0},
			wantErr: true,
			field:   "max_retry_rounds",
		},
		{
			name:    "negative timeout",
			cfg:     Config{MaxRetryRounds: 1, Timeout: -time.Second},
			wantErr: true,
			field:   "timeout",
		},
		{
			name:    "negative workers",
			cfg:     Config{MaxRetryRounds: 1, Workers: -1},
			wantErr: true,
			field:   "workers",
		},
		{
			name:    "retry on success",
			cfg:     Config{MaxRetryRounds: 2, RetryOn: NewKindSet(KindSuccess)},
			wantErr: true,
			field:   "retry_on",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec, err := New(tt.cfg, nil)

			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				var ve *util.ValidationError
				if !errors.As(err, &ve) {
					t.Fatalf("expected ValidationError, got %T", err)
				}
				if ve.Field != tt.field {
					t.Errorf("expected field %q, got %q", tt.field, ve.Field)
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if exec.Config().Description == "" {
				t.Error("expected a default description")
			}
		})
	}
}

func TestExecute_SequentialOrder(t *testing.T) {
	exec := newTestExecutor(t, Config{MaxRetryRounds: 1})

	ids := []string{"a", "b", "c"}
	params := []Params{{"id": 1}, {"id": 2}, {"id": 3}}

	report, err := exec.Execute(context.Background(), doubleID, ids, params, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(report.Failed) != 0 {
		t.Errorf("expected no failures, got %d", len(report.Failed))
	}

	want := []struct {
		id     string
		param  int
		result int
	}{
		{"a", 1, 2},
		{"b", 2, 4},
		{"c", 3, 6},
	}

	if len(report.Succeeded) != len(want) {
		t.Fatalf("expected %d successes, got %d", len(want), len(report.Succeeded))
	}

	for i, w := range want {
		got := report.Succeeded[i]
		if got.TaskID != w.id {
			t.Errorf("position %d: expected task %q, got %q", i, w.id, got.TaskID)
		}
		if got.Params["id"] != w.param {
			t.Errorf("task %s: expected params id %d, got %v", w.id, w.param, got.Params["id"])
		}
		if got.Payload != w.result {
			t.Errorf("task %s: expected result %d, got %v", w.id, w.result, got.Payload)
		}
		if got.Attempt != 1 {
			t.Errorf("task %s: expected attempt 1, got %d", w.id, got.Attempt)
		}
	}

	if report.Rounds != 1 {
		t.Errorf("expected 1 round, got %d", report.Rounds)
	}
}

func TestExecute_InputValidation(t *testing.T) {
	exec := newTestExecutor(t, DefaultConfig())

	tests := []struct {
		name   string
		fn     WorkFunc
		ids    []string
		params []Params
		field  string
	}{
		{
			name:   "length mismatch",
			fn:     doubleID,
			ids:    []string{"a", "b"},
			params: []Params{{"id": 1}},
			field:  "per_task_params",
		},
		{
			name:  "nil work function",
			fn:    nil,
			ids:   []string{"a"},
			field: "work_fn",
		},
		{
			name:  "empty id",
			fn:    doubleID,
			ids:   []string{"a", ""},
			field: "task_ids",
		},
		{
			name:  "duplicate id",
			fn:    doubleID,
			ids:   []string{"a", "a"},
			field: "task_ids",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			fn := tt.fn
			if fn != nil {
				fn = func(ctx context.Context, unique, shared Params) (any, error) {
					calls.Add(1)
					return nil, nil
				}
			}

			report, err := exec.Execute(context.Background(), fn, tt.ids, tt.params, nil)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if report != nil {
				t.Error("expected nil report on input error")
			}
			if !util.IsInvalidConfig(err) {
				t.Errorf("expected invalid config error, got %v", err)
			}

			var ve *util.ValidationError
			if errors.As(err, &ve) && ve.Field != tt.field {
				t.Errorf("expected field %q, got %q", tt.field, ve.Field)
			}

			if calls.Load() != 0 {
				t.Errorf("expected no dispatch, got %d calls", calls.Load())
			}
		})
	}
}

func TestExecute_NilParamsMeansEmpty(t *testing.T) {
	exec := newTestExecutor(t, Config{MaxRetryRounds: 1})

	fn := func(ctx context.Context, unique, shared Params) (any, error) {
		if unique == nil {
			return nil, errors.New("unique params should never be nil")
		}
		return len(unique), nil
	}

	report, err := exec.Execute(context.Background(), fn, []string{"x", "y"}, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(report.Succeeded) != 2 {
		t.Fatalf("expected 2 successes, got %d (failed: %v)", len(report.Succeeded), report.Failed)
	}
	for _, o := range report.Succeeded {
		if o.Payload != 0 {
			t.Errorf("task %s: expected empty params, got %d entries", o.TaskID, o.Payload)
		}
	}
}

func TestExecute_SharedParams(t *testing.T) {
	for _, parallel := range []bool{false, true} {
		t.Run(fmt.Sprintf("parallel=%v", parallel), func(t *testing.T) {
			exec := newTestExecutor(t, Config{Parallel: parallel, MaxRetryRounds: 1})

			shared := Params{"prefix": "item-"}
			fn := func(ctx context.Context, unique, shared Params) (any, error) {
				return shared["prefix"].(string) + unique["n"].(string), nil
			}

			report, err := exec.Execute(context.Background(), fn,
				[]string{"t1", "t2"}, []Params{{"n": "1"}, {"n": "2"}}, shared)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			got := make(map[string]any)
			for _, o := range report.Succeeded {
				got[o.TaskID] = o.Payload
			}
			if got["t1"] != "item-1" || got["t2"] != "item-2" {
				t.Errorf("unexpected payloads: %v", got)
			}
			if len(shared) != 1 {
				t.Error("shared params were mutated")
			}
		})
	}
}

func TestExecute_RetryBudgetExhausted(t *testing.T) {
	for _, parallel := range []bool{false, true} {
		t.Run(fmt.Sprintf("parallel=%v", parallel), func(t *testing.T) {
			exec := newTestExecutor(t, Config{
				Parallel:       parallel,
				MaxRetryRounds: 3,
				RetryOn:        NewKindSet(KindError),
			})

			var calls atomic.Int32
			fn := func(ctx context.Context, unique, shared Params) (any, error) {
				calls.Add(1)
				return nil, errors.New("bad")
			}

			params := []Params{{"k": "v"}}
			report, err := exec.Execute(context.Background(), fn, []string{"t1"}, params, nil)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if calls.Load() != 3 {
				t.Errorf("expected 3 invocations, got %d", calls.Load())
			}

			if len(report.Succeeded) != 0 {
				t.Errorf("expected no successes, got %d", len(report.Succeeded))
			}
			if len(report.Failed) != 1 {
				t.Fatalf("expected 1 failure, got %d", len(report.Failed))
			}

			f := report.Failed[0]
			if f.Kind != KindError || f.TaskID != "t1" || f.Message != "bad" {
				t.Errorf("unexpected failure: kind=%s task=%s message=%q", f.Kind, f.TaskID, f.Message)
			}
			if f.Params["k"] != "v" {
				t.Errorf("expected original params, got %v", f.Params)
			}
			if f.Attempt != 3 {
				t.Errorf("expected final attempt 3, got %d", f.Attempt)
			}
			if report.Rounds != 3 || report.Attempts != 3 {
				t.Errorf("expected 3 rounds and 3 attempts, got %d and %d", report.Rounds, report.Attempts)
			}
		})
	}
}

func TestExecute_EmptyRetryFilterRunsOnce(t *testing.T) {
	exec := newTestExecutor(t, Config{Parallel: true, MaxRetryRounds: 5})

	var calls atomic.Int32
	fn := func(ctx context.Context, unique, shared Params) (any, error) {
		calls.Add(1)
		return nil, errors.New("always")
	}

	report, err := exec.Execute(context.Background(), fn, []string{"a", "b"}, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if calls.Load() != 2 {
		t.Errorf("expected 2 invocations, got %d", calls.Load())
	}
	if report.Rounds != 1 {
		t.Errorf("expected 1 round, got %d", report.Rounds)
	}
	if len(report.Failed) != 2 {
		t.Errorf("expected 2 failures, got %d", len(report.Failed))
	}
}

func TestExecute_NonRetriableKindIsFinal(t *testing.T) {
	exec := newTestExecutor(t, Config{
		Parallel:       true,
		Timeout:        time.Second,
		MaxRetryRounds: 4,
		RetryOn:        NewKindSet(KindTimeout),
	})

	var calls atomic.Int32
	fn := func(ctx context.Context, unique, shared Params) (any, error) {
		calls.Add(1)
		return nil, errors.New("not retried")
	}

	report, _ := exec.Execute(context.Background(), fn, []string{"only"}, nil, nil)

	if calls.Load() != 1 {
		t.Errorf("expected 1 invocation, got %d", calls.Load())
	}
	if len(report.Failed) != 1 || report.Failed[0].Kind != KindError {
		t.Errorf("expected a single error failure, got %+v", report.Failed)
	}
}

func TestExecute_RetryRecovers(t *testing.T) {
	for _, parallel := range []bool{false, true} {
		t.Run(fmt.Sprintf("parallel=%v", parallel), func(t *testing.T) {
			exec := newTestExecutor(t, Config{
				Parallel:       parallel,
				MaxRetryRounds: 5,
				RetryOn:        NewKindSet(KindError),
			})

			var mu sync.Mutex
			attempts := make(map[string]int)
			fn := func(ctx context.Context, unique, shared Params) (any, error) {
				id := unique["name"].(string)
				mu.Lock()
				attempts[id]++
				n := attempts[id]
				mu.Unlock()

				// "flaky" needs two attempts, "stable" succeeds at once
				if id == "flaky" && n < 2 {
					return nil, errors.New("transient")
				}
				return n, nil
			}

			report, err := exec.Execute(context.Background(), fn,
				[]string{"flaky", "stable"},
				[]Params{{"name": "flaky"}, {"name": "stable"}}, nil)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if len(report.Succeeded) != 2 || len(report.Failed) != 0 {
				t.Fatalf("expected 2 successes, got %d succeeded / %d failed", len(report.Succeeded), len(report.Failed))
			}

			for _, o := range report.Succeeded {
				switch o.TaskID {
				case "flaky":
					if o.Attempt != 2 {
						t.Errorf("flaky: expected attempt 2, got %d", o.Attempt)
					}
				case "stable":
					if o.Attempt != 1 {
						t.Errorf("stable: expected attempt 1, got %d", o.Attempt)
					}
				}
			}

			if attempts["stable"] != 1 {
				t.Errorf("stable task should be dispatched once, got %d", attempts["stable"])
			}
			// Early exit: nothing left to retry after round 2
			if report.Rounds != 2 {
				t.Errorf("expected 2 rounds, got %d", report.Rounds)
			}
		})
	}
}

func TestExecute_PartitionCoversEveryTask(t *testing.T) {
	for _, parallel := range []bool{false, true} {
		t.Run(fmt.Sprintf("parallel=%v", parallel), func(t *testing.T) {
			exec := newTestExecutor(t, Config{
				Parallel:       parallel,
				Timeout:        time.Second,
				MaxRetryRounds: 3,
				RetryOn:        NewKindSet(KindError),
			})

			ids := make([]string, 40)
			params := make([]Params, 40)
			for i := range ids {
				ids[i] = fmt.Sprintf("task-%02d", i)
				params[i] = Params{"i": i}
			}

			// Every third task always fails
			fn := func(ctx context.Context, unique, shared Params) (any, error) {
				if unique["i"].(int)%3 == 0 {
					return nil, errors.New("divisible by three")
				}
				return unique["i"], nil
			}

			report, err := exec.Execute(context.Background(), fn, ids, params, nil)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if report.Total() != len(ids) {
				t.Errorf("expected %d tasks in the partition, got %d", len(ids), report.Total())
			}

			seen := make(map[string]int)
			for _, o := range report.Outcomes() {
				seen[o.TaskID]++
			}
			for _, id := range ids {
				if seen[id] != 1 {
					t.Errorf("task %s appears %d times", id, seen[id])
				}
			}

			if len(report.Failed) != 14 {
				t.Errorf("expected 14 failures, got %d", len(report.Failed))
			}
			// 26 successes + 14 failing tasks x 3 attempts
			if report.Attempts != 26+14*3 {
				t.Errorf("expected %d attempts, got %d", 26+14*3, report.Attempts)
			}
		})
	}
}

func TestExecute_ConcurrentMatchesSequential(t *testing.T) {
	ids := []string{"a", "b", "c", "d", "e"}
	params := []Params{{"id": 1}, {"id": 2}, {"id": 3}, {"id": 4}, {"id": 5}}

	collect := func(parallel bool) []string {
		exec := newTestExecutor(t, Config{Parallel: parallel, MaxRetryRounds: 1})
		report, err := exec.Execute(context.Background(), doubleID, ids, params, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		var out []string
		for _, o := range report.Succeeded {
			out = append(out, fmt.Sprintf("%s=%v", o.TaskID, o.Payload))
		}
		sort.Strings(out)
		return out
	}

	seq := collect(false)
	par := collect(true)

	if strings.Join(seq, ",") != strings.Join(par, ",") {
		t.Errorf("result sets differ:\n sequential: %v\n concurrent: %v", seq, par)
	}
}

func TestExecute_Timeout(t *testing.T) {
	exec := newTestExecutor(t, Config{
		Parallel:       true,
		Timeout:        50 * time.Millisecond,
		MaxRetryRounds: 1,
	})

	fn := func(ctx context.Context, unique, shared Params) (any, error) {
		switch unique["mode"] {
		case "cooperative":
			select {
			case <-time.After(time.Second):
				return "late", nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		case "blocking":
			// Ignores ctx entirely
			time.Sleep(400 * time.Millisecond)
			return "late", nil
		default:
			time.Sleep(time.Millisecond)
			return "fast", nil
		}
	}

	start := time.Now()
	report, err := exec.Execute(context.Background(), fn,
		[]string{"cooperative", "blocking", "fast"},
		[]Params{{"mode": "cooperative"}, {"mode": "blocking"}, {"mode": "fast"}}, nil)
	elapsed := time.Since(start)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if elapsed >= 300*time.Millisecond {
		t.Errorf("caller should be released at the deadline, took %v", elapsed)
	}

	if len(report.Succeeded) != 1 || report.Succeeded[0].TaskID != "fast" {
		t.Errorf("expected only the fast task to succeed, got %+v", report.Succeeded)
	}

	if len(report.Failed) != 2 {
		t.Fatalf("expected 2 failures, got %d", len(report.Failed))
	}
	for _, o := range report.Failed {
		if o.Kind != KindTimeout {
			t.Errorf("task %s: expected timeout, got %s (%s)", o.TaskID, o.Kind, o.Message)
		}
		if o.Message != "timeout (>=50ms)" {
			t.Errorf("task %s: unexpected message %q", o.TaskID, o.Message)
		}
		if !util.IsTimeout(o.Err()) {
			t.Errorf("task %s: Err() should wrap ErrTimeout", o.TaskID)
		}
	}
}

func TestExecute_SequentialIgnoresTimeout(t *testing.T) {
	exec := newTestExecutor(t, Config{
		Parallel:       false,
		Timeout:        5 * time.Millisecond,
		MaxRetryRounds: 1,
	})

	fn := func(ctx context.Context, unique, shared Params) (any, error) {
		time.Sleep(30 * time.Millisecond)
		return "done", nil
	}

	report, err := exec.Execute(context.Background(), fn, []string{"slow"}, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(report.Succeeded) != 1 {
		t.Errorf("expected success in sequential mode, got %+v", report.Failed)
	}
}

func TestExecute_TimeoutRetried(t *testing.T) {
	exec := newTestExecutor(t, Config{
		Parallel:       true,
		Timeout:        30 * time.Millisecond,
		MaxRetryRounds: 3,
		RetryOn:        NewKindSet(KindTimeout),
	})

	var calls atomic.Int32
	fn := func(ctx context.Context, unique, shared Params) (any, error) {
		if calls.Add(1) == 1 {
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return "ok", nil
	}

	report, err := exec.Execute(context.Background(), fn, []string{"slow-once"}, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(report.Succeeded) != 1 || report.Succeeded[0].Attempt != 2 {
		t.Errorf("expected success on attempt 2, got %+v", report.Succeeded)
	}
}

func TestExecute_PanicBecomesError(t *testing.T) {
	for _, parallel := range []bool{false, true} {
		t.Run(fmt.Sprintf("parallel=%v", parallel), func(t *testing.T) {
			exec := newTestExecutor(t, Config{Parallel: parallel, MaxRetryRounds: 1})

			fn := func(ctx context.Context, unique, shared Params) (any, error) {
				if unique["explode"] == true {
					panic("boom")
				}
				return "fine", nil
			}

			report, err := exec.Execute(context.Background(), fn,
				[]string{"bad", "good"}, []Params{{"explode": true}, {}}, nil)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if len(report.Succeeded) != 1 || len(report.Failed) != 1 {
				t.Fatalf("expected 1/1 partition, got %d/%d", len(report.Succeeded), len(report.Failed))
			}
			f := report.Failed[0]
			if f.Kind != KindError || f.Message != "panic: boom" {
				t.Errorf("unexpected failure: %s %q", f.Kind, f.Message)
			}
		})
	}
}

func TestExecute_OutcomeCallback(t *testing.T) {
	for _, parallel := range []bool{false, true} {
		t.Run(fmt.Sprintf("parallel=%v", parallel), func(t *testing.T) {
			var (
				received []Outcome
				inFlight atomic.Int32
				overlap  atomic.Bool
			)

			callback := func(o Outcome) error {
				if inFlight.Add(1) > 1 {
					overlap.Store(true)
				}
				defer inFlight.Add(-1)
				received = append(received, o)
				return nil
			}

			exec := newTestExecutor(t, Config{
				Parallel:       parallel,
				MaxRetryRounds: 2,
				RetryOn:        NewKindSet(KindError),
			}, WithOutcomeFunc(callback))

			fn := func(ctx context.Context, unique, shared Params) (any, error) {
				if unique["fail"] == true {
					return nil, errors.New("nope")
				}
				return "yes", nil
			}

			report, err := exec.Execute(context.Background(), fn,
				[]string{"ok1", "ok2", "bad"}, []Params{{}, {}, {"fail": true}}, nil)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			// 2 successes + 2 attempts of the failing task
			if len(received) != 4 {
				t.Errorf("expected 4 callbacks, got %d", len(received))
			}
			if len(received) != report.Attempts {
				t.Errorf("callbacks (%d) should match attempts (%d)", len(received), report.Attempts)
			}
			if overlap.Load() {
				t.Error("callbacks overlapped")
			}

			ids := make(map[string]bool)
			for _, o := range received {
				ids[o.ID.String()] = true
				if o.BatchID != report.BatchID {
					t.Errorf("outcome %s carries batch %s, want %s", o.TaskID, o.BatchID, report.BatchID)
				}
			}
			if len(ids) != len(received) {
				t.Error("expected a distinct outcome id per attempt")
			}
			for _, o := range report.Outcomes() {
				if o.BatchID != report.BatchID {
					t.Errorf("report outcome %s is missing the batch id", o.TaskID)
				}
			}
		})
	}
}

func TestExecute_CallbackErrorIsReported(t *testing.T) {
	callbackErr := errors.New("sink unavailable")
	exec := newTestExecutor(t, Config{Parallel: true, MaxRetryRounds: 1},
		WithOutcomeFunc(func(o Outcome) error {
			if o.TaskID == "b" {
				return callbackErr
			}
			return nil
		}))

	report, err := exec.Execute(context.Background(), doubleID,
		[]string{"a", "b", "c"}, []Params{{"id": 1}, {"id": 2}, {"id": 3}}, nil)

	if err == nil {
		t.Fatal("expected callback error")
	}
	if !errors.Is(err, util.ErrCallback) {
		t.Errorf("expected ErrCallback, got %v", err)
	}
	if !errors.Is(err, callbackErr) {
		t.Errorf("expected the callback's own error to be wrapped, got %v", err)
	}

	if report == nil || len(report.Succeeded) != 3 {
		t.Error("callback failure must not stop the batch")
	}
}

func TestExecute_CancelledBeforeStart(t *testing.T) {
	for _, parallel := range []bool{false, true} {
		t.Run(fmt.Sprintf("parallel=%v", parallel), func(t *testing.T) {
			exec := newTestExecutor(t, Config{
				Parallel:       parallel,
				MaxRetryRounds: 3,
				RetryOn:        NewKindSet(KindError),
			})

			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			var calls atomic.Int32
			fn := func(ctx context.Context, unique, shared Params) (any, error) {
				calls.Add(1)
				return nil, nil
			}

			report, err := exec.Execute(ctx, fn, []string{"a", "b"}, nil, nil)

			if !util.IsCancelled(err) {
				t.Errorf("expected cancellation error, got %v", err)
			}
			if !errors.Is(err, context.Canceled) {
				t.Errorf("expected context.Canceled to be wrapped, got %v", err)
			}
			if calls.Load() != 0 {
				t.Errorf("expected no invocations, got %d", calls.Load())
			}
			if report.Rounds != 1 {
				t.Errorf("expected no retry rounds after cancellation, got %d rounds", report.Rounds)
			}
			if len(report.Failed) != 2 {
				t.Fatalf("expected 2 failures, got %d", len(report.Failed))
			}
			for _, o := range report.Failed {
				if !strings.Contains(o.Message, "not executed") {
					t.Errorf("unexpected message %q", o.Message)
				}
			}
		})
	}
}

func TestExecute_CancelledMidBatch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	exec := newTestExecutor(t, Config{
		Parallel:       false,
		MaxRetryRounds: 3,
		RetryOn:        NewKindSet(KindError),
	})

	fn := func(ctx context.Context, unique, shared Params) (any, error) {
		if unique["cancel"] == true {
			cancel()
			return nil, errors.New("interrupted")
		}
		return "ok", nil
	}

	report, err := exec.Execute(ctx, fn,
		[]string{"a", "b", "c"}, []Params{{}, {"cancel": true}, {}}, nil)

	if !util.IsCancelled(err) {
		t.Errorf("expected cancellation error, got %v", err)
	}
	if len(report.Succeeded) != 1 || report.Succeeded[0].TaskID != "a" {
		t.Errorf("expected only a to succeed, got %+v", report.Succeeded)
	}
	if len(report.Failed) != 2 {
		t.Errorf("expected b and c to fail, got %d failures", len(report.Failed))
	}
	if report.Rounds != 1 {
		t.Errorf("expected 1 round, got %d", report.Rounds)
	}
}

func TestExecute_WorkersBoundConcurrency(t *testing.T) {
	exec := newTestExecutor(t, Config{Parallel: true, Workers: 2, MaxRetryRounds: 1})

	var running, peak atomic.Int32
	fn := func(ctx context.Context, unique, shared Params) (any, error) {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		running.Add(-1)
		return nil, nil
	}

	ids := make([]string, 8)
	for i := range ids {
		ids[i] = fmt.Sprintf("t%d", i)
	}

	report, err := exec.Execute(context.Background(), fn, ids, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if report.Total() != 8 {
		t.Errorf("expected 8 tasks, got %d", report.Total())
	}
	if peak.Load() > 2 {
		t.Errorf("expected at most 2 tasks in flight, saw %d", peak.Load())
	}
}

func TestExecute_EmptyBatch(t *testing.T) {
	for _, parallel := range []bool{false, true} {
		exec := newTestExecutor(t, Config{Parallel: parallel, MaxRetryRounds: 3, RetryOn: NewKindSet(KindError)})

		report, err := exec.Execute(context.Background(), doubleID, nil, nil, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if report.Total() != 0 || report.Attempts != 0 {
			t.Errorf("expected an empty report, got %+v", report)
		}
	}
}

type recordingProgress struct {
	mu       sync.Mutex
	starts   []int
	totals   []int
	advances int
	finishes []int
}

func (p *recordingProgress) Start(round, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.starts = append(p.starts, round)
	p.totals = append(p.totals, total)
}

func (p *recordingProgress) Advance(o Outcome) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.advances++
}

func (p *recordingProgress) Finish(round int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.finishes = append(p.finishes, round)
}

func TestExecute_Progress(t *testing.T) {
	fn := func(ctx context.Context, unique, shared Params) (any, error) {
		if unique["fail"] == true {
			return nil, errors.New("x")
		}
		return nil, nil
	}
	ids := []string{"a", "b", "c"}
	params := []Params{{}, {"fail": true}, {}}

	t.Run("verbose", func(t *testing.T) {
		progress := &recordingProgress{}
		exec := newTestExecutor(t, Config{
			Parallel:       true,
			Verbose:        true,
			MaxRetryRounds: 2,
			RetryOn:        NewKindSet(KindError),
		}, WithProgress(progress))

		if _, err := exec.Execute(context.Background(), fn, ids, params, nil); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if fmt.Sprint(progress.starts) != "[1 2]" || fmt.Sprint(progress.finishes) != "[1 2]" {
			t.Errorf("unexpected rounds: starts=%v finishes=%v", progress.starts, progress.finishes)
		}
		if fmt.Sprint(progress.totals) != "[3 1]" {
			t.Errorf("unexpected round totals: %v", progress.totals)
		}
		if progress.advances != 4 {
			t.Errorf("expected 4 advances, got %d", progress.advances)
		}
	})

	t.Run("quiet", func(t *testing.T) {
		progress := &recordingProgress{}
		exec := newTestExecutor(t, Config{Parallel: true, MaxRetryRounds: 1}, WithProgress(progress))

		if _, err := exec.Execute(context.Background(), fn, ids, params, nil); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(progress.starts) != 0 || progress.advances != 0 {
			t.Error("progress should not be driven when verbose is off")
		}
	})
}

func TestExecute_FailureLogLevel(t *testing.T) {
	fail := func(ctx context.Context, unique, shared Params) (any, error) {
		return nil, errors.New("boom")
	}

	tests := []struct {
		name     string
		verbose  bool
		progress Progress
		wantWarn bool
	}{
		{name: "quiet", verbose: false, wantWarn: false},
		{name: "verbose without progress", verbose: true, wantWarn: true},
		{name: "verbose with progress", verbose: true, progress: &recordingProgress{}, wantWarn: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))

			var opts []Option
			if tt.progress != nil {
				opts = append(opts, WithProgress(tt.progress))
			}
			exec, err := New(Config{Verbose: tt.verbose, MaxRetryRounds: 1}, logger, opts...)
			if err != nil {
				t.Fatalf("New() failed: %v", err)
			}

			if _, err := exec.Execute(context.Background(), fail, []string{"a"}, nil, nil); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if got := strings.Contains(buf.String(), "task failed"); got != tt.wantWarn {
				t.Errorf("warn record present = %v, want %v (log: %q)", got, tt.wantWarn, buf.String())
			}
		})
	}
}

func TestExecute_ConcurrentCalls(t *testing.T) {
	exec := newTestExecutor(t, Config{Parallel: true, MaxRetryRounds: 1})

	var wg sync.WaitGroup
	reports := make([]*Report, 4)
	for i := range reports {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ids := []string{"a", "b", "c"}
			params := []Params{{"id": i}, {"id": i}, {"id": i}}
			reports[i], _ = exec.Execute(context.Background(), doubleID, ids, params, nil)
		}(i)
	}
	wg.Wait()

	batchIDs := make(map[string]bool)
	for i, r := range reports {
		if r == nil || len(r.Succeeded) != 3 {
			t.Fatalf("batch %d incomplete", i)
		}
		for _, o := range r.Succeeded {
			if o.Payload != i*2 {
				t.Errorf("batch %d: state leaked between batches, got %v", i, o.Payload)
			}
		}
		batchIDs[r.BatchID.String()] = true
	}
	if len(batchIDs) != len(reports) {
		t.Error("expected a distinct batch id per call")
	}
}
