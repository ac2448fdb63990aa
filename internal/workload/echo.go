package workload

import (
	"context"
	"errors"
	"time"

	"github.com/Yuplx-HU/task-executor/internal/executor"
)

// NewEcho builds a work function that returns a copy of the unique params.
// Recognised params (unique overrides shared):
//
//	sleep    delay before returning; honours ctx
//	fail     when true the attempt fails with message
//	message  failure message, default "echo failure"
func NewEcho(_ context.Context, shared executor.Params) (executor.WorkFunc, error) {
	return func(ctx context.Context, unique, shared executor.Params) (any, error) {
		merged := merge(shared, unique)

		sleep, err := durationParam(merged, "sleep")
		if err != nil {
			return nil, err
		}
		if sleep > 0 {
			timer := time.NewTimer(sleep)
			defer timer.Stop()
			select {
			case <-timer.C:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		fail, err := boolParam(merged, "fail")
		if err != nil {
			return nil, err
		}
		if fail {
			msg, err := stringParam(merged, "message")
			if err != nil {
				return nil, err
			}
			if msg == "" {
				msg = "echo failure"
			}
			return nil, errors.New(msg)
		}

		out := make(executor.Params, len(unique))
		for k, v := range unique {
			out[k] = v
		}
		return out, nil
	}, nil
}

// merge returns base overlaid with override, leaving both untouched
func merge(base, override executor.Params) executor.Params {
	out := make(executor.Params, len(base)+len(override))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range override {
		out[k] = v
	}
	return out
}
