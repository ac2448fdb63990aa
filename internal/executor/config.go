package executor

import (
	"time"

	"github.com/Yuplx-HU/task-executor/internal/util"
)

// DefaultDescription labels progress output when no description is configured
const DefaultDescription = "Processing tasks"

// Config holds the options recognised by an Executor
type Config struct {
	// Parallel selects concurrent dispatch; false runs tasks one at a time in order
	Parallel bool

	// Timeout is the per-attempt deadline in concurrent mode (0 means no deadline)
	// It is not enforced in sequential mode
	Timeout time.Duration

	// MaxRetryRounds is the total number of attempts allowed per task (1 means no retry)
	MaxRetryRounds int

	// RetryOn selects which failure kinds are re-dispatched
	RetryOn KindSet

	// Verbose enables progress reporting and promotes task failures to warnings in the log
	Verbose bool

	// Workers bounds the number of tasks in flight in concurrent mode
	// 0 starts one worker per pending task
	Workers int

	// Description labels progress output
	Description string
}

// DefaultConfig returns the configuration used when nothing else is specified:
// concurrent dispatch, no deadline, a single round and both failure kinds retriable
func DefaultConfig() Config {
	return Config{
		Parallel:       true,
		MaxRetryRounds: 1,
		RetryOn:        NewKindSet(KindTimeout, KindError),
		Verbose:        true,
		Description:    DefaultDescription,
	}
}

// Validate checks the configuration for values the executor cannot run with
func (c Config) Validate() error {
	if c.MaxRetryRounds < 1 {
		return util.NewValidationError("max_retry_rounds", c.MaxRetryRounds, "must be at least 1")
	}
	if c.Timeout < 0 {
		return util.NewValidationError("timeout", c.Timeout, "must not be negative")
	}
	if c.Workers < 0 {
		return util.NewValidationError("workers", c.Workers, "must not be negative")
	}
	if c.RetryOn.Has(KindSuccess) {
		return util.NewValidationError("retry_on", c.RetryOn.String(), "only timeout and error can be retried")
	}
	if c.RetryOn&^NewKindSet(KindTimeout, KindError) != 0 {
		return util.NewValidationError("retry_on", uint8(c.RetryOn), "contains unknown kinds")
	}
	return nil
}
