package executor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Yuplx-HU/task-executor/internal/util"
)

// Params is a set of named task parameters
// The executor never mutates a Params value it is given
type Params map[string]any

// WorkFunc is the unit of work run once per task attempt
// unique holds the parameters of this task, shared holds the parameters common to the batch
// A non-nil error (or a panic) marks the attempt as failed
// In concurrent mode ctx carries the per-attempt deadline; honouring it is up to the function
type WorkFunc func(ctx context.Context, unique, shared Params) (any, error)

// OutcomeFunc receives every outcome as soon as it is known
// A returned error is logged and reported by Execute, it never stops the batch
type OutcomeFunc func(Outcome) error

// Task is one unit of work in a batch
type Task struct {
	// ID identifies the task within its batch
	ID string

	// Params are the parameters unique to this task
	Params Params
}

// Kind classifies the outcome of a single task attempt
type Kind uint8

const (
	// KindSuccess means the work function returned without error
	KindSuccess Kind = 1 << iota
	// KindTimeout means the attempt deadline elapsed first (concurrent mode only)
	KindTimeout
	// KindError means the work function failed or panicked
	KindError
)

// String returns the lower-case name of the kind
func (k Kind) String() string {
	switch k {
	case KindSuccess:
		return "success"
	case KindTimeout:
		return "timeout"
	case KindError:
		return "error"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// ParseKind parses "success", "timeout" or "error"
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "success":
		return KindSuccess, nil
	case "timeout":
		return KindTimeout, nil
	case "error":
		return KindError, nil
	default:
		return 0, util.NewValidationError("kind", s, "must be one of success, timeout, error")
	}
}

// KindSet is a set of outcome kinds, used as the retry filter
type KindSet uint8

// NewKindSet builds a set from the given kinds
func NewKindSet(kinds ...Kind) KindSet {
	var s KindSet
	for _, k := range kinds {
		s |= KindSet(k)
	}
	return s
}

// ParseKinds parses a comma-separated list such as "timeout,error"
// An empty string yields the empty set
func ParseKinds(s string) (KindSet, error) {
	var set KindSet
	for _, part := range strings.Split(s, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		k, err := ParseKind(part)
		if err != nil {
			return 0, err
		}
		set |= KindSet(k)
	}
	return set, nil
}

// Has reports whether k is in the set
func (s KindSet) Has(k Kind) bool {
	return s&KindSet(k) != 0
}

// Empty reports whether the set has no members
func (s KindSet) Empty() bool {
	return s == 0
}

// Kinds returns the members in a stable order
func (s KindSet) Kinds() []Kind {
	kinds := make([]Kind, 0, 3)
	for _, k := range []Kind{KindSuccess, KindTimeout, KindError} {
		if s.Has(k) {
			kinds = append(kinds, k)
		}
	}
	return kinds
}

// String returns the comma-separated member names
func (s KindSet) String() string {
	kinds := s.Kinds()
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = k.String()
	}
	return strings.Join(names, ",")
}

// Outcome is the classified result of one task attempt
type Outcome struct {
	// ID uniquely identifies this attempt
	ID uuid.UUID

	// BatchID is the Report.BatchID of the Execute call that produced the attempt
	BatchID uuid.UUID

	// Kind is success, timeout or error
	Kind Kind

	// TaskID and Params identify the task that was attempted
	TaskID string
	Params Params

	// Payload is the value returned by the work function (success only)
	Payload any

	// Message describes the failure (timeout and error only)
	Message string

	// Attempt is the 1-based round in which this attempt ran
	Attempt int

	// Duration is how long the attempt took, as seen by the executor
	Duration time.Duration
}

// Succeeded reports whether the attempt succeeded
func (o Outcome) Succeeded() bool {
	return o.Kind == KindSuccess
}

// Err returns the failure as an error, or nil on success
// Timeouts wrap util.ErrTimeout
func (o Outcome) Err() error {
	switch o.Kind {
	case KindSuccess:
		return nil
	case KindTimeout:
		return util.WrapTaskError(o.TaskID, fmt.Errorf("%w: %s", util.ErrTimeout, o.Message))
	default:
		return util.WrapTaskError(o.TaskID, fmt.Errorf("%s", o.Message))
	}
}

func newOutcome(task Task, kind Kind, attempt int) Outcome {
	return Outcome{
		ID:      uuid.New(),
		Kind:    kind,
		TaskID:  task.ID,
		Params:  task.Params,
		Attempt: attempt,
	}
}
