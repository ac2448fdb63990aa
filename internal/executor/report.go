package executor

import (
	"time"

	"github.com/google/uuid"
)

// Report is the final partition of a batch
type Report struct {
	// BatchID identifies the Execute call that produced this report
	BatchID uuid.UUID

	// Succeeded holds the successful outcome of every task that ever succeeded
	Succeeded []Outcome

	// Failed holds the last outcome of every task that never succeeded
	Failed []Outcome

	// Rounds is the number of dispatch rounds that ran
	Rounds int

	// Attempts is the number of outcomes produced across all rounds
	Attempts int

	// Duration is the wall-clock time of the whole batch
	Duration time.Duration
}

// Total returns the number of tasks in the batch
func (r *Report) Total() int {
	return len(r.Succeeded) + len(r.Failed)
}

// HasFailures returns true if any task ended in the failed set
func (r *Report) HasFailures() bool {
	return len(r.Failed) > 0
}

// Outcomes returns the successes followed by the failures
func (r *Report) Outcomes() []Outcome {
	all := make([]Outcome, 0, r.Total())
	all = append(all, r.Succeeded...)
	all = append(all, r.Failed...)
	return all
}

// Summary summarises the final outcomes of the report
func (r *Report) Summary() Summary {
	s := Summarize(r.Outcomes())
	s.Rounds = r.Rounds
	s.Attempts = r.Attempts
	return s
}
