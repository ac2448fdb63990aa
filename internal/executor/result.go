package executor

import (
	"fmt"
	"strings"
	"time"
)

// CountByKind returns the number of outcomes of the given kind
func CountByKind(outcomes []Outcome, kind Kind) int {
	count := 0
	for _, o := range outcomes {
		if o.Kind == kind {
			count++
		}
	}
	return count
}

// CountSuccessful returns the number of successful outcomes
func CountSuccessful(outcomes []Outcome) int {
	return CountByKind(outcomes, KindSuccess)
}

// FilterByKind returns only the outcomes whose kind is in set
func FilterByKind(outcomes []Outcome, set KindSet) []Outcome {
	filtered := make([]Outcome, 0, len(outcomes))
	for _, o := range outcomes {
		if set.Has(o.Kind) {
			filtered = append(filtered, o)
		}
	}
	return filtered
}

// FilterSuccessful returns only the successful outcomes
func FilterSuccessful(outcomes []Outcome) []Outcome {
	return FilterByKind(outcomes, NewKindSet(KindSuccess))
}

// FilterFailed returns only the timeout and error outcomes
func FilterFailed(outcomes []Outcome) []Outcome {
	return FilterByKind(outcomes, NewKindSet(KindTimeout, KindError))
}

// GroupByKind groups outcomes by kind
func GroupByKind(outcomes []Outcome) map[Kind][]Outcome {
	grouped := make(map[Kind][]Outcome)
	for _, o := range outcomes {
		grouped[o.Kind] = append(grouped[o.Kind], o)
	}
	return grouped
}

// TaskIDs extracts unique task ids in first-seen order
func TaskIDs(outcomes []Outcome) []string {
	seen := make(map[string]bool)
	ids := make([]string, 0)

	for _, o := range outcomes {
		if !seen[o.TaskID] {
			seen[o.TaskID] = true
			ids = append(ids, o.TaskID)
		}
	}

	return ids
}

// AverageDuration calculates the average attempt duration
func AverageDuration(outcomes []Outcome) time.Duration {
	if len(outcomes) == 0 {
		return 0
	}

	var total time.Duration
	for _, o := range outcomes {
		total += o.Duration
	}

	return total / time.Duration(len(outcomes))
}

// MaxDuration returns the longest attempt duration
func MaxDuration(outcomes []Outcome) time.Duration {
	if len(outcomes) == 0 {
		return 0
	}

	max := outcomes[0].Duration
	for _, o := range outcomes {
		if o.Duration > max {
			max = o.Duration
		}
	}
	return max
}

// MinDuration returns the shortest attempt duration
func MinDuration(outcomes []Outcome) time.Duration {
	if len(outcomes) == 0 {
		return 0
	}

	min := outcomes[0].Duration
	for _, o := range outcomes {
		if o.Duration < min {
			min = o.Duration
		}
	}
	return min
}

// SuccessRate returns the success rate as a percentage (0.0 to 100.0)
func SuccessRate(outcomes []Outcome) float64 {
	if len(outcomes) == 0 {
		return 0.0
	}
	return float64(CountSuccessful(outcomes)) / float64(len(outcomes)) * 100.0
}

// Summary provides a summary of outcomes
type Summary struct {
	Total       int
	Succeeded   int
	TimedOut    int
	Errored     int
	Rounds      int
	Attempts    int
	AvgDuration time.Duration
	MaxDuration time.Duration
	MinDuration time.Duration
	SuccessRate float64
}

// Summarize creates a summary of the outcomes
// Rounds and Attempts are left zero; Report.Summary fills them in
func Summarize(outcomes []Outcome) Summary {
	grouped := GroupByKind(outcomes)
	return Summary{
		Total:       len(outcomes),
		Succeeded:   len(grouped[KindSuccess]),
		TimedOut:    len(grouped[KindTimeout]),
		Errored:     len(grouped[KindError]),
		AvgDuration: AverageDuration(outcomes),
		MaxDuration: MaxDuration(outcomes),
		MinDuration: MinDuration(outcomes),
		SuccessRate: SuccessRate(outcomes),
	}
}

// Failed returns the number of timed-out and errored tasks
func (s Summary) Failed() int {
	return s.TimedOut + s.Errored
}

// String returns a human-readable string representation of the summary
func (s Summary) String() string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Total: %d, ", s.Total))
	sb.WriteString(fmt.Sprintf("Succeeded: %d, ", s.Succeeded))
	sb.WriteString(fmt.Sprintf("Timeout: %d, ", s.TimedOut))
	sb.WriteString(fmt.Sprintf("Error: %d", s.Errored))

	if s.Rounds > 0 {
		sb.WriteString(fmt.Sprintf(", Rounds: %d, Attempts: %d", s.Rounds, s.Attempts))
	}

	if s.Total > 0 {
		sb.WriteString(fmt.Sprintf(", Rate: %.1f%%", s.SuccessRate))
		sb.WriteString(fmt.Sprintf(", Avg: %s", s.AvgDuration.Round(time.Millisecond)))
		sb.WriteString(fmt.Sprintf(", Max: %s", s.MaxDuration.Round(time.Millisecond)))
		sb.WriteString(fmt.Sprintf(", Min: %s", s.MinDuration.Round(time.Millisecond)))
	}

	return sb.String()
}
