package output

import (
	"github.com/google/uuid"

	"github.com/Yuplx-HU/task-executor/internal/executor"
)

// outcomeView is the serialised shape of an outcome shared by JSON and YAML
type outcomeView struct {
	ID       string          `json:"id" yaml:"id"`
	BatchID  string          `json:"batch_id,omitempty" yaml:"batch_id,omitempty"`
	Task     string          `json:"task" yaml:"task"`
	Kind     string          `json:"kind" yaml:"kind"`
	Attempt  int             `json:"attempt" yaml:"attempt"`
	Duration string          `json:"duration" yaml:"duration"`
	Params   executor.Params `json:"params,omitempty" yaml:"params,omitempty"`
	Payload  interface{}     `json:"payload,omitempty" yaml:"payload,omitempty"`
	Message  string          `json:"message,omitempty" yaml:"message,omitempty"`
}

type reportView struct {
	BatchID   string        `json:"batch_id" yaml:"batch_id"`
	Rounds    int           `json:"rounds" yaml:"rounds"`
	Attempts  int           `json:"attempts" yaml:"attempts"`
	Duration  string        `json:"duration" yaml:"duration"`
	Succeeded []outcomeView `json:"succeeded" yaml:"succeeded"`
	Failed    []outcomeView `json:"failed" yaml:"failed"`
}

func newOutcomeView(o executor.Outcome) outcomeView {
	view := outcomeView{
		ID:       o.ID.String(),
		Task:     o.TaskID,
		Kind:     o.Kind.String(),
		Attempt:  o.Attempt,
		Duration: o.Duration.String(),
		Params:   o.Params,
		Payload:  o.Payload,
		Message:  o.Message,
	}
	if o.BatchID != uuid.Nil {
		view.BatchID = o.BatchID.String()
	}
	return view
}

func newOutcomeViews(outcomes []executor.Outcome) []outcomeView {
	views := make([]outcomeView, len(outcomes))
	for i, o := range outcomes {
		views[i] = newOutcomeView(o)
	}
	return views
}

func newReportView(r *executor.Report) reportView {
	return reportView{
		BatchID:   r.BatchID.String(),
		Rounds:    r.Rounds,
		Attempts:  r.Attempts,
		Duration:  r.Duration.String(),
		Succeeded: newOutcomeViews(r.Succeeded),
		Failed:    newOutcomeViews(r.Failed),
	}
}
