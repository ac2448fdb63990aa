package output

import (
	"encoding/json"
	"io"

	"github.com/Yuplx-HU/task-executor/internal/executor"
)

// JSONFormatter formats output as JSON
type JSONFormatter struct {
	options *Options
}

// NewJSONFormatter creates a new JSON formatter
func NewJSONFormatter(opts *Options) *JSONFormatter {
	if opts == nil {
		opts = &Options{}
	}
	return &JSONFormatter{
		options: opts,
	}
}

// Format outputs a single data item as JSON
func (f *JSONFormatter) Format(w io.Writer, data interface{}) error {
	return f.encode(w, data)
}

// FormatReport outputs the report as a single JSON object
func (f *JSONFormatter) FormatReport(w io.Writer, report *executor.Report) error {
	return f.encode(w, newReportView(report))
}

// FormatOutcomes outputs outcomes as a JSON array
func (f *JSONFormatter) FormatOutcomes(w io.Writer, outcomes []executor.Outcome) error {
	return f.encode(w, newOutcomeViews(outcomes))
}

func (f *JSONFormatter) encode(w io.Writer, v interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
