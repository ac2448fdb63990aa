package output

import (
	"io"

	"gopkg.in/yaml.v3"

	"github.com/Yuplx-HU/task-executor/internal/executor"
)

// YAMLFormatter formats output as YAML
type YAMLFormatter struct {
	options *Options
}

// NewYAMLFormatter creates a new YAML formatter
func NewYAMLFormatter(opts *Options) *YAMLFormatter {
	if opts == nil {
		opts = &Options{}
	}
	return &YAMLFormatter{
		options: opts,
	}
}

// Format outputs a single data item as YAML
func (f *YAMLFormatter) Format(w io.Writer, data interface{}) error {
	return f.encode(w, data)
}

// FormatReport outputs the report as a YAML document
func (f *YAMLFormatter) FormatReport(w io.Writer, report *executor.Report) error {
	return f.encode(w, newReportView(report))
}

// FormatOutcomes outputs outcomes as a YAML sequence
func (f *YAMLFormatter) FormatOutcomes(w io.Writer, outcomes []executor.Outcome) error {
	return f.encode(w, newOutcomeViews(outcomes))
}

func (f *YAMLFormatter) encode(w io.Writer, v interface{}) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	defer encoder.Close()

	return encoder.Encode(v)
}
