package output

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/Yuplx-HU/task-executor/internal/executor"
)

// maxCellWidth bounds payload and message cells
const maxCellWidth = 50

// TableFormatter formats output as a borderless table
type TableFormatter struct {
	options *Options
}

// NewTableFormatter creates a new table formatter
func NewTableFormatter(opts *Options) *TableFormatter {
	if opts == nil {
		opts = &Options{}
	}
	return &TableFormatter{
		options: opts,
	}
}

// Format outputs a single data item as a table
func (f *TableFormatter) Format(w io.Writer, data interface{}) error {
	table := f.createTable(w)

	switch v := data.(type) {
	case map[string]interface{}:
		return f.formatMap(table, v)
	case []map[string]interface{}:
		return f.formatMapSlice(table, v)
	case []string:
		for _, s := range v {
			fmt.Fprintln(w, s)
		}
		return nil
	case nil:
		return nil
	default:
		fmt.Fprintln(w, v)
		return nil
	}
}

// FormatReport outputs every final outcome followed by a summary line
func (f *TableFormatter) FormatReport(w io.Writer, report *executor.Report) error {
	if report.Total() == 0 {
		fmt.Fprintln(w, "No tasks")
		return nil
	}

	colors := NewColorScheme(w, f.options.NoColor)
	f.renderOutcomes(w, report.Outcomes(), colors)
	f.printSummary(w, report, colors)
	return nil
}

// FormatOutcomes outputs outcomes as a table without a summary
func (f *TableFormatter) FormatOutcomes(w io.Writer, outcomes []executor.Outcome) error {
	if len(outcomes) == 0 {
		fmt.Fprintln(w, "No outcomes")
		return nil
	}

	f.renderOutcomes(w, outcomes, NewColorScheme(w, f.options.NoColor))
	return nil
}

func (f *TableFormatter) renderOutcomes(w io.Writer, outcomes []executor.Outcome, colors *ColorScheme) {
	table := f.createTable(w)

	headers := []string{"TASK", "KIND", "ATTEMPT", "DURATION", "MESSAGE"}
	if f.options.Wide {
		headers = append(headers, "PAYLOAD", "ID")
	}

	if !f.options.NoHeaders {
		if colors.Disabled {
			table.SetHeader(headers)
		} else {
			coloredHeaders := make([]string, len(headers))
			for i, h := range headers {
				coloredHeaders[i] = colors.Header(h)
			}
			table.SetHeader(coloredHeaders)
		}
	}

	for _, o := range outcomes {
		table.Append(f.formatOutcomeRow(o, colors))
	}

	table.Render()
}

// formatOutcomeRow formats a single outcome as a table row
func (f *TableFormatter) formatOutcomeRow(o executor.Outcome, colors *ColorScheme) []string {
	taskID := o.TaskID
	kind := o.Kind.String()
	duration := o.Duration.Round(time.Millisecond).String()

	if !colors.Disabled {
		taskID = colors.TaskID(taskID)
		kind = colors.KindColor(o.Kind)(kind)
		duration = colors.Duration(duration)
	}

	row := []string{taskID, kind, strconv.Itoa(o.Attempt), duration, truncate(o.Message)}

	if f.options.Wide {
		payload := ""
		if o.Payload != nil {
			payload = truncate(fmt.Sprintf("%v", o.Payload))
		}
		row = append(row, payload, o.ID.String())
	}

	return row
}

func truncate(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) > maxCellWidth {
		return s[:maxCellWidth-3] + "..."
	}
	return s
}

// formatMap formats a map as a two-column table (key-value pairs)
func (f *TableFormatter) formatMap(table *tablewriter.Table, data map[string]interface{}) error {
	if !f.options.NoHeaders {
		table.SetHeader([]string{"KEY", "VALUE"})
	}

	for _, k := range sortedKeys(data) {
		table.Append([]string{k, fmt.Sprintf("%v", data[k])})
	}

	table.Render()
	return nil
}

// formatMapSlice formats a slice of maps as a table, columns taken from the first map
func (f *TableFormatter) formatMapSlice(table *tablewriter.Table, data []map[string]interface{}) error {
	if len(data) == 0 {
		return nil
	}

	keys := sortedKeys(data[0])

	if !f.options.NoHeaders {
		headers := make([]string, len(keys))
		for i, k := range keys {
			headers[i] = strings.ToUpper(k)
		}
		table.SetHeader(headers)
	}

	for _, item := range data {
		row := make([]string, len(keys))
		for i, k := range keys {
			row[i] = fmt.Sprintf("%v", item[k])
		}
		table.Append(row)
	}

	table.Render()
	return nil
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// createTable creates a new borderless, tab-separated table
func (f *TableFormatter) createTable(w io.Writer) *tablewriter.Table {
	table := tablewriter.NewWriter(w)

	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")
	table.SetNoWhiteSpace(true)

	return table
}

// printSummary prints a one-line summary of the report
func (f *TableFormatter) printSummary(w io.Writer, report *executor.Report, colors *ColorScheme) {
	summary := report.Summary()

	fmt.Fprintln(w, "")
	fmt.Fprintf(w, "Summary: ")

	successText := fmt.Sprintf("%d succeeded", summary.Succeeded)
	if !colors.Disabled {
		successText = colors.Success(successText)
	}

	failedText := fmt.Sprintf("%d failed (%d timeout, %d error)", summary.Failed(), summary.TimedOut, summary.Errored)
	if !colors.Disabled && summary.Failed() > 0 {
		failedText = colors.Error(failedText)
	}

	roundsText := fmt.Sprintf("rounds=%d attempts=%d success=%.0f%%", summary.Rounds, summary.Attempts, summary.SuccessRate)

	durationText := fmt.Sprintf("took=%s", report.Duration.Round(time.Millisecond))
	if !colors.Disabled {
		durationText = colors.Duration(durationText)
	}

	fmt.Fprintf(w, "%s, %s, %s, %s\n", successText, failedText, roundsText, durationText)
}
