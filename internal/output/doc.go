// Package output renders batch reports and journal outcomes.
//
// Three formats are supported behind the Formatter interface:
//
//   - table: borderless, tab-separated columns with a summary line
//   - json: indented JSON for scripting
//   - yaml: YAML with two-space indentation
//
// # Basic Usage
//
//	formatter := output.NewFormatter(output.FormatTable, output.WithWide(true))
//	formatter.FormatReport(os.Stdout, report)
//
// JSON and YAML share one serialised shape: a report becomes an object with
// batch_id, rounds, attempts, duration, succeeded and failed, and every
// outcome carries id, task, kind, attempt, duration, params and either a
// payload or a message.
//
// # Color Support
//
// Colors are used only when the writer is a terminal and WithNoColor is not
// set. Successes are green, timeouts yellow and errors red.
package output
