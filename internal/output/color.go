package output

import (
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"github.com/Yuplx-HU/task-executor/internal/executor"
)

// ColorScheme provides color functions for different output elements
type ColorScheme struct {
	// TaskID colors task identifiers
	TaskID func(format string, a ...interface{}) string

	// Success colors success status
	Success func(format string, a ...interface{}) string

	// Error colors error messages
	Error func(format string, a ...interface{}) string

	// Warning colors timeouts and warnings
	Warning func(format string, a ...interface{}) string

	// Header colors table headers
	Header func(format string, a ...interface{}) string

	// Duration colors duration values
	Duration func(format string, a ...interface{}) string

	// Disabled indicates if colors are disabled
	Disabled bool
}

// NewColorScheme creates a new color scheme
// Colors are automatically disabled for non-TTY outputs or when noColor is true
func NewColorScheme(w io.Writer, noColor bool) *ColorScheme {
	useColor := !noColor && IsTerminal(w)

	if !useColor {
		plain := color.New().Sprintf
		return &ColorScheme{
			TaskID:   plain,
			Success:  plain,
			Error:    plain,
			Warning:  plain,
			Header:   plain,
			Duration: plain,
			Disabled: true,
		}
	}

	return &ColorScheme{
		TaskID:   color.New(color.FgCyan, color.Bold).Sprintf,
		Success:  color.New(color.FgGreen).Sprintf,
		Error:    color.New(color.FgRed, color.Bold).Sprintf,
		Warning:  color.New(color.FgYellow).Sprintf,
		Header:   color.New(color.FgWhite, color.Bold).Sprintf,
		Duration: color.New(color.FgBlue).Sprintf,
		Disabled: false,
	}
}

// IsTerminal reports whether w is a terminal
func IsTerminal(w io.Writer) bool {
	if f, ok := w.(*os.File); ok {
		return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return false
}

// KindColor returns the color function for an outcome kind
func (cs *ColorScheme) KindColor(kind executor.Kind) func(format string, a ...interface{}) string {
	switch kind {
	case executor.KindSuccess:
		return cs.Success
	case executor.KindTimeout:
		return cs.Warning
	default:
		return cs.Error
	}
}
