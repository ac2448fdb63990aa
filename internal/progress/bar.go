package progress

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/Yuplx-HU/task-executor/internal/executor"
	"github.com/Yuplx-HU/task-executor/internal/output"
)

const barWidth = 30

// Bar draws a single-line progress bar for each round
// On a terminal the line is redrawn in place; otherwise every update is a new line
type Bar struct {
	w           io.Writer
	description string
	colors      *output.ColorScheme
	redraw      bool

	mu      sync.Mutex
	round   int
	total   int
	done    int
	failed  int
	started time.Time
}

// NewBar creates a bar that writes to w
// An empty description falls back to executor.DefaultDescription
func NewBar(w io.Writer, description string, noColor bool) *Bar {
	if description == "" {
		description = executor.DefaultDescription
	}
	return &Bar{
		w:           w,
		description: description,
		colors:      output.NewColorScheme(w, noColor),
		redraw:      output.IsTerminal(w),
	}
}

// Start resets the bar for a new round
func (b *Bar) Start(round, total int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.round = round
	b.total = total
	b.done = 0
	b.failed = 0
	b.started = time.Now()

	b.draw()
}

// Advance counts one outcome; failures are printed above the bar
func (b *Bar) Advance(o executor.Outcome) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.done++
	if !o.Succeeded() {
		b.failed++
		b.clearLine()
		fmt.Fprintln(b.w, b.failureLine(o))
	}

	b.draw()
}

// Finish terminates the bar line and prints the round tally
func (b *Bar) Finish(round int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.redraw {
		fmt.Fprintln(b.w)
	}

	elapsed := time.Since(b.started).Round(time.Millisecond)
	fmt.Fprintf(b.w, "%s: %d/%d done, %d failed in %s\n", b.label(), b.done, b.total, b.failed, elapsed)
}

func (b *Bar) failureLine(o executor.Outcome) string {
	msg := fmt.Sprintf("Task [%s] failed: %s", o.TaskID, o.Message)
	if o.Kind == executor.KindTimeout {
		return "⚠️ " + b.colors.Warning("%s", msg)
	}
	return "❌ " + b.colors.Error("%s", msg)
}

// label is the description followed by the 1-based round, e.g. "Running (try 1)"
func (b *Bar) label() string {
	return fmt.Sprintf("%s (try %d)", b.description, b.round)
}

// render returns the bar text without any line control characters
func (b *Bar) render() string {
	filled := 0
	if b.total > 0 {
		filled = b.done * barWidth / b.total
	}
	return fmt.Sprintf("%s: [%s%s] %d/%d",
		b.label(),
		strings.Repeat("#", filled),
		strings.Repeat(".", barWidth-filled),
		b.done, b.total)
}

func (b *Bar) draw() {
	if b.redraw {
		fmt.Fprintf(b.w, "\r%s", b.render())
		return
	}
	fmt.Fprintln(b.w, b.render())
}

// clearLine wipes the in-place bar so a message can be printed on its own line
func (b *Bar) clearLine() {
	if b.redraw {
		fmt.Fprintf(b.w, "\r\033[K")
	}
}
