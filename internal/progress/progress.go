// Package progress provides executor.Progress implementations: a terminal
// bar, a structured log reporter, a fan-out and a no-op.
package progress

import (
	"log/slog"

	"github.com/Yuplx-HU/task-executor/internal/executor"
)

// Log reports progress as structured log records
type Log struct {
	logger *slog.Logger
}

// NewLog creates a log reporter; a nil logger means slog.Default()
func NewLog(logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{logger: logger}
}

// Start logs the size of the round
func (l *Log) Start(round, total int) {
	l.logger.Info("round started", "round", round, "tasks", total)
}

// Advance logs one outcome at debug level
func (l *Log) Advance(o executor.Outcome) {
	l.logger.Debug("task finished",
		"task", o.TaskID,
		"kind", o.Kind.String(),
		"attempt", o.Attempt,
		"duration", o.Duration)
}

// Finish logs the end of a round
func (l *Log) Finish(round int) {
	l.logger.Info("round finished", "round", round)
}

// Multi forwards every call to each of its reporters in order
type Multi []executor.Progress

// Start implements executor.Progress
func (m Multi) Start(round, total int) {
	for _, p := range m {
		p.Start(round, total)
	}
}

// Advance implements executor.Progress
func (m Multi) Advance(o executor.Outcome) {
	for _, p := range m {
		p.Advance(o)
	}
}

// Finish implements executor.Progress
func (m Multi) Finish(round int) {
	for _, p := range m {
		p.Finish(round)
	}
}

// Nop discards progress
type Nop struct{}

// Start implements executor.Progress
func (Nop) Start(int, int) {}

// Advance implements executor.Progress
func (Nop) Advance(executor.Outcome) {}

// Finish implements executor.Progress
func (Nop) Finish(int) {}

var (
	_ executor.Progress = (*Bar)(nil)
	_ executor.Progress = (*Log)(nil)
	_ executor.Progress = Multi(nil)
	_ executor.Progress = Nop{}
)
