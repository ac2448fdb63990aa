package cli

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/Yuplx-HU/task-executor/internal/util"
)

// scheduleParser accepts standard five-field expressions, an optional leading
// seconds field and descriptors such as @hourly or @every 5m
var scheduleParser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// cronLogger adapts slog to the cron.Logger interface
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}

// runScheduled calls fn on every activation of spec until ctx is cancelled.
// An activation is skipped while the previous one is still running.
// Failed batches are logged and do not stop the schedule.
func runScheduled(ctx context.Context, spec string, logger *slog.Logger, fn func(context.Context) error) error {
	schedule, err := scheduleParser.Parse(spec)
	if err != nil {
		return util.NewValidationError("schedule", spec, err.Error())
	}

	cl := cronLogger{logger: logger}
	c := cron.New(
		cron.WithParser(scheduleParser),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)

	var runs atomic.Int64
	c.Schedule(schedule, cron.FuncJob(func() {
		run := runs.Add(1)
		logger.Info("scheduled batch starting", "run", run)
		if err := fn(ctx); err != nil {
			if errors.Is(err, util.ErrTasksFailed) {
				logger.Warn("scheduled batch finished with failures", "run", run, "error", err)
				return
			}
			logger.Error("scheduled batch failed", "run", run, "error", err)
		}
	}))

	c.Start()
	logger.Info("schedule started", "schedule", spec, "next", schedule.Next(time.Now()))

	<-ctx.Done()

	logger.Info("stopping schedule", "runs", runs.Load())
	<-c.Stop().Done()
	return nil
}
