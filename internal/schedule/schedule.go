// Package schedule runs the rescheduler on a cron cadence. Without it the
// binary plans once and exits; with it the same run repeats on every firing
// in the configured time zone.
package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Runner fires a job on a cron schedule in a fixed time zone.
type Runner struct {
	spec  string
	sched cron.Schedule
	loc   *time.Location
	log   *zap.SugaredLogger
}

// New validates spec and builds a Runner. Standard five-field expressions and
// descriptors like @daily or @every 1h are accepted. Validation failures
// surface here, before anything else happens in a run.
func New(spec string, loc *time.Location, log *zap.SugaredLogger) (*Runner, error) {
	parsed, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("schedule: invalid cron expression %q: %w", spec, err)
	}
	return &Runner{spec: spec, sched: parsed, loc: loc, log: log}, nil
}

// Next returns the first firing after t in the runner's time zone.
func (r *Runner) Next(t time.Time) time.Time {
	return r.sched.Next(t.In(r.loc))
}

// Run fires job on the schedule until ctx is cancelled, then waits for any
// in-flight firing to finish. A firing that lands while the previous one is
// still running is skipped, not queued.
func (r *Runner) Run(ctx context.Context, job func(context.Context)) error {
	logger := &cronLogger{log: r.log}
	c := cron.New(
		cron.WithLocation(r.loc),
		cron.WithLogger(logger),
		cron.WithChain(cron.SkipIfStillRunning(logger), cron.Recover(logger)),
	)
	if _, err := c.AddFunc(r.spec, func() { job(ctx) }); err != nil {
		return fmt.Errorf("schedule: register job: %w", err)
	}

	r.log.Infow("running on schedule",
		"cron", r.spec,
		"time_zone", r.loc.String(),
		"next", r.Next(time.Now()),
	)
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}

// cronLogger adapts cron's logging interface onto zap. The library's routine
// chatter goes to debug; only real errors get promoted.
type cronLogger struct {
	log *zap.SugaredLogger
}

func (l *cronLogger) Info(msg string, kv ...any) {
	l.log.Debugw(msg, kv...)
}

func (l *cronLogger) Error(err error, msg string, kv ...any) {
	l.log.Errorw(msg, append(kv, "error", err)...)
}
