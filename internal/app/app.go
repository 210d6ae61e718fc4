// Package app wires the rescheduler together: fetch tasks through the filter,
// weigh them against the rules, pack them into days, and push the resulting
// moves back to the API. One App instance serves both the one-shot and the
// cron-scheduled mode.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/daypack/daypack/internal/backoff"
	"github.com/daypack/daypack/internal/dispatch"
	"github.com/daypack/daypack/internal/planner"
	"github.com/daypack/daypack/internal/rules"
	"github.com/daypack/daypack/internal/runlog"
	"github.com/daypack/daypack/internal/schedule"
	"github.com/daypack/daypack/internal/types"
)

// API is the Todoist surface the app consumes. The real client satisfies it;
// tests substitute an in-memory double.
type API interface {
	FilterTasks(ctx context.Context, query string, fn func([]types.Task) error) error
	UpdateTask(ctx context.Context, id string, params types.UpdateTaskParams) (types.Task, error)
}

// Options carries the command-line configuration. The API token lives with
// the client, not here.
type Options struct {
	Filter   string // Todoist filter query selecting the tasks to plan
	Rules    string // path to the rules file; empty means defaults
	DryRun   bool   // plan and journal, but send nothing
	TimeZone string // IANA zone the planning day is anchored in
	Schedule string // cron expression; empty means run once and exit
}

// App owns one configured rescheduler.
type App struct {
	api     API
	plan    *planner.Planner
	send    *dispatch.Dispatcher
	journal *runlog.Registry
	loc     *time.Location
	runner  *schedule.Runner
	opts    Options
	log     *zap.SugaredLogger
}

// New validates the configuration and builds the App. An unknown time zone,
// an unusable rules file or a bad cron expression all fail here, before a
// single task is fetched.
func New(api API, journal *runlog.Registry, log *zap.SugaredLogger, opts Options) (*App, error) {
	loc, err := time.LoadLocation(opts.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("app: load time zone %q: %w", opts.TimeZone, err)
	}
	cfg, err := rules.Load(opts.Rules, log)
	if err != nil {
		return nil, err
	}
	var runner *schedule.Runner
	if opts.Schedule != "" {
		if runner, err = schedule.New(opts.Schedule, loc, log); err != nil {
			return nil, err
		}
	}
	return &App{
		api:     api,
		plan:    planner.New(cfg, log),
		send:    dispatch.New(api, log, opts.DryRun),
		journal: journal,
		loc:     loc,
		runner:  runner,
		opts:    opts,
		log:     log,
	}, nil
}

// Run executes one pass immediately, or keeps firing passes on the cron
// schedule when one was configured. In scheduled mode a failed pass is logged
// and the loop keeps going; only ctx cancellation ends it.
func (a *App) Run(ctx context.Context) error {
	if a.runner == nil {
		return a.RunOnce(ctx, a.today())
	}
	return a.runner.Run(ctx, func(ctx context.Context) {
		if err := a.RunOnce(ctx, a.today()); err != nil {
			a.log.Errorw("run failed", "error", err)
		}
	})
}

// today anchors the planning window: the current date in the configured zone.
func (a *App) today() time.Time {
	now := time.Now().In(a.loc)
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, a.loc)
}

// RunOnce performs a single fetch-weigh-pack-dispatch pass anchored at today.
//
// Expectations:
//   - The filter listing restarts from scratch on every retry attempt, so a
//     half-fetched pool never leaks into planning
//   - A fetch failure (auth included) aborts the pass; nothing is dispatched
//   - The journal records run_begin and run_end with full counts either way
func (a *App) RunOnce(ctx context.Context, today time.Time) error {
	runID := uuid.New().String()
	jl := a.journal.Open(runID, a.opts.Filter, a.opts.DryRun)
	log := a.log.With("run", runID)
	log.Infow("starting run", "today", today.Format(types.DateLayout), "dry_run", a.opts.DryRun)

	pol := backoff.New(log)

	var pool []types.Task
	err := pol.Do(ctx, "filter tasks", func() error {
		pool = pool[:0]
		return a.api.FilterTasks(ctx, a.opts.Filter, func(page []types.Task) error {
			pool = append(pool, page...)
			return nil
		})
	})
	if err != nil {
		a.journal.Close(runID, "failed", &runlog.Counts{})
		return fmt.Errorf("app: fetch tasks: %w", err)
	}

	weighted := a.plan.Weigh(pool, jl)
	sched := a.plan.Plan(weighted, today, jl)
	stats, derr := a.send.Dispatch(ctx, sched, pol, jl)

	counts := &runlog.Counts{
		Fetched: len(pool),
		Dropped: len(pool) - len(weighted),
		Planned: stats.Planned,
		Updated: stats.Updated,
		Skipped: stats.Skipped,
		Failed:  stats.Failed,
	}
	status := "completed"
	if derr != nil {
		status = "failed"
	}
	a.journal.Close(runID, status, counts)
	log.Infow("run finished",
		"status", status,
		"fetched", counts.Fetched,
		"dropped", counts.Dropped,
		"updated", counts.Updated,
		"skipped", counts.Skipped,
		"failed", counts.Failed,
	)

	if derr != nil {
		return fmt.Errorf("app: dispatch updates: %w", derr)
	}
	return nil
}
