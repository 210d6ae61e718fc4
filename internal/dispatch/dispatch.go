// Package dispatch applies a packed schedule back to the task source. The
// planner decides where tasks should live; the dispatcher works out which of
// those placements actually require an API update and sends them.
package dispatch

import (
	"context"
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/daypack/daypack/internal/backoff"
	"github.com/daypack/daypack/internal/planner"
	"github.com/daypack/daypack/internal/runlog"
	"github.com/daypack/daypack/internal/types"
)

// maxInFlight bounds concurrent update requests against the API.
const maxInFlight = 16

// API is the slice of the Todoist surface the dispatcher needs.
type API interface {
	UpdateTask(ctx context.Context, id string, params types.UpdateTaskParams) (types.Task, error)
}

// Stats tallies the fate of every task the schedule placed.
type Stats struct {
	Planned int // tasks handed over by the planner
	Updated int // updates accepted by the API
	Skipped int // already on their day, or nothing to move
	Failed  int // update could not be built or was rejected
}

// Dispatcher pushes schedule changes to the API.
type Dispatcher struct {
	api    API
	log    *zap.SugaredLogger
	dryRun bool
}

// New creates a Dispatcher. In dry-run mode moves are journaled but no update
// ever reaches the API.
func New(api API, log *zap.SugaredLogger, dryRun bool) *Dispatcher {
	return &Dispatcher{api: api, log: log, dryRun: dryRun}
}

// update is one outbound API call, resolved from a schedule placement.
type update struct {
	task   types.Task
	params types.UpdateTaskParams
	to     string
}

// Dispatch walks the schedule and moves every task whose due date disagrees
// with its packed day.
//
// Expectations:
//   - Tasks already due on their packed day are left untouched
//   - Tasks without a due date are never updated
//   - A task whose due cannot be converted fails alone; its siblings proceed
//   - One rejected update does not stop the others; all failures aggregate
//     into the returned error
//   - At most 16 updates are in flight at once
//   - In dry-run mode no API call is made
func (d *Dispatcher) Dispatch(ctx context.Context, sched *planner.Schedule, pol *backoff.Policy, jl *runlog.Log) (Stats, error) {
	var stats Stats
	var jobs []update
	var buildErrs []error

	for _, day := range sched.Days {
		date := day.Date.Format(types.DateLayout)
		for _, wt := range day.Tasks {
			task := wt.Task
			stats.Planned++
			if task.Due == nil || task.Due.Date == date {
				stats.Skipped++
				jl.UpdateSkipped(task.ID, task.Content, date)
				continue
			}
			params, err := buildParams(date, task.Due)
			if err != nil {
				stats.Failed++
				buildErrs = append(buildErrs, fmt.Errorf("dispatch: build update for %s: %w", task.ID, err))
				jl.UpdateFailed(task.ID, task.Content, err)
				continue
			}
			d.log.Infow("rescheduling task",
				"content", task.Content,
				"from", task.Due.Date,
				"to", date,
			)
			jl.UpdatePlanned(task.ID, task.Content, task.Due.Date, date)
			if d.dryRun {
				continue
			}
			jobs = append(jobs, update{task: task, params: params, to: date})
		}
	}

	sendErrs := make([]error, len(jobs))
	g := &errgroup.Group{}
	g.SetLimit(maxInFlight)
	for i, job := range jobs {
		// The go directive is below 1.22, so loop variables are shared across
		// iterations; rebind them so each goroutine sees its own job.
		i, job := i, job
		g.Go(func() error {
			err := pol.Do(ctx, "update task "+job.task.ID, func() error {
				_, err := d.api.UpdateTask(ctx, job.task.ID, job.params)
				return err
			})
			if err != nil {
				sendErrs[i] = fmt.Errorf("dispatch: update task %s: %w", job.task.ID, err)
				jl.UpdateFailed(job.task.ID, job.task.Content, err)
				return nil
			}
			jl.UpdateSent(job.task.ID, job.task.Content, job.to)
			return nil
		})
	}
	_ = g.Wait()

	for _, err := range sendErrs {
		if err != nil {
			stats.Failed++
		} else {
			stats.Updated++
		}
	}
	return stats, multierr.Combine(append(buildErrs, sendErrs...)...)
}

// buildParams converts a task's current due into the params that move it to
// date. Datetime dues keep their original clock time on the new day; the
// natural-language string rides along unchanged.
func buildParams(date string, due *types.Due) (types.UpdateTaskParams, error) {
	params := types.UpdateTaskParams{DueString: due.String}
	if due.HasTime() {
		clock, err := due.Clock()
		if err != nil {
			return types.UpdateTaskParams{}, err
		}
		params.DueDatetime = date + "T" + clock
	} else {
		params.DueDate = date
	}
	return params, nil
}
