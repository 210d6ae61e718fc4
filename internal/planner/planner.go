// Package planner turns a flat pool of tasks into a day-by-day schedule.
//
// Planning happens in two stages. Weigh classifies every fetched task against
// the rule set and attaches a weight; tasks the rules cannot place are dropped
// here, not later. Plan then packs the weighted pool into consecutive days,
// filling each day's weight budget with the most urgent tasks first.
package planner

import (
	"sort"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/daypack/daypack/internal/pretty"
	"github.com/daypack/daypack/internal/rules"
	"github.com/daypack/daypack/internal/runlog"
	"github.com/daypack/daypack/internal/types"
)

// farFuture sorts tasks without a parseable due date behind everything else.
var farFuture = time.Date(9999, time.December, 31, 0, 0, 0, 0, time.UTC)

// Day is one packed day of the schedule.
type Day struct {
	Date  time.Time
	Tasks []types.WeightedTask
}

// Schedule is the full packing produced by Plan, in day order.
type Schedule struct {
	Days []Day
}

// Planner assigns weights to tasks and packs them into days.
type Planner struct {
	cfg     *rules.Config
	log     *zap.SugaredLogger
	monitor *pretty.ChangeMonitor
}

// New creates a Planner.
func New(cfg *rules.Config, log *zap.SugaredLogger) *Planner {
	return &Planner{cfg: cfg, log: log, monitor: pretty.NewChangeMonitor(0)}
}

// Weigh classifies every fetched task against the rule set.
//
// Expectations:
//   - Without rules every task passes through with weight 0
//   - Tasks without labels are dropped and journaled
//   - The first label in the task's own label order that carries a rule
//     weight decides the task's weight
//   - Tasks whose labels match no weighted rule are dropped and journaled
func (p *Planner) Weigh(tasks []types.Task, jl *runlog.Log) []types.WeightedTask {
	if !p.cfg.HasRules() {
		return lo.Map(tasks, func(t types.Task, _ int) types.WeightedTask {
			return weighted(t, 0)
		})
	}
	return lo.FilterMap(tasks, func(t types.Task, _ int) (types.WeightedTask, bool) {
		if len(t.Labels) == 0 {
			p.drop(t, "no_labels", "task has no labels, ignoring", jl)
			return types.WeightedTask{}, false
		}
		for _, label := range t.Labels {
			if w, ok := p.cfg.WeightFor(label); ok {
				return weighted(t, w), true
			}
		}
		p.drop(t, "no_matching_labels", "task labels match no rule, ignoring", jl)
		return types.WeightedTask{}, false
	})
}

// weighted wraps a task with its weight. An unset priority packs as normal
// priority; the sack filler needs a positive value to make progress.
func weighted(t types.Task, w int) types.WeightedTask {
	if t.Priority < 1 {
		t.Priority = 1
	}
	return types.WeightedTask{Task: t, Weight: w}
}

// drop journals an excluded task. The log line is deduplicated through the
// change monitor so a task that comes back run after run only logs when its
// drop reason changes.
func (p *Planner) drop(t types.Task, reason, msg string, jl *runlog.Log) {
	if p.monitor.HasChanged("drop/"+t.ID, reason) {
		p.log.Infow(msg, "task", t.Content, "id", t.ID)
	}
	jl.TaskDropped(t.ID, t.Content, reason)
}

// Plan packs the weighted pool into consecutive days starting at start.
//
// Expectations:
//   - Tasks with earlier due dates are placed first; arrival order breaks ties
//   - Each day carries at most its weekday's budget worth of weight
//   - Days whose budget fits nothing are skipped, not emitted empty
//   - Every task in the pool lands on exactly one day
//
// Validation caps rule weights at the weekly budget ceiling, so every task
// fits on some day of the week and the loop always drains the pool.
func (p *Planner) Plan(pool []types.WeightedTask, start time.Time, jl *runlog.Log) *Schedule {
	remaining := make([]types.WeightedTask, len(pool))
	copy(remaining, pool)
	sort.SliceStable(remaining, func(i, j int) bool {
		return dueDay(remaining[i].Task).Before(dueDay(remaining[j].Task))
	})

	sched := &Schedule{}
	for day := start; len(remaining) > 0; day = day.AddDate(0, 0, 1) {
		capacity := p.cfg.CapacityFor(day)
		batch := fillSack(capacity, remaining)
		if len(batch) == 0 {
			continue
		}

		sched.Days = append(sched.Days, Day{Date: day, Tasks: batch})
		weight := lo.SumBy(batch, func(t types.WeightedTask) int { return t.Weight })
		ids := lo.Map(batch, func(t types.WeightedTask, _ int) string { return t.ID })
		jl.DayPacked(day.Format(types.DateLayout), ids, weight, capacity)
		p.log.Debugw("packed day",
			"date", day.Format(types.DateLayout),
			"tasks", len(batch),
			"weight", weight,
			"capacity", capacity,
		)

		taken := lo.SliceToMap(batch, func(t types.WeightedTask) (string, struct{}) {
			return t.ID, struct{}{}
		})
		remaining = lo.Reject(remaining, func(t types.WeightedTask, _ int) bool {
			_, ok := taken[t.ID]
			return ok
		})
	}
	return sched
}

// dueDay resolves the day a task is currently due, pushing tasks without a
// usable due date to the back of the ordering.
func dueDay(t types.Task) time.Time {
	if t.Due == nil {
		return farFuture
	}
	day, err := t.Due.Day()
	if err != nil {
		return farFuture
	}
	return day
}
