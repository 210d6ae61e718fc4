// Package todoisttest provides an in-memory Todoist API double for exercising
// the rescheduler without the network. The Fake honours the same contract as
// the real client: bad tokens are rejected, an empty query yields nothing,
// listings arrive in pages, and updates mutate the stored tasks so a second
// run sees the world the first one left behind.
package todoisttest

import (
	"context"
	"net/http"
	"sync"

	"github.com/samber/lo"

	"github.com/daypack/daypack/internal/todoist"
	"github.com/daypack/daypack/internal/types"
)

// ValidToken is the only token the Fake accepts.
const ValidToken = "VALID_TOKEN"

// UpdateCall records one UpdateTask invocation.
type UpdateCall struct {
	ID     string
	Params types.UpdateTaskParams
}

// Fake stands in for the Todoist API.
//
// Expectations:
//   - FilterTasks rejects any token other than ValidToken with a 401 *todoist.APIError
//   - An empty query returns no tasks and no error
//   - Tasks are delivered to fn in pages of BatchSize
//   - UpdateTask records the call and applies the due change to the stored task
type Fake struct {
	Token     string
	BatchSize int

	mu          sync.Mutex
	tasks       []types.Task
	calls       []UpdateCall
	updateErrs  map[string]error
	filterCalls int
}

// New returns a Fake holding a valid token and a small page size, so
// pagination is exercised by default.
func New() *Fake {
	return &Fake{Token: ValidToken, BatchSize: 2}
}

// SetupTasks replaces the Fake's task list.
func (f *Fake) SetupTasks(tasks ...types.Task) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tasks = tasks
}

// FailUpdates makes UpdateTask fail with err for the given task IDs.
func (f *Fake) FailUpdates(err error, ids ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErrs == nil {
		f.updateErrs = map[string]error{}
	}
	for _, id := range ids {
		f.updateErrs[id] = err
	}
}

// FilterTasks mirrors todoist.Client.FilterTasks against the in-memory list.
func (f *Fake) FilterTasks(ctx context.Context, query string, fn func([]types.Task) error) error {
	f.mu.Lock()
	f.filterCalls++
	tasks := make([]types.Task, len(f.tasks))
	copy(tasks, f.tasks)
	batch := f.BatchSize
	token := f.Token
	f.mu.Unlock()

	if token != ValidToken {
		return &todoist.APIError{StatusCode: http.StatusUnauthorized, Body: "Unauthorized"}
	}
	if query == "" {
		return nil
	}
	if batch < 1 {
		batch = 2
	}
	for _, page := range lo.Chunk(tasks, batch) {
		if err := fn(page); err != nil {
			return err
		}
	}
	return nil
}

// UpdateTask records the call and applies the due change to the stored task.
func (f *Fake) UpdateTask(ctx context.Context, id string, params types.UpdateTaskParams) (types.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.updateErrs[id]; err != nil {
		return types.Task{}, err
	}
	f.calls = append(f.calls, UpdateCall{ID: id, Params: params})
	for i := range f.tasks {
		if f.tasks[i].ID != id {
			continue
		}
		applyDue(&f.tasks[i], params)
		return f.tasks[i], nil
	}
	return types.Task{ID: id, Content: "Updated Task"}, nil
}

// applyDue rewrites a task's due the way the API would for the given params.
func applyDue(t *types.Task, params types.UpdateTaskParams) {
	switch {
	case params.DueDatetime != "":
		date := params.DueDatetime
		if len(date) > len(types.DateLayout) {
			date = date[:len(types.DateLayout)]
		}
		t.Due = &types.Due{Date: date, Datetime: params.DueDatetime, String: params.DueString}
	case params.DueDate != "":
		t.Due = &types.Due{Date: params.DueDate, String: params.DueString}
	case params.DueString != "":
		t.Due = &types.Due{String: params.DueString}
	}
}

// UpdateCalls returns the updates recorded so far, in call order.
func (f *Fake) UpdateCalls() []UpdateCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	calls := make([]UpdateCall, len(f.calls))
	copy(calls, f.calls)
	return calls
}

// FilterCalls reports how many times FilterTasks has been invoked.
func (f *Fake) FilterCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.filterCalls
}

// Tasks returns a snapshot of the current task list.
func (f *Fake) Tasks() []types.Task {
	f.mu.Lock()
	defer f.mu.Unlock()
	tasks := make([]types.Task, len(f.tasks))
	copy(tasks, f.tasks)
	return tasks
}

// Distribution summarises the stored tasks as due value -> first label ->
// count. Datetime dues key on the full datetime so clock handling is visible
// to assertions.
func (f *Fake) Distribution() map[string]map[string]int {
	f.mu.Lock()
	defer f.mu.Unlock()
	dist := map[string]map[string]int{}
	for _, t := range f.tasks {
		due := ""
		if t.Due != nil {
			due = t.Due.Date
			if t.Due.Datetime != "" {
				due = t.Due.Datetime
			}
		}
		label := ""
		if len(t.Labels) > 0 {
			label = t.Labels[0]
		}
		if dist[due] == nil {
			dist[due] = map[string]int{}
		}
		dist[due][label]++
	}
	return dist
}
