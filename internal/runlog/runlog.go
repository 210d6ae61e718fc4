// Package runlog provides per-run structured journaling for the rescheduler.
//
// Each run gets one JSONL file in a configurable directory. Events capture every
// stage that shapes the outcome: tasks dropped during weighing, the contents of
// each packed day, and the fate of every update (planned, skipped, sent, failed).
// The journal is the raw material for answering, after the fact, why a task
// landed on the day it did.
//
// Design constraints:
//   - All Log methods are nil-safe (no-op on nil receiver) so callers don't
//     need nil checks before every journal call.
//   - Registry is the sole owner of JSONL persistence; planner and dispatcher
//     never open files.
//   - The app opens a log via Registry.Open and closes it via Registry.Close.
//   - Planner and Dispatcher receive a *Log as a method parameter rather than
//     through their constructors, so they stay stateless across runs.
package runlog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
)

// EventKind labels a single structured event in the run log.
type EventKind string

const (
	KindRunBegin      EventKind = "run_begin"
	KindRunEnd        EventKind = "run_end"
	KindTaskDropped   EventKind = "task_dropped"
	KindDayPacked     EventKind = "day_packed"
	KindUpdatePlanned EventKind = "update_planned"
	KindUpdateSkipped EventKind = "update_skipped"
	KindUpdateSent    EventKind = "update_sent"
	KindUpdateFailed  EventKind = "update_failed"
)

// Event is one JSONL line in the run log.
// Fields are omitempty so each event only serialises relevant data.
type Event struct {
	Kind      EventKind `json:"kind"`
	Timestamp string    `json:"ts"`

	// run_begin / run_end
	RunID     string  `json:"run_id,omitempty"`
	Query     string  `json:"query,omitempty"`
	DryRun    bool    `json:"dry_run,omitempty"`
	Status    string  `json:"status,omitempty"` // "completed" | "failed"
	ElapsedMs int64   `json:"elapsed_ms,omitempty"`
	Counts    *Counts `json:"counts,omitempty"` // run_end only

	// task_dropped / update_*
	TaskID  string `json:"task_id,omitempty"`
	Content string `json:"content,omitempty"`
	Reason  string `json:"reason,omitempty"` // "no_labels" | "no_matching_labels"

	// day_packed
	Date        string   `json:"date,omitempty"`
	TaskIDs     []string `json:"task_ids,omitempty"`
	TotalWeight int      `json:"total_weight,omitempty"`
	Capacity    int      `json:"capacity,omitempty"`

	// update_planned / update_sent / update_failed
	From  string `json:"from,omitempty"`
	To    string `json:"to,omitempty"`
	Error string `json:"error,omitempty"`
}

// Counts summarises a finished run for the run_end event. Fields are not
// omitempty: a zero here is still an answer.
type Counts struct {
	Fetched int `json:"fetched"`
	Dropped int `json:"dropped"`
	Planned int `json:"planned"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// Log is a handle for writing structured events for one run.
//
// Expectations:
//   - All methods are nil-safe (no-op when called on nil *Log)
//   - Concurrent writes are safe (mutex-protected)
type Log struct {
	runID   string
	started time.Time
	log     *zap.SugaredLogger
	mu      sync.Mutex
	f       *os.File
}

// Registry maps run IDs to open Logs.
// It is the sole authority for creating and closing run log files.
//
// Expectations:
//   - Open creates the log directory if absent
//   - Open writes a run_begin event as the first JSONL line
//   - Open returns the existing log without re-opening when called twice for
//     the same runID
//   - Get returns nil for unknown run IDs
//   - Close writes run_end with status, elapsed_ms and counts before flushing
//   - Close removes the runID from the registry so subsequent Get returns nil
//   - Close no-ops gracefully when runID is not registered
type Registry struct {
	dir  string
	log  *zap.SugaredLogger
	mu   sync.Mutex
	logs map[string]*Log
}

// NewRegistry creates a Registry that writes one JSONL file per run under dir.
func NewRegistry(dir string, log *zap.SugaredLogger) *Registry {
	return &Registry{dir: dir, log: log, logs: make(map[string]*Log)}
}

// Open creates a new Log for runID, writes a run_begin event, and registers it.
// Returns nil (safe to use) when the journal directory cannot be created; a
// run must not fail because its audit trail can't be written.
func (r *Registry) Open(runID, query string, dryRun bool) *Log {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if l, ok := r.logs[runID]; ok {
		return l
	}

	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		r.log.Errorw("could not create run log dir", "dir", r.dir, "error", err)
		return nil
	}
	path := filepath.Join(r.dir, runID+".jsonl")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		r.log.Errorw("could not open run log file", "path", path, "error", err)
		return nil
	}

	l := &Log{runID: runID, started: time.Now(), log: r.log, f: f}
	r.logs[runID] = l
	l.write(Event{
		Kind:   KindRunBegin,
		RunID:  runID,
		Query:  query,
		DryRun: dryRun,
	})
	return l
}

// Get returns the Log for runID, or nil if not found.
// Nil is safe to pass to all Log methods.
func (r *Registry) Get(runID string) *Log {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.logs[runID]
}

// Close writes a run_end event, flushes and closes the file, and removes the
// entry from the registry. Safe to call on a nil *Registry or unknown runID.
func (r *Registry) Close(runID, status string, counts *Counts) {
	if r == nil {
		return
	}
	r.mu.Lock()
	l, ok := r.logs[runID]
	if !ok {
		r.mu.Unlock()
		return
	}
	delete(r.logs, runID)
	r.mu.Unlock()

	l.mu.Lock()
	elapsed := time.Since(l.started).Milliseconds()
	l.mu.Unlock()

	l.write(Event{
		Kind:      KindRunEnd,
		RunID:     runID,
		Status:    status,
		ElapsedMs: elapsed,
		Counts:    counts,
	})

	l.mu.Lock()
	if l.f != nil {
		_ = l.f.Close()
		l.f = nil
	}
	l.mu.Unlock()
}

// TaskDropped records a task excluded during weighing and why.
func (l *Log) TaskDropped(taskID, content, reason string) {
	if l == nil {
		return
	}
	l.write(Event{
		Kind:    KindTaskDropped,
		TaskID:  taskID,
		Content: content,
		Reason:  reason,
	})
}

// DayPacked records the outcome of packing one day: which tasks landed on it,
// how much of the budget they use, and what the budget was.
func (l *Log) DayPacked(date string, taskIDs []string, totalWeight, capacity int) {
	if l == nil {
		return
	}
	l.write(Event{
		Kind:        KindDayPacked,
		Date:        date,
		TaskIDs:     taskIDs,
		TotalWeight: totalWeight,
		Capacity:    capacity,
	})
}

// UpdatePlanned records that a task needs to move from one date to another.
// In dry-run mode this is the last event the task produces.
func (l *Log) UpdatePlanned(taskID, content, from, to string) {
	if l == nil {
		return
	}
	l.write(Event{
		Kind:    KindUpdatePlanned,
		TaskID:  taskID,
		Content: content,
		From:    from,
		To:      to,
	})
}

// UpdateSkipped records a task left alone because it already sits on its
// planned day (or carries no due date to move).
func (l *Log) UpdateSkipped(taskID, content, date string) {
	if l == nil {
		return
	}
	l.write(Event{
		Kind:    KindUpdateSkipped,
		TaskID:  taskID,
		Content: content,
		Date:    date,
	})
}

// UpdateSent records a successfully applied update.
func (l *Log) UpdateSent(taskID, content, to string) {
	if l == nil {
		return
	}
	l.write(Event{
		Kind:    KindUpdateSent,
		TaskID:  taskID,
		Content: content,
		To:      to,
	})
}

// UpdateFailed records an update that could not be built or applied.
func (l *Log) UpdateFailed(taskID, content string, err error) {
	if l == nil {
		return
	}
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	l.write(Event{
		Kind:    KindUpdateFailed,
		TaskID:  taskID,
		Content: content,
		Error:   msg,
	})
}

// write appends one JSON line to the run log file. Adds timestamp, mutex-protected.
func (l *Log) write(e Event) {
	e.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)
	data, err := json.Marshal(e)
	if err != nil {
		l.log.Errorw("marshal run log event", "error", err)
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f == nil {
		return
	}
	if _, err = fmt.Fprintf(l.f, "%s\n", data); err != nil {
		l.log.Errorw("write run log event", "error", err)
	}
}
