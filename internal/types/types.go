package types

import (
	"fmt"
	"time"
)

// Layouts for the two due-value encodings the service uses.
const (
	DateLayout     = "2006-01-02"
	DatetimeLayout = "2006-01-02T15:04:05"
)

// Task is one task as the service returns it. Tasks are read-only inside a
// run; updates go back through UpdateTaskParams, never by mutating a Task.
type Task struct {
	ID          string   `json:"id"`
	Content     string   `json:"content"`
	Description string   `json:"description,omitempty"`
	ProjectID   string   `json:"project_id,omitempty"`
	SectionID   string   `json:"section_id,omitempty"`
	ParentID    string   `json:"parent_id,omitempty"`
	Labels      []string `json:"labels,omitempty"`
	Priority    int      `json:"priority"`
	Due         *Due     `json:"due,omitempty"`
	URL         string   `json:"url,omitempty"`
	CreatedAt   string   `json:"created_at,omitempty"`
}

// Due is a task's due assignment. Date always carries the day portion
// (YYYY-MM-DD). Datetime is set only when the due has a time of day; its
// presence is what distinguishes a datetime due from a date-only due, and
// date-only dues must never be widened into midnight datetimes.
type Due struct {
	Date        string `json:"date"`
	Datetime    string `json:"datetime,omitempty"`
	String      string `json:"string,omitempty"`
	Timezone    string `json:"timezone,omitempty"`
	IsRecurring bool   `json:"is_recurring"`
}

// HasTime reports whether the due carries a time of day.
func (d *Due) HasTime() bool {
	return d != nil && d.Datetime != ""
}

// Day parses the due's day portion.
func (d *Due) Day() (time.Time, error) {
	day, err := time.Parse(DateLayout, d.Date)
	if err != nil {
		return time.Time{}, fmt.Errorf("types: parse due date %q: %w", d.Date, err)
	}
	return day, nil
}

// Clock returns the HH:MM:SS portion of a datetime due.
//
// Expectations:
//   - Returns the exact time of day encoded in Datetime
//   - Fails when Datetime does not match the YYYY-MM-DDTHH:MM:SS layout
func (d *Due) Clock() (string, error) {
	ts, err := time.Parse(DatetimeLayout, d.Datetime)
	if err != nil {
		return "", fmt.Errorf("types: parse due datetime %q: %w", d.Datetime, err)
	}
	return ts.Format("15:04:05"), nil
}

// WeightedTask is a task paired with the capacity cost its rule assigns.
// Weight 0 means no rules are configured and the task is included anyway.
type WeightedTask struct {
	Task
	Weight int
}

// UpdateTaskParams is the subset of task-update fields the service accepts.
// A reschedule sets exactly one of DueDate or DueDatetime, plus DueString
// when the task had a free-form due text the service would otherwise reparse.
type UpdateTaskParams struct {
	Content      string   `json:"content,omitempty"`
	Description  string   `json:"description,omitempty"`
	Labels       []string `json:"labels,omitempty"`
	Priority     int      `json:"priority,omitempty"`
	DueString    string   `json:"due_string,omitempty"`
	DueLang      string   `json:"due_lang,omitempty"`
	DueDate      string   `json:"due_date,omitempty"`
	DueDatetime  string   `json:"due_datetime,omitempty"`
	AssigneeID   string   `json:"assignee_id,omitempty"`
	Duration     int      `json:"duration,omitempty"`
	DurationUnit string   `json:"duration_unit,omitempty"`
}
