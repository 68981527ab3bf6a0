// Package models defines the task and review views the engines work on.
package models

import (
	"github.com/starford/dayroll/internal/calendar"
	"github.com/starford/dayroll/internal/notion"
	"github.com/starford/dayroll/internal/schema"
)

// StatusRules configures how status labels are interpreted.
type StatusRules struct {
	// Done is the done-equivalence set. Matching is case-sensitive.
	Done []string `yaml:"done_statuses"`
	// NotStarted is the label given to rolled-over tasks.
	NotStarted string `yaml:"not_started_status"`
}

// DefaultStatusRules returns the labels accepted out of the box.
func DefaultStatusRules() StatusRules {
	return StatusRules{
		Done:       []string{"Done", "done", "Completed", "completed", "已完成", "完成"},
		NotStarted: "Not started",
	}
}

// IsDone reports whether label is in the done-equivalence set. An empty
// label is never done.
func (r StatusRules) IsDone(label string) bool {
	if label == "" {
		return false
	}
	for _, d := range r.Done {
		if d == label {
			return true
		}
	}
	return false
}

// Task is a task record read through a role mapping.
type Task struct {
	PageID   string
	Title    string
	Date     calendar.Date
	Status   string
	Resource string
	Hint     []notion.RichText
}

// DecodeTask reads p through m.
func DecodeTask(p notion.Page, m schema.Mapping) Task {
	t := Task{
		PageID: p.ID,
		Title:  p.Get(m.Name(schema.RoleTitle)).PlainText(),
		Status: p.Get(m.Name(schema.RoleStatus)).SelectName(),
	}
	if d, ok := p.Get(m.Name(schema.RoleDate)).Day(); ok {
		t.Date = d
	}
	if m.Resource != nil {
		t.Resource = p.Get(m.Resource.Name).URLString()
	}
	if m.Hint != nil {
		t.Hint = p.Get(m.Hint.Name).RichText
	}
	return t
}

// DecodeTasks reads every page through m.
func DecodeTasks(pages []notion.Page, m schema.Mapping) []Task {
	out := make([]Task, len(pages))
	for i, p := range pages {
		out[i] = DecodeTask(p, m)
	}
	return out
}

// Tally counts done and not-done tasks. Total is always len(tasks).
func Tally(tasks []Task, rules StatusRules) (done, notDone int) {
	for _, t := range tasks {
		if rules.IsDone(t.Status) {
			done++
		} else {
			notDone++
		}
	}
	return done, notDone
}

// Unfinished returns the titles of not-done tasks in order, without duplicates.
func Unfinished(tasks []Task, rules StatusRules) []string {
	seen := make(map[string]bool)
	var out []string
	for _, t := range tasks {
		if rules.IsDone(t.Status) || seen[t.Title] {
			continue
		}
		seen[t.Title] = true
		out = append(out, t.Title)
	}
	return out
}

// Titles returns the set of task titles.
func Titles(tasks []Task) map[string]bool {
	out := make(map[string]bool, len(tasks))
	for _, t := range tasks {
		out[t.Title] = true
	}
	return out
}
