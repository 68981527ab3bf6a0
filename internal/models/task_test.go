package models

import (
	"testing"

	"github.com/starford/dayroll/internal/notion"
	"github.com/starford/dayroll/internal/schema"
)

func TestStatusRules_IsDone(t *testing.T) {
	r := DefaultStatusRules()
	for _, s := range []string{"Done", "done", "已完成", "完成", "Completed"} {
		if !r.IsDone(s) {
			t.Errorf("IsDone(%q) = false", s)
		}
	}
	for _, s := range []string{"", "DONE", "In progress", "Not started"} {
		if r.IsDone(s) {
			t.Errorf("IsDone(%q) = true", s)
		}
	}
}

func TestDecodeTask_OptionalColumns(t *testing.T) {
	m := schema.Mapping{
		Title:  &schema.Column{Name: "Name"},
		Date:   &schema.Column{Name: "Date"},
		Status: &schema.Column{Name: "Status"},
		Hint:   &schema.Column{Name: "Hint"},
	}
	p := notion.Page{ID: "p1", Properties: notion.Properties{
		"Name":     notion.Title("Write report"),
		"Date":     notion.PropertyValue{Date: &notion.DateValue{Start: "2026-10-17"}},
		"Hint":     notion.Text("outline first"),
		"Resource": notion.Link("https://ignored.example"),
	}}
	task := DecodeTask(p, m)
	if task.Title != "Write report" || task.Status != "" || task.Date.String() != "2026-10-17" {
		t.Errorf("task = %+v", task)
	}
	if task.Resource != "" {
		t.Error("resource must be empty when the role is unmapped")
	}
	if len(task.Hint) != 1 {
		t.Errorf("hint runs = %d, want 1", len(task.Hint))
	}
}

func TestTallyAndUnfinished(t *testing.T) {
	tasks := []Task{
		{Title: "A", Status: "Done"},
		{Title: "B"},
		{Title: "C", Status: "In progress"},
		{Title: "B", Status: "Not started"},
	}
	done, notDone := Tally(tasks, DefaultStatusRules())
	if done != 1 || notDone != 3 {
		t.Errorf("tally = %d/%d, want 1/3", done, notDone)
	}
	got := Unfinished(tasks, DefaultStatusRules())
	if len(got) != 2 || got[0] != "B" || got[1] != "C" {
		t.Errorf("unfinished = %v, want [B C]", got)
	}
}

func TestReviewLayout_Labels(t *testing.T) {
	l := DefaultReviewLayout()
	if l.Label(Weekly) != "Weekly" || l.Label(Daily) != "Daily" {
		t.Errorf("labels = %+v", l.Labels)
	}
	if !l.IsDailyLabel("") || !l.IsDailyLabel("Daily") || l.IsDailyLabel("Monthly") {
		t.Error("IsDailyLabel must accept daily and untagged only")
	}
}
