package testutil

import (
	"log/slog"
	"os"

	"github.com/starford/dayroll/internal/calendar"
	"github.com/starford/dayroll/internal/models"
	"github.com/starford/dayroll/internal/notion"
	"github.com/starford/dayroll/internal/schema"
)

// Database ids used by fixtures.
const (
	TaskDB   = "tasks"
	DailyDB  = "daily-reviews"
	CycleDB  = "cycle-reviews"
	StatusNS = "Not started"
)

// TaskColumns is the task database layout used by fixtures.
var TaskColumns = map[string]string{
	"Name":     notion.TypeTitle,
	"Date":     notion.TypeDate,
	"Status":   notion.TypeSelect,
	"Resource": notion.TypeURL,
	"Hint":     notion.TypeRichText,
	"Notes":    notion.TypeRichText,
}

// TaskMapping is the mapping the resolver produces for TaskColumns.
var TaskMapping = schema.Mapping{
	Title:    &schema.Column{Name: "Name", Type: notion.TypeTitle},
	Date:     &schema.Column{Name: "Date", Type: notion.TypeDate},
	Status:   &schema.Column{Name: "Status", Type: notion.TypeSelect},
	Resource: &schema.Column{Name: "Resource", Type: notion.TypeURL},
	Hint:     &schema.Column{Name: "Hint", Type: notion.TypeRichText},
}

// ReviewColumns returns the review database columns for layout l.
func ReviewColumns(l models.ReviewLayout) map[string]string {
	return map[string]string{
		l.Title:      notion.TypeTitle,
		l.Date:       notion.TypeDate,
		l.Completed:  notion.TypeNumber,
		l.Incomplete: notion.TypeNumber,
		l.Difficulty: notion.TypeRichText,
		l.Solution:   notion.TypeRichText,
		l.Summary:    notion.TypeRichText,
		l.Type:       notion.TypeSelect,
	}
}

// NewTaskStore returns a store holding an empty task database and both review databases.
func NewTaskStore() *MemStore {
	m := NewMemStore()
	m.AddDatabase(TaskDB, TaskColumns)
	m.AddDatabase(DailyDB, ReviewColumns(models.DefaultReviewLayout()))
	m.AddDatabase(CycleDB, ReviewColumns(models.DefaultReviewLayout()))
	return m
}

// Day parses an ISO date or panics.
func Day(s string) calendar.Date {
	d, err := calendar.Parse(s)
	if err != nil {
		panic(err)
	}
	return d
}

// SeedTask inserts a task. An empty status leaves the select unset.
func (m *MemStore) SeedTask(title string, day calendar.Date, status string) string {
	props := notion.Properties{
		"Name": notion.Title(title),
		"Date": notion.On(day),
	}
	if status != "" {
		props["Status"] = notion.Option(status)
	}
	return m.Seed(TaskDB, props)
}

// TasksOn returns the decoded tasks dated day.
func (m *MemStore) TasksOn(day calendar.Date) []models.Task {
	var out []models.Task
	for _, t := range models.DecodeTasks(m.Pages(TaskDB), TaskMapping) {
		if t.Date == day {
			out = append(out, t)
		}
	}
	return out
}

// Logger returns a logger that only emits errors.
func Logger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}
