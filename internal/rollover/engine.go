// Package rollover clones yesterday's unfinished tasks onto today.
package rollover

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/starford/dayroll/internal/calendar"
	"github.com/starford/dayroll/internal/models"
	"github.com/starford/dayroll/internal/notion"
	"github.com/starford/dayroll/internal/schema"
)

// Failure records a task that could not be rolled.
type Failure struct {
	Title  string `json:"title"`
	Reason string `json:"reason"`
}

// Result summarises one rollover run.
type Result struct {
	Day     calendar.Date `json:"-"`
	Rolled  []string      `json:"rolled"`
	Skipped []string      `json:"skipped"`
	Failed  []Failure     `json:"failed"`
}

// Engine performs rollover against the task database.
type Engine struct {
	gw         *notion.Gateway
	databaseID string
	rules      models.StatusRules
	logger     *slog.Logger
}

// New returns an engine for the task database databaseID.
func New(gw *notion.Gateway, databaseID string, rules models.StatusRules, logger *slog.Logger) *Engine {
	return &Engine{gw: gw, databaseID: databaseID, rules: rules, logger: logger}
}

// Run clones every task dated the day before today whose status is not done.
// Titles already present today are skipped, so repeated runs on the same day
// create nothing new. Individual create failures do not stop the batch.
func (e *Engine) Run(ctx context.Context, m schema.Mapping, today calendar.Date) (*Result, error) {
	if missing := m.Missing(); len(missing) > 0 {
		return nil, &schema.UnresolvedError{Missing: missing}
	}
	yesterday := today.AddDays(-1)
	dateCol := m.Date.Name

	prev, err := e.gw.QueryByDate(ctx, e.databaseID, dateCol, yesterday)
	if err != nil {
		return nil, fmt.Errorf("rollover: query %s: %w", yesterday, err)
	}
	current, err := e.gw.QueryByDate(ctx, e.databaseID, dateCol, today)
	if err != nil {
		return nil, fmt.Errorf("rollover: query %s: %w", today, err)
	}

	present := models.Titles(models.DecodeTasks(current, m))
	res := &Result{Day: today}

	e.logger.Info("rollover: scanning",
		slog.String("from", yesterday.String()),
		slog.String("to", today.String()),
		slog.Int("candidates", len(prev)))

	for _, task := range models.DecodeTasks(prev, m) {
		if e.rules.IsDone(task.Status) {
			continue
		}
		if present[task.Title] {
			res.Skipped = append(res.Skipped, task.Title)
			continue
		}
		if _, err := e.gw.Create(ctx, e.databaseID, e.clone(task, m, today)); err != nil {
			e.logger.Warn("rollover: create failed",
				slog.String("title", task.Title),
				slog.String("error", err.Error()))
			res.Failed = append(res.Failed, Failure{Title: task.Title, Reason: err.Error()})
			continue
		}
		present[task.Title] = true
		res.Rolled = append(res.Rolled, task.Title)
	}

	if len(res.Rolled) > 0 {
		e.logger.Info("rollover: rolled", slog.Int("count", len(res.Rolled)), slog.Any("titles", res.Rolled))
	} else {
		e.logger.Info("rollover: nothing to roll")
	}
	if len(res.Failed) > 0 {
		e.logger.Warn("rollover: failures", slog.Int("count", len(res.Failed)), slog.Any("failed", res.Failed))
	}
	return res, nil
}

// clone builds the properties of today's copy of t. Only title, date, status,
// resource and hint are carried; everything else starts empty.
func (e *Engine) clone(t models.Task, m schema.Mapping, today calendar.Date) notion.Properties {
	props := notion.Properties{
		m.Title.Name:  notion.Title(t.Title),
		m.Date.Name:   notion.On(today),
		m.Status.Name: notion.Option(e.rules.NotStarted),
	}
	if m.Resource != nil && t.Resource != "" {
		props[m.Resource.Name] = notion.Link(t.Resource)
	}
	if m.Hint != nil && len(t.Hint) > 0 {
		props[m.Hint.Name] = notion.Runs(t.Hint)
	}
	return props
}
