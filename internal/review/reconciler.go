// Package review keeps one daily review record per day in step with the
// task database.
package review

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/starford/dayroll/internal/calendar"
	"github.com/starford/dayroll/internal/models"
	"github.com/starford/dayroll/internal/notion"
	"github.com/starford/dayroll/internal/schema"
)

// Placeholder prompts written into a fresh daily record.
const (
	SummaryPrompt    = "(fill in today's summary)"
	DifficultyPrompt = "(note today's difficulties)"
	SolutionPrompt   = "(fill in the solution)"
)

// Result describes one reconciliation.
type Result struct {
	Day        calendar.Date `json:"-"`
	PageID     string        `json:"page_id"`
	Created    bool          `json:"created"`
	Completed  int           `json:"completed"`
	Incomplete int           `json:"incomplete"`
}

// Reconciler maintains daily review records.
type Reconciler struct {
	gw       *notion.Gateway
	reviewDB string
	taskDB   string
	layout   models.ReviewLayout
	rules    models.StatusRules
	logger   *slog.Logger
}

// New returns a reconciler writing to reviewDB from the tasks in taskDB.
func New(gw *notion.Gateway, reviewDB, taskDB string, layout models.ReviewLayout, rules models.StatusRules, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		gw:       gw,
		reviewDB: reviewDB,
		taskDB:   taskDB,
		layout:   layout,
		rules:    rules,
		logger:   logger,
	}
}

// Reconcile recounts today's tasks and writes the counts to today's daily
// record, creating it when absent. An existing record only has its two
// counters patched; text the operator typed is left alone.
func (r *Reconciler) Reconcile(ctx context.Context, m schema.Mapping, today calendar.Date) (*Result, error) {
	if missing := m.Missing(); len(missing) > 0 {
		return nil, &schema.UnresolvedError{Missing: missing}
	}
	pages, err := r.gw.QueryByDate(ctx, r.taskDB, m.Date.Name, today)
	if err != nil {
		return nil, fmt.Errorf("review: query tasks %s: %w", today, err)
	}
	done, notDone := models.Tally(models.DecodeTasks(pages, m), r.rules)
	res := &Result{Day: today, Completed: done, Incomplete: notDone}

	existing, err := r.Find(ctx, today)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		res.PageID = existing.ID
		err := r.gw.Update(ctx, existing.ID, notion.Properties{
			r.layout.Completed:  notion.Number(float64(done)),
			r.layout.Incomplete: notion.Number(float64(notDone)),
		})
		if err != nil {
			return nil, fmt.Errorf("review: update %s: %w", today, err)
		}
		r.logger.Info("review: updated daily record",
			slog.String("day", today.String()),
			slog.Int("completed", done),
			slog.Int("total", done+notDone))
		return res, nil
	}

	title, err := r.gw.TitleColumn(ctx, r.reviewDB, r.layout.Title)
	if err != nil {
		return nil, fmt.Errorf("review: create %s: %w", today, err)
	}
	id, err := r.gw.Create(ctx, r.reviewDB, r.fresh(title, today, done, notDone))
	if err != nil {
		return nil, fmt.Errorf("review: create %s: %w", today, err)
	}
	res.PageID = id
	res.Created = true
	r.logger.Info("review: created daily record",
		slog.String("day", today.String()),
		slog.Int("completed", done),
		slog.Int("total", done+notDone))
	return res, nil
}

// Find returns the first daily or untagged record dated day, or nil.
func (r *Reconciler) Find(ctx context.Context, day calendar.Date) (*notion.Page, error) {
	pages, err := r.gw.QueryByDate(ctx, r.reviewDB, r.layout.Date, day)
	if err != nil {
		return nil, fmt.Errorf("review: query reviews %s: %w", day, err)
	}
	for i := range pages {
		if r.layout.IsDailyLabel(pages[i].Get(r.layout.Type).SelectName()) {
			return &pages[i], nil
		}
	}
	return nil, nil
}

// fresh builds a new daily record. title is the database's own title
// column, which may differ from the layout's.
func (r *Reconciler) fresh(title string, day calendar.Date, done, notDone int) notion.Properties {
	l := r.layout
	return notion.Properties{
		title:        notion.Title("Daily review " + day.String()),
		l.Date:       notion.On(day),
		l.Completed:  notion.Number(float64(done)),
		l.Incomplete: notion.Number(float64(notDone)),
		l.Summary:    notion.Text(SummaryPrompt),
		l.Difficulty: notion.Text(DifficultyPrompt),
		l.Solution:   notion.Text(SolutionPrompt),
		l.Type:       notion.Option(l.Labels.Daily),
	}
}

// Columns returns the column set a review database needs under layout l.
func Columns(l models.ReviewLayout) map[string]notion.PropertySchema {
	return map[string]notion.PropertySchema{
		l.Title:      notion.TitleColumn(),
		l.Date:       notion.DateColumn(),
		l.Completed:  notion.NumberColumn(),
		l.Incomplete: notion.NumberColumn(),
		l.Difficulty: notion.RichTextColumn(),
		l.Solution:   notion.RichTextColumn(),
		l.Summary:    notion.RichTextColumn(),
		l.Type:       notion.SelectColumn(l.Labels.Daily, l.Labels.Weekly, l.Labels.Monthly),
	}
}

// EnsureSchema adds any review column missing from databaseID. A title
// column under another name is kept; records are written to it.
func EnsureSchema(ctx context.Context, gw *notion.Gateway, databaseID string, l models.ReviewLayout, logger *slog.Logger) error {
	added, err := gw.EnsureProperties(ctx, databaseID, Columns(l))
	if err != nil {
		return fmt.Errorf("review: ensure schema %s: %w", databaseID, err)
	}
	if title, err := gw.TitleColumn(ctx, databaseID, l.Title); err == nil && title != l.Title {
		logger.Info("review: using existing title column",
			slog.String("database", databaseID),
			slog.String("column", title))
	}
	if len(added) > 0 {
		logger.Info("review: added columns",
			slog.String("database", databaseID),
			slog.Any("columns", added))
	}
	return nil
}
