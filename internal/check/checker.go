// Package check verifies, without writing anything, that the daily passes
// left the databases in the expected state.
package check

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/starford/dayroll/internal/calendar"
	"github.com/starford/dayroll/internal/models"
	"github.com/starford/dayroll/internal/notion"
	"github.com/starford/dayroll/internal/schema"
)

// Code classifies a finding.
type Code string

const (
	RolloverGap          Code = "rollover-gap"
	DailyReviewMissing   Code = "daily-review-missing"
	WeeklyReviewMissing  Code = "weekly-review-missing"
	MonthlyReviewMissing Code = "monthly-review-missing"
	CheckError           Code = "check-error"
)

// Finding is one problem the checker noticed.
type Finding struct {
	Code    Code     `json:"code"`
	Message string   `json:"message"`
	Titles  []string `json:"titles,omitempty"`
}

// Report collects the findings of one check.
type Report struct {
	Day      string    `json:"day"`
	Findings []Finding `json:"findings"`
}

// OK reports whether nothing was found.
func (r *Report) OK() bool { return len(r.Findings) == 0 }

// Has reports whether a finding with code c exists.
func (r *Report) Has(c Code) bool {
	for _, f := range r.Findings {
		if f.Code == c {
			return true
		}
	}
	return false
}

func (r *Report) add(f Finding) { r.Findings = append(r.Findings, f) }

// Databases are the ids the checker inspects. Review ids may be empty.
type Databases struct {
	Task        string
	DailyReview string
	CycleReview string
}

// Checker runs the four independent checks.
type Checker struct {
	gw       *notion.Gateway
	resolver *schema.Resolver
	dbs      Databases
	layout   models.ReviewLayout
	rules    models.StatusRules
	logger   *slog.Logger
}

// New returns a checker.
func New(gw *notion.Gateway, resolver *schema.Resolver, dbs Databases, layout models.ReviewLayout, rules models.StatusRules, logger *slog.Logger) *Checker {
	return &Checker{gw: gw, resolver: resolver, dbs: dbs, layout: layout, rules: rules, logger: logger}
}

// Check inspects the state for today. Every failure becomes a finding; the
// remaining checks still run.
func (c *Checker) Check(ctx context.Context, today calendar.Date) *Report {
	rep := &Report{Day: today.String(), Findings: []Finding{}}

	c.checkRollover(ctx, today, rep)

	if c.dbs.DailyReview == "" {
		c.logger.Warn("check: daily review database not configured")
	} else {
		c.checkReview(ctx, c.dbs.DailyReview, models.Daily, today, DailyReviewMissing, rep)
	}
	if c.dbs.CycleReview != "" {
		if today.IsWeekEnd() {
			c.checkReview(ctx, c.dbs.CycleReview, models.Weekly, today, WeeklyReviewMissing, rep)
		}
		if today.IsMonthEnd() {
			c.checkReview(ctx, c.dbs.CycleReview, models.Monthly, today, MonthlyReviewMissing, rep)
		}
	}

	for _, f := range rep.Findings {
		c.logger.Warn("check: "+string(f.Code),
			slog.String("day", rep.Day),
			slog.String("message", f.Message),
			slog.Any("titles", f.Titles))
	}
	if rep.OK() {
		c.logger.Info("check: all clear", slog.String("day", rep.Day))
	}
	return rep
}

func (c *Checker) checkRollover(ctx context.Context, today calendar.Date, rep *Report) {
	s, err := c.gw.FetchSchema(ctx, c.dbs.Task)
	if err != nil {
		rep.add(errorFinding("read task schema", err))
		return
	}
	m, err := c.resolver.Resolve(s)
	if err != nil {
		rep.add(errorFinding("resolve task schema", err))
		return
	}
	yesterday := today.AddDays(-1)
	prev, err := c.gw.QueryByDate(ctx, c.dbs.Task, m.Date.Name, yesterday)
	if err != nil {
		rep.add(errorFinding("query yesterday's tasks", err))
		return
	}
	unfinished := models.Unfinished(models.DecodeTasks(prev, m), c.rules)
	if len(unfinished) == 0 {
		return
	}
	cur, err := c.gw.QueryByDate(ctx, c.dbs.Task, m.Date.Name, today)
	if err != nil {
		rep.add(errorFinding("query today's tasks", err))
		return
	}
	if gap := Gap(unfinished, models.Titles(models.DecodeTasks(cur, m))); len(gap) > 0 {
		rep.add(Finding{
			Code:    RolloverGap,
			Message: fmt.Sprintf("%d unfinished task(s) from %s not rolled over", len(gap), yesterday),
			Titles:  gap,
		})
	}
}

// Gap returns the titles of unfinished absent from present, in order.
func Gap(unfinished []string, present map[string]bool) []string {
	var out []string
	for _, t := range unfinished {
		if !present[t] {
			out = append(out, t)
		}
	}
	return out
}

func (c *Checker) checkReview(ctx context.Context, db string, kind models.ReviewKind, day calendar.Date, code Code, rep *Report) {
	pages, err := c.gw.QueryByDate(ctx, db, c.layout.Date, day)
	if err != nil {
		rep.add(errorFinding(fmt.Sprintf("query %s reviews", kind), err))
		return
	}
	for _, p := range pages {
		label := p.Get(c.layout.Type).SelectName()
		if (kind == models.Daily && c.layout.IsDailyLabel(label)) || label == c.layout.Label(kind) {
			return
		}
	}
	rep.add(Finding{Code: code, Message: fmt.Sprintf("no %s review dated %s", kind, day)})
}

func errorFinding(op string, err error) Finding {
	return Finding{Code: CheckError, Message: op + ": " + err.Error()}
}
