// Package workflow composes the daily passes and records every run.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/starford/dayroll/internal/aggregate"
	"github.com/starford/dayroll/internal/apperr"
	"github.com/starford/dayroll/internal/calendar"
	"github.com/starford/dayroll/internal/check"
	"github.com/starford/dayroll/internal/ledger"
	"github.com/starford/dayroll/internal/models"
	"github.com/starford/dayroll/internal/notion"
	"github.com/starford/dayroll/internal/review"
	"github.com/starford/dayroll/internal/rollover"
	"github.com/starford/dayroll/internal/schema"
	"github.com/starford/dayroll/internal/sse"
	"github.com/starford/dayroll/internal/summarize"
)

// Job names recorded in the ledger.
const (
	JobRollover = "rollover"
	JobReview   = "review"
	JobStartup  = "startup"
	JobManual   = "manual"
)

// Options carry the live database ids and rules.
type Options struct {
	Databases          check.Databases
	Rules              models.StatusRules
	Layout             models.ReviewLayout
	EnsureReviewSchema bool
	Keywords           aggregate.Options
}

// Events receives run and finding notifications. *sse.Broker implements it.
type Events interface {
	RunStarted(sse.RunEvent)
	RunFinished(sse.RunEvent)
	Publish(sse.Event)
}

type noEvents struct{}

func (noEvents) RunStarted(sse.RunEvent)  {}
func (noEvents) RunFinished(sse.RunEvent) {}
func (noEvents) Publish(sse.Event)        {}

// Runner executes checks and passes against one set of databases.
type Runner struct {
	gw       *notion.Gateway
	resolver *schema.Resolver
	ledger   ledger.Ledger
	events   Events
	opts     Options
	logger   *slog.Logger

	checker    *check.Checker
	engine     *rollover.Engine
	reconciler *review.Reconciler
	aggregator *aggregate.Aggregator
}

// New builds a runner. events may be nil.
func New(gw *notion.Gateway, led ledger.Ledger, sum summarize.Summarizer, events Events, opts Options, logger *slog.Logger) (*Runner, error) {
	resolver, err := schema.NewResolver()
	if err != nil {
		return nil, err
	}
	if events == nil {
		events = noEvents{}
	}
	dbs := opts.Databases
	r := &Runner{
		gw:       gw,
		resolver: resolver,
		ledger:   led,
		events:   events,
		opts:     opts,
		logger:   logger,
		checker:  check.New(gw, resolver, dbs, opts.Layout, opts.Rules, logger),
		engine:   rollover.New(gw, dbs.Task, opts.Rules, logger),
	}
	if dbs.DailyReview == "" && dbs.CycleReview != "" {
		logger.Warn("workflow: cycle review database set without a daily review database, periodic reviews are off")
	}
	if dbs.DailyReview != "" {
		r.reconciler = review.New(gw, dbs.DailyReview, dbs.Task, opts.Layout, opts.Rules, logger)
		if dbs.CycleReview != "" {
			r.aggregator = aggregate.New(gw, dbs.DailyReview, dbs.CycleReview, opts.Layout, sum, opts.Keywords, logger)
		}
	}
	return r, nil
}

// Check runs the consistency checker and publishes each finding.
func (r *Runner) Check(ctx context.Context, today calendar.Date) *check.Report {
	rep := r.checker.Check(ctx, today)
	for _, f := range rep.Findings {
		r.events.Publish(sse.Event{Type: sse.TypeCheckFinding, Data: f})
	}
	return rep
}

// ResolveSchema fetches the task schema, logs a change since the previous
// pass and resolves roles.
func (r *Runner) ResolveSchema(ctx context.Context) (schema.Mapping, error) {
	db := r.opts.Databases.Task
	s, err := r.gw.FetchSchema(ctx, db)
	if err != nil {
		return schema.Mapping{}, err
	}
	fp := schema.Fingerprint(s)
	prev, err := r.ledger.SchemaChecksum(db)
	switch {
	case err != nil:
		r.logger.Warn("schema: read fingerprint failed", slog.String("error", err.Error()))
	case prev != fp:
		if prev != "" {
			r.logger.Warn("schema: task database changed", slog.String("database", db))
		}
		if err := r.ledger.PutSchemaChecksum(db, fp); err != nil {
			r.logger.Warn("schema: store fingerprint failed", slog.String("error", err.Error()))
		}
	}
	m, err := r.resolver.Resolve(s)
	if err != nil {
		r.logger.Error("schema: unresolved", slog.String("database", db), slog.String("error", err.Error()))
		return m, err
	}
	return m, nil
}

// Rollover resolves the schema and rolls yesterday's unfinished tasks.
func (r *Runner) Rollover(ctx context.Context, today calendar.Date) (*rollover.Result, error) {
	m, err := r.ResolveSchema(ctx)
	if err != nil {
		return nil, err
	}
	return r.engine.Run(ctx, m, today)
}

// Scope selects the steps of a full pass.
type Scope int

const (
	// ScopeDaily runs the rollover and the daily review only.
	ScopeDaily Scope = iota
	// ScopeReview also aggregates weekly and monthly reviews on window
	// boundaries. Only the scheduled review pass uses it, so a periodic
	// record is never built from a partial day.
	ScopeReview
)

// PassResult is the outcome of a full pass.
type PassResult struct {
	Day      string             `json:"day"`
	Mapping  schema.Mapping     `json:"mapping"`
	Rollover *rollover.Result   `json:"rollover,omitempty"`
	Review   *review.Result     `json:"review,omitempty"`
	Weekly   *aggregate.Summary `json:"weekly,omitempty"`
	Monthly  *aggregate.Summary `json:"monthly,omitempty"`
}

// Detail is a one-line description for the ledger.
func (p *PassResult) Detail() string {
	s := "day " + p.Day
	if p.Rollover != nil {
		s += fmt.Sprintf(", rolled %d, skipped %d, failed %d", len(p.Rollover.Rolled), len(p.Rollover.Skipped), len(p.Rollover.Failed))
	}
	if p.Review != nil {
		s += fmt.Sprintf(", review %d/%d", p.Review.Completed, p.Review.Completed+p.Review.Incomplete)
	}
	if p.Weekly != nil {
		s += ", weekly created"
	}
	if p.Monthly != nil {
		s += ", monthly created"
	}
	return s
}

// FullPass runs rollover, daily reconciliation and, with ScopeReview on
// window boundaries, periodic aggregation. An unresolved schema aborts the
// pass. Other step failures are logged and joined into the returned error
// while later steps still run.
func (r *Runner) FullPass(ctx context.Context, today calendar.Date, scope Scope) (*PassResult, error) {
	res := &PassResult{Day: today.String()}
	dbs := r.opts.Databases

	if r.opts.EnsureReviewSchema {
		for _, db := range uniq(dbs.DailyReview, dbs.CycleReview) {
			if err := review.EnsureSchema(ctx, r.gw, db, r.opts.Layout, r.logger); err != nil {
				r.logger.Warn("workflow: ensure review schema failed", slog.String("error", err.Error()))
			}
		}
	}

	m, err := r.ResolveSchema(ctx)
	if err != nil {
		return res, err
	}
	res.Mapping = m

	var errs []error
	if res.Rollover, err = r.engine.Run(ctx, m, today); err != nil {
		errs = append(errs, err)
	}

	if r.reconciler == nil {
		r.logger.Warn("workflow: daily review database not configured")
	} else if res.Review, err = r.reconciler.Reconcile(ctx, m, today); err != nil {
		errs = append(errs, err)
	}

	boundary := today.IsWeekEnd() || today.IsMonthEnd()
	switch {
	case !boundary:
	case scope != ScopeReview:
		r.logger.Info("workflow: periodic reviews left to the scheduled review pass",
			slog.String("day", today.String()))
	case r.aggregator == nil:
		if dbs.CycleReview != "" {
			r.logger.Warn("workflow: periodic reviews need the daily review database",
				slog.String("day", today.String()))
		}
	default:
		if today.IsWeekEnd() {
			if res.Weekly, err = r.periodic(ctx, models.Weekly, calendar.WeekEnding(today)); err != nil {
				errs = append(errs, err)
			}
		}
		if today.IsMonthEnd() {
			if res.Monthly, err = r.periodic(ctx, models.Monthly, calendar.MonthThrough(today)); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return res, errors.Join(errs...)
}

// periodic aggregates w unless the ledger shows it was already done.
func (r *Runner) periodic(ctx context.Context, kind models.ReviewKind, w calendar.Window) (*aggregate.Summary, error) {
	done, err := r.ledger.HasPeriodic(string(kind), w.End)
	if err != nil {
		return nil, err
	}
	if done {
		r.logger.Info("workflow: periodic review already created",
			slog.String("kind", string(kind)),
			slog.String("window", w.String()))
		return nil, nil
	}
	sum, err := r.aggregator.Aggregate(ctx, kind, w)
	if err != nil {
		return nil, err
	}
	if err := r.ledger.RecordPeriodic(string(kind), w.End, sum.PageID); err != nil && !errors.Is(err, apperr.ErrAlreadyExists) {
		r.logger.Warn("workflow: record periodic marker failed", slog.String("error", err.Error()))
	}
	return sum, nil
}

// RolloverPass is the rollover trigger: check, then rollover.
func (r *Runner) RolloverPass(ctx context.Context, job string, today calendar.Date) error {
	return r.record(job, today, func() (string, error) {
		r.Check(ctx, today)
		res, err := r.Rollover(ctx, today)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("rolled %d, skipped %d, failed %d", len(res.Rolled), len(res.Skipped), len(res.Failed)), nil
	})
}

// ReviewPass is the review trigger: check, then the full pass. Periodic
// aggregation runs only for JobReview.
func (r *Runner) ReviewPass(ctx context.Context, job string, today calendar.Date) error {
	scope := ScopeDaily
	if job == JobReview {
		scope = ScopeReview
	}
	return r.record(job, today, func() (string, error) {
		r.Check(ctx, today)
		res, err := r.FullPass(ctx, today, scope)
		return res.Detail(), err
	})
}

func (r *Runner) record(job string, day calendar.Date, fn func() (string, error)) error {
	id, err := r.ledger.StartRun(job, day)
	if err != nil {
		r.logger.Warn("workflow: start run failed", slog.String("error", err.Error()))
	}
	ev := sse.RunEvent{ID: id, Job: job, Day: day.String()}
	r.events.RunStarted(ev)
	r.logger.Info("workflow: run started", slog.String("job", job), slog.String("day", ev.Day))

	detail, runErr := fn()
	outcome := ledger.Succeeded
	if runErr != nil {
		outcome = ledger.Failed
		if detail != "" {
			detail += "; "
		}
		detail += runErr.Error()
	}
	if id != "" {
		if err := r.ledger.FinishRun(id, outcome, detail); err != nil {
			r.logger.Warn("workflow: finish run failed", slog.String("error", err.Error()))
		}
	}
	ev.Outcome = string(outcome)
	ev.Detail = detail
	r.events.RunFinished(ev)
	r.logger.Info("workflow: run finished",
		slog.String("job", job),
		slog.String("outcome", ev.Outcome),
		slog.String("detail", detail))
	return runErr
}

func uniq(ids ...string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, id := range ids {
		if id != "" && !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
