// Package aggregate rolls a window of daily reviews up into one weekly or
// monthly review record.
package aggregate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/starford/dayroll/internal/apperr"
	"github.com/starford/dayroll/internal/calendar"
	"github.com/starford/dayroll/internal/models"
	"github.com/starford/dayroll/internal/notion"
	"github.com/starford/dayroll/internal/summarize"
)

const (
	// Unavailable replaces the narrative when the summarizer is off or fails.
	Unavailable = "(AI summary unavailable)"
	// SolutionPrefix starts the solution text of generated records.
	SolutionPrefix = "(auto-summary)\n"
	DefaultTopN    = 5
)

// Totals are the figures computed over a window.
type Totals struct {
	Records        int       `json:"records"`
	TotalCompleted int       `json:"total_completed"`
	TotalAll       int       `json:"total_all"`
	Average        float64   `json:"average_completed_per_day"`
	Keywords       []Keyword `json:"keywords"`
}

// TotalIncomplete is TotalAll minus TotalCompleted.
func (t Totals) TotalIncomplete() int { return t.TotalAll - t.TotalCompleted }

// Summary is the outcome of one aggregation.
type Summary struct {
	Kind      models.ReviewKind `json:"kind"`
	Window    calendar.Window   `json:"-"`
	Totals    Totals            `json:"totals"`
	Narrative string            `json:"narrative"`
	PageID    string            `json:"page_id"`
}

// Options tune keyword extraction.
type Options struct {
	TopN            int
	FilterStopwords bool
}

// Aggregator reads daily records from one database and writes periodic
// records to another. Both may be the same database.
type Aggregator struct {
	gw         *notion.Gateway
	dailyDB    string
	cycleDB    string
	layout     models.ReviewLayout
	summarizer summarize.Summarizer
	opts       Options
	logger     *slog.Logger
}

// New returns an aggregator. A nil summarizer behaves as summarize.Disabled.
func New(gw *notion.Gateway, dailyDB, cycleDB string, layout models.ReviewLayout, s summarize.Summarizer, opts Options, logger *slog.Logger) *Aggregator {
	if s == nil {
		s = summarize.Disabled{}
	}
	if opts.TopN <= 0 {
		opts.TopN = DefaultTopN
	}
	return &Aggregator{
		gw:         gw,
		dailyDB:    dailyDB,
		cycleDB:    cycleDB,
		layout:     layout,
		summarizer: s,
		opts:       opts,
		logger:     logger,
	}
}

// Compute derives totals from review pages. Pages whose type is neither
// daily nor empty are ignored.
func Compute(pages []notion.Page, l models.ReviewLayout, opts Options) Totals {
	var t Totals
	c := NewCounter(opts.FilterStopwords)
	for _, p := range pages {
		if !l.IsDailyLabel(p.Get(l.Type).SelectName()) {
			continue
		}
		done := p.Get(l.Completed).Int()
		t.Records++
		t.TotalCompleted += done
		t.TotalAll += done + p.Get(l.Incomplete).Int()
		c.Add(p.Get(l.Difficulty).PlainText())
	}
	if t.Records > 0 {
		t.Average = math.Round(float64(t.TotalCompleted)/float64(t.Records)*100) / 100
	}
	topN := opts.TopN
	if topN <= 0 {
		topN = DefaultTopN
	}
	t.Keywords = c.Top(topN)
	return t
}

// Aggregate summarizes w and creates one periodic record of kind. It always
// creates; callers guard against a second call for the same window.
func (a *Aggregator) Aggregate(ctx context.Context, kind models.ReviewKind, w calendar.Window) (*Summary, error) {
	if kind != models.Weekly && kind != models.Monthly {
		return nil, fmt.Errorf("aggregate: unsupported kind %q", kind)
	}
	pages, err := a.gw.QueryByDateRange(ctx, a.dailyDB, a.layout.Date, w)
	if err != nil {
		return nil, fmt.Errorf("aggregate: query %s: %w", w, err)
	}
	sum := &Summary{Kind: kind, Window: w, Totals: Compute(pages, a.layout, a.opts)}
	sum.Narrative = a.narrate(ctx, kind, w, sum.Totals)

	title, err := a.gw.TitleColumn(ctx, a.cycleDB, a.layout.Title)
	if err != nil {
		return nil, fmt.Errorf("aggregate: create %s review %s: %w", kind, w.End, err)
	}
	id, err := a.gw.Create(ctx, a.cycleDB, a.record(title, sum))
	if err != nil {
		return nil, fmt.Errorf("aggregate: create %s review %s: %w", kind, w.End, err)
	}
	sum.PageID = id
	a.logger.Info("aggregate: created periodic record",
		slog.String("kind", string(kind)),
		slog.String("window", w.String()),
		slog.Int("records", sum.Totals.Records),
		slog.Int("completed", sum.Totals.TotalCompleted))
	return sum, nil
}

func (a *Aggregator) narrate(ctx context.Context, kind models.ReviewKind, w calendar.Window, t Totals) string {
	text, err := a.summarizer.Summarize(ctx, Prompt(kind, w, t))
	switch {
	case errors.Is(err, apperr.ErrSummarizerDisabled):
		a.logger.Info("aggregate: summarizer disabled")
		return Unavailable
	case err != nil:
		a.logger.Warn("aggregate: summarizer failed", slog.String("error", err.Error()))
		return Unavailable
	case strings.TrimSpace(text) == "":
		return Unavailable
	}
	return text
}

func (a *Aggregator) record(title string, s *Summary) notion.Properties {
	l := a.layout
	return notion.Properties{
		title:        notion.Title(Title(s.Kind, s.Window.End)),
		l.Date:       notion.On(s.Window.End),
		l.Completed:  notion.Number(float64(s.Totals.TotalCompleted)),
		l.Incomplete: notion.Number(float64(s.Totals.TotalIncomplete())),
		l.Difficulty: notion.Text(FormatKeywords(s.Totals.Keywords)),
		l.Solution:   notion.Text(SolutionPrefix + s.Narrative),
		l.Summary:    notion.Text(s.Narrative),
		l.Type:       notion.Option(l.Label(s.Kind)),
	}
}

// Title names the periodic record for kind ending on end.
func Title(kind models.ReviewKind, end calendar.Date) string {
	if kind == models.Monthly {
		return "Monthly review " + end.String()
	}
	return "Weekly review " + end.String()
}

// Prompt builds the summarizer request for a window.
func Prompt(kind models.ReviewKind, w calendar.Window, t Totals) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write a %s review.\n", kind)
	fmt.Fprintf(&b, "Period: %s to %s\n", w.Start, w.End)
	fmt.Fprintf(&b, "Days recorded: %d, tasks completed: %d, tasks total: %d, average completed per day: %.2f\n",
		t.Records, t.TotalCompleted, t.TotalAll, t.Average)
	fmt.Fprintf(&b, "Recurring difficulties: %s\n", FormatKeywords(t.Keywords))
	b.WriteString("Reply with: 1) key conclusions 2) improvement suggestions 3) a closing summary of one or two paragraphs.")
	return b.String()
}
