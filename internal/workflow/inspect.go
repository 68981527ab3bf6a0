package workflow

import (
	"context"
	"errors"

	"github.com/starford/dayroll/internal/calendar"
	"github.com/starford/dayroll/internal/check"
	"github.com/starford/dayroll/internal/ledger"
	"github.com/starford/dayroll/internal/notion"
	"github.com/starford/dayroll/internal/schema"
)

// SchemaReport describes the task database and how its columns resolved.
type SchemaReport struct {
	DatabaseID  string            `json:"database_id"`
	Fingerprint string            `json:"fingerprint"`
	Properties  []notion.Property `json:"properties"`
	Mapping     schema.Mapping    `json:"mapping"`
	Missing     []schema.Role     `json:"missing,omitempty"`
}

// Inspector answers read-only questions for the ops surfaces. Nothing it
// does writes to the document databases.
type Inspector struct {
	runner *Runner
	ledger ledger.Ledger
	clock  calendar.Clock
}

// NewInspector returns an inspector over r.
func NewInspector(r *Runner, led ledger.Ledger, clock calendar.Clock) *Inspector {
	return &Inspector{runner: r, ledger: led, clock: clock}
}

// Runs lists the latest recorded runs.
func (i *Inspector) Runs(limit int) ([]ledger.Run, error) {
	return i.ledger.ListRuns(limit)
}

// CheckNow runs the consistency checker for today.
func (i *Inspector) CheckNow(ctx context.Context) *check.Report {
	return i.runner.Check(ctx, calendar.Today(i.clock))
}

// Schema fetches and resolves the task schema. An unresolved mapping is
// reported through Missing rather than as an error.
func (i *Inspector) Schema(ctx context.Context) (*SchemaReport, error) {
	db := i.runner.opts.Databases.Task
	s, err := i.runner.gw.FetchSchema(ctx, db)
	if err != nil {
		return nil, err
	}
	m, err := i.runner.resolver.Resolve(s)
	var unresolved *schema.UnresolvedError
	if err != nil && !errors.As(err, &unresolved) {
		return nil, err
	}
	rep := &SchemaReport{
		DatabaseID:  db,
		Fingerprint: schema.Fingerprint(s),
		Properties:  s.Properties,
		Mapping:     m,
	}
	if unresolved != nil {
		rep.Missing = unresolved.Missing
	}
	return rep, nil
}
