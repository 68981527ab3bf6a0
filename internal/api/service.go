package api

import (
	"context"

	"github.com/starford/dayroll/internal/check"
	"github.com/starford/dayroll/internal/ledger"
	"github.com/starford/dayroll/internal/workflow"
)

// Service is the read-only surface the API exposes.
// *workflow.Inspector implements it.
type Service interface {
	Runs(limit int) ([]ledger.Run, error)
	CheckNow(ctx context.Context) *check.Report
	Schema(ctx context.Context) (*workflow.SchemaReport, error)
}

var _ Service = (*workflow.Inspector)(nil)
