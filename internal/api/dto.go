package api

import (
	"github.com/starford/dayroll/internal/check"
	"github.com/starford/dayroll/internal/ledger"
	"github.com/starford/dayroll/internal/workflow"
)

// Run is one ledger entry (aliased from the ledger layer).
type Run = ledger.Run

// RunListResponse wraps recent runs.
type RunListResponse struct {
	Runs []Run `json:"runs" validate:"required"`
}

// CheckReport is the consistency report (aliased from the check layer).
type CheckReport = check.Report

// SchemaReport is the resolved task schema (aliased from the workflow layer).
type SchemaReport = workflow.SchemaReport
