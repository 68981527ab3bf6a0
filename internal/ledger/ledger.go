package ledger

import (
	"time"

	"github.com/starford/dayroll/internal/calendar"
)

// Ledger records what the daemon has done. Consumers depend on this
// interface rather than *DB.
type Ledger interface {
	StartRun(job string, day calendar.Date) (string, error)
	FinishRun(id string, outcome Outcome, detail string) error
	Succeeded(job string, day calendar.Date) (bool, error)
	ListRuns(limit int) ([]Run, error)
	HasPeriodic(kind string, windowEnd calendar.Date) (bool, error)
	RecordPeriodic(kind string, windowEnd calendar.Date, pageID string) error
	SchemaChecksum(databaseID string) (string, error)
	PutSchemaChecksum(databaseID, checksum string) error
	Close() error
}

// Verify *DB satisfies Ledger at compile time.
var _ Ledger = (*DB)(nil)

// Outcome is the final state of a run.
type Outcome string

const (
	Running   Outcome = "running"
	Succeeded Outcome = "succeeded"
	Failed    Outcome = "failed"
)

// Run is a row of the runs table.
type Run struct {
	ID         string     `json:"id"`
	Job        string     `json:"job"`
	Day        string     `json:"day"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Outcome    Outcome    `json:"outcome"`
	Detail     string     `json:"detail,omitempty"`
}
