package ledger

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/starford/dayroll/internal/apperr"
	"github.com/starford/dayroll/internal/calendar"
)

// StartRun inserts a running row and returns its id.
func (db *DB) StartRun(job string, day calendar.Date) (string, error) {
	id := uuid.NewString()
	_, err := db.conn.Exec(`
		INSERT INTO runs (id, job, day, started_at, outcome)
		VALUES (?, ?, ?, ?, ?)
	`, id, job, day.String(), time.Now().UTC(), Running)
	if err != nil {
		return "", fmt.Errorf("ledger: start run: %w", err)
	}
	return id, nil
}

// FinishRun stamps a run with its outcome.
func (db *DB) FinishRun(id string, outcome Outcome, detail string) error {
	res, err := db.conn.Exec(`
		UPDATE runs SET finished_at = ?, outcome = ?, detail = ?
		WHERE id = ?
	`, time.Now().UTC(), outcome, detail, id)
	if err != nil {
		return fmt.Errorf("ledger: finish run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("ledger: finish run %s: %w", id, apperr.ErrNotFound)
	}
	return nil
}

// Succeeded reports whether job already completed successfully for day.
func (db *DB) Succeeded(job string, day calendar.Date) (bool, error) {
	var n int
	err := db.conn.QueryRow(`
		SELECT count(*) FROM runs WHERE job = ? AND day = ? AND outcome = ?
	`, job, day.String(), Succeeded).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("ledger: succeeded: %w", err)
	}
	return n > 0, nil
}

// ListRuns returns the most recent runs, newest first.
func (db *DB) ListRuns(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.conn.Query(`
		SELECT id, job, day, started_at, finished_at, outcome, detail
		FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("ledger: list runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var r Run
		var finished sql.NullTime
		if err := rows.Scan(&r.ID, &r.Job, &r.Day, &r.StartedAt, &finished, &r.Outcome, &r.Detail); err != nil {
			return nil, fmt.Errorf("ledger: scan run: %w", err)
		}
		if finished.Valid {
			t := finished.Time
			r.FinishedAt = &t
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// HasPeriodic reports whether a periodic record of kind was created for the
// window ending on windowEnd.
func (db *DB) HasPeriodic(kind string, windowEnd calendar.Date) (bool, error) {
	var n int
	err := db.conn.QueryRow(`
		SELECT count(*) FROM periodic WHERE kind = ? AND window_end = ?
	`, kind, windowEnd.String()).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("ledger: has periodic: %w", err)
	}
	return n > 0, nil
}

// RecordPeriodic marks a window as aggregated. A second mark for the same
// window fails with apperr.ErrAlreadyExists.
func (db *DB) RecordPeriodic(kind string, windowEnd calendar.Date, pageID string) error {
	res, err := db.conn.Exec(`
		INSERT OR IGNORE INTO periodic (kind, window_end, page_id, created_at)
		VALUES (?, ?, ?, ?)
	`, kind, windowEnd.String(), pageID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("ledger: record periodic: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("ledger: record periodic %s %s: %w", kind, windowEnd, apperr.ErrAlreadyExists)
	}
	return nil
}

// SchemaChecksum returns the stored fingerprint for a database, or "".
func (db *DB) SchemaChecksum(databaseID string) (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT checksum FROM schema_fingerprints WHERE database_id = ?`, databaseID).Scan(&cs)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("ledger: schema checksum: %w", err)
	}
	return cs, nil
}

// PutSchemaChecksum stores the fingerprint for a database.
func (db *DB) PutSchemaChecksum(databaseID, checksum string) error {
	_, err := db.conn.Exec(`
		INSERT INTO schema_fingerprints (database_id, checksum, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(database_id) DO UPDATE SET
			checksum   = excluded.checksum,
			updated_at = excluded.updated_at
	`, databaseID, checksum, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("ledger: put schema checksum: %w", err)
	}
	return nil
}
