package testutil

import (
	"path/filepath"
	"testing"

	"github.com/starford/dayroll/internal/ledger"
)

// TestLedger opens a ledger in a temporary directory, closed on cleanup.
func TestLedger(t *testing.T) *ledger.DB {
	t.Helper()
	db, err := ledger.Open(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("ledger.Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}
