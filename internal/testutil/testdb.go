// Package testutil opens migrated throwaway databases for tests.
package testutil

import (
	"database/sql"
	"testing"

	"github.com/Simplici0/watchdesk/internal/db"
	"github.com/Simplici0/watchdesk/internal/migrations"
)

// NewTestDB returns an in-memory database with every migration applied. It
// is closed when the test completes.
func NewTestDB(t *testing.T) *sql.DB {
	t.Helper()
	database, err := db.Open(":memory:")
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	if err := migrations.Up(database); err != nil {
		t.Fatalf("migrate test database: %v", err)
	}
	return database
}
