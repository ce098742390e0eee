package db

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openScratch(t *testing.T) *sql.DB {
	t.Helper()
	database, err := Open(memoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	_, err = database.Exec(`CREATE TABLE scratch (id TEXT PRIMARY KEY, val TEXT)`)
	require.NoError(t, err)
	return database
}

func count(t *testing.T, database *sql.DB) int {
	t.Helper()
	var n int
	require.NoError(t, database.QueryRow(`SELECT COUNT(*) FROM scratch`).Scan(&n))
	return n
}

func TestOpen_FileDatabaseWithForeignKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "watchdesk.db")
	database, err := Open(path)
	require.NoError(t, err)
	defer database.Close()

	var mode string
	require.NoError(t, database.QueryRow(`PRAGMA journal_mode`).Scan(&mode))
	assert.Equal(t, "wal", mode)
}

func TestWithinTx_Commits(t *testing.T) {
	database := openScratch(t)
	runner := NewTxRunner(database)

	err := runner.WithinTx(context.Background(), func(ctx context.Context, tx DBTX) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO scratch (id, val) VALUES (?, ?)`, "k1", "v1")
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, 1, count(t, database))
}

func TestWithinTx_RollsBackOnError(t *testing.T) {
	database := openScratch(t)
	runner := NewTxRunner(database)
	boom := errors.New("boom")

	err := runner.WithinTx(context.Background(), func(ctx context.Context, tx DBTX) error {
		if _, err := tx.ExecContext(ctx, `INSERT INTO scratch (id, val) VALUES (?, ?)`, "k2", "v2"); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, count(t, database))
}

func TestWithinTx_RollsBackOnPanic(t *testing.T) {
	database := openScratch(t)
	runner := NewTxRunner(database)

	assert.Panics(t, func() {
		_ = runner.WithinTx(context.Background(), func(ctx context.Context, tx DBTX) error {
			_, _ = tx.ExecContext(ctx, `INSERT INTO scratch (id, val) VALUES (?, ?)`, "k3", "v3")
			panic("boom")
		})
	})
	assert.Equal(t, 0, count(t, database))
}
