package storage

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tableExists(t *testing.T, db *sql.DB, name string) bool {
	t.Helper()
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?`, name).Scan(&n)
	require.NoError(t, err)
	return n > 0
}

func TestOpen_FileDatabaseIsMigrated(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "session.db")

	db, err := Open(ctx, path)
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.PingContext(ctx))
	assert.True(t, tableExists(t, db, "metadata"))
	assert.True(t, tableExists(t, db, "goose_db_version"))
}

func TestOpen_MemoryDatabaseKeepsSchema(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db, err := Open(ctx, MemoryPath)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.ExecContext(ctx, `INSERT INTO metadata(key, value) VALUES ('k', 'v')`)
	require.NoError(t, err)

	var v string
	require.NoError(t, db.QueryRowContext(ctx, `SELECT value FROM metadata WHERE key='k'`).Scan(&v))
	assert.Equal(t, "v", v)
}

func TestRunMigrations_IsIdempotent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db, err := Open(ctx, filepath.Join(t.TempDir(), "session.db"))
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, RunMigrations(ctx, db))
	require.NoError(t, RunMigrations(ctx, db))
	assert.True(t, tableExists(t, db, "metadata"))
}

func TestDSN(t *testing.T) {
	assert.Equal(t, MemoryPath, DSN(MemoryPath))
	assert.Equal(t, "file:x?mode=memory&cache=shared", DSN("file:x?mode=memory&cache=shared"))
	assert.Equal(t, "file:/tmp/a.db?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", DSN("/tmp/a.db"))

	assert.True(t, IsMemory(":memory:"))
	assert.True(t, IsMemory("file:t1?mode=memory&cache=shared"))
	assert.False(t, IsMemory("/var/lib/ems/session.db"))
}
