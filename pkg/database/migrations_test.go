package database

import (
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vendorpay/expenseflow/migrations"
	"go.uber.org/zap"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(Config{
		Path:         filepath.Join(t.TempDir(), "test.db"),
		MaxOpenConns: 1,
	}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

// The mains pass the embedded schema FS with dir "."; embed.FS rejects
// "./name" paths, so the runner must join cleanly.
func TestMigrator_RunEmbeddedFSFromDot(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, NewMigrator(db, zap.NewNop()).Run(migrations.FS, "."))

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count))
	assert.Greater(t, count, 0, "at least one migration must be recorded")

	var name string
	require.NoError(t, db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name='invoices'").Scan(&name))
	assert.Equal(t, "invoices", name)
}

func TestMigrator_RunIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	m := NewMigrator(db, zap.NewNop())
	require.NoError(t, m.Run(migrations.FS, "."))
	require.NoError(t, m.Run(migrations.FS, "."))

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count))

	entries, err := migrations.FS.ReadDir(".")
	require.NoError(t, err)
	sqlFiles := 0
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".sql" {
			sqlFiles++
		}
	}
	assert.Equal(t, sqlFiles, count, "re-running must not re-apply migrations")
}

func TestMigrator_AppliesInVersionOrder(t *testing.T) {
	db := newTestDB(t)
	fsys := fstest.MapFS{
		"002_add_rows.sql": {Data: []byte("INSERT INTO things (id) VALUES (1);")},
		"001_create.sql":   {Data: []byte("CREATE TABLE things (id INTEGER PRIMARY KEY);")},
	}
	require.NoError(t, NewMigrator(db, zap.NewNop()).Run(fsys, "."))

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM things").Scan(&count))
	assert.Equal(t, 1, count)
}
