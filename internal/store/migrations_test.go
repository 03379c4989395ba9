package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrations_SchemaHasOnlyUsedIndexes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	s, err := NewSQLiteStore(path)
	require.NoError(t, err)

	var indexes []string
	require.NoError(t, s.db.Select(&indexes,
		"SELECT name FROM sqlite_master WHERE type='index' AND tbl_name='kv' AND name NOT LIKE 'sqlite_autoindex%'"))
	assert.Empty(t, indexes)

	var version int
	require.NoError(t, s.db.Get(&version, "SELECT MAX(version) FROM schema_version"))
	assert.Equal(t, migrations[len(migrations)-1].version, version)
	require.NoError(t, s.Close())

	// Reopening applies nothing twice.
	s, err = NewSQLiteStore(path)
	require.NoError(t, err)
	defer s.Close()

	var rows int
	require.NoError(t, s.db.Get(&rows, "SELECT COUNT(*) FROM schema_version"))
	assert.Equal(t, len(migrations), rows)
}
