package migrations

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/MuhammadRaffey/uol-cgpa-calc/internal/db"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrateSQLiteIsIdempotent(t *testing.T) {
	database, err := db.OpenSQLite(filepath.Join(t.TempDir(), "migrate.db"))
	require.NoError(t, err)
	t.Cleanup(database.Close)

	m, err := NewMigrator(database, zerolog.Nop())
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, m.Migrate(ctx))
	require.NoError(t, m.Migrate(ctx))

	var applied int
	require.NoError(t, database.SQL.QueryRow(`SELECT COUNT(*) FROM schema_migrations`).Scan(&applied))
	assert.Equal(t, 2, applied)

	for _, table := range []string{"users", "refresh_tokens", "cgpa_snapshots"} {
		var name string
		err := database.SQL.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&name)
		require.NoError(t, err, table)
	}
}
