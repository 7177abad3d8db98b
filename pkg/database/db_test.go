package database

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAndMigrate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "data.db")
	db, err := Open(Config{Driver: DriverPure, Path: path})
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, Migrate(db))
	require.NoError(t, Migrate(db), "migrations are idempotent")

	_, err = db.Exec(`INSERT INTO watchlist (owner, mal_id, position, title, status) VALUES ('a', 1, 0, 't', 'Watching')`)
	require.NoError(t, err)

	_, err = db.Exec(`INSERT INTO watchlist (owner, mal_id, position, title, status) VALUES ('a', 1, 1, 't', 'Watching')`)
	assert.Error(t, err, "owner and mal_id are unique")

	_, err = db.Exec(`INSERT INTO watchlist (owner, mal_id, position, title, status, personal_rating) VALUES ('a', 2, 1, 't', 'Watching', 0)`)
	assert.Error(t, err, "rating check constraint")
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open(Config{Driver: "postgres", Path: filepath.Join(t.TempDir(), "x.db")})
	assert.Error(t, err)
}

func TestDefaultConfigEnv(t *testing.T) {
	t.Setenv("ANIMEHUB_DB_DRIVER", DriverPure)
	t.Setenv("ANIMEHUB_DB_PATH", "/var/lib/animehub.db")
	assert.Equal(t, Config{Driver: DriverPure, Path: "/var/lib/animehub.db"}, DefaultConfig())
}
