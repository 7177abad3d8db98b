package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"animehub/internal/watchlist"
)

const testCatalog = `Mal ID,Title,Type,Source,Score,Episodes,Genres,Studios
1,Cowboy Bebop,TV,Original,8.75,26,"Action, Sci-Fi",Sunrise
5,Cowboy Bebop: The Movie,Movie,Original,8.38,1,Action,Bones
20,Naruto,TV,Manga,7.91,220,"Action, Adventure",Pierrot
21,One Piece,TV,Manga,8.69,Unknown,"Action, Adventure, Comedy",Toei Animation
`

type cliEnv struct {
	catalog   string
	watchlist string
}

func newCLIEnv(t *testing.T) cliEnv {
	t.Helper()
	dir := t.TempDir()
	env := cliEnv{
		catalog:   filepath.Join(dir, "anime.csv"),
		watchlist: filepath.Join(dir, "watchlist.csv"),
	}
	require.NoError(t, os.WriteFile(env.catalog, []byte(testCatalog), 0o644))
	return env
}

func (e cliEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--catalog", e.catalog, "--watchlist", e.watchlist}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestCatalogList(t *testing.T) {
	env := newCLIEnv(t)

	out, err := env.run(t, "--json", "catalog", "list", "--type", "TV", "--max-episodes", "30")
	require.NoError(t, err)

	var body struct {
		Total int `json:"total"`
		Items []struct {
			ID int `json:"id"`
		} `json:"items"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &body))
	// unknown episode count passes the cap
	assert.Equal(t, 2, body.Total)
	assert.Equal(t, 1, body.Items[0].ID)
	assert.Equal(t, 21, body.Items[1].ID)
}

func TestCatalogStatsAndShow(t *testing.T) {
	env := newCLIEnv(t)

	out, err := env.run(t, "catalog", "stats", "--column", "genres", "--top", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "GENRES")
	assert.Contains(t, out, "Action")
	assert.NotContains(t, out, "Adventure")

	_, err = env.run(t, "catalog", "stats", "--column", "mood")
	assert.Error(t, err)

	out, err = env.run(t, "catalog", "show", "20")
	require.NoError(t, err)
	assert.Contains(t, out, "Naruto (#20)")

	_, err = env.run(t, "catalog", "show", "999")
	assert.Error(t, err)
}

func TestWatchlistLifecycle(t *testing.T) {
	env := newCLIEnv(t)

	out, err := env.run(t, "watchlist", "add", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "added: Cowboy Bebop (#1)")

	out, err = env.run(t, "watchlist", "add", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "already present")

	_, err = env.run(t, "watchlist", "add", "999")
	assert.Error(t, err)

	_, err = env.run(t, "watchlist", "edit", "1", "--status", "watching", "--rating", "9", "--progress", "ep 5")
	require.NoError(t, err)

	_, err = env.run(t, "watchlist", "edit", "1", "--rating", "11")
	assert.Error(t, err)

	out, err = env.run(t, "watchlist", "list", "--status", "watching")
	require.NoError(t, err)
	assert.Contains(t, out, "Cowboy Bebop")
	assert.Contains(t, out, "ep 5")

	raw, err := os.ReadFile(env.watchlist)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "1,Cowboy Bebop,Watching,9,,ep 5")

	out, err = env.run(t, "watchlist", "rm", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "removed")

	_, err = env.run(t, "watchlist", "clear")
	assert.Error(t, err, "clear needs --yes")
}

func TestWatchlistImportExport(t *testing.T) {
	env := newCLIEnv(t)
	in := filepath.Join(t.TempDir(), "import.csv")
	require.NoError(t, os.WriteFile(in, []byte(strings.Join([]string{
		"Mal ID,Title,Status,Personal Rating,Notes,Progress",
		"20,Naruto,Dropped,,too long,ep 135",
		"404,Gone,Completed,7,,",
		"20,Naruto,Watching,,,",
	}, "\n")), 0o644))

	_, err := env.run(t, "watchlist", "import", "--strict", in)
	assert.Error(t, err, "strict rejects the duplicate")

	out, err := env.run(t, "watchlist", "import", in)
	require.NoError(t, err)
	assert.Contains(t, out, "imported 2 entries")

	out, err = env.run(t, "watchlist", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Gone (not in catalog)")

	out, err = env.run(t, "watchlist", "export")
	require.NoError(t, err)
	assert.Equal(t, strings.Join([]string{
		"Mal ID,Title,Status,Personal Rating,Notes,Progress",
		"20,Naruto,Watching,,,",
		"404,Gone,Completed,7,,",
		"",
	}, "\n"), out)
}

func TestWatchlistImportStrictRejectsCoercedRows(t *testing.T) {
	env := newCLIEnv(t)
	in := filepath.Join(t.TempDir(), "import.csv")
	require.NoError(t, os.WriteFile(in, []byte(strings.Join([]string{
		"Mal ID,Title,Status,Personal Rating,Notes,Progress",
		"1,Cowboy Bebop,Paused,,,",
		"20,Naruto,Watching,11,,",
	}, "\n")), 0o644))

	_, err := env.run(t, "watchlist", "import", "--strict", in)
	require.Error(t, err)
	assert.ErrorIs(t, err, watchlist.ErrInvalidStatus)
	assert.ErrorIs(t, err, watchlist.ErrInvalidRating)

	out, err := env.run(t, "watchlist", "import", in)
	require.NoError(t, err)
	assert.Contains(t, out, "imported 2 entries")
}
