package catalog

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"animehub/pkg/models"
)

func floatPtr(f float64) *float64 { return &f }
func intPtr(n int) *int           { return &n }

func writeCatalog(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "anime.csv")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestParseNumber(t *testing.T) {
	tests := []struct {
		raw  string
		want *float64
	}{
		{"8.5pts", floatPtr(8.5)},
		{"N/A", nil},
		{"", nil},
		{"1,234", floatPtr(1234)},
		{" 7 ", floatPtr(7)},
		{"1.2.3", nil},
		{"-3", floatPtr(3)},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseNumber(tt.raw))
		})
	}
}

func TestParseCount(t *testing.T) {
	assert.Equal(t, intPtr(12), ParseCount("12 eps"))
	assert.Nil(t, ParseCount("12.5"))
	assert.Nil(t, ParseCount("Unknown"))
	assert.Nil(t, ParseCount("99999999999"))
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"Action", "Comedy", "Drama"}, SplitList("Action, Comedy,,Drama "))
	assert.Equal(t, []string{}, SplitList(""))
	assert.Equal(t, []string{}, SplitList(" , ,"))
}

func TestNormalizeDirtyColumns(t *testing.T) {
	table := RawTable{
		Header: []string{"Mal ID", "Title", "Score", "Genres"},
		Rows: [][]string{
			{"1", "Alpha", "8.5pts", "Action, Comedy,,Drama "},
			{"2", "Beta", "N/A", ""},
			{"3", "Gamma", "", "Slice of Life"},
		},
	}

	got, err := Normalize(table)
	require.NoError(t, err)
	require.Len(t, got, 3)

	scores := []*float64{got[0].Score, got[1].Score, got[2].Score}
	assert.Equal(t, []*float64{floatPtr(8.5), nil, nil}, scores)
	assert.Equal(t, []string{"Action", "Comedy", "Drama"}, got[0].Genres)
	assert.Equal(t, []string{}, got[1].Genres)
}

func TestNormalizeTrimsHeaders(t *testing.T) {
	table := RawTable{
		Header: []string{"\ufeff Mal ID", " Title ", "Score  ", " Genres", "\tEpisodes\t"},
		Rows:   [][]string{{"7", "Padded Headers", "8.1", "Drama, Romance", "24"}},
	}

	got, err := Normalize(table)
	require.NoError(t, err)

	want := []models.CatalogEntry{{
		ID:        7,
		Title:     "Padded Headers",
		Score:     floatPtr(8.1),
		Episodes:  intPtr(24),
		Genres:    []string{"Drama", "Romance"},
		Studios:   []string{},
		Producers: []string{},
	}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Normalize() mismatch (-want +got):\n%s", diff)
	}
}

func TestNormalizeKeys(t *testing.T) {
	t.Run("mal id column keys rows and first duplicate wins", func(t *testing.T) {
		table := RawTable{
			Header: []string{"mal_id", "title"},
			Rows: [][]string{
				{"20", "Naruto"},
				{"", "No key"},
				{"abc", "Bad key"},
				{"0", "Zero key"},
				{"20", "Naruto (dup)"},
				{"5114", "FMA: Brotherhood"},
			},
		}
		got, err := Normalize(table)
		require.NoError(t, err)

		want := []models.CatalogEntry{
			{ID: 20, Title: "Naruto", Genres: []string{}, Studios: []string{}, Producers: []string{}},
			{ID: 5114, Title: "FMA: Brotherhood", Genres: []string{}, Studios: []string{}, Producers: []string{}},
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("Normalize() mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("row order keys rows without a mal id column", func(t *testing.T) {
		table := RawTable{
			Header: []string{"\ufeffTitle", "Episodes"},
			Rows:   [][]string{{"One", "12"}, {"Two", "?"}},
		}
		got, err := Normalize(table)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, 1, got[0].ID)
		assert.Equal(t, 2, got[1].ID)
		assert.Equal(t, intPtr(12), got[0].Episodes)
		assert.Nil(t, got[1].Episodes)
	})

	t.Run("ragged rows read missing cells as empty", func(t *testing.T) {
		table := RawTable{
			Header: []string{"Title", "Type", "Score"},
			Rows:   [][]string{{"Short"}},
		}
		got, err := Normalize(table)
		require.NoError(t, err)
		assert.Equal(t, "", got[0].Type)
		assert.Nil(t, got[0].Score)
	})
}

func TestNormalizeMalformed(t *testing.T) {
	tests := []struct {
		name  string
		table RawTable
	}{
		{"missing title column", RawTable{Header: []string{"Mal ID", "Name"}, Rows: [][]string{{"1", "x"}}}},
		{"no rows", RawTable{Header: []string{"Title"}}},
		{"no usable keys", RawTable{Header: []string{"Mal ID", "Title"}, Rows: [][]string{{"", "x"}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Normalize(tt.table)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}

func TestLoadFile(t *testing.T) {
	t.Run("reads and normalizes", func(t *testing.T) {
		path := writeCatalog(t, "Mal ID,Title,Type,Score,Episodes,Genres\n"+
			"1,Cowboy Bebop,TV,8.75,26,\"Action, Sci-Fi\"\n"+
			"5,Cowboy Bebop: The Movie,Movie,8.38,1,Action\n")
		got, err := LoadFile(path)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "Cowboy Bebop", got[0].Title)
		assert.Equal(t, []string{"Action", "Sci-Fi"}, got[0].Genres)
		assert.Equal(t, floatPtr(8.38), got[1].Score)
	})

	t.Run("missing file is not found", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nope.csv")
		_, err := LoadFile(path)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.ErrorIs(t, err, os.ErrNotExist)

		var dle *DataLoadError
		require.True(t, errors.As(err, &dle))
		assert.Equal(t, path, dle.Path)
	})

	t.Run("unopenable path is malformed", func(t *testing.T) {
		// a regular file used as a directory fails with ENOTDIR
		path := filepath.Join(writeCatalog(t, "Title\nx\n"), "child.csv")
		_, err := LoadFile(path)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrMalformed)
		assert.NotErrorIs(t, err, ErrNotFound)
	})

	t.Run("empty file is malformed", func(t *testing.T) {
		_, err := LoadFile(writeCatalog(t, ""))
		assert.ErrorIs(t, err, ErrMalformed)
	})

	t.Run("normalize errors carry the path", func(t *testing.T) {
		path := writeCatalog(t, "Name\nx\n")
		_, err := LoadFile(path)
		require.ErrorIs(t, err, ErrMalformed)
		assert.True(t, strings.Contains(err.Error(), path))
	})
}
