package watchlist

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"animehub/pkg/models"
)

func intPtr(n int) *int                                  { return &n }
func strPtr(s string) *string                            { return &s }
func floatPtr(f float64) *float64                        { return &f }
func statusPtr(s models.WatchStatus) *models.WatchStatus { return &s }

// memBackend is an in-memory SaveFunc/LoadFunc pair that records saves and
// can be told to fail.
type memBackend struct {
	mu    sync.Mutex
	saved []models.WatchlistEntry
	saves int
	fail  error
}

func (m *memBackend) load(context.Context) ([]models.WatchlistEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.WatchlistEntry, len(m.saved))
	copy(out, m.saved)
	return out, nil
}

func (m *memBackend) save(_ context.Context, entries []models.WatchlistEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.saves++
	m.saved = entries
	return nil
}

func openMem(t *testing.T) (*Store, *memBackend) {
	t.Helper()
	mem := &memBackend{}
	s, err := Open(context.Background(), mem.load, mem.save)
	require.NoError(t, err)
	return s, mem
}

func TestAddTwice(t *testing.T) {
	ctx := context.Background()
	s, mem := openMem(t)

	res, err := s.Add(ctx, 5, "Cowboy Bebop: The Movie")
	require.NoError(t, err)
	assert.Equal(t, Added, res)

	res, err = s.Add(ctx, 5, "Something else")
	require.NoError(t, err)
	assert.Equal(t, AlreadyPresent, res)

	require.Equal(t, 1, s.Len())
	got, ok := s.Get(5)
	require.True(t, ok)
	assert.Equal(t, models.WatchlistEntry{
		CatalogID: 5,
		Title:     "Cowboy Bebop: The Movie",
		Status:    models.StatusNotStarted,
	}, got)
	assert.Equal(t, 1, mem.saves, "already present must not write")
}

func TestAddRejectsBadKey(t *testing.T) {
	s, _ := openMem(t)
	_, err := s.Add(context.Background(), 0, "x")
	assert.ErrorIs(t, err, ErrInvalidKey)
	assert.Equal(t, 0, s.Len())
}

func TestEdit(t *testing.T) {
	ctx := context.Background()
	s, _ := openMem(t)
	_, err := s.Add(ctx, 1, "Cowboy Bebop")
	require.NoError(t, err)

	res, err := s.Edit(ctx, 1, models.WatchlistPatch{
		Status:         statusPtr(models.StatusWatching),
		PersonalRating: intPtr(9),
		Progress:       strPtr("ep 12"),
	})
	require.NoError(t, err)
	assert.Equal(t, Updated, res)

	got, _ := s.Get(1)
	assert.Equal(t, models.StatusWatching, got.Status)
	assert.Equal(t, intPtr(9), got.PersonalRating)
	assert.Equal(t, "ep 12", got.Progress)
	assert.Equal(t, "", got.Notes)

	_, err = s.Edit(ctx, 1, models.WatchlistPatch{ClearRating: true, Notes: strPtr("rewatch")})
	require.NoError(t, err)
	got, _ = s.Get(1)
	assert.Nil(t, got.PersonalRating)
	assert.Equal(t, "rewatch", got.Notes)
	assert.Equal(t, "ep 12", got.Progress)

	res, err = s.Edit(ctx, 99, models.WatchlistPatch{Notes: strPtr("x")})
	require.NoError(t, err)
	assert.Equal(t, NotFound, res)
}

func TestEditRejectsInvalidPatch(t *testing.T) {
	ctx := context.Background()
	s, _ := openMem(t)
	_, err := s.Add(ctx, 1, "Cowboy Bebop")
	require.NoError(t, err)

	for _, r := range []int{0, 11, -3} {
		_, err := s.Edit(ctx, 1, models.WatchlistPatch{PersonalRating: intPtr(r)})
		assert.ErrorIs(t, err, ErrInvalidRating, "rating %d", r)

		var verr *ValidationError
		require.True(t, errors.As(err, &verr))
		assert.Equal(t, 1, verr.CatalogID)
	}

	_, err = s.Edit(ctx, 1, models.WatchlistPatch{Status: statusPtr("Paused")})
	assert.ErrorIs(t, err, ErrInvalidStatus)

	got, _ := s.Get(1)
	assert.Nil(t, got.PersonalRating)
	assert.Equal(t, models.StatusNotStarted, got.Status)
}

func TestBulkReplaceDeduplicates(t *testing.T) {
	ctx := context.Background()
	s, mem := openMem(t)

	err := s.BulkReplace(ctx, []models.WatchlistEntry{
		{CatalogID: 1, Title: "Cowboy Bebop", Notes: "first"},
		{CatalogID: 20, Title: "Naruto", Status: models.StatusDropped},
		{CatalogID: 1, Title: "Cowboy Bebop", Status: models.StatusCompleted, Notes: "second"},
	})
	require.NoError(t, err)

	want := []models.WatchlistEntry{
		{CatalogID: 1, Title: "Cowboy Bebop", Status: models.StatusCompleted, Notes: "second"},
		{CatalogID: 20, Title: "Naruto", Status: models.StatusDropped},
	}
	if diff := cmp.Diff(want, s.Entries()); diff != "" {
		t.Errorf("Entries() mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(want, mem.saved); diff != "" {
		t.Errorf("saved mismatch (-want +got):\n%s", diff)
	}
}

func TestBulkReplaceRejectsInvalid(t *testing.T) {
	ctx := context.Background()
	s, _ := openMem(t)
	_, err := s.Add(ctx, 7, "Keep me")
	require.NoError(t, err)

	err = s.BulkReplace(ctx, []models.WatchlistEntry{
		{CatalogID: 1, Title: "ok"},
		{CatalogID: 2, Title: "bad", PersonalRating: intPtr(42)},
	})
	assert.ErrorIs(t, err, ErrInvalidRating)
	assert.Equal(t, []int{7}, catalogIDs(s.Entries()))
}

func TestRemoveAndClear(t *testing.T) {
	ctx := context.Background()
	s, _ := openMem(t)
	for _, id := range []int{1, 2, 3} {
		_, err := s.Add(ctx, id, "t")
		require.NoError(t, err)
	}

	res, err := s.Remove(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, Removed, res)
	assert.Equal(t, []int{1, 3}, catalogIDs(s.Entries()))

	res, err = s.Remove(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, NotFound, res)

	require.NoError(t, s.Clear(ctx))
	assert.Equal(t, 0, s.Len())
	assert.NotNil(t, s.Entries())
}

func TestFailedSaveLeavesStoreUnchanged(t *testing.T) {
	ctx := context.Background()
	s, mem := openMem(t)
	_, err := s.Add(ctx, 1, "Cowboy Bebop")
	require.NoError(t, err)
	before := s.Entries()

	mem.fail = errors.New("disk full")

	_, err = s.Add(ctx, 2, "Trigun")
	var perr *PersistenceError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "save", perr.Op)

	_, err = s.Edit(ctx, 1, models.WatchlistPatch{Notes: strPtr("lost")})
	require.Error(t, err)
	_, err = s.Remove(ctx, 1)
	require.Error(t, err)
	require.Error(t, s.Clear(ctx))
	require.Error(t, s.BulkReplace(ctx, nil))

	assert.Equal(t, before, s.Entries())
}

func TestEntriesReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s, _ := openMem(t)
	_, err := s.Add(ctx, 1, "Cowboy Bebop")
	require.NoError(t, err)
	_, err = s.Edit(ctx, 1, models.WatchlistPatch{PersonalRating: intPtr(8)})
	require.NoError(t, err)

	out := s.Entries()
	*out[0].PersonalRating = 1
	out[0].Title = "mutated"

	got, _ := s.Get(1)
	assert.Equal(t, "Cowboy Bebop", got.Title)
	assert.Equal(t, intPtr(8), got.PersonalRating)
}

func TestOpenDeduplicatesPersistedSet(t *testing.T) {
	mem := &memBackend{saved: []models.WatchlistEntry{
		{CatalogID: 1, Title: "a", Status: models.StatusWatching},
		{CatalogID: 1, Title: "b", Status: models.StatusDropped},
	}}
	s, err := Open(context.Background(), mem.load, mem.save)
	require.NoError(t, err)
	got, _ := s.Get(1)
	assert.Equal(t, 1, s.Len())
	assert.Equal(t, "b", got.Title)
}

func TestOpenLoadError(t *testing.T) {
	load := func(context.Context) ([]models.WatchlistEntry, error) { return nil, errors.New("boom") }
	_, err := Open(context.Background(), load, nil)
	var perr *PersistenceError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "load", perr.Op)
}

func TestEnrichKeepsOrphans(t *testing.T) {
	entries := []models.WatchlistEntry{
		{CatalogID: 1, Title: "Cowboy Bebop", Status: models.StatusCompleted, PersonalRating: intPtr(10)},
		{CatalogID: 404, Title: "Gone", Status: models.StatusWatching, PersonalRating: intPtr(6), Notes: "removed upstream", Progress: "ep 3"},
	}
	catalog := []models.CatalogEntry{
		{ID: 1, Title: "Cowboy Bebop", Type: "TV", Episodes: intPtr(26), Score: floatPtr(8.75), Genres: []string{"Action"}},
	}

	got := Enrich(entries, catalog)
	require.Len(t, got, 2)

	assert.True(t, got[0].InCatalog)
	assert.Equal(t, strPtr("TV"), got[0].Type)
	assert.Equal(t, intPtr(26), got[0].Episodes)
	assert.Equal(t, []string{"Action"}, got[0].Genres)

	orphan := got[1]
	assert.False(t, orphan.InCatalog)
	assert.Nil(t, orphan.Type)
	assert.Nil(t, orphan.Episodes)
	assert.Nil(t, orphan.Score)
	assert.Nil(t, orphan.Genres)
	assert.Equal(t, entries[1], orphan.WatchlistEntry)
}

func TestEnrichDoesNotAliasCatalog(t *testing.T) {
	catalog := []models.CatalogEntry{
		{ID: 1, Title: "Cowboy Bebop", Type: "TV", Episodes: intPtr(26), Score: floatPtr(8.75), Genres: []string{"Action", "Sci-Fi"}},
	}
	got := Enrich([]models.WatchlistEntry{{CatalogID: 1, Status: models.StatusWatching}}, catalog)
	require.Len(t, got, 1)

	*got[0].Episodes = 0
	*got[0].Score = 0
	got[0].Genres[0] = "Changed"

	assert.Equal(t, intPtr(26), catalog[0].Episodes)
	assert.Equal(t, floatPtr(8.75), catalog[0].Score)
	assert.Equal(t, []string{"Action", "Sci-Fi"}, catalog[0].Genres)
}

func TestLineEndingsNormalized(t *testing.T) {
	ctx := context.Background()
	s, mem := openMem(t)

	_, err := s.Add(ctx, 1, "Cowboy\r\nBebop")
	require.NoError(t, err)
	_, err = s.Edit(ctx, 1, models.WatchlistPatch{
		Notes:    strPtr("line one\r\nline two\rline three"),
		Progress: strPtr("ep 1\r\n"),
	})
	require.NoError(t, err)
	require.NoError(t, s.BulkReplace(ctx, append(s.Entries(), models.WatchlistEntry{
		CatalogID: 2, Title: "Naruto", Notes: "a\r\r\nb",
	})))

	want := []models.WatchlistEntry{
		{CatalogID: 1, Title: "Cowboy\nBebop", Status: models.StatusNotStarted, Notes: "line one\nline two\nline three", Progress: "ep 1\n"},
		{CatalogID: 2, Title: "Naruto", Status: models.StatusNotStarted, Notes: "a\n\nb"},
	}
	if diff := cmp.Diff(want, s.Entries()); diff != "" {
		t.Errorf("Entries() mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, want, mem.saved)
}

func TestValidate(t *testing.T) {
	err := Validate([]models.WatchlistEntry{
		{CatalogID: 1, Status: models.StatusWatching},
		{CatalogID: 1, Status: models.StatusCompleted},
		{CatalogID: 2, Status: "Paused"},
		{CatalogID: 3, Status: models.StatusDropped, PersonalRating: intPtr(0)},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicateKey)
	assert.ErrorIs(t, err, ErrInvalidStatus)
	assert.ErrorIs(t, err, ErrInvalidRating)

	assert.NoError(t, Validate([]models.WatchlistEntry{
		{CatalogID: 1, Status: models.StatusWatching},
		{CatalogID: 2, Status: models.StatusNotStarted, PersonalRating: intPtr(10)},
	}))
}

func TestConcurrentAdds(t *testing.T) {
	ctx := context.Background()
	s, _ := openMem(t)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			_, _ = s.Add(ctx, id%10+1, "t")
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 10, s.Len())
}

func catalogIDs(entries []models.WatchlistEntry) []int {
	out := make([]int, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.CatalogID)
	}
	return out
}
