package watchlist

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"

	"animehub/pkg/models"
)

// LoadFunc returns the last persisted entry set.
type LoadFunc func(ctx context.Context) ([]models.WatchlistEntry, error)

// SaveFunc persists the full entry set, replacing whatever was stored.
type SaveFunc func(ctx context.Context, entries []models.WatchlistEntry) error

// Store holds one watchlist keyed by catalog id. Every mutation computes
// the next entry set, saves all of it, and only then swaps it in, so a
// failed save leaves the store as it was. Mutations are serialized.
type Store struct {
	mu      sync.Mutex
	save    SaveFunc
	entries []models.WatchlistEntry
}

// Open loads the persisted entries and returns a store writing through save.
// Duplicate ids in the persisted set are collapsed the same way BulkReplace
// collapses them.
func Open(ctx context.Context, load LoadFunc, save SaveFunc) (*Store, error) {
	entries, err := load(ctx)
	if err != nil {
		return nil, &PersistenceError{Op: "load", Err: err}
	}
	for i := range entries {
		entries[i] = normalizeText(entries[i])
	}
	return &Store{save: save, entries: dedupe(entries)}, nil
}

// Add inserts a new entry for catalogID with default annotations and the
// given title snapshot. An existing entry is left untouched.
func (s *Store) Add(ctx context.Context, catalogID int, title string) (Result, error) {
	if catalogID <= 0 {
		return 0, invalid(ErrInvalidKey, catalogID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.index(catalogID) >= 0 {
		return AlreadyPresent, nil
	}

	next := make([]models.WatchlistEntry, len(s.entries), len(s.entries)+1)
	copy(next, s.entries)
	next = append(next, models.WatchlistEntry{
		CatalogID: catalogID,
		Title:     normalizeNewlines(title),
		Status:    models.StatusNotStarted,
	})
	if err := s.commit(ctx, next); err != nil {
		return 0, err
	}
	return Added, nil
}

// Edit applies patch to the entry for catalogID. Ratings outside [1, 10]
// are rejected, not clamped.
func (s *Store) Edit(ctx context.Context, catalogID int, patch models.WatchlistPatch) (Result, error) {
	if err := validatePatch(catalogID, patch); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.index(catalogID)
	if i < 0 {
		return NotFound, nil
	}

	next := make([]models.WatchlistEntry, len(s.entries))
	copy(next, s.entries)
	next[i] = applyPatch(next[i], patch)

	if err := s.commit(ctx, next); err != nil {
		return 0, err
	}
	return Updated, nil
}

// BulkReplace swaps the whole store for entries. Empty statuses default to
// Not Started. When several entries share an id the last one wins and takes
// the position of the first.
func (s *Store) BulkReplace(ctx context.Context, entries []models.WatchlistEntry) error {
	next := make([]models.WatchlistEntry, 0, len(entries))
	for _, e := range entries {
		if e.Status == "" {
			e.Status = models.StatusNotStarted
		}
		if err := validateEntry(e); err != nil {
			return err
		}
		next = append(next, normalizeText(cloneEntry(e)))
	}
	next = dedupe(next)

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commit(ctx, next)
}

func (s *Store) Remove(ctx context.Context, catalogID int) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.index(catalogID)
	if i < 0 {
		return NotFound, nil
	}

	next := make([]models.WatchlistEntry, 0, len(s.entries)-1)
	next = append(next, s.entries[:i]...)
	next = append(next, s.entries[i+1:]...)
	if err := s.commit(ctx, next); err != nil {
		return 0, err
	}
	return Removed, nil
}

func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commit(ctx, []models.WatchlistEntry{})
}

// Entries returns a copy of the current entries in insertion order.
func (s *Store) Entries() []models.WatchlistEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.WatchlistEntry, len(s.entries))
	for i, e := range s.entries {
		out[i] = cloneEntry(e)
	}
	return out
}

func (s *Store) Get(catalogID int) (models.WatchlistEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.index(catalogID)
	if i < 0 {
		return models.WatchlistEntry{}, false
	}
	return cloneEntry(s.entries[i]), true
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Enrich left-joins every entry with the catalog. Entries whose id is no
// longer in the catalog are kept with nil joined fields.
func (s *Store) Enrich(catalog []models.CatalogEntry) []models.EnrichedEntry {
	return Enrich(s.Entries(), catalog)
}

// Enrich left-joins entries with catalog by id.
func Enrich(entries []models.WatchlistEntry, catalog []models.CatalogEntry) []models.EnrichedEntry {
	byID := make(map[int]*models.CatalogEntry, len(catalog))
	for i := range catalog {
		byID[catalog[i].ID] = &catalog[i]
	}

	out := make([]models.EnrichedEntry, 0, len(entries))
	for _, e := range entries {
		row := models.EnrichedEntry{WatchlistEntry: e}
		if c, ok := byID[e.CatalogID]; ok {
			typ := c.Type
			row.Type = &typ
			if c.Episodes != nil {
				n := *c.Episodes
				row.Episodes = &n
			}
			if c.Score != nil {
				f := *c.Score
				row.Score = &f
			}
			row.Genres = slices.Clone(c.Genres)
			row.InCatalog = true
		}
		out = append(out, row)
	}
	return out
}

// Validate checks entries strictly, reporting every invalid entry and every
// repeated id instead of resolving them.
func Validate(entries []models.WatchlistEntry) error {
	var errs []error
	seen := make(map[int]struct{}, len(entries))
	for _, e := range entries {
		if err := validateEntry(e); err != nil {
			errs = append(errs, err)
			continue
		}
		if _, dup := seen[e.CatalogID]; dup {
			errs = append(errs, invalid(ErrDuplicateKey, e.CatalogID))
			continue
		}
		seen[e.CatalogID] = struct{}{}
	}
	return errors.Join(errs...)
}

func (s *Store) index(catalogID int) int {
	for i, e := range s.entries {
		if e.CatalogID == catalogID {
			return i
		}
	}
	return -1
}

// commit must be called with s.mu held.
func (s *Store) commit(ctx context.Context, next []models.WatchlistEntry) error {
	snapshot := make([]models.WatchlistEntry, len(next))
	for i, e := range next {
		snapshot[i] = cloneEntry(e)
	}
	if err := s.save(ctx, snapshot); err != nil {
		return &PersistenceError{Op: "save", Err: err}
	}
	s.entries = next
	return nil
}

func validateEntry(e models.WatchlistEntry) error {
	if e.CatalogID <= 0 {
		return invalid(ErrInvalidKey, e.CatalogID)
	}
	if !e.Status.Valid() {
		return invalid(ErrInvalidStatus, e.CatalogID)
	}
	if !validRating(e.PersonalRating) {
		return invalid(ErrInvalidRating, e.CatalogID)
	}
	return nil
}

func validatePatch(catalogID int, p models.WatchlistPatch) error {
	if p.Status != nil && !p.Status.Valid() {
		return invalid(ErrInvalidStatus, catalogID)
	}
	if !validRating(p.PersonalRating) {
		return invalid(ErrInvalidRating, catalogID)
	}
	return nil
}

func validRating(r *int) bool {
	return r == nil || (*r >= models.MinRating && *r <= models.MaxRating)
}

func applyPatch(e models.WatchlistEntry, p models.WatchlistPatch) models.WatchlistEntry {
	if p.Status != nil {
		e.Status = *p.Status
	}
	switch {
	case p.ClearRating:
		e.PersonalRating = nil
	case p.PersonalRating != nil:
		r := *p.PersonalRating
		e.PersonalRating = &r
	}
	if p.Notes != nil {
		e.Notes = normalizeNewlines(*p.Notes)
	}
	if p.Progress != nil {
		e.Progress = normalizeNewlines(*p.Progress)
	}
	return e
}

// dedupe keeps one entry per id: the last occurrence, at the position of
// the first.
func dedupe(entries []models.WatchlistEntry) []models.WatchlistEntry {
	pos := make(map[int]int, len(entries))
	out := make([]models.WatchlistEntry, 0, len(entries))
	for _, e := range entries {
		if i, ok := pos[e.CatalogID]; ok {
			out[i] = e
			continue
		}
		pos[e.CatalogID] = len(out)
		out = append(out, e)
	}
	return out
}

var newlines = strings.NewReplacer("\r\n", "\n", "\r", "\n")

// normalizeNewlines folds CRLF and lone CR to LF. CSV readers drop the CR
// of a CRLF inside quoted fields, so stored text never carries one.
func normalizeNewlines(s string) string {
	if !strings.Contains(s, "\r") {
		return s
	}
	return newlines.Replace(s)
}

func normalizeText(e models.WatchlistEntry) models.WatchlistEntry {
	e.Title = normalizeNewlines(e.Title)
	e.Notes = normalizeNewlines(e.Notes)
	e.Progress = normalizeNewlines(e.Progress)
	return e
}

func cloneEntry(e models.WatchlistEntry) models.WatchlistEntry {
	if e.PersonalRating != nil {
		r := *e.PersonalRating
		e.PersonalRating = &r
	}
	return e
}
