package catalog

import (
	"strings"

	"animehub/pkg/models"
)

// Range is an inclusive numeric bound.
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

func (r Range) contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

// Query is a predicate set; every active predicate must hold for a row to
// be kept. Empty sets and nil pointers mean "no restriction".
type Query struct {
	Q           string   // case-insensitive title substring
	Types       []string // membership
	Sources     []string // membership
	Genres      []string // any-match against the row's genres
	ScoreRange  *Range   // rows with a nil score never match
	MaxEpisodes *int     // rows with nil episodes always match
}

// Filter returns the entries matching q in catalog order. The input slice
// is not modified.
func Filter(entries []models.CatalogEntry, q Query) []models.CatalogEntry {
	m := newMatcher(q)
	out := make([]models.CatalogEntry, 0, len(entries))
	if m.empty {
		return out
	}
	for _, e := range entries {
		if m.match(e) {
			out = append(out, e)
		}
	}
	return out
}

type matcher struct {
	q       string
	types   map[string]struct{}
	sources map[string]struct{}
	genres  map[string]struct{}
	score   *Range
	maxEps  *int
	empty   bool
}

func newMatcher(q Query) matcher {
	m := matcher{
		q:       strings.ToLower(strings.TrimSpace(q.Q)),
		types:   toSet(q.Types),
		sources: toSet(q.Sources),
		genres:  toSet(q.Genres),
		score:   q.ScoreRange,
		maxEps:  q.MaxEpisodes,
	}
	if m.score != nil && m.score.Min > m.score.Max {
		m.empty = true
	}
	return m
}

func (m matcher) match(e models.CatalogEntry) bool {
	if m.q != "" && !strings.Contains(strings.ToLower(e.Title), m.q) {
		return false
	}
	if !inSet(m.types, e.Type) || !inSet(m.sources, e.Source) {
		return false
	}
	if len(m.genres) > 0 && !intersects(m.genres, e.Genres) {
		return false
	}
	if m.score != nil && (e.Score == nil || !m.score.contains(*e.Score)) {
		return false
	}
	if m.maxEps != nil && e.Episodes != nil && *e.Episodes > *m.maxEps {
		return false
	}
	return true
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			set[v] = struct{}{}
		}
	}
	return set
}

// inSet treats an empty set as "everything".
func inSet(set map[string]struct{}, v string) bool {
	if len(set) == 0 {
		return true
	}
	_, ok := set[v]
	return ok
}

func intersects(set map[string]struct{}, values []string) bool {
	for _, v := range values {
		if _, ok := set[v]; ok {
			return true
		}
	}
	return false
}

// ClampPage applies the paging defaults: limit outside (0, 100] falls back
// to 20 and a negative offset to 0.
func ClampPage(limit, offset int) (int, int) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// Page slices rows for paginated responses after clamping limit and offset.
func Page[T any](rows []T, limit, offset int) []T {
	limit, offset = ClampPage(limit, offset)
	if offset >= len(rows) {
		return []T{}
	}
	end := min(offset+limit, len(rows))
	return rows[offset:end]
}
