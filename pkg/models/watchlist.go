package models

import "strings"

type WatchStatus string

const (
	StatusNotStarted WatchStatus = "Not Started"
	StatusWatching   WatchStatus = "Watching"
	StatusCompleted  WatchStatus = "Completed"
	StatusDropped    WatchStatus = "Dropped"
)

// Rating bounds for WatchlistEntry.PersonalRating.
const (
	MinRating = 1
	MaxRating = 10
)

// ParseWatchStatus accepts the display form and the usual spellings
// (snake case, no spaces, any case). Unknown values return false.
func ParseWatchStatus(s string) (WatchStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "not started", "not_started", "notstarted", "plan to watch", "planned":
		return StatusNotStarted, true
	case "watching", "in progress", "in_progress":
		return StatusWatching, true
	case "completed", "complete", "done":
		return StatusCompleted, true
	case "dropped":
		return StatusDropped, true
	default:
		return "", false
	}
}

func (s WatchStatus) Valid() bool {
	switch s {
	case StatusNotStarted, StatusWatching, StatusCompleted, StatusDropped:
		return true
	}
	return false
}

type WatchlistEntry struct {
	CatalogID      int         `json:"mal_id"`
	Title          string      `json:"title"`
	Status         WatchStatus `json:"status"`
	PersonalRating *int        `json:"personal_rating"`
	Notes          string      `json:"notes"`
	Progress       string      `json:"progress"`
}

// WatchlistPatch is a partial update of the mutable watchlist fields.
// Nil fields are left untouched; ClearRating resets the rating to null.
type WatchlistPatch struct {
	Status         *WatchStatus `json:"status,omitempty"`
	PersonalRating *int         `json:"personal_rating,omitempty"`
	ClearRating    bool         `json:"clear_rating,omitempty"`
	Notes          *string      `json:"notes,omitempty"`
	Progress       *string      `json:"progress,omitempty"`
}

// EnrichedEntry is a watchlist row joined with read-only catalog fields.
// The joined fields are nil when the catalog no longer has the title.
type EnrichedEntry struct {
	WatchlistEntry
	Type      *string  `json:"type"`
	Episodes  *int     `json:"episodes"`
	Score     *float64 `json:"score"`
	Genres    []string `json:"genres"`
	InCatalog bool     `json:"in_catalog"`
}
