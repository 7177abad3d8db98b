package sync

import "time"

// Watchlist event types.
const (
	EventAdd     = "watchlist.add"
	EventUpdate  = "watchlist.update"
	EventRemove  = "watchlist.remove"
	EventClear   = "watchlist.clear"
	EventReplace = "watchlist.replace"
)

type WatchlistEvent struct {
	Type      string    `json:"type"`
	Owner     string    `json:"owner"`
	CatalogID int       `json:"mal_id,omitempty"`
	Status    string    `json:"status,omitempty"`
	Count     int       `json:"count,omitempty"`
	At        time.Time `json:"at"`
}
