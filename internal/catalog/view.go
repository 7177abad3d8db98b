package catalog

import "animehub/pkg/models"

// CountTables lists the frequency tables Explore computes, in display order.
var CountTables = []string{"type", "source", "genres", "studios", "producers"}

// View is a filtered catalog slice with its aggregates.
type View struct {
	Rows           []models.CatalogEntry `json:"rows"`
	Counts         map[string][]Count    `json:"counts"`
	ScoreHistogram []Bin                 `json:"score_histogram"`
}

// Explore filters entries by q and aggregates the result. Aggregates always
// describe the full filtered set, not a page of it.
func Explore(entries []models.CatalogEntry, q Query, bins int) View {
	rows := Filter(entries, q)
	counts := make(map[string][]Count, len(CountTables))
	for _, name := range CountTables {
		counts[name] = CountBy(rows, Extractors[name])
	}
	return View{
		Rows:           rows,
		Counts:         counts,
		ScoreHistogram: ScoreHistogram(rows, bins),
	}
}

// Lookup returns the entry with the given id.
func Lookup(entries []models.CatalogEntry, id int) (models.CatalogEntry, bool) {
	for _, e := range entries {
		if e.ID == id {
			return e, true
		}
	}
	return models.CatalogEntry{}, false
}
