package models

// CatalogEntry is the normalized form of one catalog row.
//
// Optional text columns use the empty string for "absent"; numeric columns
// use nil. List columns are never nil after normalization.
type CatalogEntry struct {
	ID          int      `json:"id"`
	Title       string   `json:"title"`
	Type        string   `json:"type,omitempty"`
	Source      string   `json:"source,omitempty"`
	Status      string   `json:"status,omitempty"`
	Aired       string   `json:"aired,omitempty"`
	Description string   `json:"description,omitempty"`
	Score       *float64 `json:"score"`
	Popularity  *float64 `json:"popularity"`
	Members     *float64 `json:"members"`
	Episodes    *int     `json:"episodes"`
	Genres      []string `json:"genres"`
	Studios     []string `json:"studios"`
	Producers   []string `json:"producers"`
}
