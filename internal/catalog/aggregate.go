package catalog

import (
	"sort"

	"animehub/pkg/models"
)

// Histogram bin limits. DefaultBins is used when none is given.
const (
	DefaultBins = 20
	MaxBins     = 100
)

// Count is one row of a frequency table.
type Count struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// Extractor maps a row to the values it contributes to a frequency table.
// Scalar columns return one value, list columns return every element.
type Extractor[T any] func(T) []string

// CountBy flattens the extracted values and counts them. Empty values are
// skipped. The result is sorted by count, descending, with ties kept in the
// order the values were first seen.
func CountBy[T any](rows []T, extract Extractor[T]) []Count {
	out := []Count{}
	index := make(map[string]int)
	for _, row := range rows {
		for _, v := range extract(row) {
			if v == "" {
				continue
			}
			if i, ok := index[v]; ok {
				out[i].Count++
				continue
			}
			index[v] = len(out)
			out = append(out, Count{Value: v, Count: 1})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Count > out[j].Count
	})
	return out
}

func scalar(v string) []string {
	if v == "" {
		return nil
	}
	return []string{v}
}

func ByType(e models.CatalogEntry) []string     { return scalar(e.Type) }
func BySource(e models.CatalogEntry) []string   { return scalar(e.Source) }
func ByStatus(e models.CatalogEntry) []string   { return scalar(e.Status) }
func ByGenre(e models.CatalogEntry) []string    { return e.Genres }
func ByStudio(e models.CatalogEntry) []string   { return e.Studios }
func ByProducer(e models.CatalogEntry) []string { return e.Producers }

// Extractors names the built-in frequency tables.
var Extractors = map[string]Extractor[models.CatalogEntry]{
	"type":      ByType,
	"source":    BySource,
	"status":    ByStatus,
	"genres":    ByGenre,
	"studios":   ByStudio,
	"producers": ByProducer,
}

// Bin is one fixed-width histogram bucket, [Lower, Upper) except for the
// last bin which also includes Upper.
type Bin struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
	Count int     `json:"count"`
}

// ClampBins maps bins <= 0 to DefaultBins and caps it at MaxBins.
func ClampBins(bins int) int {
	if bins <= 0 {
		return DefaultBins
	}
	return min(bins, MaxBins)
}

// Histogram buckets values into bins of equal width spanning the observed
// minimum and maximum. bins is passed through ClampBins. When every value is
// the same a single bin holds them all.
func Histogram(values []float64, bins int) []Bin {
	if len(values) == 0 {
		return []Bin{}
	}
	bins = ClampBins(bins)

	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		lo = min(lo, v)
		hi = max(hi, v)
	}
	if lo == hi {
		return []Bin{{Lower: lo, Upper: hi, Count: len(values)}}
	}

	width := (hi - lo) / float64(bins)
	out := make([]Bin, bins)
	for i := range out {
		out[i].Lower = lo + float64(i)*width
		out[i].Upper = lo + float64(i+1)*width
	}
	out[bins-1].Upper = hi

	for _, v := range values {
		i := int((v - lo) / width)
		if i >= bins {
			i = bins - 1
		}
		out[i].Count++
	}
	return out
}

// ScoreHistogram is Histogram over the non-nil scores of rows.
func ScoreHistogram(rows []models.CatalogEntry, bins int) []Bin {
	values := make([]float64, 0, len(rows))
	for _, e := range rows {
		if e.Score != nil {
			values = append(values, *e.Score)
		}
	}
	return Histogram(values, bins)
}
