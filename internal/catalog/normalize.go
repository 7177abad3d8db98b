package catalog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"animehub/pkg/models"
)

// Column names recognized in a catalog source, in their display form.
const (
	ColMalID       = "Mal ID"
	ColTitle       = "Title"
	ColType        = "Type"
	ColSource      = "Source"
	ColStatus      = "Status"
	ColAired       = "Aired"
	ColDescription = "Description"
	ColScore       = "Score"
	ColPopularity  = "Popularity"
	ColMembers     = "Members"
	ColEpisodes    = "Episodes"
	ColGenres      = "Genres"
	ColStudios     = "Studios"
	ColProducers   = "Producers"
)

// RawTable is an untyped tabular source: a header row plus data rows.
type RawTable struct {
	Header []string
	Rows   [][]string
}

// ReadTable reads a CSV document into a RawTable. Rows may be ragged.
func ReadTable(r io.Reader) (RawTable, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return RawTable{}, errors.New("empty file")
		}
		return RawTable{}, fmt.Errorf("read header: %w", err)
	}

	var rows [][]string
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return RawTable{}, fmt.Errorf("read row %d: %w", len(rows)+1, err)
		}
		rows = append(rows, row)
	}
	return RawTable{Header: header, Rows: rows}, nil
}

// LoadFile reads and normalizes the catalog at path.
func LoadFile(path string) ([]models.CatalogEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, openFailed(path, err)
	}
	defer f.Close()

	table, err := ReadTable(f)
	if err != nil {
		return nil, malformed(path, err)
	}

	entries, err := Normalize(table)
	if err != nil {
		var dle *DataLoadError
		if errors.As(err, &dle) {
			dle.Path = path
		}
		return nil, err
	}
	return entries, nil
}

// Normalize coerces a raw table into catalog entries.
//
// Dirty numeric cells become nil, list cells are split on commas, and rows
// are keyed by "Mal ID" when that column exists (rows without a usable key
// are dropped) or by 1-based row order otherwise. When two rows share a key
// the first one wins.
func Normalize(t RawTable) ([]models.CatalogEntry, error) {
	header := headerIndex(t.Header)
	if _, ok := header[columnKey(ColTitle)]; !ok {
		return nil, malformed("", fmt.Errorf("missing %q column", ColTitle))
	}
	_, hasKey := header[columnKey(ColMalID)]

	out := make([]models.CatalogEntry, 0, len(t.Rows))
	seen := make(map[int]struct{}, len(t.Rows))

	for i, row := range t.Rows {
		id := i + 1
		if hasKey {
			var ok bool
			id, ok = parseKey(valueAt(header, row, ColMalID))
			if !ok {
				continue
			}
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		out = append(out, models.CatalogEntry{
			ID:          id,
			Title:       valueAt(header, row, ColTitle),
			Type:        valueAt(header, row, ColType),
			Source:      valueAt(header, row, ColSource),
			Status:      valueAt(header, row, ColStatus),
			Aired:       valueAt(header, row, ColAired),
			Description: valueAt(header, row, ColDescription),
			Score:       ParseNumber(valueAt(header, row, ColScore)),
			Popularity:  ParseNumber(valueAt(header, row, ColPopularity)),
			Members:     ParseNumber(valueAt(header, row, ColMembers)),
			Episodes:    ParseCount(valueAt(header, row, ColEpisodes)),
			Genres:      SplitList(valueAt(header, row, ColGenres)),
			Studios:     SplitList(valueAt(header, row, ColStudios)),
			Producers:   SplitList(valueAt(header, row, ColProducers)),
		})
	}

	if len(out) == 0 {
		return nil, malformed("", errors.New("no usable rows"))
	}
	return out, nil
}

// ParseNumber keeps only digits and dots before parsing, so "8.5pts" reads
// as 8.5. Anything that still fails to parse is nil. Signs are stripped too.
func ParseNumber(raw string) *float64 {
	cleaned := strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == '.' {
			return r
		}
		return -1
	}, raw)
	if cleaned == "" {
		return nil
	}
	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return nil
	}
	return &f
}

// ParseCount is ParseNumber restricted to whole numbers.
func ParseCount(raw string) *int {
	f := ParseNumber(raw)
	if f == nil || *f != math.Trunc(*f) || *f > math.MaxInt32 {
		return nil
	}
	n := int(*f)
	return &n
}

// SplitList splits a comma separated cell, trimming tokens and dropping
// empty ones. The result is never nil.
func SplitList(raw string) []string {
	out := []string{}
	for _, tok := range strings.Split(raw, ",") {
		if tok = strings.TrimSpace(tok); tok != "" {
			out = append(out, tok)
		}
	}
	return out
}

func parseKey(raw string) (int, bool) {
	n := ParseCount(raw)
	if n == nil || *n <= 0 {
		return 0, false
	}
	return *n, true
}

// columnKey folds a header name so "Mal ID", " mal_id " and "MAL ID" match.
func columnKey(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	return strings.ReplaceAll(name, "_", " ")
}

func headerIndex(row []string) map[string]int {
	header := make(map[string]int, len(row))
	for idx, name := range row {
		key := columnKey(strings.TrimPrefix(name, "\ufeff"))
		if _, dup := header[key]; !dup {
			header[key] = idx
		}
	}
	return header
}

func valueAt(header map[string]int, row []string, column string) string {
	idx, ok := header[columnKey(column)]
	if !ok || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}
