package watchlist

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"animehub/pkg/models"
)

// Header is the column layout of a watchlist CSV file.
var Header = []string{"Mal ID", "Title", "Status", "Personal Rating", "Notes", "Progress"}

// CSVFile persists one watchlist as a CSV file. Its Load and Save methods
// satisfy LoadFunc and SaveFunc.
type CSVFile struct {
	Path string
}

// Load reads the file; a missing file is an empty watchlist.
func (f CSVFile) Load(_ context.Context) ([]models.WatchlistEntry, error) {
	fh, err := os.Open(f.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []models.WatchlistEntry{}, nil
		}
		return nil, err
	}
	defer fh.Close()

	entries, err := ReadCSV(fh)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.Path, err)
	}
	return entries, nil
}

// LoadStrict reads the file with ReadCSVStrict. Unlike Load, a missing file
// is an error.
func (f CSVFile) LoadStrict(_ context.Context) ([]models.WatchlistEntry, error) {
	fh, err := os.Open(f.Path)
	if err != nil {
		return nil, err
	}
	defer fh.Close()

	entries, err := ReadCSVStrict(fh)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.Path, err)
	}
	return entries, nil
}

// Save replaces the file with entries using a temp file and rename.
func (f CSVFile) Save(_ context.Context, entries []models.WatchlistEntry) error {
	if err := os.MkdirAll(filepath.Dir(f.Path), 0o755); err != nil {
		return err
	}
	return writeAtomic(f.Path, func(w io.Writer) error {
		return WriteCSV(w, entries)
	})
}

// CSVDir keeps one CSV file per watchlist owner under Dir.
type CSVDir struct {
	Dir string
}

var ownerPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

func (d CSVDir) file(owner string) (CSVFile, error) {
	if !ownerPattern.MatchString(owner) {
		return CSVFile{}, fmt.Errorf("invalid watchlist owner %q", owner)
	}
	return CSVFile{Path: filepath.Join(d.Dir, owner+".csv")}, nil
}

func (d CSVDir) Load(ctx context.Context, owner string) ([]models.WatchlistEntry, error) {
	f, err := d.file(owner)
	if err != nil {
		return nil, err
	}
	return f.Load(ctx)
}

func (d CSVDir) Save(ctx context.Context, owner string, entries []models.WatchlistEntry) error {
	f, err := d.file(owner)
	if err != nil {
		return err
	}
	return f.Save(ctx, entries)
}

// ErrNoIDColumn rejects a watchlist document whose header has no Mal ID
// column. Reading it as empty would let the next save wipe the file.
var ErrNoIDColumn = errors.New("watchlist header has no Mal ID column")

// ReadCSV decodes a watchlist CSV document. Rows without a usable Mal ID
// are skipped, unknown statuses read as Not Started and unusable ratings as
// null. Text fields are kept verbatim. An empty document is an empty
// watchlist; a header without a Mal ID column is ErrNoIDColumn.
func ReadCSV(r io.Reader) ([]models.WatchlistEntry, error) {
	entries, _, err := decodeCSV(r)
	return entries, err
}

// ReadCSVStrict decodes like ReadCSV but rejects the document when any row
// would have been skipped or coerced, or when a Mal ID repeats. The
// returned error joins one ValidationError per offending row, prefixed with
// its line number.
func ReadCSVStrict(r io.Reader) ([]models.WatchlistEntry, error) {
	entries, problems, err := decodeCSV(r)
	if err != nil {
		return nil, err
	}
	if err := errors.Join(problems...); err != nil {
		return nil, err
	}
	if err := Validate(entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// decodeCSV returns the lenient reading plus one error for every cell the
// lenient reading had to drop or coerce.
func decodeCSV(r io.Reader) ([]models.WatchlistEntry, []error, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	row, err := cr.Read()
	if err == io.EOF {
		return []models.WatchlistEntry{}, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read header: %w", err)
	}
	header := make(map[string]int, len(row))
	for idx, name := range row {
		header[headerKey(name)] = idx
	}
	if _, ok := header["mal id"]; !ok {
		return nil, nil, ErrNoIDColumn
	}

	out := []models.WatchlistEntry{}
	var problems []error
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, err
		}
		line, _ := cr.FieldPos(0)

		id, err := strconv.Atoi(strings.TrimSpace(cell(header, row, "mal id")))
		if err != nil || id <= 0 {
			problems = append(problems, fmt.Errorf("line %d: %w", line, invalid(ErrInvalidKey, 0)))
			continue
		}

		rawStatus := cell(header, row, "status")
		status, ok := models.ParseWatchStatus(rawStatus)
		if !ok {
			status = models.StatusNotStarted
			if strings.TrimSpace(rawStatus) != "" {
				problems = append(problems, fmt.Errorf("line %d: %w", line, invalid(ErrInvalidStatus, id)))
			}
		}

		rawRating := cell(header, row, "personal rating")
		rating := parseRating(rawRating)
		if rating == nil && strings.TrimSpace(rawRating) != "" {
			problems = append(problems, fmt.Errorf("line %d: %w", line, invalid(ErrInvalidRating, id)))
		}

		out = append(out, models.WatchlistEntry{
			CatalogID:      id,
			Title:          cell(header, row, "title"),
			Status:         status,
			PersonalRating: rating,
			Notes:          cell(header, row, "notes"),
			Progress:       cell(header, row, "progress"),
		})
	}
	return out, problems, nil
}

// WriteCSV encodes entries with Header as the first row.
func WriteCSV(w io.Writer, entries []models.WatchlistEntry) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, e := range entries {
		rating := ""
		if e.PersonalRating != nil {
			rating = strconv.Itoa(*e.PersonalRating)
		}
		if err := cw.Write([]string{
			strconv.Itoa(e.CatalogID),
			e.Title,
			string(e.Status),
			rating,
			e.Notes,
			e.Progress,
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// headerKey folds a header cell so "\ufeffMal ID", " mal_id " and "MAL ID"
// match.
func headerKey(name string) string {
	name = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
	return strings.ReplaceAll(name, "_", " ")
}

func cell(header map[string]int, row []string, key string) string {
	idx, ok := header[key]
	if !ok || idx >= len(row) {
		return ""
	}
	return row[idx]
}

func parseRating(raw string) *int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < models.MinRating || n > models.MaxRating {
		return nil
	}
	return &n
}

// writeAtomic writes path through a temp file in the same directory,
// syncing before the rename.
func writeAtomic(path string, write func(io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".watchlist-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	if err := write(tmp); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing records: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}
