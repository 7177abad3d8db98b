package watchlist

import (
	"context"
	"database/sql"
	"fmt"

	"animehub/pkg/models"
)

// SQLRepo stores every owner's watchlist in the watchlist table. Save
// rewrites an owner's rows in one transaction.
type SQLRepo struct {
	DB *sql.DB
}

func NewSQLRepo(db *sql.DB) *SQLRepo {
	return &SQLRepo{DB: db}
}

func (r *SQLRepo) Load(ctx context.Context, owner string) ([]models.WatchlistEntry, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT mal_id, title, status, personal_rating, notes, progress
		FROM watchlist
		WHERE owner = ?
		ORDER BY position ASC
	`, owner)
	if err != nil {
		return nil, fmt.Errorf("list watchlist: %w", err)
	}
	defer rows.Close()

	out := []models.WatchlistEntry{}
	for rows.Next() {
		var (
			e      models.WatchlistEntry
			status string
			rating sql.NullInt64
		)
		if err := rows.Scan(&e.CatalogID, &e.Title, &status, &rating, &e.Notes, &e.Progress); err != nil {
			return nil, fmt.Errorf("scan watchlist row: %w", err)
		}
		e.Status = models.WatchStatus(status)
		if !e.Status.Valid() {
			e.Status = models.StatusNotStarted
		}
		if rating.Valid {
			n := int(rating.Int64)
			e.PersonalRating = &n
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows err: %w", err)
	}
	return out, nil
}

func (r *SQLRepo) Save(ctx context.Context, owner string, entries []models.WatchlistEntry) (err error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save watchlist: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM watchlist WHERE owner = ?`, owner); err != nil {
		return fmt.Errorf("clear watchlist: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO watchlist (owner, mal_id, position, title, status, personal_rating, notes, progress, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
	`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, e := range entries {
		var rating any
		if e.PersonalRating != nil {
			rating = *e.PersonalRating
		}
		if _, err = stmt.ExecContext(ctx, owner, e.CatalogID, i, e.Title, string(e.Status), rating, e.Notes, e.Progress); err != nil {
			return fmt.Errorf("insert mal id %d: %w", e.CatalogID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit save watchlist: %w", err)
	}
	return nil
}

// Owners lists every owner with at least one stored entry.
func (r *SQLRepo) Owners(ctx context.Context) ([]string, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT DISTINCT owner FROM watchlist ORDER BY owner`)
	if err != nil {
		return nil, fmt.Errorf("list owners: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var owner string
		if err := rows.Scan(&owner); err != nil {
			return nil, fmt.Errorf("scan owner: %w", err)
		}
		out = append(out, owner)
	}
	return out, rows.Err()
}
