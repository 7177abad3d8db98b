package watchlist

import (
	"errors"
	"fmt"
)

// Result is the informational outcome of a watchlist operation.
type Result int

const (
	Added Result = iota + 1
	AlreadyPresent
	Updated
	Removed
	NotFound
)

func (r Result) String() string {
	switch r {
	case Added:
		return "added"
	case AlreadyPresent:
		return "already_present"
	case Updated:
		return "updated"
	case Removed:
		return "removed"
	case NotFound:
		return "not_found"
	default:
		return fmt.Sprintf("result(%d)", int(r))
	}
}

// Validation failure reasons.
var (
	ErrInvalidRating = errors.New("personal rating must be between 1 and 10")
	ErrDuplicateKey  = errors.New("duplicate mal id")
	ErrInvalidStatus = errors.New("invalid watch status")
	ErrInvalidKey    = errors.New("mal id must be a positive integer")
)

// ValidationError rejects a single mutation; the store is left unchanged.
type ValidationError struct {
	Reason    error
	CatalogID int
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validate mal id %d: %v", e.CatalogID, e.Reason)
}

func (e *ValidationError) Unwrap() error { return e.Reason }

func invalid(reason error, id int) error {
	return &ValidationError{Reason: reason, CatalogID: id}
}

// PersistenceError reports a failed load or save. When a save fails the
// in-memory store keeps its previous contents.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("watchlist %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
