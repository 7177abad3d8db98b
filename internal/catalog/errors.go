package catalog

import (
	"errors"
	"fmt"
	"io/fs"
)

var (
	ErrNotFound  = errors.New("catalog source not found")
	ErrMalformed = errors.New("catalog source malformed")
)

// DataLoadError reports why a catalog source could not be turned into rows.
// Reason is ErrNotFound or ErrMalformed; errors.Is matches either the reason
// or the wrapped cause.
type DataLoadError struct {
	Reason error
	Path   string
	Err    error
}

func (e *DataLoadError) Error() string {
	msg := e.Reason.Error()
	if e.Path != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Path)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *DataLoadError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Reason}
	}
	return []error{e.Reason, e.Err}
}

func notFound(path string, err error) error {
	return &DataLoadError{Reason: ErrNotFound, Path: path, Err: err}
}

// openFailed classifies a failed open or stat: only a missing file is
// NotFound, anything else (permissions, a directory) is Malformed.
func openFailed(path string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return notFound(path, err)
	}
	return malformed(path, err)
}

func malformed(path string, err error) error {
	return &DataLoadError{Reason: ErrMalformed, Path: path, Err: err}
}
