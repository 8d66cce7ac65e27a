// Package apperr defines the error kinds surfaced by the note core.
package apperr

import "errors"

var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrSave         = errors.New("save failed")
	ErrLoad         = errors.New("load failed")
	ErrUnavailable  = errors.New("storage unavailable")
	ErrExport       = errors.New("export failed")
	ErrImport       = errors.New("import failed")
	ErrInvalidInput = errors.New("invalid input")
)

// ImportError reports why an external file could not be turned into a note.
type ImportError struct {
	Reason string
	Err    error
}

func (e *ImportError) Error() string {
	return "import failed: " + e.Reason
}

func (e *ImportError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrImport) match any ImportError.
func (e *ImportError) Is(target error) bool {
	return target == ErrImport
}
