package export

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/starford/quire/internal/apperr"
	"github.com/starford/quire/internal/models"
)

// DefaultImportPattern selects files for bulk import.
const DefaultImportPattern = "**/*.{md,markdown,txt}"

// ImportFile reads the file at path into a new note. The title is the file's
// base name without extension; content is kept verbatim.
func ImportFile(path string, now time.Time) (models.Note, error) {
	f, err := os.Open(path)
	if err != nil {
		return models.Note{}, &apperr.ImportError{Reason: accessReason(path, err), Err: err}
	}
	defer f.Close()
	return Import(filepath.Base(path), f, now)
}

// Import builds a note from an already opened source named name.
func Import(name string, r io.Reader, now time.Time) (models.Note, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return models.Note{}, &apperr.ImportError{Reason: fmt.Sprintf("cannot read %s: %v", name, err), Err: err}
	}
	if !utf8.Valid(data) {
		return models.Note{}, &apperr.ImportError{Reason: fmt.Sprintf("%s: %v", name, errNotText), Err: errNotText}
	}
	n := models.NewNote(now)
	n.Title = TitleFromFilename(name)
	n.Content = string(data)
	return n, nil
}

// TitleFromFilename strips any directory and the final extension.
func TitleFromFilename(name string) string {
	base := filepath.Base(filepath.FromSlash(name))
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// ImportDir imports every file under dir whose relative path matches pattern
// (doublestar syntax). Files that fail are reported in the joined error; the
// notes that succeeded are still returned.
func ImportDir(dir, pattern string, now time.Time) ([]models.Note, error) {
	if pattern == "" {
		pattern = DefaultImportPattern
	}
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("%w: bad import pattern %q", apperr.ErrInvalidInput, pattern)
	}
	matches, err := doublestar.Glob(os.DirFS(dir), pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, &apperr.ImportError{Reason: accessReason(dir, err), Err: err}
	}

	var (
		notes []models.Note
		errs  []error
	)
	for _, rel := range matches {
		n, err := ImportFile(filepath.Join(dir, filepath.FromSlash(rel)), now)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		notes = append(notes, n)
	}
	return notes, errors.Join(errs...)
}

func accessReason(path string, err error) string {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Sprintf("%s does not exist", path)
	case errors.Is(err, fs.ErrPermission):
		return fmt.Sprintf("access to %s denied", path)
	default:
		return fmt.Sprintf("cannot open %s: %v", path, err)
	}
}
