// Package export converts notes to standalone markdown files and zip archives,
// and turns external text files back into notes.
package export

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/starford/quire/internal/apperr"
	"github.com/starford/quire/internal/models"
)

// Fixed names used by bulk export.
const (
	ArchiveName = "NotesArchive.zip"
	StagingName = "NotesExport"

	workPrefix = "quire-export-"
)

// Exporter writes export artifacts below a root directory.
type Exporter struct {
	root   string
	logger *slog.Logger
}

// New creates an Exporter rooted at dir. An empty dir means the OS temp directory.
func New(dir string, logger *slog.Logger) *Exporter {
	if dir == "" {
		dir = os.TempDir()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{root: dir, logger: logger}
}

// Root returns the export root directory.
func (e *Exporter) Root() string { return e.root }

// ExportNote writes note content verbatim to "<title>_<unix>.md" under the root.
func (e *Exporter) ExportNote(n models.Note, now time.Time) (string, error) {
	if err := os.MkdirAll(e.root, 0o755); err != nil {
		return "", fmt.Errorf("%w: create export dir: %v", apperr.ErrExport, err)
	}
	base := SanitizeFilename(n.DisplayTitle()) + "_" + strconv.FormatInt(now.Unix(), 10)

	names := NewNames()
	entries, err := os.ReadDir(e.root)
	if err != nil {
		return "", fmt.Errorf("%w: read export dir: %v", apperr.ErrExport, err)
	}
	for _, ent := range entries {
		names.Reserve(ent.Name())
	}
	path := filepath.Join(e.root, names.Next(base))

	if err := os.WriteFile(path, []byte(n.Content), 0o644); err != nil {
		return "", fmt.Errorf("%w: write %s: %v", apperr.ErrExport, filepath.Base(path), err)
	}
	e.logger.Debug("export: note written", slog.String("id", n.ID), slog.String("path", path))
	return path, nil
}

// ExportAll writes every note into a fresh staging directory and packages it
// as NotesArchive.zip. The returned path points at the archive. Files written
// before a failure are left in place.
func (e *Exporter) ExportAll(notes []models.Note) (string, error) {
	if err := os.MkdirAll(e.root, 0o755); err != nil {
		return "", fmt.Errorf("%w: create export dir: %v", apperr.ErrExport, err)
	}
	work, err := os.MkdirTemp(e.root, workPrefix+"*")
	if err != nil {
		return "", fmt.Errorf("%w: create work dir: %v", apperr.ErrExport, err)
	}
	staging := filepath.Join(work, StagingName)
	if err := os.Mkdir(staging, 0o755); err != nil {
		return "", fmt.Errorf("%w: create staging dir: %v", apperr.ErrExport, err)
	}

	names := NewNames()
	for _, n := range notes {
		name := names.Next(SanitizeFilename(n.DisplayTitle()))
		if err := os.WriteFile(filepath.Join(staging, name), []byte(n.Content), 0o644); err != nil {
			return "", fmt.Errorf("%w: write %s: %v", apperr.ErrExport, name, err)
		}
	}

	archive := filepath.Join(work, ArchiveName)
	if err := zipDir(staging, archive); err != nil {
		return "", fmt.Errorf("%w: package archive: %v", apperr.ErrExport, err)
	}
	e.logger.Info("export: archive written",
		slog.Int("notes", len(notes)),
		slog.String("path", archive))
	return archive, nil
}

// Discard removes an artifact returned by ExportNote or ExportAll. An archive
// takes its whole work directory with it. Paths outside the root are refused.
func (e *Exporter) Discard(path string) error {
	rel, err := filepath.Rel(e.root, path)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("%w: %s is not an export artifact", apperr.ErrExport, path)
	}
	target := path
	if dir := filepath.Dir(rel); dir != "." && strings.HasPrefix(dir, workPrefix) && !strings.ContainsRune(dir, filepath.Separator) {
		target = filepath.Join(e.root, dir)
	}
	if err := os.RemoveAll(target); err != nil {
		return fmt.Errorf("%w: discard %s: %v", apperr.ErrExport, filepath.Base(path), err)
	}
	e.logger.Debug("export: artifact discarded", slog.String("path", target))
	return nil
}

// zipDir packages the regular files of dir (recursively) into dst, with paths
// relative to dir.
func zipDir(dir, dst string) (err error) {
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); err == nil {
			err = cerr
		}
	}()

	zw := zip.NewWriter(out)
	walkErr := filepath.WalkDir(dir, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		hdr, err := zip.FileInfoHeader(info)
		if err != nil {
			return err
		}
		hdr.Name = filepath.ToSlash(rel)
		hdr.Method = zip.Deflate
		w, err := zw.CreateHeader(hdr)
		if err != nil {
			return err
		}
		f, err := os.Open(p)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(w, f)
		return err
	})
	if walkErr != nil {
		_ = zw.Close()
		return walkErr
	}
	return zw.Close()
}

// errNotText marks content that is not valid UTF-8.
var errNotText = errors.New("content is not valid UTF-8 text")
