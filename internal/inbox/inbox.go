// Package inbox turns a drop folder into an import queue: every text file that
// lands in it becomes a note and is then moved out of the way.
package inbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/quire/internal/checksum"
	"github.com/starford/quire/internal/models"
)

// Subdirectories of the inbox root that receive processed files.
const (
	ImportedDir = "imported"
	FailedDir   = "failed"
)

// settle is how long a file must stay quiet before it is imported, so
// half-written files are not picked up.
const settle = 200 * time.Millisecond

// Importer creates a note from a file on disk.
type Importer interface {
	ImportNote(path string) (models.Note, error)
}

// Callback is called after a file has been imported.
type Callback func(file string, n models.Note)

// Inbox watches a single directory. Subdirectories are ignored.
type Inbox struct {
	root   string
	imp    Importer
	logger *slog.Logger
	cb     Callback

	// seen maps content checksums to the file that first carried them.
	seen map[string]string
}

// New prepares root and its processed-file subdirectories.
func New(root string, imp Importer, logger *slog.Logger, cb Callback) (*Inbox, error) {
	if logger == nil {
		logger = slog.Default()
	}
	for _, dir := range []string{root, filepath.Join(root, ImportedDir), filepath.Join(root, FailedDir)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("inbox: create %s: %w", dir, err)
		}
	}
	return &Inbox{
		root:   root,
		imp:    imp,
		logger: logger,
		cb:     cb,
		seen:   make(map[string]string),
	}, nil
}

// Root returns the watched directory.
func (b *Inbox) Root() string { return b.root }

// Eligible reports whether name looks like an importable text note.
func Eligible(name string) bool {
	if strings.HasPrefix(name, ".") {
		return false
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".md", ".markdown", ".txt":
		return true
	}
	return false
}

// Scan imports every eligible file already present and returns how many
// notes were created.
func (b *Inbox) Scan() (int, error) {
	entries, err := os.ReadDir(b.root)
	if err != nil {
		return 0, fmt.Errorf("inbox: scan: %w", err)
	}
	n := 0
	for _, e := range entries {
		if e.IsDir() || !Eligible(e.Name()) {
			continue
		}
		if b.process(filepath.Join(b.root, e.Name())) {
			n++
		}
	}
	b.logger.Info("inbox: scan complete", slog.String("root", b.root), slog.Int("imported", n))
	return n, nil
}

// Watch runs an initial Scan and then imports files as they arrive, until
// ctx is cancelled.
func (b *Inbox) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("inbox: watcher: %w", err)
	}
	defer w.Close()

	if err := w.Add(b.root); err != nil {
		return fmt.Errorf("inbox: watch %s: %w", b.root, err)
	}
	if _, err := b.Scan(); err != nil {
		return err
	}

	b.logger.Info("inbox: watching", slog.String("root", b.root))

	// pending holds the last event time per file; files are processed once
	// they have been quiet for settle.
	pending := make(map[string]time.Time)
	ticker := time.NewTicker(settle / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			b.logger.Info("inbox: stopped")
			return nil

		case now := <-ticker.C:
			for path, last := range pending {
				if now.Sub(last) < settle {
					continue
				}
				delete(pending, path)
				b.process(path)
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				if ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
					delete(pending, ev.Name)
				}
				continue
			}
			if filepath.Dir(ev.Name) != filepath.Clean(b.root) || !Eligible(filepath.Base(ev.Name)) {
				continue
			}
			pending[ev.Name] = time.Now()

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			b.logger.Error("inbox: watcher error", slog.String("error", watchErr.Error()))
		}
	}
}

// process imports one file and moves it aside. It reports whether a note was created.
func (b *Inbox) process(path string) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			b.logger.Warn("inbox: read failed", slog.String("path", path), slog.String("error", err.Error()))
		}
		return false
	}
	name := filepath.Base(path)

	sum := checksum.Sum(data)
	if first, dup := b.seen[sum]; dup {
		b.logger.Info("inbox: duplicate skipped", slog.String("file", name), slog.String("same_as", first))
		b.moveTo(path, ImportedDir)
		return false
	}

	n, err := b.imp.ImportNote(path)
	if err != nil {
		b.logger.Warn("inbox: import failed", slog.String("file", name), slog.String("error", err.Error()))
		b.moveTo(path, FailedDir)
		return false
	}
	b.seen[sum] = name
	b.logger.Info("inbox: imported", slog.String("file", name), slog.String("id", n.ID))
	b.moveTo(path, ImportedDir)

	if b.cb != nil {
		b.cb(name, n)
	}
	return true
}

// moveTo renames path into the given subdirectory, never overwriting.
func (b *Inbox) moveTo(path, sub string) {
	name := filepath.Base(path)
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)

	dst := filepath.Join(b.root, sub, name)
	for i := 2; ; i++ {
		if _, err := os.Lstat(dst); errors.Is(err, os.ErrNotExist) {
			break
		}
		dst = filepath.Join(b.root, sub, stem+"_"+strconv.Itoa(i)+ext)
	}
	if err := os.Rename(path, dst); err != nil {
		b.logger.Error("inbox: move failed", slog.String("path", path), slog.String("error", err.Error()))
	}
}
