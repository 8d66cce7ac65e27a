// Package noteservice owns the in-memory note collection and mediates every mutation.
package noteservice

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/sahilm/fuzzy"

	"github.com/starford/quire/internal/apperr"
	"github.com/starford/quire/internal/checksum"
	"github.com/starford/quire/internal/export"
	"github.com/starford/quire/internal/highlight"
	"github.com/starford/quire/internal/models"
	"github.com/starford/quire/internal/search"
	"github.com/starford/quire/internal/store"
)

// Change kinds passed to a ChangeFunc.
const (
	ChangeCreated  = "created"
	ChangeUpdated  = "updated"
	ChangeDeleted  = "deleted"
	ChangeImported = "imported"
)

// ChangeFunc is called after a mutation has been applied and persisted.
type ChangeFunc func(kind, id string)

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithExporter sets the export pipeline. Defaults to the OS temp directory.
func WithExporter(e *export.Exporter) Option {
	return func(m *Manager) { m.exporter = e }
}

// WithClock overrides time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithChangeHook registers fn to observe mutations.
func WithChangeHook(fn ChangeFunc) Option {
	return func(m *Manager) { m.onChange = fn }
}

// Manager owns the note collection. All public methods run to completion under
// one lock, so callers observe a single sequential actor.
type Manager struct {
	mu       sync.Mutex
	notes    []models.Note
	store    *store.Store
	exporter *export.Exporter
	logger   *slog.Logger
	now      func() time.Time
	onChange ChangeFunc
	lastErr  error

	// writeBlock is set when the persisted collection could not be read or
	// could not be backed up. While set, persist never overwrites it.
	writeBlock error
}

// New creates a Manager and loads the persisted collection. A corrupt
// collection is backed up and replaced by an empty one; the load error is
// kept as LastError. When the collection cannot be read at all, or the
// backup fails, the Manager starts empty but refuses to save.
func New(st *store.Store, opts ...Option) *Manager {
	m := &Manager{
		store:  st,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.exporter == nil {
		m.exporter = export.New("", m.logger)
	}

	notes, err := st.Load()
	if err != nil {
		m.lastErr = err
		m.logger.Error("manager: load failed, starting empty", slog.String("error", err.Error()))
		if errors.Is(err, apperr.ErrLoad) {
			if key, bErr := st.Backup(); bErr != nil {
				m.writeBlock = bErr
				m.logger.Error("manager: backup of corrupt collection failed, saving disabled", slog.String("error", bErr.Error()))
			} else {
				m.logger.Warn("manager: corrupt collection backed up", slog.String("key", key))
			}
		} else {
			m.writeBlock = err
			m.logger.Error("manager: collection unreadable, saving disabled")
		}
		notes = []models.Note{}
	}
	m.notes = notes
	return m
}

// Notes returns a copy of the collection in its current order.
func (m *Manager) Notes() []models.Note {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Note(nil), m.notes...)
}

// Get looks a note up by id.
func (m *Manager) Get(id string) (models.Note, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.indexOf(id)
	if i < 0 {
		return models.Note{}, false
	}
	return m.notes[i], true
}

// LastError returns the most recent persistence error, or nil after a
// successful save.
func (m *Manager) LastError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// AddNote inserts an empty note at the front of the collection and persists.
func (m *Manager) AddNote() models.Note {
	return m.CreateNote("", "")
}

// CreateNote inserts a note with the given title and content at the front of
// the collection. The note is persisted and announced once.
func (m *Manager) CreateNote(title, content string) models.Note {
	m.mu.Lock()
	n := models.NewNote(m.now())
	n.Title = title
	n.Content = content
	m.notes = append([]models.Note{n}, m.notes...)
	m.persist()
	m.mu.Unlock()

	m.notify(ChangeCreated, n.ID)
	return n
}

// DeleteNoteAt removes the note at position i. Out-of-range positions are ignored.
func (m *Manager) DeleteNoteAt(i int) {
	m.mu.Lock()
	if i < 0 || i >= len(m.notes) {
		m.mu.Unlock()
		return
	}
	id := m.notes[i].ID
	m.notes = append(m.notes[:i], m.notes[i+1:]...)
	m.persist()
	m.mu.Unlock()

	m.notify(ChangeDeleted, id)
}

// DeleteNote removes the note with id. Unknown ids leave the collection and
// the persisted state untouched.
func (m *Manager) DeleteNote(id string) {
	m.mu.Lock()
	i := m.indexOf(id)
	if i < 0 {
		m.mu.Unlock()
		return
	}
	m.notes = append(m.notes[:i], m.notes[i+1:]...)
	m.persist()
	m.mu.Unlock()

	m.notify(ChangeDeleted, id)
}

// UpdateNote overwrites the stored note with the same id and persists.
// It never creates: an unknown id is a no-op and reports false.
func (m *Manager) UpdateNote(n models.Note) bool {
	m.mu.Lock()
	i := m.indexOf(n.ID)
	if i < 0 {
		m.mu.Unlock()
		return false
	}
	m.notes[i] = n
	m.persist()
	m.mu.Unlock()

	m.notify(ChangeUpdated, n.ID)
	return true
}

// Edit applies fn to the note with id and persists the result, all under one
// lock. A non-empty version must equal the note's current checksum, otherwise
// ErrConflict is returned and nothing changes.
func (m *Manager) Edit(id, version string, fn func(*models.Note)) (models.Note, error) {
	return m.mutate(id, func(n *models.Note) (bool, error) {
		if version != "" && version != checksum.Note(*n) {
			return false, apperr.ErrConflict
		}
		before := *n
		fn(n)
		n.ID = before.ID
		return !n.Equal(before), nil
	})
}

// TogglePin flips the pin flag and re-sorts so pinned notes lead.
func (m *Manager) TogglePin(id string) (models.Note, bool) {
	m.mu.Lock()
	i := m.indexOf(id)
	if i < 0 {
		m.mu.Unlock()
		return models.Note{}, false
	}
	m.notes[i].IsPinned = !m.notes[i].IsPinned
	n := m.notes[i]
	models.SortNotes(m.notes)
	m.persist()
	m.mu.Unlock()

	m.notify(ChangeUpdated, id)
	return n, true
}

// Filter returns notes whose title or content fuzzily matches query, best
// match first. An empty query returns the whole collection.
func (m *Manager) Filter(query string) []models.Note {
	notes := m.Notes()
	if strings.TrimSpace(query) == "" {
		return notes
	}
	targets := make([]string, len(notes))
	for i, n := range notes {
		targets[i] = n.DisplayTitle() + " " + n.Content
	}
	matches := fuzzy.Find(query, targets)
	out := make([]models.Note, 0, len(matches))
	for _, match := range matches {
		out = append(out, notes[match.Index])
	}
	return out
}

// FindAll returns the match spans of query in the note's content.
func (m *Manager) FindAll(id, query string) ([]models.Span, error) {
	n, ok := m.Get(id)
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return search.FindAllOccurrences(n, query), nil
}

// ReplaceAll replaces every occurrence in the note and persists the result.
// It returns the number of replacements made.
func (m *Manager) ReplaceAll(id, query, replacement string) (models.Note, int, error) {
	var count int
	n, err := m.mutate(id, func(n *models.Note) (bool, error) {
		count = search.Count(n.Content, query)
		if count == 0 {
			return false, nil
		}
		*n = search.ReplaceAllOccurrences(*n, query, replacement)
		return true, nil
	})
	if err != nil {
		return models.Note{}, 0, err
	}
	return n, count, nil
}

// ReplaceNext replaces the first occurrence of search in the note and persists.
// The flag reports whether the content changed; nothing is written when it did not.
func (m *Manager) ReplaceNext(id, searchText, replacement string) (models.Note, bool, error) {
	var changed bool
	n, err := m.mutate(id, func(n *models.Note) (bool, error) {
		content := search.ReplaceNext(n.Content, searchText, replacement)
		changed = content != n.Content
		n.Content = content
		return changed, nil
	})
	if err != nil {
		return models.Note{}, false, err
	}
	return n, changed, nil
}

// Highlight annotates the note's content for the editor.
func (m *Manager) Highlight(id string) (highlight.Annotation, error) {
	n, ok := m.Get(id)
	if !ok {
		return highlight.Annotation{}, apperr.ErrNotFound
	}
	return highlight.Highlight(n.Content), nil
}

// ExportNote writes one note to a standalone markdown file.
func (m *Manager) ExportNote(id string) (string, error) {
	n, ok := m.Get(id)
	if !ok {
		return "", apperr.ErrNotFound
	}
	path, err := m.exporter.ExportNote(n, m.now())
	if err != nil {
		m.logger.Error("manager: export note failed", slog.String("id", id), slog.String("error", err.Error()))
		return "", err
	}
	return path, nil
}

// ExportAll packages every note into a zip archive and returns its path.
func (m *Manager) ExportAll() (string, error) {
	notes := m.Notes()
	path, err := m.exporter.ExportAll(notes)
	if err != nil {
		m.logger.Error("manager: export all failed", slog.String("error", err.Error()))
		return "", err
	}
	return path, nil
}

// DiscardExport removes a file produced by ExportNote or ExportAll once it has
// been delivered.
func (m *Manager) DiscardExport(path string) error {
	return m.exporter.Discard(path)
}

// ImportNote reads a text file into a new note at the front of the collection.
func (m *Manager) ImportNote(path string) (models.Note, error) {
	n, err := export.ImportFile(path, m.now())
	if err != nil {
		m.logger.Warn("manager: import failed", slog.String("path", path), slog.String("error", err.Error()))
		return models.Note{}, err
	}
	m.insert(n)
	return n, nil
}

// ImportReader imports content from r, titling the note after name.
func (m *Manager) ImportReader(name string, r io.Reader) (models.Note, error) {
	n, err := export.Import(name, r, m.now())
	if err != nil {
		return models.Note{}, err
	}
	m.insert(n)
	return n, nil
}

// ImportDir imports every matching file under dir. Notes that imported
// successfully are kept even when others failed.
func (m *Manager) ImportDir(dir, pattern string) ([]models.Note, error) {
	notes, err := export.ImportDir(dir, pattern, m.now())
	for _, n := range notes {
		m.insert(n)
	}
	if err != nil {
		m.logger.Warn("manager: bulk import incomplete",
			slog.String("dir", dir),
			slog.Int("imported", len(notes)),
			slog.String("error", err.Error()))
	}
	return notes, err
}

// OnboardingCompleted reports the persisted onboarding flag.
func (m *Manager) OnboardingCompleted() (bool, error) {
	return m.store.OnboardingCompleted()
}

// SetOnboardingCompleted persists the onboarding flag.
func (m *Manager) SetOnboardingCompleted(done bool) error {
	return m.store.SetOnboardingCompleted(done)
}

func (m *Manager) insert(n models.Note) {
	m.mu.Lock()
	m.notes = append([]models.Note{n}, m.notes...)
	m.persist()
	m.mu.Unlock()

	m.notify(ChangeImported, n.ID)
}

// mutate reads, transforms and persists one note under a single lock.
// fn reports whether it changed the note; unchanged notes are not written.
func (m *Manager) mutate(id string, fn func(*models.Note) (bool, error)) (models.Note, error) {
	m.mu.Lock()
	i := m.indexOf(id)
	if i < 0 {
		m.mu.Unlock()
		return models.Note{}, apperr.ErrNotFound
	}
	n := m.notes[i]
	changed, err := fn(&n)
	if err != nil || !changed {
		current := m.notes[i]
		m.mu.Unlock()
		return current, err
	}
	m.notes[i] = n
	m.persist()
	m.mu.Unlock()

	m.notify(ChangeUpdated, id)
	return n, nil
}

// persist writes the full collection. Callers must hold m.mu.
func (m *Manager) persist() {
	if m.writeBlock != nil {
		m.lastErr = fmt.Errorf("%w: persisted collection was not loaded: %v", apperr.ErrSave, m.writeBlock)
		m.logger.Error("manager: save refused", slog.String("error", m.lastErr.Error()))
		return
	}
	if err := m.store.Save(m.notes); err != nil {
		m.lastErr = err
		m.logger.Error("manager: save failed", slog.String("error", err.Error()))
		return
	}
	m.lastErr = nil
}

func (m *Manager) indexOf(id string) int {
	for i := range m.notes {
		if m.notes[i].ID == id {
			return i
		}
	}
	return -1
}

func (m *Manager) notify(kind, id string) {
	if m.onChange != nil {
		m.onChange(kind, id)
	}
}
