// Package store persists the whole note collection as one blob in a key-value provider.
package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/starford/quire/internal/apperr"
	"github.com/starford/quire/internal/checksum"
	"github.com/starford/quire/internal/kv"
	"github.com/starford/quire/internal/models"
)

// Fixed keys in the key-value provider.
const (
	NotesKey      = "notes"
	OnboardingKey = "hasCompletedOnboarding"
)

// Store serializes the note collection to JSON under NotesKey.
type Store struct {
	kv kv.Provider
}

// New creates a Store on top of p.
func New(p kv.Provider) *Store {
	return &Store{kv: p}
}

// Save writes the full ordered collection, replacing whatever was stored.
func (s *Store) Save(notes []models.Note) error {
	if notes == nil {
		notes = []models.Note{}
	}
	data, err := json.Marshal(notes)
	if err != nil {
		return fmt.Errorf("%w: encode notes: %v", apperr.ErrSave, err)
	}
	if err := s.kv.Set(NotesKey, data); err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrSave, err)
	}
	return nil
}

// Load reads the collection and returns it pinned-first, newest-first.
// A store that was never written yields an empty collection and no error.
// A blob that cannot be read yields ErrUnavailable; only a blob that was read
// but does not parse yields ErrLoad.
func (s *Store) Load() ([]models.Note, error) {
	data, err := s.kv.Get(NotesKey)
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return []models.Note{}, nil
		}
		return nil, fmt.Errorf("%w: read notes: %v", apperr.ErrUnavailable, err)
	}
	var notes []models.Note
	if err := json.Unmarshal(data, &notes); err != nil {
		return nil, fmt.Errorf("%w: decode notes: %v", apperr.ErrLoad, err)
	}
	if notes == nil {
		notes = []models.Note{}
	}
	models.SortNotes(notes)
	return notes, nil
}

// BackupKey returns the key a corrupt blob with this content is copied to.
// The key is derived from the content, so backing up the same blob twice
// yields one copy.
func BackupKey(data []byte) string {
	return NotesKey + ".corrupt." + checksum.Sum(data)[:16]
}

// Backup copies the raw collection blob under BackupKey and returns that key.
// It is used before a corrupt collection is superseded. An identical backup
// already in place is left as is.
func (s *Store) Backup() (string, error) {
	data, err := s.kv.Get(NotesKey)
	if err != nil {
		return "", fmt.Errorf("store: backup read: %w", err)
	}
	key := BackupKey(data)
	if existing, err := s.kv.Get(key); err == nil && bytes.Equal(existing, data) {
		return key, nil
	}
	if err := s.kv.Set(key, data); err != nil {
		return "", fmt.Errorf("store: backup write: %w", err)
	}
	return key, nil
}

// OnboardingCompleted reports the persisted onboarding flag; absent means false.
func (s *Store) OnboardingCompleted() (bool, error) {
	data, err := s.kv.Get(OnboardingKey)
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("%w: %v", apperr.ErrUnavailable, err)
	}
	var done bool
	if err := json.Unmarshal(data, &done); err != nil {
		return false, fmt.Errorf("%w: decode onboarding flag: %v", apperr.ErrLoad, err)
	}
	return done, nil
}

// SetOnboardingCompleted persists the onboarding flag.
func (s *Store) SetOnboardingCompleted(done bool) error {
	data, _ := json.Marshal(done)
	if err := s.kv.Set(OnboardingKey, data); err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrSave, err)
	}
	return nil
}
