// Package models defines the domain types for Quire.
package models

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// UntitledLabel is shown (and used for export filenames) when a note has no title.
const UntitledLabel = "Untitled"

// Note is the persisted unit of data. ID is assigned at creation and never changes.
type Note struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	Content  string    `json:"content"`
	Date     time.Time `json:"date"`
	IsPinned bool      `json:"isPinned"`
}

// NewNote returns an empty, unpinned note with a fresh identifier.
func NewNote(now time.Time) Note {
	return Note{
		ID:   uuid.New().String(),
		Date: now,
	}
}

// DisplayTitle returns the title, or UntitledLabel when it is blank.
func (n Note) DisplayTitle() string {
	if strings.TrimSpace(n.Title) == "" {
		return UntitledLabel
	}
	return n.Title
}

// Equal reports whether every field of n and other matches.
func (n Note) Equal(other Note) bool {
	return n.ID == other.ID &&
		n.Title == other.Title &&
		n.Content == other.Content &&
		n.Date.Equal(other.Date) &&
		n.IsPinned == other.IsPinned
}

// SortNotes orders notes in place: pinned before unpinned, newest first within each group.
func SortNotes(notes []Note) {
	sort.SliceStable(notes, func(i, j int) bool {
		if notes[i].IsPinned != notes[j].IsPinned {
			return notes[i].IsPinned
		}
		return notes[i].Date.After(notes[j].Date)
	})
}

// Span is a half-open byte range [Start, End) within a note's content.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Len returns the span width in bytes.
func (s Span) Len() int { return s.End - s.Start }
