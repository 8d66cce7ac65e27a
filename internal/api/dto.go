package api

import (
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/quire/internal/apperr"
	"github.com/starford/quire/internal/models"
)

const maxTitleLen = 1024

// CreateNoteRequest is the optional body for creating a note.
type CreateNoteRequest struct {
	Title   string `json:"title" example:"Groceries"`
	Content string `json:"content" example:"- eggs\n- milk"`
}

// Validate validates the create request.
func (r CreateNoteRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Title, validation.Length(0, maxTitleLen)),
	)
}

// UpdateNoteRequest carries the fields to change; nil fields are left alone.
type UpdateNoteRequest struct {
	Title    *string `json:"title,omitempty" example:"Groceries"`
	Content  *string `json:"content,omitempty" example:"- eggs"`
	IsPinned *bool   `json:"isPinned,omitempty"`
}

// Validate validates the update request.
func (r UpdateNoteRequest) Validate() error {
	if r.Title == nil && r.Content == nil && r.IsPinned == nil {
		return fmt.Errorf("at least one of title, content, isPinned is required")
	}
	return validation.ValidateStruct(&r,
		validation.Field(&r.Title, validation.Length(0, maxTitleLen)),
	)
}

// Apply returns n with the request's fields applied.
func (r UpdateNoteRequest) Apply(n models.Note) models.Note {
	if r.Title != nil {
		n.Title = *r.Title
	}
	if r.Content != nil {
		n.Content = *r.Content
	}
	if r.IsPinned != nil {
		n.IsPinned = *r.IsPinned
	}
	return n
}

// ReplaceRequest is the body for find-and-replace on a note.
type ReplaceRequest struct {
	Query       string `json:"query" example:"teh" validate:"required"`
	Replacement string `json:"replacement" example:"the"`
	All         bool   `json:"all"`
}

// Validate validates the replace request. Empty search text is rejected
// explicitly rather than silently ignored.
func (r ReplaceRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Query, validation.Required),
	)
}

// OnboardingRequest sets the onboarding flag.
type OnboardingRequest struct {
	Completed bool `json:"completed"`
}

// NoteListResponse wraps note listings.
type NoteListResponse struct {
	Notes []models.Note `json:"notes" validate:"required"`
	Total int           `json:"total" example:"42" validate:"required"`
}

// FindResponse lists match spans within a note.
type FindResponse struct {
	Matches []models.Span `json:"matches" validate:"required"`
	Count   int           `json:"count" validate:"required"`
}

// ReplaceResponse reports the updated note and how many replacements happened.
type ReplaceResponse struct {
	Note     models.Note `json:"note" validate:"required"`
	Replaced int         `json:"replaced" validate:"required"`
}

// StatusResponse summarizes manager state for the shell.
type StatusResponse struct {
	Notes               int    `json:"notes"`
	LastError           string `json:"lastError,omitempty"`
	OnboardingCompleted bool   `json:"onboardingCompleted"`
}

func invalid(err error) error {
	return fmt.Errorf("%w: %v", apperr.ErrInvalidInput, err)
}
