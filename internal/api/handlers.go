package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/quire/internal/apperr"
	"github.com/starford/quire/internal/checksum"
	"github.com/starford/quire/internal/models"
	"github.com/starford/quire/internal/noteservice"
	"github.com/starford/quire/internal/render"
)

const maxBodyBytes = 10 << 20

// Handler holds API route handlers.
type Handler struct {
	svc  *noteservice.Manager
	html *render.HTML
}

// NewHandler creates a new Handler.
func NewHandler(svc *noteservice.Manager) *Handler {
	return &Handler{svc: svc, html: render.NewHTML(render.DefaultCodeStyle)}
}

// decodeJSON reads a JSON body into v. An empty body leaves v untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return invalid(errors.New("invalid JSON body"))
	}
	return nil
}

func (h *Handler) note(r *http.Request) (models.Note, error) {
	n, ok := h.svc.Get(chi.URLParam(r, "id"))
	if !ok {
		return models.Note{}, apperr.ErrNotFound
	}
	return n, nil
}

func writeNote(w http.ResponseWriter, status int, n models.Note) {
	w.Header().Set("ETag", `"`+checksum.Note(n)+`"`)
	writeJSON(w, status, n)
}

// ListNotes handles GET /notes. The optional q parameter fuzzy-filters by title and content.
func (h *Handler) ListNotes(w http.ResponseWriter, r *http.Request) {
	notes := h.svc.Filter(r.URL.Query().Get("q"))
	writeJSON(w, http.StatusOK, NoteListResponse{Notes: notes, Total: len(notes)})
}

// CreateNote handles POST /notes. The body is optional.
func (h *Handler) CreateNote(w http.ResponseWriter, r *http.Request) {
	var req CreateNoteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, "create note", err)
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, "create note", invalid(err))
		return
	}
	n := h.svc.CreateNote(req.Title, req.Content)
	writeNote(w, http.StatusCreated, n)
}

// GetNote handles GET /notes/{id}.
func (h *Handler) GetNote(w http.ResponseWriter, r *http.Request) {
	n, err := h.note(r)
	if err != nil {
		writeError(w, "get note", err)
		return
	}
	writeNote(w, http.StatusOK, n)
}

// UpdateNote handles PUT /notes/{id} with optional If-Match optimistic concurrency.
func (h *Handler) UpdateNote(w http.ResponseWriter, r *http.Request) {
	var req UpdateNoteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, "update note", err)
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, "update note", invalid(err))
		return
	}

	// Strip surrounding quotes if present (standard ETag format).
	ifMatch := strings.Trim(r.Header.Get("If-Match"), `"`)
	updated, err := h.svc.Edit(chi.URLParam(r, "id"), ifMatch, func(n *models.Note) {
		*n = req.Apply(*n)
	})
	if err != nil {
		writeError(w, "update note", err)
		return
	}
	writeNote(w, http.StatusOK, updated)
}

// DeleteNote handles DELETE /notes/{id}.
func (h *Handler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	n, err := h.note(r)
	if err != nil {
		writeError(w, "delete note", err)
		return
	}
	h.svc.DeleteNote(n.ID)
	w.WriteHeader(http.StatusNoContent)
}

// TogglePin handles POST /notes/{id}/pin.
func (h *Handler) TogglePin(w http.ResponseWriter, r *http.Request) {
	n, ok := h.svc.TogglePin(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, "toggle pin", apperr.ErrNotFound)
		return
	}
	writeNote(w, http.StatusOK, n)
}

// Find handles GET /notes/{id}/find?q=. An empty query yields no matches.
func (h *Handler) Find(w http.ResponseWriter, r *http.Request) {
	spans, err := h.svc.FindAll(chi.URLParam(r, "id"), r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, "find", err)
		return
	}
	writeJSON(w, http.StatusOK, FindResponse{Matches: spans, Count: len(spans)})
}

// Replace handles POST /notes/{id}/replace.
func (h *Handler) Replace(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req ReplaceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, "replace", err)
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, "replace", invalid(err))
		return
	}

	if req.All {
		n, count, err := h.svc.ReplaceAll(id, req.Query, req.Replacement)
		if err != nil {
			writeError(w, "replace", err)
			return
		}
		writeJSON(w, http.StatusOK, ReplaceResponse{Note: n, Replaced: count})
		return
	}

	n, changed, err := h.svc.ReplaceNext(id, req.Query, req.Replacement)
	if err != nil {
		writeError(w, "replace", err)
		return
	}
	replaced := 0
	if changed {
		replaced = 1
	}
	writeJSON(w, http.StatusOK, ReplaceResponse{Note: n, Replaced: replaced})
}

// Highlight handles GET /notes/{id}/highlight.
func (h *Handler) Highlight(w http.ResponseWriter, r *http.Request) {
	a, err := h.svc.Highlight(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "highlight", err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// RenderHTML handles GET /notes/{id}/html.
func (h *Handler) RenderHTML(w http.ResponseWriter, r *http.Request) {
	n, err := h.note(r)
	if err != nil {
		writeError(w, "render", err)
		return
	}
	out, err := h.html.Render(n.Content)
	if err != nil {
		writeError(w, "render", err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, out)
}

// Status handles GET /status.
func (h *Handler) Status(w http.ResponseWriter, _ *http.Request) {
	resp := StatusResponse{Notes: len(h.svc.Notes())}
	if err := h.svc.LastError(); err != nil {
		resp.LastError = err.Error()
	}
	done, err := h.svc.OnboardingCompleted()
	if err != nil {
		writeError(w, "status", err)
		return
	}
	resp.OnboardingCompleted = done
	writeJSON(w, http.StatusOK, resp)
}

// SetOnboarding handles PUT /onboarding.
func (h *Handler) SetOnboarding(w http.ResponseWriter, r *http.Request) {
	var req OnboardingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, "onboarding", err)
		return
	}
	if err := h.svc.SetOnboardingCompleted(req.Completed); err != nil {
		writeError(w, "onboarding", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
