package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/quire/internal/noteservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *noteservice.Manager, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Notes CRUD.
	r.Get("/notes", h.ListNotes)
	r.Post("/notes", h.CreateNote)
	r.Route("/notes/{id}", func(r chi.Router) {
		r.Get("/", h.GetNote)
		r.Put("/", h.UpdateNote)
		r.Delete("/", h.DeleteNote)
		r.Post("/pin", h.TogglePin)

		// Text tools.
		r.Get("/find", h.Find)
		r.Post("/replace", h.Replace)
		r.Get("/highlight", h.Highlight)
		r.Get("/html", h.RenderHTML)

		r.Get("/export", h.ExportNote)
	})

	// Bulk transfer.
	r.Get("/export", h.ExportAll)
	r.Post("/import", h.Import)

	// Shell state.
	r.Get("/status", h.Status)
	r.Put("/onboarding", h.SetOnboarding)

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
