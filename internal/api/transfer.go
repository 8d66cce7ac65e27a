package api

import (
	"log/slog"
	"net/http"
	"path/filepath"

	"github.com/go-chi/chi/v5"
)

const maxUploadBytes = 50 << 20 // 50 MB

// ExportNote handles GET /notes/{id}/export and streams the written .md file.
func (h *Handler) ExportNote(w http.ResponseWriter, r *http.Request) {
	path, err := h.svc.ExportNote(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "export note", err)
		return
	}
	h.serveDownload(w, r, path, "text/markdown; charset=utf-8")
}

// ExportAll handles GET /export and streams the zip archive.
func (h *Handler) ExportAll(w http.ResponseWriter, r *http.Request) {
	path, err := h.svc.ExportAll()
	if err != nil {
		writeError(w, "export all", err)
		return
	}
	h.serveDownload(w, r, path, "application/zip")
}

// serveDownload streams path and removes it afterwards; downloads are not kept.
func (h *Handler) serveDownload(w http.ResponseWriter, r *http.Request, path, contentType string) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+filepath.Base(path)+`"`)
	http.ServeFile(w, r, path)
	if err := h.svc.DiscardExport(path); err != nil {
		slog.Warn("export cleanup failed", slog.String("path", path), slog.String("error", err.Error()))
	}
}

// Import handles POST /import (multipart/form-data, field "file").
func (h *Handler) Import(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("file too large or invalid multipart"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("missing 'file' field in multipart form"))
		return
	}
	defer file.Close()

	n, err := h.svc.ImportReader(header.Filename, file)
	if err != nil {
		writeError(w, "import", err)
		return
	}
	writeNote(w, http.StatusCreated, n)
}
