package api

import (
	"io"
	"net/http"
	"strconv"

	"github.com/starford/hikelog/internal/checksum"
)

// ExportHike handles GET /api/hikes/{id}/export. The body is the shareable
// text block; the ETag is its checksum so unchanged exports return 304.
func (h *Handler) ExportHike(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	text, err := h.svc.ExportHike(r.Context(), id)
	if err != nil {
		writeError(w, "export hike", err)
		return
	}
	etag := checksum.ETag(text)
	w.Header().Set("ETag", etag)
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="hike-`+strconv.FormatInt(id, 10)+`.txt"`)
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, text)
}

// Import handles POST /api/import. The raw body is the shared text; the
// response is always an ImportResult.
func (h *Handler) Import(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("failed to read body"))
		return
	}
	res := h.svc.ImportFromText(r.Context(), string(body))
	status := http.StatusCreated
	if !res.Success {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, res)
}
