package api

import (
	"errors"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"

	"github.com/starford/hikelog/internal/photos"
)

const maxUploadBytes = photos.MaxBytes + 1<<20

// PhotoHandler accepts hike and observation photos and serves stored ones.
type PhotoHandler struct {
	h      *Handler
	photos *photos.Store
}

// NewPhotoHandler creates a handler over store. store may be nil, in which
// case uploads fail and nothing is served.
func NewPhotoHandler(h *Handler, store *photos.Store) *PhotoHandler {
	return &PhotoHandler{h: h, photos: store}
}

// ServeFile handles GET /photos/{filename}.
func (ph *PhotoHandler) ServeFile(w http.ResponseWriter, r *http.Request) {
	if ph.photos == nil {
		http.NotFound(w, r)
		return
	}
	name := chi.URLParam(r, "filename")
	f, err := ph.photos.Open(photos.RefPrefix + name)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			http.NotFound(w, r)
		} else {
			http.Error(w, "invalid photo reference", http.StatusBadRequest)
		}
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	http.ServeContent(w, r, filepath.Base(name), info.ModTime(), f)
}

// Upload handles POST /api/hikes/{id}/photo (multipart/form-data, field "file").
func (ph *PhotoHandler) Upload(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	file, header, ok := formFile(w, r)
	if !ok {
		return
	}
	defer file.Close()

	hike, err := ph.h.svc.AttachPhoto(r.Context(), id, header.Filename, file)
	if err != nil {
		writeError(w, "upload photo", err)
		return
	}
	writeJSON(w, http.StatusCreated, hike)
}

// UploadObservation handles POST /api/observations/{id}/photo.
func (ph *PhotoHandler) UploadObservation(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	file, header, ok := formFile(w, r)
	if !ok {
		return
	}
	defer file.Close()

	obs, err := ph.h.svc.AttachObservationPhoto(r.Context(), id, header.Filename, file)
	if err != nil {
		writeError(w, "upload observation photo", err)
		return
	}
	writeJSON(w, http.StatusCreated, obs)
}

// formFile reads the "file" part of a size-limited multipart body.
func formFile(w http.ResponseWriter, r *http.Request) (multipart.File, *multipart.FileHeader, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("file too large or invalid multipart"))
		return nil, nil, false
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("missing 'file' field in multipart form"))
		return nil, nil, false
	}
	return file, header, true
}
