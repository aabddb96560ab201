package api

import (
	"net/http"

	"github.com/starford/hikelog/internal/models"
)

// ListObservations handles GET /api/hikes/{id}/observations.
func (h *Handler) ListObservations(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	obs, err := h.svc.ListObservations(r.Context(), id)
	if err != nil {
		writeError(w, "list observations", err)
		return
	}
	if obs == nil {
		obs = []models.Observation{}
	}
	writeJSON(w, http.StatusOK, ObservationListResponse{Observations: obs})
}

// CreateObservation handles POST /api/hikes/{id}/observations.
func (h *Handler) CreateObservation(w http.ResponseWriter, r *http.Request) {
	hikeID, ok := pathID(w, r)
	if !ok {
		return
	}
	var req ObservationRequest
	if !decodeBody(w, r, &req) {
		return
	}
	o, err := h.svc.AddObservation(r.Context(), req.toModel(0, hikeID))
	if err != nil {
		writeError(w, "create observation", err)
		return
	}
	writeJSON(w, http.StatusCreated, o)
}

// GetObservation handles GET /api/observations/{id}.
func (h *Handler) GetObservation(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	o, err := h.svc.GetObservation(r.Context(), id)
	if err != nil {
		writeError(w, "get observation", err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

// UpdateObservation handles PUT /api/observations/{id}. The observation
// stays on its hike unless hikeId is given.
func (h *Handler) UpdateObservation(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req ObservationRequest
	if !decodeBody(w, r, &req) {
		return
	}
	hikeID := req.HikeID
	if hikeID == 0 {
		cur, err := h.svc.GetObservation(r.Context(), id)
		if err != nil {
			writeError(w, "update observation", err)
			return
		}
		hikeID = cur.HikeID
	}
	o, err := h.svc.UpdateObservation(r.Context(), req.toModel(id, hikeID))
	if err != nil {
		writeError(w, "update observation", err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

// DeleteObservation handles DELETE /api/observations/{id}.
func (h *Handler) DeleteObservation(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.svc.DeleteObservation(r.Context(), id); err != nil {
		writeError(w, "delete observation", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
