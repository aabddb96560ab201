package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/starford/hikelog/internal/hikeservice"
	"github.com/starford/hikelog/internal/live"
	"github.com/starford/hikelog/internal/models"
)

// Handler holds API route handlers.
type Handler struct {
	svc    *hikeservice.Service
	broker *live.Broker
}

// NewHandler creates a new Handler. broker may be nil.
func NewHandler(svc *hikeservice.Service, broker *live.Broker) *Handler {
	return &Handler{svc: svc, broker: broker}
}

// ListHikes handles GET /api/hikes.
//
//	@Summary		List every hike, newest first
//	@Tags			hikes
//	@Produce		json
//	@Success		200		{object}	HikeListResponse
//	@Security		BearerAuth
//	@Router			/hikes [get]
func (h *Handler) ListHikes(w http.ResponseWriter, r *http.Request) {
	hikes, err := h.svc.ListHikes(r.Context())
	if err != nil {
		writeError(w, "list hikes", err)
		return
	}
	writeJSON(w, http.StatusOK, hikeList(hikes))
}

// GetHike handles GET /api/hikes/{id}.
//
//	@Summary		Get a single hike
//	@Tags			hikes
//	@Produce		json
//	@Param			id	path		int	true	"Hike id"
//	@Success		200	{object}	models.Hike
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/hikes/{id} [get]
func (h *Handler) GetHike(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	hike, err := h.svc.GetHike(r.Context(), id)
	if err != nil {
		writeError(w, "get hike", err)
		return
	}
	writeJSON(w, http.StatusOK, hike)
}

// CreateHike handles POST /api/hikes. A stored hike with the same natural
// key yields 409 unless ?force=true.
//
//	@Summary		Create a hike
//	@Tags			hikes
//	@Accept			json
//	@Produce		json
//	@Param			force	query		bool		false	"Skip the duplicate check"
//	@Param			body	body		HikeRequest	true	"Hike to create"
//	@Success		201		{object}	models.Hike
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	DuplicateResponse
//	@Security		BearerAuth
//	@Router			/hikes [post]
func (h *Handler) CreateHike(w http.ResponseWriter, r *http.Request) {
	var req HikeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	hike, err := req.toModel(0)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	force, _ := strconv.ParseBool(r.URL.Query().Get("force"))
	created, err := h.svc.CreateHike(r.Context(), hike, force)
	if err != nil {
		writeError(w, "create hike", err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// UpdateHike handles PUT /api/hikes/{id}.
func (h *Handler) UpdateHike(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req HikeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	hike, err := req.toModel(id)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	updated, err := h.svc.UpdateHike(r.Context(), hike)
	if err != nil {
		writeError(w, "update hike", err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// DeleteHike handles DELETE /api/hikes/{id}.
func (h *Handler) DeleteHike(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.svc.DeleteHike(r.Context(), id); err != nil {
		writeError(w, "delete hike", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteAllHikes handles DELETE /api/hikes.
func (h *Handler) DeleteAllHikes(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteAll(r.Context()); err != nil {
		writeError(w, "delete all hikes", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Search handles GET /api/hikes/search.
//
//	@Summary		Case-insensitive substring search on hike names
//	@Tags			search
//	@Produce		json
//	@Param			q	query		string	true	"Search text"
//	@Success		200	{object}	HikeListResponse
//	@Failure		400	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/hikes/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if strings.TrimSpace(q) == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	hikes, err := h.svc.SearchHikes(r.Context(), q)
	if err != nil {
		writeError(w, "search hikes", err)
		return
	}
	writeJSON(w, http.StatusOK, hikeList(hikes))
}

// Filter handles GET /api/hikes/filter. Every supplied parameter must match.
//
//	@Summary		Advanced search
//	@Tags			search
//	@Produce		json
//	@Param			name		query		string	false	"Name contains"
//	@Param			location	query		string	false	"Location contains"
//	@Param			min_length	query		number	false	"Minimum length in km"
//	@Param			max_length	query		number	false	"Maximum length in km"
//	@Param			date		query		string	false	"Exact date"
//	@Param			difficulty	query		string	false	"Difficulty"	Enums(Easy, Moderate, Hard)
//	@Param			parking		query		bool	false	"Parking available"
//	@Success		200			{object}	HikeListResponse
//	@Failure		400			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/hikes/filter [get]
func (h *Handler) Filter(w http.ResponseWriter, r *http.Request) {
	c, err := parseCriteria(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	hikes, err := h.svc.AdvancedSearch(r.Context(), c)
	if err != nil {
		writeError(w, "filter hikes", err)
		return
	}
	writeJSON(w, http.StatusOK, hikeList(hikes))
}

func parseCriteria(r *http.Request) (models.SearchCriteria, error) {
	q := r.URL.Query()
	c := models.SearchCriteria{
		Name:     strings.TrimSpace(q.Get("name")),
		Location: strings.TrimSpace(q.Get("location")),
		Date:     q.Get("date"),
	}
	parseFloat := func(key string) (*float64, error) {
		v := q.Get(key)
		if v == "" {
			return nil, nil
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, errors.New(key + ": must be a number")
		}
		return &f, nil
	}
	var err error
	if c.MinLength, err = parseFloat("min_length"); err != nil {
		return c, err
	}
	if c.MaxLength, err = parseFloat("max_length"); err != nil {
		return c, err
	}
	if v := q.Get("difficulty"); v != "" {
		if c.Difficulty, err = models.ParseDifficulty(v); err != nil {
			return c, errors.New("difficulty: must be one of Easy, Moderate, Hard")
		}
	}
	if v := q.Get("parking"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return c, errors.New("parking: must be true or false")
		}
		c.Parking = &b
	}
	return c, nil
}

// CheckDuplicate handles POST /api/hikes/duplicate. It returns the stored
// hike sharing the candidate's natural key, or 404 when there is none.
func (h *Handler) CheckDuplicate(w http.ResponseWriter, r *http.Request) {
	var req HikeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	candidate, err := req.toModel(0)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	dup, err := h.svc.FindDuplicate(r.Context(), candidate)
	if err != nil {
		writeError(w, "duplicate check", err)
		return
	}
	if dup == nil {
		writeJSON(w, http.StatusNotFound, errorBody("no duplicate"))
		return
	}
	writeJSON(w, http.StatusOK, dup)
}

// AddToCalendar handles POST /api/hikes/{id}/calendar.
func (h *Handler) AddToCalendar(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	added, err := h.svc.AddToCalendar(r.Context(), id)
	if err != nil {
		writeError(w, "add to calendar", err)
		return
	}
	writeJSON(w, http.StatusOK, CalendarResponse{Added: added})
}

// Stats handles GET /api/stats.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.CountHikes(r.Context())
	if err != nil {
		writeError(w, "stats", err)
		return
	}
	resp := StatsResponse{Hikes: n}
	if h.broker != nil {
		resp.Version = h.broker.Version()
		resp.Subscribers = h.broker.ClientCount()
	}
	writeJSON(w, http.StatusOK, resp)
}
