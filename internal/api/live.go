package api

import (
	"net/http"

	"github.com/starford/hikelog/internal/live"
)

// LiveListResponse is the cached hike list together with the change
// version it reflects.
type LiveListResponse struct {
	HikeListResponse
	Version uint64 `json:"version" example:"7"`
}

// LiveHikes serves the snapshot held by list (GET /api/live/hikes).
// Clients poll it after an /events notification instead of re-querying.
func LiveHikes(list *live.HikeList) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, LiveListResponse{
			HikeListResponse: hikeList(list.Hikes()),
			Version:          list.Version(),
		})
	}
}
