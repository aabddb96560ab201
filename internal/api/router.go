package api

import (
	"github.com/go-chi/chi/v5"

	"github.com/starford/hikelog/internal/hikeservice"
	"github.com/starford/hikelog/internal/live"
	"github.com/starford/hikelog/internal/photos"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// broker, if non-nil, is mounted at GET /events inside the auth group and
// feeds /stats. photoStore may be nil when photos are disabled.
func NewRouter(svc *hikeservice.Service, broker *live.Broker, photoStore *photos.Store, authEnabled bool, token string) chi.Router {
	h := NewHandler(svc, broker)
	ph := NewPhotoHandler(h, photoStore)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	r.Route("/hikes", func(r chi.Router) {
		r.Get("/", h.ListHikes)
		r.Post("/", h.CreateHike)
		r.Delete("/", h.DeleteAllHikes)

		r.Get("/search", h.Search)
		r.Get("/filter", h.Filter)
		r.Post("/duplicate", h.CheckDuplicate)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetHike)
			r.Put("/", h.UpdateHike)
			r.Delete("/", h.DeleteHike)
			r.Get("/export", h.ExportHike)
			r.Get("/observations", h.ListObservations)
			r.Post("/observations", h.CreateObservation)
			r.Post("/photo", ph.Upload)
			r.Post("/calendar", h.AddToCalendar)
		})
	})

	r.Route("/observations/{id}", func(r chi.Router) {
		r.Get("/", h.GetObservation)
		r.Put("/", h.UpdateObservation)
		r.Delete("/", h.DeleteObservation)
		r.Post("/photo", ph.UploadObservation)
	})

	r.Post("/import", h.Import)
	r.Get("/photos/{filename}", ph.ServeFile)
	r.Get("/stats", h.Stats)

	// SSE endpoint (protected by same auth middleware).
	if broker != nil {
		r.Get("/events", broker.ServeHTTP)
	}

	return r
}
