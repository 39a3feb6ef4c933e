package localinfo

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// SetupSerpAPIRoutes mounts under /api/v1/serpapi.
func SetupSerpAPIRoutes(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Get("/news", h.News)
	r.Get("/events", h.Events)
	r.Get("/volunteer-events", h.VolunteerEvents)
	return r
}

// SetupContextRoutes mounts under /api/v1/context.
func SetupContextRoutes(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Get("/", h.Context)
	r.Get("/incident", h.IncidentContext)
	return r
}

// SetupSafePlaceRoutes mounts under /api/v1/safe-places.
func SetupSafePlaceRoutes(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Get("/", h.SafePlaces)
	return r
}
