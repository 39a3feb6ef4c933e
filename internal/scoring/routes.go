package scoring

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// SetupRoutes mounts under /api/v1/alerts.
func SetupRoutes(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Get("/", h.ListAlerts)
	return r
}
