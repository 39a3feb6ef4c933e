package heatmap

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// SetupRoutes mounts under /api/v1/heatmap.
func SetupRoutes(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Get("/", h.Heatmap)
	r.Get("/statistics", h.Statistics)
	return r
}
