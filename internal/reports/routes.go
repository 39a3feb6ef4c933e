package reports

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/riddle015/riverhacks/internal/middleware"
)

// SetupRoutes mounts under /api/v1/reports.
func SetupRoutes(h *Handler, verifier middleware.TokenVerifier) http.Handler {
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		r.Use(middleware.OptionalAuth(verifier))

		r.Get("/", h.ListReports)
		r.Post("/", h.CreateReport)
		r.Post("/check-duplicates", h.CheckDuplicates)
		r.Get("/{id}", h.GetReport)
		r.Get("/{id}/updates", h.ListUpdates)
		r.Post("/{id}/updates", h.AppendUpdate)
		r.Get("/{id}/votes", h.VoteSummary)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(verifier))

		r.Post("/{id}/votes", h.CastVote)
		r.Delete("/{id}", h.DeleteReport)
	})

	return r
}

// SetupCategoryRoutes mounts under /api/v1/categories.
func SetupCategoryRoutes(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Get("/", h.ListCategories)
	return r
}
