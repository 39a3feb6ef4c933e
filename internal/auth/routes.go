package auth

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/riddle015/riverhacks/internal/middleware"
)

// SetupRoutes mounts under /api/v1/auth.
func SetupRoutes(h *Handler) http.Handler {
	r := chi.NewRouter()

	r.Post("/signup", h.Signup)
	r.Post("/login", h.Login)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(h.gw))

		r.Get("/me", h.Me)
		r.Put("/password", h.ChangePassword)
	})

	return r
}
