package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/riddle015/riverhacks/internal/apperr"
	"github.com/riddle015/riverhacks/internal/respond"
	"github.com/riddle015/riverhacks/internal/utils"
)

// TokenVerifier resolves a bearer token to the subject id it was issued for.
type TokenVerifier interface {
	VerifyToken(token string) (string, error)
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	if h == "" {
		return "", false
	}
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", false
	}
	return strings.TrimSpace(token), true
}

// RequireAuth rejects requests without a valid bearer token and stores the
// subject id in the request context.
func RequireAuth(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				respond.Error(w, apperr.Unauthorized("missing bearer token"))
				return
			}
			subject, err := verifier.VerifyToken(token)
			if err != nil {
				respond.Error(w, apperr.Unauthorized("invalid or expired token"))
				return
			}
			ctx := context.WithValue(r.Context(), utils.ContextUserIDKey, subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalAuth attaches the subject when a valid token is present and lets
// anonymous requests through. A present but invalid token is still rejected.
func OptionalAuth(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}
			subject, err := verifier.VerifyToken(token)
			if err != nil {
				respond.Error(w, apperr.Unauthorized("invalid or expired token"))
				return
			}
			ctx := context.WithValue(r.Context(), utils.ContextUserIDKey, subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// CORS echoes the origin back only if it is on the allow-list.
func CORS(origins []string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[o] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if _, ok := allowed[origin]; ok {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Vary", "Origin")
				w.Header().Set("Access-Control-Allow-Credentials", "true")
				w.Header().Set("Access-Control-Allow-Methods",
					"GET, POST, PUT, PATCH, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers",
					"Content-Type, Authorization")
			}

			w.Header().Set("Access-Control-Expose-Headers", "X-Data-Status, Retry-After")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
