package authn

import (
	"log/slog"
	"net/http"
	"strings"
)

// Middleware enforces bearer-token auth for HTTP requests. Requests to
// /api/health and /api/auth/login pass through unauthenticated; every
// other request needs a valid "Authorization: Bearer <token>" header.
func Middleware(service *JWTService, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/api/health" || r.URL.Path == "/api/auth/login" {
				next.ServeHTTP(w, r)
				return
			}
			if !service.Enabled() {
				next.ServeHTTP(w, r)
				return
			}

			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(strings.ToLower(authHeader), "bearer ") {
				writeUnauthorized(w)
				return
			}
			token := strings.TrimSpace(authHeader[len("Bearer "):])
			username, err := service.Validate(token)
			if err != nil {
				if logger != nil {
					logger.Warn("bearer token validation failed", "error", err)
				}
				writeUnauthorized(w)
				return
			}

			ctx := WithUser(r.Context(), username)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized"}`))
}
