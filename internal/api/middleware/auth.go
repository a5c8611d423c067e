package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/bcnelson/position-admin/internal/api/handler"
)

// SharedKey creates middleware requiring key from callers, either as the
// api_key query parameter or as a bearer token. An empty key lets every
// request through.
func SharedKey(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if key == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			provided := r.URL.Query().Get("api_key")
			if provided == "" {
				if authHeader := r.Header.Get("Authorization"); strings.HasPrefix(authHeader, "Bearer ") {
					provided = strings.TrimPrefix(authHeader, "Bearer ")
				}
			}

			if provided == "" || subtle.ConstantTimeCompare([]byte(provided), []byte(key)) != 1 {
				handler.RespondStatus(w, http.StatusUnauthorized, handler.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
