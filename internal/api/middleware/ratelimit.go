package middleware

import (
	"net/http"

	"golang.org/x/time/rate"

	"github.com/bcnelson/position-admin/internal/api/handler"
)

// RateLimit rejects requests once limiter runs out of tokens.
func RateLimit(limiter *rate.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				w.Header().Set("Retry-After", "1")
				handler.RespondStatus(w, http.StatusTooManyRequests, handler.StatusRateLimited)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
