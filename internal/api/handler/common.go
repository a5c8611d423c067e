package handler

import (
	"encoding/json"
	"net/http"

	"github.com/bcnelson/position-admin/internal/domain"
)

// Failure statuses of the JSON endpoints that are not domain statuses.
const (
	StatusRateLimited  = "RATE_LIMITED"
	StatusUnauthorized = "VALID_API_KEY_REQUIRED"
)

// respondJSON writes a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// RespondStatus writes a failure body carrying a status code string.
func RespondStatus(w http.ResponseWriter, httpStatus int, status string) {
	respondJSON(w, httpStatus, &domain.StatusResponse{Success: false, Status: status})
}
