package domain

import "errors"

// Common errors used throughout the application.
var (
	ErrNotFound       = errors.New("record not found")
	ErrNotSaved       = errors.New("record not saved")
	ErrAlreadyExists  = errors.New("already exists")
	ErrInvalidInput   = errors.New("invalid input")
	ErrSyncFailed     = errors.New("sync failed")
	ErrSyncSelfTarget = errors.New("sync target is this server")
)

// Status codes returned in JSON bodies by the sync endpoints.
const (
	StatusElectionIDRequired  = "POSITION_LIST_CANNOT_BE_RETURNED-ELECTION_ID_REQUIRED"
	StatusPositionListMissing = "POSITION_LIST_MISSING"
)

// StatusResponse is the failure body of the JSON sync endpoints.
type StatusResponse struct {
	Success bool   `json:"success"`
	Status  string `json:"status"`
}
