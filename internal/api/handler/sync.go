package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/bcnelson/position-admin/internal/domain"
	"github.com/bcnelson/position-admin/internal/service"
)

// SyncHandler serves the position export other servers import from.
type SyncHandler struct {
	sync   *service.SyncService
	logger *zap.Logger
}

// NewSyncHandler creates a new sync handler.
func NewSyncHandler(sync *service.SyncService, logger *zap.Logger) *SyncHandler {
	return &SyncHandler{sync: sync, logger: logger.Named("sync-out")}
}

// Export writes one election's public positions as a JSON array. Failures are
// reported as a status object so importers can tell them from an empty list.
func (h *SyncHandler) Export(w http.ResponseWriter, r *http.Request) {
	electionID, _ := strconv.ParseInt(strings.TrimSpace(r.URL.Query().Get("google_civic_election_id")), 10, 64)
	if electionID == 0 {
		RespondStatus(w, http.StatusOK, domain.StatusElectionIDRequired)
		return
	}

	records, err := h.sync.Export(r.Context(), electionID)
	if err != nil {
		if !errors.Is(err, domain.ErrInvalidInput) {
			h.logger.Error("exporting positions", zap.Int64("google_civic_election_id", electionID), zap.Error(err))
		}
		RespondStatus(w, http.StatusOK, domain.StatusPositionListMissing)
		return
	}
	if len(records) == 0 {
		RespondStatus(w, http.StatusOK, domain.StatusPositionListMissing)
		return
	}

	h.logger.Debug("positions exported", zap.Int64("google_civic_election_id", electionID), zap.Int("count", len(records)))
	respondJSON(w, http.StatusOK, records)
}
