package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"

	"github.com/bcnelson/position-admin/internal/domain"
	"github.com/bcnelson/position-admin/internal/master"
	"github.com/bcnelson/position-admin/internal/query"
	"github.com/bcnelson/position-admin/internal/storage"
)

// Import statuses.
const (
	StatusImportComplete    = "POSITIONS_IMPORT_PROCESS_COMPLETE"
	StatusImportFetchFailed = "POSITIONS_IMPORT_FETCH_FAILED"
)

// SyncService moves public positions between this server and the master.
type SyncService struct {
	store  storage.Storage
	source master.PositionSource
	logger *zap.Logger

	imported metric.Int64Counter
	exported metric.Int64Counter
}

// NewSyncService creates a SyncService. source may be nil on a server that
// only exports. A nil meter disables metrics.
func NewSyncService(store storage.Storage, source master.PositionSource, logger *zap.Logger, meter metric.Meter) (*SyncService, error) {
	if meter == nil {
		meter = noop.NewMeterProvider().Meter("sync")
	}
	imported, err := meter.Int64Counter("positions_imported",
		metric.WithDescription("Positions processed by imports from the master server"))
	if err != nil {
		return nil, err
	}
	exported, err := meter.Int64Counter("positions_exported",
		metric.WithDescription("Positions served by the sync-out export"))
	if err != nil {
		return nil, err
	}

	return &SyncService{
		store:    store,
		source:   source,
		logger:   logger.Named("sync"),
		imported: imported,
		exported: exported,
	}, nil
}

// IsSelfTarget reports whether syncURL points at this server.
func IsSelfTarget(syncURL, rootURL string) bool {
	rootURL = strings.TrimRight(strings.TrimSpace(rootURL), "/")
	if rootURL == "" {
		return false
	}
	return strings.Contains(syncURL, rootURL)
}

// CheckTarget returns domain.ErrSyncSelfTarget when an import from syncURL
// would read back this server's own export.
func CheckTarget(syncURL, rootURL string) error {
	if IsSelfTarget(syncURL, rootURL) {
		return fmt.Errorf("%w: %s", domain.ErrSyncSelfTarget, syncURL)
	}
	return nil
}

// Export returns the public positions of one election, oldest first.
func (s *SyncService) Export(ctx context.Context, electionID int64) ([]domain.PositionSyncRecord, error) {
	if electionID == 0 {
		return nil, fmt.Errorf("%w: google_civic_election_id is required", domain.ErrInvalidInput)
	}

	f := &query.PositionFilter{Elections: &query.ElectionScope{ElectionIDs: []int64{electionID}}}
	positions, err := s.store.ListPositions(ctx, domain.Public, f, storage.ListOptions{Order: storage.OrderDateEntered})
	if err != nil {
		return nil, fmt.Errorf("listing positions for export: %w", err)
	}

	records := make([]domain.PositionSyncRecord, len(positions))
	for i, p := range positions {
		records[i] = domain.NewPositionSyncRecord(p)
	}
	s.exported.Add(ctx, int64(len(records)))
	return records, nil
}

// Import pulls one election's positions from the master server and upserts
// them. Each record commits in its own transaction; a failed record rolls back
// alone. Records without a we_vote_id or a ballot item
// are not processed; a record matching an existing we_vote_id updates it; a
// record whose speaker already has a position on the same ballot item in the
// same election is skipped as a duplicate; anything else is saved.
func (s *SyncService) Import(ctx context.Context, electionID int64) (*domain.ImportResult, error) {
	if s.source == nil {
		return nil, fmt.Errorf("%w: no master server configured", domain.ErrSyncFailed)
	}
	if electionID == 0 {
		return nil, fmt.Errorf("%w: google_civic_election_id is required", domain.ErrInvalidInput)
	}

	records, err := s.source.FetchPositions(ctx, electionID)
	if err != nil {
		s.logger.Error("fetching positions from master failed",
			zap.Int64("google_civic_election_id", electionID), zap.Error(err))
		return &domain.ImportResult{Status: StatusImportFetchFailed + ": " + err.Error()}, nil
	}

	res := &domain.ImportResult{Success: true, Status: StatusImportComplete}
	for i := range records {
		outcome, err := s.importOne(ctx, &records[i])
		if err != nil {
			s.logger.Warn("position not imported",
				zap.String("we_vote_id", records[i].WeVoteID), zap.Error(err))
		}
		switch outcome {
		case outcomeSaved:
			res.Saved++
		case outcomeUpdated:
			res.Updated++
		case outcomeDuplicate:
			res.DuplicatesRemoved++
		default:
			res.NotProcessed++
		}
		s.imported.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", string(outcome))))
	}

	s.logger.Info("positions imported",
		zap.Int64("google_civic_election_id", electionID),
		zap.Int("saved", res.Saved),
		zap.Int("updated", res.Updated),
		zap.Int("duplicates", res.DuplicatesRemoved),
		zap.Int("not_processed", res.NotProcessed))
	return res, nil
}

type importOutcome string

const (
	outcomeSaved        importOutcome = "saved"
	outcomeUpdated      importOutcome = "updated"
	outcomeDuplicate    importOutcome = "duplicate"
	outcomeNotProcessed importOutcome = "not_processed"
)

// importOne runs importRecord in a transaction of its own.
func (s *SyncService) importOne(ctx context.Context, r *domain.PositionSyncRecord) (importOutcome, error) {
	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return outcomeNotProcessed, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	outcome, err := s.importRecord(ctx, tx, r)
	if err != nil {
		return outcomeNotProcessed, err
	}
	if outcome == outcomeNotProcessed || outcome == outcomeDuplicate {
		return outcome, nil
	}
	if err := tx.Commit(); err != nil {
		return outcomeNotProcessed, fmt.Errorf("%w: committing: %v", domain.ErrNotSaved, err)
	}
	return outcome, nil
}

func (s *SyncService) importRecord(ctx context.Context, tx storage.Transaction, r *domain.PositionSyncRecord) (importOutcome, error) {
	if r.WeVoteID == "" || !r.HasBallotItem() {
		return outcomeNotProcessed, nil
	}

	existing, err := tx.GetPosition(ctx, domain.Public, r.WeVoteID)
	switch {
	case err == nil:
		if err := r.ApplyTo(existing); err != nil {
			return outcomeNotProcessed, err
		}
		if err := tx.UpdatePosition(ctx, domain.Public, existing); err != nil {
			return outcomeNotProcessed, err
		}
		return outcomeUpdated, nil
	case !errors.Is(err, domain.ErrNotFound):
		return outcomeNotProcessed, err
	}

	var p domain.Position
	if err := r.ApplyTo(&p); err != nil {
		return outcomeNotProcessed, err
	}

	duplicate, err := hasEquivalentPosition(ctx, tx, &p)
	if err != nil {
		return outcomeNotProcessed, err
	}
	if duplicate {
		return outcomeDuplicate, nil
	}

	if err := tx.CreatePosition(ctx, domain.Public, &p); err != nil {
		return outcomeNotProcessed, err
	}
	return outcomeSaved, nil
}

// hasEquivalentPosition reports whether the speaker of p already holds a
// public position on the same ballot item in the same election.
func hasEquivalentPosition(ctx context.Context, store storage.Storage, p *domain.Position) (bool, error) {
	speaker := p.SpeakerWeVoteID()
	if speaker == "" {
		return false, nil
	}

	f := &query.PositionFilter{Elections: &query.ElectionScope{ElectionIDs: []int64{p.GoogleCivicElectionID}}}
	if p.IsCandidatePosition() {
		f.CandidateWeVoteIDIn = []string{p.CandidateCampaignWeVoteID}
	} else {
		f.ContestMeasureWeVoteID = p.ContestMeasureWeVoteID
	}
	if p.OrganizationWeVoteID != "" {
		f.OrganizationWeVoteID = p.OrganizationWeVoteID
	}

	candidates, err := store.ListPositions(ctx, domain.Public, f, storage.ListOptions{})
	if err != nil {
		return false, fmt.Errorf("checking for duplicates: %w", err)
	}
	for _, other := range candidates {
		if other.WeVoteID != p.WeVoteID && other.SpeakerWeVoteID() == speaker {
			return true, nil
		}
	}
	return false, nil
}
