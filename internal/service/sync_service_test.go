package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bcnelson/position-admin/internal/domain"
	"github.com/bcnelson/position-admin/internal/storage"
	"github.com/bcnelson/position-admin/internal/storage/memory"
)

const electionID int64 = 4000

type stubSource struct {
	records []domain.PositionSyncRecord
	err     error
}

func (s *stubSource) FetchPositions(ctx context.Context, id int64) ([]domain.PositionSyncRecord, error) {
	return s.records, s.err
}

func newTestSyncService(t *testing.T, store storage.Storage, source *stubSource) *SyncService {
	t.Helper()
	var svc *SyncService
	var err error
	if source == nil {
		svc, err = NewSyncService(store, nil, zap.NewNop(), nil)
	} else {
		svc, err = NewSyncService(store, source, zap.NewNop(), nil)
	}
	require.NoError(t, err)
	return svc
}

func TestIsSelfTarget(t *testing.T) {
	assert.True(t, IsSelfTarget("https://api.wevoteusa.org/apis/v1/positionsSyncOut/", "https://api.wevoteusa.org/"))
	assert.False(t, IsSelfTarget("https://api.wevoteusa.org/apis/v1/positionsSyncOut/", "http://localhost:8080"))
	assert.False(t, IsSelfTarget("https://api.wevoteusa.org/", ""))

	assert.ErrorIs(t, CheckTarget("http://localhost:8080/positions/sync-out", "http://localhost:8080/"), domain.ErrSyncSelfTarget)
	assert.NoError(t, CheckTarget("https://api.wevoteusa.org/apis/v1/positionsSyncOut/", "http://localhost:8080"))
}

func TestExport(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	base := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	for i, id := range []string{"wv01third", "wv01second", "wv01first"} {
		require.NoError(t, store.CreatePosition(ctx, domain.Public, &domain.Position{
			WeVoteID:                  id,
			GoogleCivicElectionID:     electionID,
			CandidateCampaignWeVoteID: "wv01cand1",
			DateEntered:               base.Add(time.Duration(2-i) * time.Hour),
		}))
	}
	require.NoError(t, store.CreatePosition(ctx, domain.Public, &domain.Position{
		WeVoteID: "wv01elsewhere", GoogleCivicElectionID: electionID + 1,
	}))
	require.NoError(t, store.CreatePosition(ctx, domain.FriendsOnly, &domain.Position{
		WeVoteID: "wv01private", GoogleCivicElectionID: electionID,
	}))

	svc := newTestSyncService(t, store, nil)
	records, err := svc.Export(ctx, electionID)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "wv01first", records[0].WeVoteID)
	assert.Equal(t, "wv01second", records[1].WeVoteID)
	assert.Equal(t, "wv01third", records[2].WeVoteID)
	assert.Equal(t, "2026-09-01 10:00:00", records[0].DateEntered)

	_, err = svc.Export(ctx, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestImport(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	require.NoError(t, store.CreatePosition(ctx, domain.Public, &domain.Position{
		WeVoteID:                  "wv01existing",
		GoogleCivicElectionID:     electionID,
		CandidateCampaignWeVoteID: "wv01cand1",
		OrganizationWeVoteID:      "wv01org1",
		Stance:                    domain.StanceOppose,
	}))
	require.NoError(t, store.CreatePosition(ctx, domain.Public, &domain.Position{
		WeVoteID:               "wv01local",
		GoogleCivicElectionID:  electionID,
		ContestMeasureWeVoteID: "wv01meas1",
		VoterWeVoteID:          "wv01voter1",
	}))

	source := &stubSource{records: []domain.PositionSyncRecord{
		{WeVoteID: "wv01existing", GoogleCivicElectionID: electionID, CandidateCampaignWeVoteID: "wv01cand1",
			OrganizationWeVoteID: "wv01org1", Stance: domain.StanceSupport},
		{WeVoteID: "wv01dupe", GoogleCivicElectionID: electionID, ContestMeasureWeVoteID: "wv01meas1",
			VoterWeVoteID: "wv01voter1"},
		{WeVoteID: "wv01new", GoogleCivicElectionID: electionID, CandidateCampaignWeVoteID: "wv01cand2",
			OrganizationWeVoteID: "wv01org1", DateEntered: "2026-09-01 10:00:00"},
		{WeVoteID: "", CandidateCampaignWeVoteID: "wv01cand2"},
		{WeVoteID: "wv01noitem", GoogleCivicElectionID: electionID},
		{WeVoteID: "wv01baddate", GoogleCivicElectionID: electionID, ContestMeasureWeVoteID: "wv01meas2",
			DateEntered: "yesterday"},
	}}

	svc := newTestSyncService(t, store, source)
	res, err := svc.Import(ctx, electionID)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, StatusImportComplete, res.Status)
	assert.Equal(t, 1, res.Saved)
	assert.Equal(t, 1, res.Updated)
	assert.Equal(t, 1, res.DuplicatesRemoved)
	assert.Equal(t, 3, res.NotProcessed)

	updated, err := store.GetPosition(ctx, domain.Public, "wv01existing")
	require.NoError(t, err)
	assert.Equal(t, domain.StanceSupport, updated.Stance)

	created, err := store.GetPosition(ctx, domain.Public, "wv01new")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC), created.DateEntered.UTC())

	_, err = store.GetPosition(ctx, domain.Public, "wv01dupe")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

// recordingStore counts transactions and fails creates of one we_vote_id.
type recordingStore struct {
	storage.Storage
	begins       int
	commits      int
	failWeVoteID string
}

func (s *recordingStore) BeginTx(ctx context.Context) (storage.Transaction, error) {
	s.begins++
	return recordingTx{s}, nil
}

func (s *recordingStore) CreatePosition(ctx context.Context, vis domain.Visibility, p *domain.Position) error {
	if p.WeVoteID == s.failWeVoteID {
		return fmt.Errorf("%w: disk full", domain.ErrNotSaved)
	}
	return s.Storage.CreatePosition(ctx, vis, p)
}

type recordingTx struct {
	*recordingStore
}

func (t recordingTx) Commit() error {
	t.commits++
	return nil
}

func (t recordingTx) Rollback() error { return nil }

func TestImportCommitsEachRecord(t *testing.T) {
	ctx := context.Background()
	store := &recordingStore{Storage: memory.New(), failWeVoteID: "wv01bad"}
	source := &stubSource{records: []domain.PositionSyncRecord{
		{WeVoteID: "wv01bad", GoogleCivicElectionID: electionID, CandidateCampaignWeVoteID: "wv01cand1",
			OrganizationWeVoteID: "wv01org1"},
		{WeVoteID: "wv01good", GoogleCivicElectionID: electionID, CandidateCampaignWeVoteID: "wv01cand1",
			OrganizationWeVoteID: "wv01org2"},
		{WeVoteID: "wv01noitem", GoogleCivicElectionID: electionID},
	}}

	res, err := newTestSyncService(t, store, source).Import(ctx, electionID)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Saved)
	assert.Equal(t, 2, res.NotProcessed)
	assert.Equal(t, 3, store.begins)
	assert.Equal(t, 1, store.commits)

	_, err = store.GetPosition(ctx, domain.Public, "wv01good")
	assert.NoError(t, err)
}

func TestImportFetchFailure(t *testing.T) {
	svc := newTestSyncService(t, memory.New(), &stubSource{err: errors.New("connection refused")})
	res, err := svc.Import(context.Background(), electionID)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Contains(t, res.Status, StatusImportFetchFailed)
}

func TestImportRequiresSourceAndElection(t *testing.T) {
	_, err := newTestSyncService(t, memory.New(), nil).Import(context.Background(), electionID)
	assert.ErrorIs(t, err, domain.ErrSyncFailed)

	_, err = newTestSyncService(t, memory.New(), &stubSource{}).Import(context.Background(), 0)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestExportImportRoundTrip(t *testing.T) {
	ctx := context.Background()
	masterStore := memory.New()
	original := &domain.Position{
		WeVoteID:                     "wv01pos1",
		BallotItemDisplayName:        "Jane Doe",
		BallotItemImageURLHTTPS:      "https://img.example/jane.jpg",
		BallotItemTwitterHandle:      "janedoe",
		SpeakerDisplayName:           "League of Voters",
		SpeakerImageURLHTTPS:         "https://img.example/league.jpg",
		SpeakerTwitterHandle:         "league",
		SpeakerType:                  "C3",
		DateEntered:                  time.Date(2026, 8, 1, 9, 30, 0, 0, time.UTC),
		DateLastChanged:              time.Date(2026, 8, 2, 9, 30, 0, 0, time.UTC),
		OrganizationWeVoteID:         "wv01org1",
		GoogleCivicElectionID:        electionID,
		StateCode:                    "CA",
		VoteSmartRatingID:            "r1",
		VoteSmartTimeSpan:            "2025-2026",
		VoteSmartRating:              "90",
		VoteSmartRatingName:          "Lifetime",
		ContestOfficeWeVoteID:        "wv01off1",
		RaceOfficeLevel:              "state",
		CandidateCampaignWeVoteID:    "wv01cand1",
		GoogleCivicCandidateName:     "JANE DOE",
		PoliticianWeVoteID:           "wv01pol1",
		Stance:                       domain.StanceSupport,
		PositionUltimateElectionDate: 20261103,
		PositionYear:                 2026,
		StatementText:                "Endorsed.",
		StatementHTML:                "<p>Endorsed.</p>",
		TwitterFollowersCount:        1200,
		MoreInfoURL:                  "https://league.example/endorsements",
		FromScraper:                  true,
		OrganizationCertified:        true,
		VoterEnteringPosition:        7,
		TweetSourceID:                8,
		TwitterUserEnteredPosition:   9,
	}
	require.NoError(t, masterStore.CreatePosition(ctx, domain.Public, original))

	exported, err := newTestSyncService(t, masterStore, nil).Export(ctx, electionID)
	require.NoError(t, err)

	local := memory.New()
	res, err := newTestSyncService(t, local, &stubSource{records: exported}).Import(ctx, electionID)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Saved)

	got, err := local.GetPosition(ctx, domain.Public, "wv01pos1")
	require.NoError(t, err)
	stored, err := masterStore.GetPosition(ctx, domain.Public, "wv01pos1")
	require.NoError(t, err)
	assert.Equal(t, domain.NewPositionSyncRecord(stored), domain.NewPositionSyncRecord(got))

	t.Run("update keeps master timestamps", func(t *testing.T) {
		stored.StatementText = "Endorsed again."
		stored.DateLastChanged = time.Date(2026, 9, 15, 8, 0, 0, 0, time.UTC)
		require.NoError(t, masterStore.UpdatePosition(ctx, domain.Public, stored))

		exported, err := newTestSyncService(t, masterStore, nil).Export(ctx, electionID)
		require.NoError(t, err)
		res, err := newTestSyncService(t, local, &stubSource{records: exported}).Import(ctx, electionID)
		require.NoError(t, err)
		assert.Equal(t, 1, res.Updated)

		got, err := local.GetPosition(ctx, domain.Public, "wv01pos1")
		require.NoError(t, err)
		assert.Equal(t, "2026-09-15 08:00:00", domain.NewPositionSyncRecord(got).DateLastChanged)
		assert.Equal(t, domain.NewPositionSyncRecord(stored), domain.NewPositionSyncRecord(got))
	})
}
