package sql

import (
	"context"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bcnelson/position-admin/internal/domain"
	"github.com/bcnelson/position-admin/internal/query"
	"github.com/bcnelson/position-admin/internal/storage"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New("sqlite3", filepath.Join(t.TempDir(), "positions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func seedPositions(t *testing.T, store *Store) []*domain.Position {
	t.Helper()
	ctx := context.Background()

	positions := []*domain.Position{
		{WeVoteID: "wv01pos1", GoogleCivicElectionID: 4000, StateCode: "CA", CandidateCampaignWeVoteID: "wv01cand1",
			ContestOfficeWeVoteID: "wv01off1", SpeakerDisplayName: "Sierra Club", BallotItemDisplayName: "Jane Doe",
			OrganizationWeVoteID: "wv01org1", Stance: domain.StanceSupport, StatementText: "Strong record."},
		{WeVoteID: "wv01pos2", GoogleCivicElectionID: 4000, StateCode: "ca", ContestMeasureWeVoteID: "wv01meas1",
			GoogleCivicMeasureTitle: "Proposition 50_ Housing", SpeakerDisplayName: "Tenants Union",
			Stance: domain.StanceOppose},
		{WeVoteID: "wv01pos3", GoogleCivicElectionID: 5000, StateCode: "NY", CandidateCampaignWeVoteID: "wv01cand2",
			SpeakerDisplayName: "Jane Smith", VoterWeVoteID: "wv01voter9", Stance: domain.StanceSupport},
		{WeVoteID: "wv01pos4", GoogleCivicElectionID: 0, StateCode: "CA", CandidateCampaignWeVoteID: "wv01cand1",
			SpeakerDisplayName: "Sierra Nevada Alliance", BallotItemDisplayName: "Jane Doe",
			PoliticianWeVoteIDAnalyzed: true},
	}
	for _, p := range positions {
		require.NoError(t, store.CreatePosition(ctx, domain.Public, p))
		friend := *p
		require.NoError(t, store.CreatePosition(ctx, domain.FriendsOnly, &friend))
	}
	return positions
}

func ids(positions []*domain.Position) []string {
	out := make([]string, 0, len(positions))
	for _, p := range positions {
		out = append(out, p.WeVoteID)
	}
	sort.Strings(out)
	return out
}

func TestPositionCRUD(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	p := &domain.Position{WeVoteID: "wv01pos1", Stance: domain.StanceSupport, StateCode: "CA"}
	require.NoError(t, store.CreatePosition(ctx, domain.Public, p))
	assert.NotZero(t, p.ID)
	assert.Equal(t, domain.SpeakerTypeUnknown, p.SpeakerType)

	err := store.CreatePosition(ctx, domain.Public, &domain.Position{WeVoteID: "wv01pos1"})
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)

	got, err := store.GetPosition(ctx, domain.Public, "wv01pos1")
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)
	assert.Equal(t, "CA", got.StateCode)

	_, err = store.GetPosition(ctx, domain.FriendsOnly, "wv01pos1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	got.StatementText = "Updated"
	got.PoliticianWeVoteIDAnalyzed = true
	require.NoError(t, store.UpdatePosition(ctx, domain.Public, got))

	got, err = store.GetPosition(ctx, domain.Public, "wv01pos1")
	require.NoError(t, err)
	assert.Equal(t, "Updated", got.StatementText)
	assert.True(t, got.PoliticianWeVoteIDAnalyzed)

	changed := time.Date(2026, 8, 2, 9, 30, 0, 0, time.UTC)
	got.DateLastChanged = changed
	require.NoError(t, store.UpdatePosition(ctx, domain.Public, got))
	got, err = store.GetPosition(ctx, domain.Public, "wv01pos1")
	require.NoError(t, err)
	assert.True(t, changed.Equal(got.DateLastChanged), "got %v", got.DateLastChanged)

	got.DateLastChanged = time.Time{}
	require.NoError(t, store.UpdatePosition(ctx, domain.Public, got))
	assert.True(t, got.DateLastChanged.After(changed))

	require.NoError(t, store.DeletePosition(ctx, domain.Public, "wv01pos1"))
	assert.ErrorIs(t, store.DeletePosition(ctx, domain.Public, "wv01pos1"), domain.ErrNotFound)
}

func TestFailedWritesAreNotSaved(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.Close())

	err := store.CreatePosition(ctx, domain.Public, &domain.Position{WeVoteID: "wv01pos1"})
	assert.ErrorIs(t, err, domain.ErrNotSaved)

	err = store.UpdatePosition(ctx, domain.Public, &domain.Position{ID: 1, WeVoteID: "wv01pos1"})
	assert.ErrorIs(t, err, domain.ErrNotSaved)

	err = store.CreateElection(ctx, &domain.Election{GoogleCivicElectionID: 4000})
	assert.ErrorIs(t, err, domain.ErrNotSaved)
}

func TestListPositionsOrderAndPaging(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedPositions(t, store)

	list, err := store.ListPositions(ctx, domain.Public, nil, storage.ListOptions{Limit: 2})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "wv01pos4", list[0].WeVoteID)
	assert.Equal(t, "wv01pos3", list[1].WeVoteID)

	list, err = store.ListPositions(ctx, domain.Public, nil, storage.ListOptions{Limit: 2, Offset: 2})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "wv01pos2", list[0].WeVoteID)
}

func TestFilterAgreesWithMatch(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	all := seedPositions(t, store)

	accented := &domain.Position{WeVoteID: "wv01pos5", GoogleCivicElectionID: 6000, StateCode: "TX",
		SpeakerDisplayName: "JOSÉ ÁLVAREZ", BallotItemDisplayName: "Ñandú Parkway Bond", ContestMeasureWeVoteID: "wv01meas9"}
	require.NoError(t, store.CreatePosition(ctx, domain.Public, accented))
	friend := *accented
	require.NoError(t, store.CreatePosition(ctx, domain.FriendsOnly, &friend))
	all = append(all, accented)

	filters := map[string]query.PositionFilter{
		"search one word":        {Search: "sierra"},
		"search two words":       {Search: "sierra doe"},
		"search exact id":        {Search: "WV01CAND2"},
		"search office id":       {Search: "wv01off1"},
		"search like literal":    {Search: "50_"},
		"search underscore miss": {Search: "5_"},
		"state code":             {StateCode: "ca"},
		"election scope":         {Elections: &query.ElectionScope{ElectionIDs: []int64{4000}}},
		"election or candidate": {Elections: &query.ElectionScope{
			ElectionIDs: []int64{5000}, CandidateWeVoteIDs: []string{"wv01cand1"}}},
		"empty scope":           {Elections: &query.ElectionScope{}},
		"stance":                {Stance: "support"},
		"with statement":        {WithStatement: true},
		"needs politician":      {RequireCandidate: true, MissingPoliticianWeVoteID: true, NotPoliticianAnalyzed: true},
		"measure positions":     {RequireMeasure: true, MissingMeasureID: true},
		"candidate in":          {CandidateWeVoteIDIn: []string{"wv01cand2"}},
		"accented lower":        {Search: "josé"},
		"accented upper":        {Search: "ÑANDÚ álvarez"},
		"accented partial":      {Search: "varez"},
		"candidate in blank":    {CandidateWeVoteIDIn: []string{"", "wv01cand2"}},
		"scope blank candidate": {Elections: &query.ElectionScope{CandidateWeVoteIDs: []string{""}}},
	}

	for name, f := range filters {
		for _, vis := range []domain.Visibility{domain.Public, domain.FriendsOnly} {
			t.Run(name+"/"+vis.String(), func(t *testing.T) {
				var want []*domain.Position
				for _, p := range all {
					if f.Match(vis, p) {
						want = append(want, p)
					}
				}

				got, err := store.ListPositions(ctx, vis, &f, storage.ListOptions{})
				require.NoError(t, err)
				assert.Equal(t, ids(want), ids(got))

				n, err := store.CountPositions(ctx, vis, &f)
				require.NoError(t, err)
				assert.Equal(t, len(want), n)
			})
		}
	}

	got, err := store.ListPositions(ctx, domain.Public, &query.PositionFilter{Search: "josé"}, storage.ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"wv01pos5"}, ids(got))
}

func TestListPositionCandidateWeVoteIDs(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedPositions(t, store)

	got, err := store.ListPositionCandidateWeVoteIDs(ctx, domain.Public, &query.PositionFilter{RequireCandidate: true}, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"wv01cand1", "wv01cand2"}, got)

	got, err = store.ListPositionCandidateWeVoteIDs(ctx, domain.Public, nil, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"wv01cand1"}, got)
}

func TestCountPositionsByState(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedPositions(t, store)

	require.NoError(t, store.DeletePosition(ctx, domain.FriendsOnly, "wv01pos2"))

	counts, err := store.CountPositionsByState(ctx, []int64{4000, 5000})
	require.NoError(t, err)
	assert.Equal(t, storage.StateCount{Public: 2, FriendsOnly: 1}, counts["CA"])
	assert.Equal(t, storage.StateCount{Public: 1, FriendsOnly: 1}, counts["NY"])

	counts, err = store.CountPositionsByState(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, counts)
}

func TestBallotLookups(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	office := &domain.ContestOffice{WeVoteID: "wv01off1", OfficeName: "Mayor", GoogleCivicElectionID: 4000, StateCode: "CA"}
	require.NoError(t, store.CreateContestOffice(ctx, office))

	byID, err := store.GetContestOfficeByID(ctx, office.ID)
	require.NoError(t, err)
	assert.Equal(t, "Mayor", byID.OfficeName)

	cand := &domain.Candidate{WeVoteID: "wv01cand1", CandidateName: "Jane Doe", GoogleCivicElectionID: 4000,
		StateCode: "CA", ContestOfficeWeVoteID: "wv01off1"}
	require.NoError(t, store.CreateCandidate(ctx, cand))

	list, err := store.ListCandidates(ctx, storage.CandidateFilter{ElectionIDs: []int64{4000}, StateCode: "ca"})
	require.NoError(t, err)
	require.Len(t, list, 1)

	list, err = store.ListCandidates(ctx, storage.CandidateFilter{ElectionIDs: []int64{}})
	require.NoError(t, err)
	assert.Empty(t, list)

	cand.ContestOfficeID = office.ID
	require.NoError(t, store.UpdateCandidate(ctx, cand))
	got, err := store.GetCandidate(ctx, "wv01cand1")
	require.NoError(t, err)
	assert.Equal(t, office.ID, got.ContestOfficeID)

	measure := &domain.ContestMeasure{WeVoteID: "wv01meas1", MeasureTitle: "Prop 1", GoogleCivicElectionID: 4000}
	require.NoError(t, store.CreateContestMeasure(ctx, measure))
	measure.MeasureYear = 2026
	require.NoError(t, store.UpdateContestMeasure(ctx, measure))
	m, err := store.GetContestMeasureByID(ctx, measure.ID)
	require.NoError(t, err)
	assert.Equal(t, 2026, m.MeasureYear)

	require.NoError(t, store.CreatePolitician(ctx, &domain.Politician{WeVoteID: "wv01pol1", PoliticianName: "Jane Doe"}))
	pol, err := store.GetPolitician(ctx, "wv01pol1")
	require.NoError(t, err)
	assert.NotZero(t, pol.ID)

	require.NoError(t, store.CreateOrganization(ctx, &domain.Organization{WeVoteID: "wv01org1", OrganizationName: "Sierra Club"}))
	org, err := store.GetOrganization(ctx, "wv01org1")
	require.NoError(t, err)
	assert.Equal(t, domain.SpeakerTypeUnknown, org.OrganizationType)

	_, err = store.GetOrganization(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestElections(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, e := range []*domain.Election{
		{GoogleCivicElectionID: 1000, ElectionName: "Old Primary", ElectionDayText: "2020-03-03"},
		{GoogleCivicElectionID: 4000, ElectionName: "General", ElectionDayText: "2026-11-03"},
		{GoogleCivicElectionID: 5000, ElectionName: "Special", ElectionDayText: "2027-02-01"},
	} {
		require.NoError(t, store.CreateElection(ctx, e))
	}
	assert.ErrorIs(t, store.CreateElection(ctx, &domain.Election{GoogleCivicElectionID: 1000}), domain.ErrAlreadyExists)

	upcoming, err := store.ListUpcomingElections(ctx, "2026-10-19")
	require.NoError(t, err)
	require.Len(t, upcoming, 2)
	assert.Equal(t, int64(4000), upcoming[0].GoogleCivicElectionID)

	byID, err := store.ListElectionsByID(ctx, []int64{1000, 5000})
	require.NoError(t, err)
	require.Len(t, byID, 2)
	assert.Equal(t, int64(5000), byID[0].GoogleCivicElectionID)

	all, err := store.ListElections(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestVoters(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	v := &domain.Voter{WeVoteID: "wv01voter1", Email: " Staff@Example.org ", IsVerifiedVolunteer: true}
	require.NoError(t, store.CreateVoter(ctx, v))

	got, err := store.GetVoterByEmail(ctx, "staff@example.org")
	require.NoError(t, err)
	assert.True(t, got.IsVerifiedVolunteer)
	assert.WithinDuration(t, time.Now(), got.CreatedAt, time.Minute)

	err = store.CreateVoter(ctx, &domain.Voter{WeVoteID: "wv01voter2", Email: "staff@example.org"})
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)
}

func TestTransactionRollback(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	tx, err := store.BeginTx(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.CreatePosition(ctx, domain.Public, &domain.Position{WeVoteID: "wv01pos1"}))
	require.NoError(t, tx.Rollback())

	_, err = store.GetPosition(ctx, domain.Public, "wv01pos1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	version, err := store.Version()
	require.NoError(t, err)
	assert.Equal(t, int64(2), version)
}
