package web

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bcnelson/position-admin/internal/auth"
	"github.com/bcnelson/position-admin/internal/backfill"
	"github.com/bcnelson/position-admin/internal/domain"
	"github.com/bcnelson/position-admin/internal/service"
	"github.com/bcnelson/position-admin/internal/storage"
	"github.com/bcnelson/position-admin/internal/storage/memory"
)

const testElectionID int64 = 5000

var testKey = []byte("0123456789abcdef0123456789abcdef")

type testEnv struct {
	t        *testing.T
	store    *memory.Store
	sessions *auth.SessionManager
	flashes  *FlashStore
	handler  http.Handler
}

type stubSource struct {
	records []domain.PositionSyncRecord
}

func (s *stubSource) FetchPositions(ctx context.Context, id int64) ([]domain.PositionSyncRecord, error) {
	return s.records, nil
}

func newTestEnv(t *testing.T, syncURL, rootURL string, source *stubSource) *testEnv {
	t.Helper()
	store := memory.New()

	sessions, err := auth.NewSessionManager(testKey, time.Hour, false)
	require.NoError(t, err)
	flashes, err := NewFlashStore(testKey, false)
	require.NoError(t, err)
	bf, err := backfill.NewService(store, zap.NewNop(), backfill.Options{})
	require.NoError(t, err)

	var sync *service.SyncService
	if source != nil {
		sync, err = service.NewSyncService(store, source, zap.NewNop(), nil)
		require.NoError(t, err)
	}

	handler, err := NewRouter(Options{
		Store:    store,
		Sync:     sync,
		Backfill: bf,
		Sessions: sessions,
		Flashes:  flashes,
		Logger:   zap.NewNop(),
		SyncURL:  syncURL,
		RootURL:  rootURL,
	})
	require.NoError(t, err)

	return &testEnv{t: t, store: store, sessions: sessions, flashes: flashes, handler: handler}
}

// signIn creates a voter holding roles and returns its session cookie.
func (e *testEnv) signIn(roles ...domain.Role) *http.Cookie {
	e.t.Helper()
	hash, err := auth.HashPassword("correct horse")
	require.NoError(e.t, err)
	v := &domain.Voter{
		WeVoteID:     "wv01voter" + string(roles[0]),
		Email:        string(roles[0]) + "@example.org",
		PasswordHash: hash,
	}
	for _, r := range roles {
		v.SetRole(r)
	}
	require.NoError(e.t, e.store.CreateVoter(context.Background(), v))

	rec := httptest.NewRecorder()
	require.NoError(e.t, e.sessions.Create(rec, v, "password"))
	cookies := rec.Result().Cookies()
	require.NotEmpty(e.t, cookies)
	return cookies[0]
}

func (e *testEnv) do(req *http.Request, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	for _, c := range cookies {
		if c != nil {
			req.AddCookie(c)
		}
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) get(target string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	return e.do(httptest.NewRequest(http.MethodGet, target, nil), cookies...)
}

func (e *testEnv) post(target string, form url.Values, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return e.do(req, cookies...)
}

// flashesOf decodes the flash cookie a response set.
func (e *testEnv) flashesOf(rec *httptest.ResponseRecorder) []FlashMessage {
	e.t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range rec.Result().Cookies() {
		if c.Name == FlashCookieName {
			req.AddCookie(c)
		}
	}
	return e.flashes.peek(req)
}

func (e *testEnv) addPosition(p *domain.Position) {
	e.t.Helper()
	if p.GoogleCivicElectionID == 0 {
		p.GoogleCivicElectionID = testElectionID
	}
	require.NoError(e.t, e.store.CreatePosition(context.Background(), domain.Public, p))
}

func TestAnonymousIsSentToSignIn(t *testing.T) {
	env := newTestEnv(t, "", "", nil)

	rec := env.get("/positions")
	assert.Equal(t, http.StatusSeeOther, rec.Code)

	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "/login", loc.Path)
	assert.Equal(t, "/positions", loc.Query().Get("next"))
	assert.Contains(t, loc.Query().Get("error"), "partner_organization")
}

func TestRoleGuard(t *testing.T) {
	tests := []struct {
		name   string
		role   domain.Role
		target string
		want   int
	}{
		{"viewer reads list", domain.RolePoliticalDataViewer, "/positions?google_civic_election_id=5000", http.StatusOK},
		{"viewer cannot edit", domain.RolePoliticalDataViewer, "/positions/new", http.StatusSeeOther},
		{"volunteer edits", domain.RoleVerifiedVolunteer, "/positions/new", http.StatusOK},
		{"manager edits", domain.RolePoliticalDataManager, "/positions/new", http.StatusOK},
		{"manager cannot import", domain.RolePoliticalDataManager, "/positions/import", http.StatusSeeOther},
		{"admin edits", domain.RoleAdmin, "/positions/new", http.StatusOK},
		{"analytics admin cannot read", domain.RoleAnalyticsAdmin, "/positions", http.StatusSeeOther},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, "", "", nil)
			rec := env.get(tt.target, env.signIn(tt.role))
			assert.Equal(t, tt.want, rec.Code)
			if tt.want == http.StatusSeeOther {
				assert.True(t, strings.HasPrefix(rec.Header().Get("Location"), "/login?"))
			}
		})
	}
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t, "", "", nil)
	env.signIn(domain.RoleAdmin)

	rec := env.post("/login", url.Values{
		"email":    {"admin@example.org"},
		"password": {"correct horse"},
		"next":     {"/positions"},
	})
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/positions", rec.Header().Get("Location"))
	assert.NotEmpty(t, rec.Result().Cookies())

	rec = env.post("/login", url.Values{
		"email":    {"admin@example.org"},
		"password": {"wrong"},
	})
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Contains(t, rec.Header().Get("Location"), "Invalid+email+or+password")
}

func TestLoginPageShowsError(t *testing.T) {
	env := newTestEnv(t, "", "", nil)
	rec := env.get("/login?error=Nope")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Nope")
}

func TestPositionListSearch(t *testing.T) {
	env := newTestEnv(t, "", "", nil)
	env.addPosition(&domain.Position{WeVoteID: "wv01pos1", SpeakerDisplayName: "Sierra Club", BallotItemDisplayName: "Jane Doe"})
	env.addPosition(&domain.Position{WeVoteID: "wv01pos2", SpeakerDisplayName: "Rifle Association", BallotItemDisplayName: "John Roe"})
	env.addPosition(&domain.Position{WeVoteID: "wv01pos3", SpeakerDisplayName: "Sierra Club", BallotItemDisplayName: "Jane Doe", GoogleCivicElectionID: 9999})
	cookie := env.signIn(domain.RolePoliticalDataViewer)

	rec := env.get("/positions?google_civic_election_id=5000&position_search=sierra+jane", cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "/positions/wv01pos1")
	assert.NotContains(t, body, "/positions/wv01pos2")
	assert.NotContains(t, body, "/positions/wv01pos3")

	rec = env.get("/positions?google_civic_election_id=5000", cookie)
	body = rec.Body.String()
	assert.Contains(t, body, "/positions/wv01pos1")
	assert.Contains(t, body, "/positions/wv01pos2")
	assert.NotContains(t, body, "Delete")
}

func TestPositionListStatistics(t *testing.T) {
	env := newTestEnv(t, "", "", nil)
	env.addPosition(&domain.Position{WeVoteID: "wv01pos1", StatementText: "We endorse."})
	env.addPosition(&domain.Position{WeVoteID: "wv01pos2"})
	cookie := env.signIn(domain.RoleAdmin)

	rec := env.get("/positions?google_civic_election_id=5000&show_statistics=1", cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "2 public positions found (1 with commentary).")
}

func TestPositionListPaging(t *testing.T) {
	env := newTestEnv(t, "", "", nil)
	for i := 0; i < positionsPerPage+1; i++ {
		env.addPosition(&domain.Position{WeVoteID: "wv01pos" + string(rune('a'+i))})
	}
	cookie := env.signIn(domain.RolePoliticalDataViewer)

	rec := env.get("/positions?google_civic_election_id=5000", cookie)
	assert.Contains(t, rec.Body.String(), "page=2")

	rec = env.get("/positions?google_civic_election_id=5000&page=2", cookie)
	body := rec.Body.String()
	assert.Contains(t, body, "/positions/wv01posa")
	assert.NotContains(t, body, "page=3")
}

func TestFriendsOnlyListRequiresAdmin(t *testing.T) {
	env := newTestEnv(t, "", "", nil)
	require.NoError(t, env.store.CreatePosition(context.Background(), domain.FriendsOnly, &domain.Position{
		WeVoteID:              "wv01friend1",
		GoogleCivicElectionID: testElectionID,
	}))

	rec := env.get("/positions?google_civic_election_id=5000&show_friends_only=1", env.signIn(domain.RolePoliticalDataManager))
	assert.NotContains(t, rec.Body.String(), "wv01friend1")

	rec = env.get("/positions?google_civic_election_id=5000&show_friends_only=1", env.signIn(domain.RoleAdmin))
	assert.Contains(t, rec.Body.String(), "wv01friend1")
}

func TestPositionSummary(t *testing.T) {
	env := newTestEnv(t, "", "", nil)
	env.addPosition(&domain.Position{WeVoteID: "wv01pos1", SpeakerDisplayName: "Sierra Club", StatementText: "We endorse."})
	cookie := env.signIn(domain.RolePartnerOrganization)

	rec := env.get("/positions/wv01pos1", cookie)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "We endorse.")

	rec = env.get("/positions/wv01missing", cookie)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPositionEditProcess(t *testing.T) {
	env := newTestEnv(t, "", "", nil)
	cookie := env.signIn(domain.RoleVerifiedVolunteer)
	ctx := context.Background()

	rec := env.post("/positions/edit", url.Values{
		"speaker_display_name":     {"Sierra Club"},
		"ballot_item_display_name": {"Jane Doe"},
		"stance":                   {"support"},
		"google_civic_election_id": {"5000"},
		"state_code":               {"ca"},
	}, cookie)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/positions?google_civic_election_id=5000&state_code=CA", rec.Header().Get("Location"))
	assert.Equal(t, []FlashMessage{success("New position saved.")}, env.flashesOf(rec))

	created, err := env.store.ListPositions(ctx, domain.Public, nil, storage.ListOptions{})
	require.NoError(t, err)
	require.Len(t, created, 1)
	p := created[0]
	assert.True(t, strings.HasPrefix(p.WeVoteID, "wv00pos"))
	assert.Equal(t, domain.StanceSupport, p.Stance)
	assert.Equal(t, domain.SpeakerTypeUnknown, p.SpeakerType)

	rec = env.post("/positions/edit", url.Values{
		"position_we_vote_id":      {p.WeVoteID},
		"speaker_display_name":     {"Sierra Club"},
		"stance":                   {"OPPOSE"},
		"google_civic_election_id": {"5000"},
	}, cookie)
	assert.Equal(t, []FlashMessage{success("Position updated.")}, env.flashesOf(rec))
	updated, err := env.store.GetPosition(ctx, domain.Public, p.WeVoteID)
	require.NoError(t, err)
	assert.Equal(t, domain.StanceOppose, updated.Stance)

	rec = env.post("/positions/edit", url.Values{"stance": {"MAYBE"}}, cookie)
	flashes := env.flashesOf(rec)
	require.Len(t, flashes, 1)
	assert.Equal(t, FlashError, flashes[0].Type)
	assert.Contains(t, flashes[0].Message, "Could not save position.")
}

func TestPositionDelete(t *testing.T) {
	env := newTestEnv(t, "", "", nil)
	env.addPosition(&domain.Position{WeVoteID: "wv01pos1", OrganizationWeVoteID: "wv01org1"})
	cookie := env.signIn(domain.RoleVerifiedVolunteer)

	rec := env.post("/positions/delete", url.Values{
		"position_we_vote_id":      {"wv01pos1"},
		"google_civic_election_id": {"5000"},
	}, cookie)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/positions?google_civic_election_id=5000&organization_we_vote_id=wv01org1", rec.Header().Get("Location"))
	assert.Equal(t, []FlashMessage{info("Position deleted.")}, env.flashesOf(rec))

	_, err := env.store.GetPosition(context.Background(), domain.Public, "wv01pos1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	rec = env.post("/positions/delete", url.Values{
		"position_we_vote_id":      {"wv01pos1"},
		"google_civic_election_id": {"5000"},
	}, cookie)
	assert.Equal(t, "/positions?google_civic_election_id=5000", rec.Header().Get("Location"))
	assert.Equal(t, []FlashMessage{failure("Could not find position.")}, env.flashesOf(rec))
}

func TestFlashShownOnNextPage(t *testing.T) {
	env := newTestEnv(t, "", "", nil)
	env.addPosition(&domain.Position{WeVoteID: "wv01pos1"})
	cookie := env.signIn(domain.RoleAdmin)

	rec := env.post("/positions/delete", url.Values{"position_we_vote_id": {"wv01pos1"}}, cookie)
	var flash *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == FlashCookieName {
			flash = c
		}
	}
	require.NotNil(t, flash)

	rec = env.get("/positions?google_civic_election_id=5000", cookie, flash)
	assert.Contains(t, rec.Body.String(), "Position deleted.")
}

func TestRefreshSortingDates(t *testing.T) {
	env := newTestEnv(t, "", "", nil)
	ctx := context.Background()
	require.NoError(t, env.store.CreateElection(ctx, &domain.Election{
		GoogleCivicElectionID: testElectionID,
		ElectionName:          "General",
		ElectionDayText:       "2026-11-03",
	}))
	cookie := env.signIn(domain.RoleAdmin)

	rec := env.get("/positions/refresh?google_civic_election_id=5000&state_code=CA", cookie)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/positions?google_civic_election_id=5000&state_code=CA", rec.Header().Get("Location"))
	flashes := env.flashesOf(rec)
	require.Len(t, flashes, 1)
	assert.Contains(t, flashes[0].Message, "candidate_ultimate_update_count")
}

func TestRefreshCandidateDetailsNeedsElection(t *testing.T) {
	env := newTestEnv(t, "", "", nil)
	cookie := env.signIn(domain.RoleAdmin)

	rec := env.get("/positions/refresh/candidates", cookie)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	flashes := env.flashesOf(rec)
	require.Len(t, flashes, 1)
	assert.Equal(t, FlashInfo, flashes[0].Type)
	assert.NotContains(t, flashes[0].Message, "Social media retrieved")
}

func TestPositionsImport(t *testing.T) {
	t.Run("refuses to import from itself", func(t *testing.T) {
		env := newTestEnv(t, "https://api.example.org/apis/v1/positionsSyncOut/", "https://api.example.org", &stubSource{})
		rec := env.get("/positions/import?google_civic_election_id=5000", env.signIn(domain.RoleAdmin))
		assert.Equal(t, "/", rec.Header().Get("Location"))
		assert.Equal(t, []FlashMessage{failure("Cannot sync with Master We Vote Server -- this is the Master We Vote Server.")}, env.flashesOf(rec))
	})

	t.Run("requires an election", func(t *testing.T) {
		env := newTestEnv(t, "https://master.example.org/sync", "http://localhost:8080", &stubSource{})
		rec := env.get("/positions/import", env.signIn(domain.RoleAdmin))
		assert.Equal(t, "/sync?google_civic_election_id=&state_code=", rec.Header().Get("Location"))
		assert.Equal(t, []FlashMessage{info("Google civic election id is required for Positions import.")}, env.flashesOf(rec))
	})

	t.Run("reports counts", func(t *testing.T) {
		env := newTestEnv(t, "https://master.example.org/sync", "http://localhost:8080", &stubSource{
			records: []domain.PositionSyncRecord{
				{WeVoteID: "wv02pos1", CandidateCampaignWeVoteID: "wv02cand1", OrganizationWeVoteID: "wv02org1", GoogleCivicElectionID: testElectionID},
				{WeVoteID: "", CandidateCampaignWeVoteID: "wv02cand1"},
			},
		})
		rec := env.get("/positions/import?google_civic_election_id=5000&state_code=CA", env.signIn(domain.RoleAdmin))
		assert.Equal(t, "/sync?google_civic_election_id=5000&state_code=CA", rec.Header().Get("Location"))
		assert.Equal(t, []FlashMessage{info("Positions import completed. Saved: 1, Updated: 0, Duplicates skipped: 0, Not processed: 1")}, env.flashesOf(rec))
	})
}

func TestListURL(t *testing.T) {
	assert.Equal(t, "/positions", listURL(0, ""))
	assert.Equal(t, "/positions?google_civic_election_id=7&state_code=WA", listURL(7, "WA"))
	assert.Equal(t, "/positions?organization_we_vote_id=wv01org1", listURL(0, "", "organization_we_vote_id", "wv01org1", "position_search", ""))
}
