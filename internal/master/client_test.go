package master

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bcnelson/position-admin/internal/domain"
)

const positionsBody = `[
  {"we_vote_id": "wv01pos1", "google_civic_election_id": 4000, "candidate_campaign_we_vote_id": "wv01cand1",
   "date_entered": "2026-09-01 10:00:00", "stance": "SUPPORT"},
  {"we_vote_id": "wv01pos2", "google_civic_election_id": 4001, "contest_measure_we_vote_id": "wv01meas1"}
]`

func newTestClient(t *testing.T, url string) *Client {
	t.Helper()
	c, err := New(Options{URL: url, APIKey: "k", Attempts: 3, Delay: time.Millisecond}, zap.NewNop())
	require.NoError(t, err)
	return c
}

func TestFetchPositions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "4000", r.URL.Query().Get("google_civic_election_id"))
		assert.Equal(t, "k", r.URL.Query().Get("api_key"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(positionsBody))
	}))
	defer srv.Close()

	records, err := newTestClient(t, srv.URL+"/positions/sync-out").FetchPositions(context.Background(), 4000)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "wv01pos1", records[0].WeVoteID)
	assert.Equal(t, "2026-09-01 10:00:00", records[0].DateEntered)
}

func TestFetchPositionsRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(positionsBody))
	}))
	defer srv.Close()

	records, err := newTestClient(t, srv.URL).FetchPositions(context.Background(), 4000)
	require.NoError(t, err)
	assert.Len(t, records, 2)
	assert.Equal(t, int32(3), calls.Load())
}

func TestFetchPositionsStatusObjectIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`{"success": false, "status": "POSITION_LIST_MISSING"}`))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL).FetchPositions(context.Background(), 4000)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrSyncFailed)
	assert.Contains(t, err.Error(), "POSITION_LIST_MISSING")
	assert.Equal(t, int32(1), calls.Load())
}

func TestNewRejectsBadURL(t *testing.T) {
	_, err := New(Options{URL: "not a url"}, zap.NewNop())
	assert.Error(t, err)
}

func TestFileShimFiltersByElection(t *testing.T) {
	path := filepath.Join(t.TempDir(), "positions.json")
	require.NoError(t, os.WriteFile(path, []byte(positionsBody), 0o600))

	records, err := NewFileShim(path).FetchPositions(context.Background(), 4001)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "wv01pos2", records[0].WeVoteID)

	_, err = NewFileShim(filepath.Join(t.TempDir(), "missing.json")).FetchPositions(context.Background(), 4001)
	assert.Error(t, err)
}
