package web

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/bcnelson/position-admin/internal/backfill"
	"github.com/bcnelson/position-admin/internal/service"
)

type refreshParams struct {
	electionID int64
	stateCode  string
}

func parseRefreshParams(r *http.Request) refreshParams {
	q := r.URL.Query()
	return refreshParams{
		electionID: parseInt64(q.Get("google_civic_election_id")),
		stateCode:  strings.TrimSpace(q.Get("state_code")),
	}
}

// handleRefreshSortingDates regenerates the election dates used to sort
// positions in one election.
func (s *Server) handleRefreshSortingDates(w http.ResponseWriter, r *http.Request) {
	p := parseRefreshParams(r)
	res, err := s.backfill.SortingDates(r.Context(), p.electionID)
	if err != nil {
		s.logger.Error("refreshing sorting dates", zap.Int64("google_civic_election_id", p.electionID), zap.Error(err))
		s.redirect(w, r, listURL(p.electionID, p.stateCode), failure(err.Error()))
		return
	}
	s.redirect(w, r, listURL(p.electionID, p.stateCode), info(res.String()))
}

// handleRefreshCandidateDetails pushes candidate details into the positions
// about each candidate in one election.
func (s *Server) handleRefreshCandidateDetails(w http.ResponseWriter, r *http.Request) {
	p := parseRefreshParams(r)
	res, err := s.backfill.CandidateDetails(r.Context(), p.electionID, p.stateCode)
	s.finishDetails(w, r, p, "candidate", res, err)
}

// handleRefreshOfficeDetails pushes office names and levels into positions,
// for one office or every office in an election.
func (s *Server) handleRefreshOfficeDetails(w http.ResponseWriter, r *http.Request) {
	p := parseRefreshParams(r)
	q := r.URL.Query()
	res, err := s.backfill.ContestOfficeDetails(r.Context(), backfill.DetailsTarget{
		ID:         parseInt64(q.Get("office_id")),
		WeVoteID:   strings.TrimSpace(q.Get("office_we_vote_id")),
		ElectionID: p.electionID,
		StateCode:  p.stateCode,
	})
	s.finishDetails(w, r, p, "office", res, err)
}

// handleRefreshMeasureDetails pushes measure titles and dates into positions,
// for one measure or every measure in an election.
func (s *Server) handleRefreshMeasureDetails(w http.ResponseWriter, r *http.Request) {
	p := parseRefreshParams(r)
	q := r.URL.Query()
	res, err := s.backfill.ContestMeasureDetails(r.Context(), backfill.DetailsTarget{
		ID:         parseInt64(q.Get("measure_id")),
		WeVoteID:   strings.TrimSpace(q.Get("measure_we_vote_id")),
		ElectionID: p.electionID,
		StateCode:  p.stateCode,
	})
	s.finishDetails(w, r, p, "measure", res, err)
}

func (s *Server) finishDetails(w http.ResponseWriter, r *http.Request, p refreshParams, kind string, res backfill.DetailsResult, err error) {
	target := listURL(p.electionID, p.stateCode)
	if err != nil {
		s.logger.Error("refreshing "+kind+" details", zap.Int64("google_civic_election_id", p.electionID), zap.Error(err))
		s.redirect(w, r, target, failure(err.Error()))
		return
	}
	if !res.Success {
		s.redirect(w, r, target, info(res.Status))
		return
	}
	s.redirect(w, r, target, info(fmt.Sprintf("Social media retrieved. Positions refreshed: %d,", res.PositionsUpdated)))
}

// handleRelink fills missing candidate and measure ids on positions that
// already carry the matching we_vote_id.
func (s *Server) handleRelink(w http.ResponseWriter, r *http.Request) {
	p := parseRefreshParams(r)
	res, err := s.backfill.Relink(r.Context())
	if err != nil {
		s.logger.Error("relinking positions", zap.Error(err))
		s.redirect(w, r, listURL(p.electionID, p.stateCode), failure(err.Error()))
		return
	}
	s.redirect(w, r, listURL(p.electionID, p.stateCode), info(fmt.Sprintf(
		"Positions relinked. Candidate ids linked: %s, measure ids linked: %s",
		comma(res.Candidates.Updated), comma(res.Measures.Updated))))
}

func syncURL(electionID int64, stateCode string) string {
	q := url.Values{}
	q.Set("google_civic_election_id", "")
	if electionID != 0 {
		q.Set("google_civic_election_id", strconv.FormatInt(electionID, 10))
	}
	q.Set("state_code", stateCode)
	return "/sync?" + q.Encode()
}

// handlePositionsImport pulls one election's positions from the master server.
func (s *Server) handlePositionsImport(w http.ResponseWriter, r *http.Request) {
	p := parseRefreshParams(r)

	if err := service.CheckTarget(s.syncURL, s.rootURL); err != nil {
		s.logger.Warn("refusing positions import", zap.Error(err))
		s.redirect(w, r, "/", failure("Cannot sync with Master We Vote Server -- this is the Master We Vote Server."))
		return
	}
	if p.electionID == 0 {
		s.redirect(w, r, syncURL(0, p.stateCode), info("Google civic election id is required for Positions import."))
		return
	}
	if s.sync == nil {
		s.redirect(w, r, syncURL(p.electionID, p.stateCode), failure("No master server is configured."))
		return
	}

	res, err := s.sync.Import(r.Context(), p.electionID)
	if err != nil {
		s.logger.Error("importing positions", zap.Int64("google_civic_election_id", p.electionID), zap.Error(err))
		s.redirect(w, r, syncURL(p.electionID, p.stateCode), failure(err.Error()))
		return
	}
	if !res.Success {
		s.redirect(w, r, syncURL(p.electionID, p.stateCode), failure(res.Status))
		return
	}

	s.redirect(w, r, syncURL(p.electionID, p.stateCode), info(fmt.Sprintf(
		"Positions import completed. Saved: %d, Updated: %d, Duplicates skipped: %d, Not processed: %d",
		res.Saved, res.Updated, res.DuplicatesRemoved, res.NotProcessed)))
}
