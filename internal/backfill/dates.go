package backfill

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/bcnelson/position-admin/internal/domain"
	"github.com/bcnelson/position-admin/internal/query"
	"github.com/bcnelson/position-admin/internal/storage"
)

// SortingDates regenerates the election dates positions are sorted by. It
// stamps the election day and year onto the election's candidates and
// measures, links candidates to their office, then copies each candidate's or
// measure's date and year onto the public and friends-only positions about it.
func (s *Service) SortingDates(ctx context.Context, electionID int64) (*domain.SortingDatesResult, error) {
	res := &domain.SortingDatesResult{}
	if electionID == 0 {
		res.Status = "GENERATE_POSITION_SORTING_DATES-MISSING_GOOGLE_CIVIC_ELECTION_ID"
		return res, nil
	}

	var status []string
	var day int64
	var year int
	election, err := s.store.GetElection(ctx, electionID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		status = append(status, "ELECTION_NOT_FOUND")
	case err != nil:
		res.Status = "GENERATE_POSITION_SORTING_DATES-ELECTION_LOOKUP_FAILED"
		return res, fmt.Errorf("loading election %d: %w", electionID, err)
	default:
		day, year = election.ElectionDayInt(), election.Year()
	}

	candidates, err := s.sortingDatesCandidates(ctx, electionID, day, year, res)
	if err != nil {
		res.Status = strings.Join(append(status, "CANDIDATES_NOT_RETRIEVED"), " ")
		return res, err
	}
	measures, err := s.sortingDatesMeasures(ctx, electionID, day, year, res)
	if err != nil {
		res.Status = strings.Join(append(status, "MEASURES_NOT_RETRIEVED"), " ")
		return res, err
	}

	for _, vis := range visibilities() {
		if err := s.sortingDatesPositions(ctx, vis, electionID, candidates, measures, res); err != nil {
			res.Status = strings.Join(append(status, "POSITIONS_NOT_RETRIEVED"), " ")
			return res, err
		}
	}

	res.Status = strings.Join(append(status, "GENERATE_POSITION_SORTING_DATES_COMPLETE"), " ")
	return res, nil
}

func (s *Service) sortingDatesCandidates(ctx context.Context, electionID, day int64, year int, res *domain.SortingDatesResult) (*lookupCache[string, *domain.Candidate], error) {
	const routine = "sorting_dates_candidates"
	cache := newLookupCache(s.store.GetCandidate)
	offices := newLookupCache(s.store.GetContestOffice)

	list, err := s.store.ListCandidates(ctx, storage.CandidateFilter{ElectionIDs: []int64{electionID}})
	if err != nil {
		return nil, fmt.Errorf("listing candidates for election %d: %w", electionID, err)
	}

	var written Result
	for _, c := range list {
		cache.put(c.WeVoteID, c)
		if written.Updated >= s.batchSize {
			continue
		}
		written.Examined++

		var ultimate, yearChanged, linked bool
		ultimate = setInt(&c.CandidateUltimateElectionDate, day)
		if year != 0 && c.CandidateYear != year {
			c.CandidateYear = year
			yearChanged = true
		}
		if c.ContestOfficeWeVoteID != "" && (c.ContestOfficeID == 0 || c.ContestOfficeName == "") {
			office, ok, err := offices.get(ctx, c.ContestOfficeWeVoteID)
			if err != nil {
				s.rowFailed(ctx, routine, &written, err, zap.String("contest_office_we_vote_id", c.ContestOfficeWeVoteID))
			} else if ok {
				linked = setInt(&c.ContestOfficeID, office.ID)
				linked = setString(&c.ContestOfficeName, office.OfficeName) || linked
			}
		}
		if !ultimate && !yearChanged && !linked {
			continue
		}
		if err := s.store.UpdateCandidate(ctx, c); err != nil {
			s.rowFailed(ctx, routine, &written, err, zap.String("candidate_we_vote_id", c.WeVoteID))
			continue
		}
		written.Updated++
		if ultimate {
			res.CandidateUltimateUpdateCount++
		}
		if yearChanged {
			res.CandidateYearUpdateCount++
		}
		if linked {
			res.CandidateToOfficeLinkUpdateCount++
		}
	}
	return cache, nil
}

func (s *Service) sortingDatesMeasures(ctx context.Context, electionID, day int64, year int, res *domain.SortingDatesResult) (*lookupCache[string, *domain.ContestMeasure], error) {
	const routine = "sorting_dates_measures"
	cache := newLookupCache(s.store.GetContestMeasure)

	list, err := s.store.ListContestMeasures(ctx, electionID, "")
	if err != nil {
		return nil, fmt.Errorf("listing measures for election %d: %w", electionID, err)
	}

	var written Result
	for _, m := range list {
		cache.put(m.WeVoteID, m)
		if written.Updated >= s.batchSize {
			continue
		}
		written.Examined++

		ultimate := setInt(&m.MeasureUltimateElectionDate, day)
		yearChanged := false
		if year != 0 && m.MeasureYear != year {
			m.MeasureYear = year
			yearChanged = true
		}
		if !ultimate && !yearChanged {
			continue
		}
		if err := s.store.UpdateContestMeasure(ctx, m); err != nil {
			s.rowFailed(ctx, routine, &written, err, zap.String("contest_measure_we_vote_id", m.WeVoteID))
			continue
		}
		written.Updated++
		res.ContestMeasureUpdateCount++
		if ultimate {
			res.MeasureUltimateUpdateCount++
		}
		if yearChanged {
			res.MeasureYearUpdateCount++
		}
	}
	return cache, nil
}

func (s *Service) sortingDatesPositions(
	ctx context.Context,
	vis domain.Visibility,
	electionID int64,
	candidates *lookupCache[string, *domain.Candidate],
	measures *lookupCache[string, *domain.ContestMeasure],
	res *domain.SortingDatesResult,
) error {
	const routine = "sorting_dates_positions"

	candidateIDs := make([]string, 0, len(candidates.found))
	for id := range candidates.found {
		candidateIDs = append(candidateIDs, id)
	}
	scope := &query.ElectionScope{ElectionIDs: []int64{electionID}, CandidateWeVoteIDs: candidateIDs}

	ultimateCandidate, yearCandidate := &res.PublicUltimateCandidateUpdateCount, &res.PublicPositionYearCandidateUpdateCount
	ultimateMeasure, yearMeasure := &res.PublicUltimateMeasureUpdateCount, &res.PublicPositionYearMeasureUpdateCount
	if vis == domain.FriendsOnly {
		ultimateCandidate, yearCandidate = &res.FriendsUltimateCandidateUpdateCount, &res.FriendsPositionYearCandidateUpdateCount
		ultimateMeasure, yearMeasure = &res.FriendsUltimateMeasureUpdateCount, &res.FriendsPositionYearMeasureUpdateCount
	}

	positions, err := s.store.ListPositions(ctx, vis, &query.PositionFilter{Elections: scope}, storage.ListOptions{})
	if err != nil {
		return fmt.Errorf("listing %s positions for election %d: %w", vis, electionID, err)
	}

	var written Result
	for _, p := range positions {
		if written.Updated >= s.batchSize {
			break
		}
		written.Examined++

		var day int64
		var year int
		var ultimateCount, yearCount *int
		switch {
		case p.IsCandidatePosition():
			c, ok, err := candidates.get(ctx, p.CandidateCampaignWeVoteID)
			if err != nil {
				s.rowFailed(ctx, routine, &written, err, zap.String("candidate_we_vote_id", p.CandidateCampaignWeVoteID))
				continue
			}
			if !ok {
				continue
			}
			day, year = c.CandidateUltimateElectionDate, c.CandidateYear
			ultimateCount, yearCount = ultimateCandidate, yearCandidate
		case p.IsMeasurePosition():
			m, ok, err := measures.get(ctx, p.ContestMeasureWeVoteID)
			if err != nil {
				s.rowFailed(ctx, routine, &written, err, zap.String("contest_measure_we_vote_id", p.ContestMeasureWeVoteID))
				continue
			}
			if !ok {
				continue
			}
			day, year = m.MeasureUltimateElectionDate, m.MeasureYear
			ultimateCount, yearCount = ultimateMeasure, yearMeasure
		default:
			continue
		}

		ultimate := setInt(&p.PositionUltimateElectionDate, day)
		yearChanged := false
		if year != 0 && p.PositionYear != year {
			p.PositionYear = year
			yearChanged = true
		}
		if !ultimate && !yearChanged {
			continue
		}

		before := written.Updated
		s.savePosition(ctx, routine, vis, p, &written)
		if written.Updated == before {
			continue
		}
		if ultimate {
			*ultimateCount++
		}
		if yearChanged {
			*yearCount++
		}
	}
	return nil
}
