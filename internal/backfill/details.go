package backfill

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/bcnelson/position-admin/internal/domain"
	"github.com/bcnelson/position-admin/internal/query"
	"github.com/bcnelson/position-admin/internal/storage"
)

// DetailsResult reports a push of ballot item details into positions.
type DetailsResult struct {
	Success           bool
	Status            string
	PositionsUpdated  int
	CandidatesUpdated int
	Failed            int
}

// DetailsTarget selects the ballot items to push. ID or WeVoteID selects a
// single item; otherwise every item in the election, optionally narrowed to a
// state, is pushed.
type DetailsTarget struct {
	ID         int64
	WeVoteID   string
	ElectionID int64
	StateCode  string
}

func (t DetailsTarget) single() bool {
	return t.ID != 0 || t.WeVoteID != ""
}

// CandidateDetails pushes each candidate's names, photo, twitter handle and
// office and politician links into the positions about that candidate.
func (s *Service) CandidateDetails(ctx context.Context, electionID int64, stateCode string) (DetailsResult, error) {
	const routine = "candidate_details"
	if electionID == 0 {
		return DetailsResult{Status: "REFRESH_POSITIONS_WITH_CANDIDATE_DETAILS-MISSING_ELECTION_ID"}, nil
	}

	candidates, err := s.store.ListCandidates(ctx, storage.CandidateFilter{
		ElectionIDs: []int64{electionID},
		StateCode:   stateCode,
	})
	if err != nil {
		return DetailsResult{Status: "REFRESH_POSITIONS_WITH_CANDIDATE_DETAILS-CANDIDATES_NOT_RETRIEVED"},
			fmt.Errorf("listing candidates: %w", err)
	}
	byID := make(map[string]*domain.Candidate, len(candidates))
	ids := make([]string, 0, len(candidates))
	for _, c := range candidates {
		byID[c.WeVoteID] = c
		ids = append(ids, c.WeVoteID)
	}

	res := DetailsResult{Success: true, Status: "REFRESH_POSITIONS_WITH_CANDIDATE_DETAILS_COMPLETE"}
	if len(ids) == 0 {
		return res, nil
	}

	for _, vis := range visibilities() {
		positions, err := s.store.ListPositions(ctx, vis, &query.PositionFilter{CandidateWeVoteIDIn: ids}, storage.ListOptions{})
		if err != nil {
			return DetailsResult{Status: "REFRESH_POSITIONS_WITH_CANDIDATE_DETAILS-POSITIONS_NOT_RETRIEVED"},
				fmt.Errorf("listing %s positions: %w", vis, err)
		}
		var written Result
		for _, p := range positions {
			if written.Updated >= s.batchSize {
				break
			}
			written.Examined++
			if applyCandidate(p, byID[p.CandidateCampaignWeVoteID]) {
				s.savePosition(ctx, routine, vis, p, &written)
			}
		}
		res.PositionsUpdated += written.Updated
		res.Failed += written.Failed
	}
	return res, nil
}

func applyCandidate(p *domain.Position, c *domain.Candidate) bool {
	if c == nil {
		return false
	}
	changed := setString(&p.BallotItemDisplayName, c.DisplayName())
	changed = setString(&p.BallotItemImageURLHTTPS, c.PhotoURLHTTPS) || changed
	changed = setString(&p.BallotItemTwitterHandle, c.TwitterHandle) || changed
	changed = setString(&p.GoogleCivicCandidateName, c.GoogleCivicCandidateName) || changed
	changed = setInt(&p.CandidateCampaignID, c.ID) || changed
	changed = setString(&p.ContestOfficeWeVoteID, c.ContestOfficeWeVoteID) || changed
	changed = setInt(&p.ContestOfficeID, c.ContestOfficeID) || changed
	changed = setString(&p.ContestOfficeName, c.ContestOfficeName) || changed
	changed = setString(&p.PoliticianWeVoteID, c.PoliticianWeVoteID) || changed
	changed = setInt(&p.PoliticianID, c.PoliticianID) || changed
	return changed
}

// ContestOfficeDetails pushes office ids, names and levels into the positions
// and candidates that reference each office.
func (s *Service) ContestOfficeDetails(ctx context.Context, target DetailsTarget) (DetailsResult, error) {
	const routine = "contest_office_details"

	var offices []*domain.ContestOffice
	switch {
	case target.single():
		o, err := s.lookupOffice(ctx, target)
		if errors.Is(err, domain.ErrNotFound) {
			return DetailsResult{Status: "PUSH_CONTEST_OFFICE_DATA-OFFICE_NOT_FOUND"}, nil
		}
		if err != nil {
			return DetailsResult{Status: "PUSH_CONTEST_OFFICE_DATA-OFFICE_NOT_RETRIEVED"}, err
		}
		offices = []*domain.ContestOffice{o}
	case target.ElectionID == 0:
		return DetailsResult{Status: "REFRESH_POSITIONS_WITH_CONTEST_OFFICE_DETAILS-MISSING_ELECTION_ID"}, nil
	default:
		var err error
		offices, err = s.store.ListContestOffices(ctx, target.ElectionID, target.StateCode)
		if err != nil {
			return DetailsResult{Status: "REFRESH_POSITIONS_WITH_CONTEST_OFFICE_DETAILS-OFFICES_NOT_RETRIEVED"},
				fmt.Errorf("listing offices: %w", err)
		}
	}

	res := DetailsResult{Success: true, Status: "REFRESH_POSITIONS_WITH_CONTEST_OFFICE_DETAILS_COMPLETE"}
	written := map[domain.Visibility]*Result{domain.Public: {}, domain.FriendsOnly: {}}
	var candidatesWritten Result

	for _, o := range offices {
		for _, vis := range visibilities() {
			w := written[vis]
			if w.Updated >= s.batchSize {
				continue
			}
			positions, err := s.store.ListPositions(ctx, vis,
				&query.PositionFilter{ContestOfficeWeVoteID: o.WeVoteID}, storage.ListOptions{})
			if err != nil {
				return DetailsResult{Status: "REFRESH_POSITIONS_WITH_CONTEST_OFFICE_DETAILS-POSITIONS_NOT_RETRIEVED"},
					fmt.Errorf("listing %s positions for office %s: %w", vis, o.WeVoteID, err)
			}
			for _, p := range positions {
				if w.Updated >= s.batchSize {
					break
				}
				w.Examined++
				changed := setInt(&p.ContestOfficeID, o.ID)
				changed = setString(&p.ContestOfficeName, o.OfficeName) || changed
				changed = setString(&p.RaceOfficeLevel, o.RaceOfficeLevel) || changed
				if changed {
					s.savePosition(ctx, routine, vis, p, w)
				}
			}
		}

		if candidatesWritten.Updated >= s.batchSize {
			continue
		}
		candidates, err := s.store.ListCandidates(ctx, storage.CandidateFilter{ContestOfficeWeVoteID: o.WeVoteID})
		if err != nil {
			s.rowFailed(ctx, routine, &candidatesWritten, err, zap.String("contest_office_we_vote_id", o.WeVoteID))
			continue
		}
		for _, c := range candidates {
			if candidatesWritten.Updated >= s.batchSize {
				break
			}
			candidatesWritten.Examined++
			changed := setInt(&c.ContestOfficeID, o.ID)
			changed = setString(&c.ContestOfficeName, o.OfficeName) || changed
			if !changed {
				continue
			}
			if err := s.store.UpdateCandidate(ctx, c); err != nil {
				s.rowFailed(ctx, routine, &candidatesWritten, err, zap.String("candidate_we_vote_id", c.WeVoteID))
				continue
			}
			candidatesWritten.Updated++
		}
	}

	for _, w := range written {
		res.PositionsUpdated += w.Updated
		res.Failed += w.Failed
	}
	res.CandidatesUpdated = candidatesWritten.Updated
	res.Failed += candidatesWritten.Failed
	return res, nil
}

func (s *Service) lookupOffice(ctx context.Context, t DetailsTarget) (*domain.ContestOffice, error) {
	if t.ID != 0 {
		return s.store.GetContestOfficeByID(ctx, t.ID)
	}
	return s.store.GetContestOffice(ctx, t.WeVoteID)
}

// ContestMeasureDetails pushes measure ids and titles into the positions
// about each measure.
func (s *Service) ContestMeasureDetails(ctx context.Context, target DetailsTarget) (DetailsResult, error) {
	const routine = "contest_measure_details"

	var measures []*domain.ContestMeasure
	switch {
	case target.single():
		m, err := s.lookupMeasure(ctx, target)
		if errors.Is(err, domain.ErrNotFound) {
			return DetailsResult{Status: "PUSH_CONTEST_MEASURE_DATA-MEASURE_NOT_FOUND"}, nil
		}
		if err != nil {
			return DetailsResult{Status: "PUSH_CONTEST_MEASURE_DATA-MEASURE_NOT_RETRIEVED"}, err
		}
		measures = []*domain.ContestMeasure{m}
	case target.ElectionID == 0:
		return DetailsResult{Status: "REFRESH_POSITIONS_WITH_CONTEST_MEASURE_DETAILS-MISSING_ELECTION_ID"}, nil
	default:
		var err error
		measures, err = s.store.ListContestMeasures(ctx, target.ElectionID, target.StateCode)
		if err != nil {
			return DetailsResult{Status: "REFRESH_POSITIONS_WITH_CONTEST_MEASURE_DETAILS-MEASURES_NOT_RETRIEVED"},
				fmt.Errorf("listing measures: %w", err)
		}
	}

	res := DetailsResult{Success: true, Status: "REFRESH_POSITIONS_WITH_CONTEST_MEASURE_DETAILS_COMPLETE"}
	for _, vis := range visibilities() {
		var written Result
		for _, m := range measures {
			if written.Updated >= s.batchSize {
				break
			}
			positions, err := s.store.ListPositions(ctx, vis,
				&query.PositionFilter{ContestMeasureWeVoteID: m.WeVoteID}, storage.ListOptions{})
			if err != nil {
				return DetailsResult{Status: "REFRESH_POSITIONS_WITH_CONTEST_MEASURE_DETAILS-POSITIONS_NOT_RETRIEVED"},
					fmt.Errorf("listing %s positions for measure %s: %w", vis, m.WeVoteID, err)
			}
			for _, p := range positions {
				if written.Updated >= s.batchSize {
					break
				}
				written.Examined++
				changed := setInt(&p.ContestMeasureID, m.ID)
				changed = setString(&p.BallotItemDisplayName, m.DisplayTitle()) || changed
				changed = setString(&p.GoogleCivicMeasureTitle, m.GoogleCivicMeasureTitle) || changed
				if changed {
					s.savePosition(ctx, routine, vis, p, &written)
				}
			}
		}
		res.PositionsUpdated += written.Updated
		res.Failed += written.Failed
	}
	return res, nil
}

func (s *Service) lookupMeasure(ctx context.Context, t DetailsTarget) (*domain.ContestMeasure, error) {
	if t.ID != 0 {
		return s.store.GetContestMeasureByID(ctx, t.ID)
	}
	return s.store.GetContestMeasure(ctx, t.WeVoteID)
}
