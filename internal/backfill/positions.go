package backfill

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/bcnelson/position-admin/internal/domain"
	"github.com/bcnelson/position-admin/internal/query"
	"github.com/bcnelson/position-admin/internal/storage"
)

// SpeakerTypes copies the speaking organization's type and follower count onto
// each position. Organizations are looked up once per run.
func (s *Service) SpeakerTypes(ctx context.Context, vis domain.Visibility, positions []*domain.Position) Result {
	const routine = "speaker_types"
	var res Result
	orgs := newLookupCache(s.store.GetOrganization)

	for _, p := range positions {
		if res.Updated >= s.batchSize {
			break
		}
		res.Examined++
		if p.OrganizationWeVoteID == "" {
			continue
		}
		org, ok, err := orgs.get(ctx, p.OrganizationWeVoteID)
		if err != nil {
			s.rowFailed(ctx, routine, &res, err, zap.String("organization_we_vote_id", p.OrganizationWeVoteID))
			continue
		}
		if !ok {
			continue
		}

		changed := false
		if org.OrganizationType != "" && org.OrganizationType != domain.SpeakerTypeUnknown &&
			p.SpeakerType != org.OrganizationType {
			p.SpeakerType = org.OrganizationType
			changed = true
		}
		if org.TwitterFollowersCount > 0 && p.TwitterFollowersCount != org.TwitterFollowersCount {
			p.TwitterFollowersCount = org.TwitterFollowersCount
			changed = true
		}
		if changed {
			s.savePosition(ctx, routine, vis, p, &res)
		}
	}
	return res
}

// ContestOfficeInfo copies candidate, office and politician links from each
// position's candidate. A politician id missing on the candidate is resolved
// from the politician's we_vote_id. Candidates and politicians are looked up
// once per run.
func (s *Service) ContestOfficeInfo(ctx context.Context, vis domain.Visibility, positions []*domain.Position) Result {
	const routine = "contest_office_info"
	var res Result
	candidates := newLookupCache(s.store.GetCandidate)
	politicians := newLookupCache(s.store.GetPolitician)

	for _, p := range positions {
		if res.Updated >= s.batchSize {
			break
		}
		res.Examined++
		if p.CandidateCampaignWeVoteID == "" {
			continue
		}
		cand, ok, err := candidates.get(ctx, p.CandidateCampaignWeVoteID)
		if err != nil {
			s.rowFailed(ctx, routine, &res, err, zap.String("candidate_we_vote_id", p.CandidateCampaignWeVoteID))
			continue
		}
		if !ok {
			continue
		}

		changed := setInt(&p.CandidateCampaignID, cand.ID)
		changed = setString(&p.ContestOfficeWeVoteID, cand.ContestOfficeWeVoteID) || changed
		changed = setInt(&p.ContestOfficeID, cand.ContestOfficeID) || changed
		changed = setString(&p.PoliticianWeVoteID, cand.PoliticianWeVoteID) || changed
		switch {
		case cand.PoliticianID != 0:
			changed = setInt(&p.PoliticianID, cand.PoliticianID) || changed
		case cand.PoliticianWeVoteID != "":
			pol, found, err := politicians.get(ctx, cand.PoliticianWeVoteID)
			if err != nil {
				s.rowFailed(ctx, routine, &res, err, zap.String("politician_we_vote_id", cand.PoliticianWeVoteID))
			} else if found {
				changed = setInt(&p.PoliticianID, pol.ID) || changed
			}
		}
		if changed {
			s.savePosition(ctx, routine, vis, p, &res)
		}
	}
	return res
}

// SpeakerTypesInScope runs SpeakerTypes over organization positions in scope
// whose speaker type is still unknown. Every such row is read; the batch size
// caps writes.
func (s *Service) SpeakerTypesInScope(ctx context.Context, vis domain.Visibility, scope *query.ElectionScope) (Result, error) {
	f := &query.PositionFilter{
		Elections:           scope,
		SpeakerType:         domain.SpeakerTypeUnknown,
		RequireOrganization: true,
	}
	positions, err := s.store.ListPositions(ctx, vis, f, storage.ListOptions{})
	if err != nil {
		return Result{}, fmt.Errorf("loading positions without speaker type: %w", err)
	}
	return s.SpeakerTypes(ctx, vis, positions), nil
}

// ContestOfficeInfoInScope runs ContestOfficeInfo over candidate positions in
// scope. Rows already linked are read but not written; the batch size caps
// writes.
func (s *Service) ContestOfficeInfoInScope(ctx context.Context, vis domain.Visibility, scope *query.ElectionScope) (Result, error) {
	f := &query.PositionFilter{Elections: scope, RequireCandidate: true}
	positions, err := s.store.ListPositions(ctx, vis, f, storage.ListOptions{})
	if err != nil {
		return Result{}, fmt.Errorf("loading candidate positions: %w", err)
	}
	return s.ContestOfficeInfo(ctx, vis, positions), nil
}

// PoliticianLinkResult reports one politician link run.
type PoliticianLinkResult struct {
	Result
	Total      int
	Remaining  int
	Candidates int
}

// PoliticianLinks links public candidate positions that have never been
// analyzed and carry no politician we_vote_id to their candidate's politician.
// Each run takes a handful of distinct candidates and marks every position it
// examines as analyzed, linked or not.
func (s *Service) PoliticianLinks(ctx context.Context, stateCode string) (PoliticianLinkResult, error) {
	const routine = "politician_links"
	var res PoliticianLinkResult

	f := &query.PositionFilter{
		StateCode:                 stateCode,
		RequireCandidate:          true,
		MissingPoliticianWeVoteID: true,
		NotPoliticianAnalyzed:     true,
	}
	total, err := s.store.CountPositions(ctx, domain.Public, f)
	if err != nil {
		return res, fmt.Errorf("counting positions to analyze: %w", err)
	}
	res.Total = total
	if total > s.politicianBatchSize {
		res.Remaining = total - s.politicianBatchSize
	}

	candidateIDs, err := s.store.ListPositionCandidateWeVoteIDs(ctx, domain.Public, f, s.politicianBatchSize)
	if err != nil {
		return res, fmt.Errorf("listing candidates to analyze: %w", err)
	}
	res.Candidates = len(candidateIDs)
	if len(candidateIDs) == 0 {
		return res, nil
	}

	batch := *f
	batch.CandidateWeVoteIDIn = candidateIDs
	positions, err := s.store.ListPositions(ctx, domain.Public, &batch, storage.ListOptions{Limit: s.politicianBatchSize})
	if err != nil {
		return res, fmt.Errorf("loading positions to analyze: %w", err)
	}

	candidates := newLookupCache(s.store.GetCandidate)
	politicians := newLookupCache(s.store.GetPolitician)
	for _, p := range positions {
		res.Examined++
		cand, ok, err := candidates.get(ctx, p.CandidateCampaignWeVoteID)
		if err != nil {
			s.rowFailed(ctx, routine, &res.Result, err, zap.String("candidate_we_vote_id", p.CandidateCampaignWeVoteID))
			continue
		}
		if ok && cand.PoliticianWeVoteID != "" {
			p.PoliticianWeVoteID = cand.PoliticianWeVoteID
			if cand.PoliticianID != 0 {
				p.PoliticianID = cand.PoliticianID
			} else {
				pol, found, err := politicians.get(ctx, cand.PoliticianWeVoteID)
				if err != nil {
					s.rowFailed(ctx, routine, &res.Result, err, zap.String("politician_we_vote_id", cand.PoliticianWeVoteID))
					continue
				}
				if found {
					p.PoliticianID = pol.ID
				}
			}
		}
		p.PoliticianWeVoteIDAnalyzed = true
		s.savePosition(ctx, routine, domain.Public, p, &res.Result)
	}
	return res, nil
}

func setString(dst *string, v string) bool {
	if v == "" || *dst == v {
		return false
	}
	*dst = v
	return true
}

func setInt(dst *int64, v int64) bool {
	if v == 0 || *dst == v {
		return false
	}
	*dst = v
	return true
}
