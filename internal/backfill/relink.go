package backfill

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/bcnelson/position-admin/internal/domain"
	"github.com/bcnelson/position-admin/internal/query"
	"github.com/bcnelson/position-admin/internal/storage"
)

// RelinkResult reports a relink run across both position tables.
type RelinkResult struct {
	Candidates Result
	Measures   Result
}

// Relink fills candidate_campaign_id and contest_measure_id on positions that
// carry the matching we_vote_id but no numeric id.
func (s *Service) Relink(ctx context.Context) (RelinkResult, error) {
	var res RelinkResult
	candidates := newLookupCache(s.store.GetCandidate)
	measures := newLookupCache(s.store.GetContestMeasure)

	for _, vis := range visibilities() {
		r, err := s.relinkTable(ctx, vis, "relink_candidates",
			&query.PositionFilter{RequireCandidate: true, MissingCandidateID: true},
			func(ctx context.Context, p *domain.Position) (bool, error) {
				c, ok, err := candidates.get(ctx, p.CandidateCampaignWeVoteID)
				if err != nil || !ok {
					return false, err
				}
				return setInt(&p.CandidateCampaignID, c.ID), nil
			})
		if err != nil {
			return res, err
		}
		res.Candidates.Add(r)

		r, err = s.relinkTable(ctx, vis, "relink_measures",
			&query.PositionFilter{RequireMeasure: true, MissingMeasureID: true},
			func(ctx context.Context, p *domain.Position) (bool, error) {
				m, ok, err := measures.get(ctx, p.ContestMeasureWeVoteID)
				if err != nil || !ok {
					return false, err
				}
				return setInt(&p.ContestMeasureID, m.ID), nil
			})
		if err != nil {
			return res, err
		}
		res.Measures.Add(r)
	}
	return res, nil
}

func (s *Service) relinkTable(
	ctx context.Context,
	vis domain.Visibility,
	routine string,
	f *query.PositionFilter,
	link func(context.Context, *domain.Position) (bool, error),
) (Result, error) {
	var res Result
	positions, err := s.store.ListPositions(ctx, vis, f, storage.ListOptions{})
	if err != nil {
		return res, fmt.Errorf("listing %s positions to relink: %w", vis, err)
	}
	for _, p := range positions {
		if res.Updated >= s.batchSize {
			break
		}
		res.Examined++
		changed, err := link(ctx, p)
		if err != nil {
			s.rowFailed(ctx, routine, &res, err, zap.String("we_vote_id", p.WeVoteID))
			continue
		}
		if changed {
			s.savePosition(ctx, routine, vis, p, &res)
		}
	}
	return res, nil
}
