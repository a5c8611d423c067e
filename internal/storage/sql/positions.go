package sql

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"

	"github.com/bcnelson/position-admin/internal/domain"
	"github.com/bcnelson/position-admin/internal/query"
	"github.com/bcnelson/position-admin/internal/storage"
)

// positionColumns lists every position column except id.
var positionColumns = []string{
	"we_vote_id",
	"ballot_item_display_name",
	"ballot_item_image_url_https",
	"ballot_item_twitter_handle",
	"speaker_display_name",
	"speaker_image_url_https",
	"speaker_twitter_handle",
	"speaker_type",
	"date_entered",
	"date_last_changed",
	"organization_id",
	"organization_we_vote_id",
	"voter_id",
	"voter_we_vote_id",
	"public_figure_we_vote_id",
	"google_civic_election_id",
	"state_code",
	"vote_smart_rating_id",
	"vote_smart_time_span",
	"vote_smart_rating",
	"vote_smart_rating_name",
	"contest_office_id",
	"contest_office_we_vote_id",
	"contest_office_name",
	"race_office_level",
	"candidate_campaign_id",
	"candidate_campaign_we_vote_id",
	"google_civic_candidate_name",
	"politician_id",
	"politician_we_vote_id",
	"politician_we_vote_id_analyzed",
	"contest_measure_id",
	"contest_measure_we_vote_id",
	"google_civic_measure_title",
	"stance",
	"position_ultimate_election_date",
	"position_year",
	"statement_text",
	"statement_html",
	"twitter_followers_count",
	"more_info_url",
	"from_scraper",
	"organization_certified",
	"volunteer_certified",
	"voter_entering_position",
	"tweet_source_id",
	"twitter_user_entered_position",
	"is_private_citizen",
}

var positionSelect = selectColumns(positionColumns)

func filterExpression(vis domain.Visibility, f *query.PositionFilter) exp.ExpressionList {
	if f == nil {
		return goqu.And()
	}
	return f.Expression(vis)
}

func createPosition(ctx context.Context, db dbInterface, vis domain.Visibility, p *domain.Position) error {
	now := time.Now().UTC()
	if p.DateEntered.IsZero() {
		p.DateEntered = now
	}
	if p.DateLastChanged.IsZero() {
		p.DateLastChanged = now
	}
	if p.SpeakerType == "" {
		p.SpeakerType = domain.SpeakerTypeUnknown
	}
	return insertReturningID(ctx, db, vis.Table(), positionColumns, p, &p.ID)
}

func (s *Store) CreatePosition(ctx context.Context, vis domain.Visibility, p *domain.Position) error {
	return createPosition(ctx, s.db, vis, p)
}

func (t *Tx) CreatePosition(ctx context.Context, vis domain.Visibility, p *domain.Position) error {
	return createPosition(ctx, t.tx, vis, p)
}

func getPosition(ctx context.Context, db dbInterface, d goqu.DialectWrapper, vis domain.Visibility, weVoteID string) (*domain.Position, error) {
	var p domain.Position
	ds := d.From(vis.Table()).Select(positionSelect...).
		Where(goqu.C("we_vote_id").Eq(weVoteID)).
		Prepared(true)
	if err := getBuilt(ctx, db, &p, ds); err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

func (s *Store) GetPosition(ctx context.Context, vis domain.Visibility, weVoteID string) (*domain.Position, error) {
	return getPosition(ctx, s.db, s.dialect, vis, weVoteID)
}

func (t *Tx) GetPosition(ctx context.Context, vis domain.Visibility, weVoteID string) (*domain.Position, error) {
	return getPosition(ctx, t.tx, t.dialect, vis, weVoteID)
}

func listPositions(ctx context.Context, db dbInterface, d goqu.DialectWrapper, vis domain.Visibility, f *query.PositionFilter, opts storage.ListOptions) ([]*domain.Position, error) {
	ds := d.From(vis.Table()).Select(positionSelect...).
		Where(filterExpression(vis, f)).
		Prepared(true)

	switch opts.Order {
	case storage.OrderDateEntered:
		ds = ds.Order(goqu.C("date_entered").Asc(), goqu.C("id").Asc())
	default:
		ds = ds.Order(goqu.C("id").Desc())
	}
	if opts.Limit > 0 {
		ds = ds.Limit(uint(opts.Limit))
	}
	if opts.Offset > 0 {
		ds = ds.Offset(uint(opts.Offset))
	}

	var positions []*domain.Position
	if err := selectBuilt(ctx, db, &positions, ds); err != nil {
		return nil, fmt.Errorf("listing %s positions: %w", vis, err)
	}
	return positions, nil
}

func (s *Store) ListPositions(ctx context.Context, vis domain.Visibility, f *query.PositionFilter, opts storage.ListOptions) ([]*domain.Position, error) {
	return listPositions(ctx, s.db, s.dialect, vis, f, opts)
}

func (t *Tx) ListPositions(ctx context.Context, vis domain.Visibility, f *query.PositionFilter, opts storage.ListOptions) ([]*domain.Position, error) {
	return listPositions(ctx, t.tx, t.dialect, vis, f, opts)
}

func countPositions(ctx context.Context, db dbInterface, d goqu.DialectWrapper, vis domain.Visibility, f *query.PositionFilter) (int, error) {
	ds := d.From(vis.Table()).Select(goqu.COUNT(goqu.Star())).
		Where(filterExpression(vis, f)).
		Prepared(true)

	var n int
	if err := getBuilt(ctx, db, &n, ds); err != nil {
		return 0, fmt.Errorf("counting %s positions: %w", vis, err)
	}
	return n, nil
}

func (s *Store) CountPositions(ctx context.Context, vis domain.Visibility, f *query.PositionFilter) (int, error) {
	return countPositions(ctx, s.db, s.dialect, vis, f)
}

func (t *Tx) CountPositions(ctx context.Context, vis domain.Visibility, f *query.PositionFilter) (int, error) {
	return countPositions(ctx, t.tx, t.dialect, vis, f)
}

func listPositionCandidateWeVoteIDs(ctx context.Context, db dbInterface, d goqu.DialectWrapper, vis domain.Visibility, f *query.PositionFilter, limit int) ([]string, error) {
	col := goqu.C("candidate_campaign_we_vote_id")
	ds := d.From(vis.Table()).Select(col).Distinct().
		Where(filterExpression(vis, f), col.Neq("")).
		Order(col.Asc()).
		Prepared(true)
	if limit > 0 {
		ds = ds.Limit(uint(limit))
	}

	var ids []string
	if err := selectBuilt(ctx, db, &ids, ds); err != nil {
		return nil, fmt.Errorf("listing candidate ids: %w", err)
	}
	return ids, nil
}

func (s *Store) ListPositionCandidateWeVoteIDs(ctx context.Context, vis domain.Visibility, f *query.PositionFilter, limit int) ([]string, error) {
	return listPositionCandidateWeVoteIDs(ctx, s.db, s.dialect, vis, f, limit)
}

func (t *Tx) ListPositionCandidateWeVoteIDs(ctx context.Context, vis domain.Visibility, f *query.PositionFilter, limit int) ([]string, error) {
	return listPositionCandidateWeVoteIDs(ctx, t.tx, t.dialect, vis, f, limit)
}

type stateCountRow struct {
	StateCode string `db:"state_code"`
	N         int    `db:"n"`
}

func countPositionsByState(ctx context.Context, db dbInterface, d goqu.DialectWrapper, electionIDs []int64) (map[string]storage.StateCount, error) {
	counts := make(map[string]storage.StateCount)
	if len(electionIDs) == 0 {
		return counts, nil
	}

	upper := goqu.Func("UPPER", goqu.C("state_code"))
	for _, vis := range []domain.Visibility{domain.Public, domain.FriendsOnly} {
		ds := d.From(vis.Table()).
			Select(upper.As("state_code"), goqu.COUNT(goqu.Star()).As("n")).
			Where(goqu.C("google_civic_election_id").In(electionIDs)).
			GroupBy(upper).
			Prepared(true)

		var rows []stateCountRow
		if err := selectBuilt(ctx, db, &rows, ds); err != nil {
			return nil, fmt.Errorf("counting %s positions by state: %w", vis, err)
		}
		for _, row := range rows {
			c := counts[strings.ToUpper(row.StateCode)]
			if vis == domain.Public {
				c.Public += row.N
			} else {
				c.FriendsOnly += row.N
			}
			counts[strings.ToUpper(row.StateCode)] = c
		}
	}
	return counts, nil
}

func (s *Store) CountPositionsByState(ctx context.Context, electionIDs []int64) (map[string]storage.StateCount, error) {
	return countPositionsByState(ctx, s.db, s.dialect, electionIDs)
}

func (t *Tx) CountPositionsByState(ctx context.Context, electionIDs []int64) (map[string]storage.StateCount, error) {
	return countPositionsByState(ctx, t.tx, t.dialect, electionIDs)
}

// updatePosition writes p as given. date_last_changed is stamped only when
// the caller left it zero, so imported rows keep the master's timestamp.
func updatePosition(ctx context.Context, db dbInterface, vis domain.Visibility, p *domain.Position) error {
	if p.DateLastChanged.IsZero() {
		p.DateLastChanged = time.Now().UTC()
	}
	return updateByKey(ctx, db, vis.Table(), "id", positionColumns, p)
}

func (s *Store) UpdatePosition(ctx context.Context, vis domain.Visibility, p *domain.Position) error {
	return updatePosition(ctx, s.db, vis, p)
}

func (t *Tx) UpdatePosition(ctx context.Context, vis domain.Visibility, p *domain.Position) error {
	return updatePosition(ctx, t.tx, vis, p)
}

func deletePosition(ctx context.Context, db dbInterface, vis domain.Visibility, weVoteID string) error {
	result, err := db.ExecContext(ctx, `DELETE FROM `+vis.Table()+` WHERE we_vote_id = $1`, weVoteID)
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *Store) DeletePosition(ctx context.Context, vis domain.Visibility, weVoteID string) error {
	return deletePosition(ctx, s.db, vis, weVoteID)
}

func (t *Tx) DeletePosition(ctx context.Context, vis domain.Visibility, weVoteID string) error {
	return deletePosition(ctx, t.tx, vis, weVoteID)
}
