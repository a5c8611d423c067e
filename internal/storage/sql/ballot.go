package sql

import (
	"context"
	"fmt"
	"strings"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"

	"github.com/bcnelson/position-admin/internal/domain"
	"github.com/bcnelson/position-admin/internal/storage"
)

// ============================================
// Candidates
// ============================================

var candidateColumns = []string{
	"we_vote_id",
	"candidate_name",
	"google_civic_candidate_name",
	"photo_url_https",
	"twitter_handle",
	"google_civic_election_id",
	"state_code",
	"contest_office_id",
	"contest_office_we_vote_id",
	"contest_office_name",
	"politician_id",
	"politician_we_vote_id",
	"candidate_ultimate_election_date",
	"candidate_year",
}

var candidateSelect = selectColumns(candidateColumns)

func createCandidate(ctx context.Context, db dbInterface, c *domain.Candidate) error {
	return insertReturningID(ctx, db, "candidates", candidateColumns, c, &c.ID)
}

func (s *Store) CreateCandidate(ctx context.Context, c *domain.Candidate) error {
	return createCandidate(ctx, s.db, c)
}

func (t *Tx) CreateCandidate(ctx context.Context, c *domain.Candidate) error {
	return createCandidate(ctx, t.tx, c)
}

func getCandidate(ctx context.Context, db dbInterface, d goqu.DialectWrapper, weVoteID string) (*domain.Candidate, error) {
	var c domain.Candidate
	ds := d.From("candidates").Select(candidateSelect...).
		Where(goqu.C("we_vote_id").Eq(weVoteID)).
		Prepared(true)
	if err := getBuilt(ctx, db, &c, ds); err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

func (s *Store) GetCandidate(ctx context.Context, weVoteID string) (*domain.Candidate, error) {
	return getCandidate(ctx, s.db, s.dialect, weVoteID)
}

func (t *Tx) GetCandidate(ctx context.Context, weVoteID string) (*domain.Candidate, error) {
	return getCandidate(ctx, t.tx, t.dialect, weVoteID)
}

func listCandidates(ctx context.Context, db dbInterface, d goqu.DialectWrapper, f storage.CandidateFilter) ([]*domain.Candidate, error) {
	var where []exp.Expression
	if f.ElectionIDs != nil {
		if len(f.ElectionIDs) == 0 {
			return nil, nil
		}
		where = append(where, goqu.C("google_civic_election_id").In(f.ElectionIDs))
	}
	if f.StateCode != "" {
		where = append(where, goqu.Func("LOWER", goqu.C("state_code")).Eq(strings.ToLower(f.StateCode)))
	}
	if f.ContestOfficeWeVoteID != "" {
		where = append(where, goqu.C("contest_office_we_vote_id").Eq(f.ContestOfficeWeVoteID))
	}
	if f.WeVoteIDs != nil {
		if len(f.WeVoteIDs) == 0 {
			return nil, nil
		}
		where = append(where, goqu.C("we_vote_id").In(f.WeVoteIDs))
	}

	ds := d.From("candidates").Select(candidateSelect...).
		Where(where...).
		Order(goqu.C("id").Asc()).
		Prepared(true)

	var candidates []*domain.Candidate
	if err := selectBuilt(ctx, db, &candidates, ds); err != nil {
		return nil, fmt.Errorf("listing candidates: %w", err)
	}
	return candidates, nil
}

func (s *Store) ListCandidates(ctx context.Context, f storage.CandidateFilter) ([]*domain.Candidate, error) {
	return listCandidates(ctx, s.db, s.dialect, f)
}

func (t *Tx) ListCandidates(ctx context.Context, f storage.CandidateFilter) ([]*domain.Candidate, error) {
	return listCandidates(ctx, t.tx, t.dialect, f)
}

func updateCandidate(ctx context.Context, db dbInterface, c *domain.Candidate) error {
	return updateByKey(ctx, db, "candidates", "id", candidateColumns, c)
}

func (s *Store) UpdateCandidate(ctx context.Context, c *domain.Candidate) error {
	return updateCandidate(ctx, s.db, c)
}

func (t *Tx) UpdateCandidate(ctx context.Context, c *domain.Candidate) error {
	return updateCandidate(ctx, t.tx, c)
}

// ============================================
// Contest Offices
// ============================================

var officeColumns = []string{
	"we_vote_id",
	"office_name",
	"race_office_level",
	"google_civic_election_id",
	"state_code",
}

var officeSelect = selectColumns(officeColumns)

func createContestOffice(ctx context.Context, db dbInterface, o *domain.ContestOffice) error {
	return insertReturningID(ctx, db, "contest_offices", officeColumns, o, &o.ID)
}

func (s *Store) CreateContestOffice(ctx context.Context, o *domain.ContestOffice) error {
	return createContestOffice(ctx, s.db, o)
}

func (t *Tx) CreateContestOffice(ctx context.Context, o *domain.ContestOffice) error {
	return createContestOffice(ctx, t.tx, o)
}

func getContestOffice(ctx context.Context, db dbInterface, d goqu.DialectWrapper, where exp.Expression) (*domain.ContestOffice, error) {
	var o domain.ContestOffice
	ds := d.From("contest_offices").Select(officeSelect...).Where(where).Prepared(true)
	if err := getBuilt(ctx, db, &o, ds); err != nil {
		return nil, notFound(err)
	}
	return &o, nil
}

func (s *Store) GetContestOffice(ctx context.Context, weVoteID string) (*domain.ContestOffice, error) {
	return getContestOffice(ctx, s.db, s.dialect, goqu.C("we_vote_id").Eq(weVoteID))
}

func (t *Tx) GetContestOffice(ctx context.Context, weVoteID string) (*domain.ContestOffice, error) {
	return getContestOffice(ctx, t.tx, t.dialect, goqu.C("we_vote_id").Eq(weVoteID))
}

func (s *Store) GetContestOfficeByID(ctx context.Context, id int64) (*domain.ContestOffice, error) {
	return getContestOffice(ctx, s.db, s.dialect, goqu.C("id").Eq(id))
}

func (t *Tx) GetContestOfficeByID(ctx context.Context, id int64) (*domain.ContestOffice, error) {
	return getContestOffice(ctx, t.tx, t.dialect, goqu.C("id").Eq(id))
}

func listContestOffices(ctx context.Context, db dbInterface, d goqu.DialectWrapper, electionID int64, stateCode string) ([]*domain.ContestOffice, error) {
	where := electionAndState(electionID, stateCode)
	ds := d.From("contest_offices").Select(officeSelect...).
		Where(where...).
		Order(goqu.C("id").Asc()).
		Prepared(true)

	var offices []*domain.ContestOffice
	if err := selectBuilt(ctx, db, &offices, ds); err != nil {
		return nil, fmt.Errorf("listing contest offices: %w", err)
	}
	return offices, nil
}

func (s *Store) ListContestOffices(ctx context.Context, electionID int64, stateCode string) ([]*domain.ContestOffice, error) {
	return listContestOffices(ctx, s.db, s.dialect, electionID, stateCode)
}

func (t *Tx) ListContestOffices(ctx context.Context, electionID int64, stateCode string) ([]*domain.ContestOffice, error) {
	return listContestOffices(ctx, t.tx, t.dialect, electionID, stateCode)
}

// ============================================
// Contest Measures
// ============================================

var measureColumns = []string{
	"we_vote_id",
	"measure_title",
	"google_civic_measure_title",
	"google_civic_election_id",
	"state_code",
	"measure_ultimate_election_date",
	"measure_year",
}

var measureSelect = selectColumns(measureColumns)

func createContestMeasure(ctx context.Context, db dbInterface, m *domain.ContestMeasure) error {
	return insertReturningID(ctx, db, "contest_measures", measureColumns, m, &m.ID)
}

func (s *Store) CreateContestMeasure(ctx context.Context, m *domain.ContestMeasure) error {
	return createContestMeasure(ctx, s.db, m)
}

func (t *Tx) CreateContestMeasure(ctx context.Context, m *domain.ContestMeasure) error {
	return createContestMeasure(ctx, t.tx, m)
}

func getContestMeasure(ctx context.Context, db dbInterface, d goqu.DialectWrapper, where exp.Expression) (*domain.ContestMeasure, error) {
	var m domain.ContestMeasure
	ds := d.From("contest_measures").Select(measureSelect...).Where(where).Prepared(true)
	if err := getBuilt(ctx, db, &m, ds); err != nil {
		return nil, notFound(err)
	}
	return &m, nil
}

func (s *Store) GetContestMeasure(ctx context.Context, weVoteID string) (*domain.ContestMeasure, error) {
	return getContestMeasure(ctx, s.db, s.dialect, goqu.C("we_vote_id").Eq(weVoteID))
}

func (t *Tx) GetContestMeasure(ctx context.Context, weVoteID string) (*domain.ContestMeasure, error) {
	return getContestMeasure(ctx, t.tx, t.dialect, goqu.C("we_vote_id").Eq(weVoteID))
}

func (s *Store) GetContestMeasureByID(ctx context.Context, id int64) (*domain.ContestMeasure, error) {
	return getContestMeasure(ctx, s.db, s.dialect, goqu.C("id").Eq(id))
}

func (t *Tx) GetContestMeasureByID(ctx context.Context, id int64) (*domain.ContestMeasure, error) {
	return getContestMeasure(ctx, t.tx, t.dialect, goqu.C("id").Eq(id))
}

func listContestMeasures(ctx context.Context, db dbInterface, d goqu.DialectWrapper, electionID int64, stateCode string) ([]*domain.ContestMeasure, error) {
	where := electionAndState(electionID, stateCode)
	ds := d.From("contest_measures").Select(measureSelect...).
		Where(where...).
		Order(goqu.C("id").Asc()).
		Prepared(true)

	var measures []*domain.ContestMeasure
	if err := selectBuilt(ctx, db, &measures, ds); err != nil {
		return nil, fmt.Errorf("listing contest measures: %w", err)
	}
	return measures, nil
}

func (s *Store) ListContestMeasures(ctx context.Context, electionID int64, stateCode string) ([]*domain.ContestMeasure, error) {
	return listContestMeasures(ctx, s.db, s.dialect, electionID, stateCode)
}

func (t *Tx) ListContestMeasures(ctx context.Context, electionID int64, stateCode string) ([]*domain.ContestMeasure, error) {
	return listContestMeasures(ctx, t.tx, t.dialect, electionID, stateCode)
}

func updateContestMeasure(ctx context.Context, db dbInterface, m *domain.ContestMeasure) error {
	return updateByKey(ctx, db, "contest_measures", "id", measureColumns, m)
}

func (s *Store) UpdateContestMeasure(ctx context.Context, m *domain.ContestMeasure) error {
	return updateContestMeasure(ctx, s.db, m)
}

func (t *Tx) UpdateContestMeasure(ctx context.Context, m *domain.ContestMeasure) error {
	return updateContestMeasure(ctx, t.tx, m)
}

// ============================================
// Politicians
// ============================================

var politicianColumns = []string{"we_vote_id", "politician_name"}

func createPolitician(ctx context.Context, db dbInterface, p *domain.Politician) error {
	return insertReturningID(ctx, db, "politicians", politicianColumns, p, &p.ID)
}

func (s *Store) CreatePolitician(ctx context.Context, p *domain.Politician) error {
	return createPolitician(ctx, s.db, p)
}

func (t *Tx) CreatePolitician(ctx context.Context, p *domain.Politician) error {
	return createPolitician(ctx, t.tx, p)
}

func getPolitician(ctx context.Context, db dbInterface, weVoteID string) (*domain.Politician, error) {
	var p domain.Politician
	err := db.GetContext(ctx, &p,
		`SELECT id, we_vote_id, politician_name FROM politicians WHERE we_vote_id = $1`, weVoteID)
	if err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

func (s *Store) GetPolitician(ctx context.Context, weVoteID string) (*domain.Politician, error) {
	return getPolitician(ctx, s.db, weVoteID)
}

func (t *Tx) GetPolitician(ctx context.Context, weVoteID string) (*domain.Politician, error) {
	return getPolitician(ctx, t.tx, weVoteID)
}

// ============================================
// Organizations
// ============================================

var organizationColumns = []string{"we_vote_id", "organization_name", "organization_type", "twitter_followers_count"}

func createOrganization(ctx context.Context, db dbInterface, o *domain.Organization) error {
	if o.OrganizationType == "" {
		o.OrganizationType = domain.SpeakerTypeUnknown
	}
	return insertReturningID(ctx, db, "organizations", organizationColumns, o, &o.ID)
}

func (s *Store) CreateOrganization(ctx context.Context, o *domain.Organization) error {
	return createOrganization(ctx, s.db, o)
}

func (t *Tx) CreateOrganization(ctx context.Context, o *domain.Organization) error {
	return createOrganization(ctx, t.tx, o)
}

func getOrganization(ctx context.Context, db dbInterface, weVoteID string) (*domain.Organization, error) {
	var o domain.Organization
	err := db.GetContext(ctx, &o,
		`SELECT id, we_vote_id, organization_name, organization_type, twitter_followers_count
		 FROM organizations WHERE we_vote_id = $1`, weVoteID)
	if err != nil {
		return nil, notFound(err)
	}
	return &o, nil
}

func (s *Store) GetOrganization(ctx context.Context, weVoteID string) (*domain.Organization, error) {
	return getOrganization(ctx, s.db, weVoteID)
}

func (t *Tx) GetOrganization(ctx context.Context, weVoteID string) (*domain.Organization, error) {
	return getOrganization(ctx, t.tx, weVoteID)
}

// ============================================
// Elections
// ============================================

const electionSelect = `SELECT google_civic_election_id, election_name, election_day_text, state_code FROM elections`

func createElection(ctx context.Context, db dbInterface, e *domain.Election) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO elections (google_civic_election_id, election_name, election_day_text, state_code)
		 VALUES ($1, $2, $3, $4)`,
		e.GoogleCivicElectionID, e.ElectionName, e.ElectionDayText, e.StateCode)
	if err != nil {
		return writeError(err)
	}
	return nil
}

func (s *Store) CreateElection(ctx context.Context, e *domain.Election) error {
	return createElection(ctx, s.db, e)
}

func (t *Tx) CreateElection(ctx context.Context, e *domain.Election) error {
	return createElection(ctx, t.tx, e)
}

func getElection(ctx context.Context, db dbInterface, id int64) (*domain.Election, error) {
	var e domain.Election
	if err := db.GetContext(ctx, &e, electionSelect+` WHERE google_civic_election_id = $1`, id); err != nil {
		return nil, notFound(err)
	}
	return &e, nil
}

func (s *Store) GetElection(ctx context.Context, id int64) (*domain.Election, error) {
	return getElection(ctx, s.db, id)
}

func (t *Tx) GetElection(ctx context.Context, id int64) (*domain.Election, error) {
	return getElection(ctx, t.tx, id)
}

func listElections(ctx context.Context, db dbInterface) ([]*domain.Election, error) {
	var elections []*domain.Election
	if err := db.SelectContext(ctx, &elections, electionSelect+` ORDER BY election_day_text DESC, election_name`); err != nil {
		return nil, err
	}
	return elections, nil
}

func (s *Store) ListElections(ctx context.Context) ([]*domain.Election, error) {
	return listElections(ctx, s.db)
}

func (t *Tx) ListElections(ctx context.Context) ([]*domain.Election, error) {
	return listElections(ctx, t.tx)
}

func listUpcomingElections(ctx context.Context, db dbInterface, day string) ([]*domain.Election, error) {
	var elections []*domain.Election
	err := db.SelectContext(ctx, &elections,
		electionSelect+` WHERE election_day_text >= $1 ORDER BY election_day_text, election_name`, day)
	if err != nil {
		return nil, err
	}
	return elections, nil
}

func (s *Store) ListUpcomingElections(ctx context.Context, day string) ([]*domain.Election, error) {
	return listUpcomingElections(ctx, s.db, day)
}

func (t *Tx) ListUpcomingElections(ctx context.Context, day string) ([]*domain.Election, error) {
	return listUpcomingElections(ctx, t.tx, day)
}

func listElectionsByID(ctx context.Context, db dbInterface, d goqu.DialectWrapper, ids []int64) ([]*domain.Election, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	ds := d.From("elections").
		Select("google_civic_election_id", "election_name", "election_day_text", "state_code").
		Where(goqu.C("google_civic_election_id").In(ids)).
		Order(goqu.C("election_day_text").Desc(), goqu.C("election_name").Asc()).
		Prepared(true)

	var elections []*domain.Election
	if err := selectBuilt(ctx, db, &elections, ds); err != nil {
		return nil, fmt.Errorf("listing elections: %w", err)
	}
	return elections, nil
}

func (s *Store) ListElectionsByID(ctx context.Context, ids []int64) ([]*domain.Election, error) {
	return listElectionsByID(ctx, s.db, s.dialect, ids)
}

func (t *Tx) ListElectionsByID(ctx context.Context, ids []int64) ([]*domain.Election, error) {
	return listElectionsByID(ctx, t.tx, t.dialect, ids)
}

func electionAndState(electionID int64, stateCode string) []exp.Expression {
	var where []exp.Expression
	if electionID != 0 {
		where = append(where, goqu.C("google_civic_election_id").Eq(electionID))
	}
	if stateCode != "" {
		where = append(where, goqu.Func("LOWER", goqu.C("state_code")).Eq(strings.ToLower(stateCode)))
	}
	return where
}
