package storage

import (
	"context"

	"github.com/bcnelson/position-admin/internal/domain"
	"github.com/bcnelson/position-admin/internal/query"
)

// Order selects the sort order of a position listing.
type Order int

const (
	// OrderNewest sorts by id, newest first.
	OrderNewest Order = iota
	// OrderDateEntered sorts by date_entered, oldest first.
	OrderDateEntered
)

// ListOptions controls ordering and paging of a listing. A zero Limit means no limit.
type ListOptions struct {
	Order  Order
	Limit  int
	Offset int
}

// StateCount holds the number of public and friends-only positions in one state.
type StateCount struct {
	Public      int
	FriendsOnly int
}

// CandidateFilter narrows candidate listings. Zero values disable a condition.
type CandidateFilter struct {
	ElectionIDs           []int64
	StateCode             string
	ContestOfficeWeVoteID string
	WeVoteIDs             []string
}

// Storage defines the interface for the storage layer.
// Implementations must be safe for concurrent use.
type Storage interface {
	// Close closes the storage connection.
	Close() error

	// Positions
	CreatePosition(ctx context.Context, vis domain.Visibility, p *domain.Position) error
	GetPosition(ctx context.Context, vis domain.Visibility, weVoteID string) (*domain.Position, error)
	ListPositions(ctx context.Context, vis domain.Visibility, f *query.PositionFilter, opts ListOptions) ([]*domain.Position, error)
	CountPositions(ctx context.Context, vis domain.Visibility, f *query.PositionFilter) (int, error)
	ListPositionCandidateWeVoteIDs(ctx context.Context, vis domain.Visibility, f *query.PositionFilter, limit int) ([]string, error)
	CountPositionsByState(ctx context.Context, electionIDs []int64) (map[string]StateCount, error)
	// UpdatePosition keeps p.DateLastChanged unless it is zero.
	UpdatePosition(ctx context.Context, vis domain.Visibility, p *domain.Position) error
	DeletePosition(ctx context.Context, vis domain.Visibility, weVoteID string) error

	// Candidates
	CreateCandidate(ctx context.Context, c *domain.Candidate) error
	GetCandidate(ctx context.Context, weVoteID string) (*domain.Candidate, error)
	ListCandidates(ctx context.Context, f CandidateFilter) ([]*domain.Candidate, error)
	UpdateCandidate(ctx context.Context, c *domain.Candidate) error

	// Contest offices
	CreateContestOffice(ctx context.Context, o *domain.ContestOffice) error
	GetContestOffice(ctx context.Context, weVoteID string) (*domain.ContestOffice, error)
	GetContestOfficeByID(ctx context.Context, id int64) (*domain.ContestOffice, error)
	ListContestOffices(ctx context.Context, electionID int64, stateCode string) ([]*domain.ContestOffice, error)

	// Contest measures
	CreateContestMeasure(ctx context.Context, m *domain.ContestMeasure) error
	GetContestMeasure(ctx context.Context, weVoteID string) (*domain.ContestMeasure, error)
	GetContestMeasureByID(ctx context.Context, id int64) (*domain.ContestMeasure, error)
	ListContestMeasures(ctx context.Context, electionID int64, stateCode string) ([]*domain.ContestMeasure, error)
	UpdateContestMeasure(ctx context.Context, m *domain.ContestMeasure) error

	// Politicians
	CreatePolitician(ctx context.Context, p *domain.Politician) error
	GetPolitician(ctx context.Context, weVoteID string) (*domain.Politician, error)

	// Organizations
	CreateOrganization(ctx context.Context, o *domain.Organization) error
	GetOrganization(ctx context.Context, weVoteID string) (*domain.Organization, error)

	// Elections
	CreateElection(ctx context.Context, e *domain.Election) error
	GetElection(ctx context.Context, googleCivicElectionID int64) (*domain.Election, error)
	ListElections(ctx context.Context) ([]*domain.Election, error)
	// ListUpcomingElections returns elections on or after day (YYYY-MM-DD).
	ListUpcomingElections(ctx context.Context, day string) ([]*domain.Election, error)
	ListElectionsByID(ctx context.Context, ids []int64) ([]*domain.Election, error)

	// Voters
	CreateVoter(ctx context.Context, v *domain.Voter) error
	GetVoter(ctx context.Context, weVoteID string) (*domain.Voter, error)
	GetVoterByEmail(ctx context.Context, email string) (*domain.Voter, error)

	// Transaction support
	BeginTx(ctx context.Context) (Transaction, error)
}

// Transaction represents a database transaction.
type Transaction interface {
	Storage
	Commit() error
	Rollback() error
}
