package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bcnelson/position-admin/internal/domain"
	"github.com/bcnelson/position-admin/internal/query"
	"github.com/bcnelson/position-admin/internal/storage"
)

// Store is an in-memory implementation of the storage interface for testing.
type Store struct {
	mu     sync.RWMutex
	nextID int64

	positions     map[domain.Visibility]map[string]*domain.Position // key: we_vote_id
	candidates    map[string]*domain.Candidate                      // key: we_vote_id
	offices       map[string]*domain.ContestOffice                  // key: we_vote_id
	measures      map[string]*domain.ContestMeasure                 // key: we_vote_id
	politicians   map[string]*domain.Politician                     // key: we_vote_id
	organizations map[string]*domain.Organization                   // key: we_vote_id
	elections     map[int64]*domain.Election                        // key: google_civic_election_id
	voters        map[string]*domain.Voter                          // key: we_vote_id
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		positions: map[domain.Visibility]map[string]*domain.Position{
			domain.Public:      make(map[string]*domain.Position),
			domain.FriendsOnly: make(map[string]*domain.Position),
		},
		candidates:    make(map[string]*domain.Candidate),
		offices:       make(map[string]*domain.ContestOffice),
		measures:      make(map[string]*domain.ContestMeasure),
		politicians:   make(map[string]*domain.Politician),
		organizations: make(map[string]*domain.Organization),
		elections:     make(map[int64]*domain.Election),
		voters:        make(map[string]*domain.Voter),
	}
}

func (s *Store) Close() error { return nil }

func (s *Store) BeginTx(ctx context.Context) (storage.Transaction, error) {
	return &Tx{Store: s}, nil
}

// Tx is a no-op transaction for in-memory store. Writes are applied immediately.
type Tx struct {
	*Store
}

func (t *Tx) Commit() error   { return nil }
func (t *Tx) Rollback() error { return nil }
func (t *Tx) BeginTx(ctx context.Context) (storage.Transaction, error) {
	return nil, domain.ErrInvalidInput
}

// id returns the next row id. Callers hold the write lock.
func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

// ============================================
// Positions
// ============================================

func (s *Store) CreatePosition(ctx context.Context, vis domain.Visibility, p *domain.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	table := s.positions[vis]
	if _, exists := table[p.WeVoteID]; exists {
		return domain.ErrAlreadyExists
	}
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
	p.ID = s.id()
	stored := *p
	table[p.WeVoteID] = &stored
	return nil
}

func (s *Store) GetPosition(ctx context.Context, vis domain.Visibility, weVoteID string) (*domain.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.positions[vis][weVoteID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *p
	return &clone, nil
}

// matching returns copies of the positions that satisfy f. Callers hold the read lock.
func (s *Store) matching(vis domain.Visibility, f *query.PositionFilter) []*domain.Position {
	var result []*domain.Position
	for _, p := range s.positions[vis] {
		if f != nil && !f.Match(vis, p) {
			continue
		}
		clone := *p
		result = append(result, &clone)
	}
	return result
}

func (s *Store) ListPositions(ctx context.Context, vis domain.Visibility, f *query.PositionFilter, opts storage.ListOptions) ([]*domain.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := s.matching(vis, f)
	switch opts.Order {
	case storage.OrderDateEntered:
		sort.Slice(result, func(i, j int) bool {
			if !result[i].DateEntered.Equal(result[j].DateEntered) {
				return result[i].DateEntered.Before(result[j].DateEntered)
			}
			return result[i].ID < result[j].ID
		})
	default:
		sort.Slice(result, func(i, j int) bool { return result[i].ID > result[j].ID })
	}

	if opts.Offset > 0 {
		if opts.Offset >= len(result) {
			return nil, nil
		}
		result = result[opts.Offset:]
	}
	if opts.Limit > 0 && len(result) > opts.Limit {
		result = result[:opts.Limit]
	}
	return result, nil
}

func (s *Store) CountPositions(ctx context.Context, vis domain.Visibility, f *query.PositionFilter) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.matching(vis, f)), nil
}

func (s *Store) ListPositionCandidateWeVoteIDs(ctx context.Context, vis domain.Visibility, f *query.PositionFilter, limit int) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]bool)
	var ids []string
	for _, p := range s.matching(vis, f) {
		if p.CandidateCampaignWeVoteID == "" || seen[p.CandidateCampaignWeVoteID] {
			continue
		}
		seen[p.CandidateCampaignWeVoteID] = true
		ids = append(ids, p.CandidateCampaignWeVoteID)
	}
	sort.Strings(ids)
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func (s *Store) CountPositionsByState(ctx context.Context, electionIDs []int64) (map[string]storage.StateCount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[string]storage.StateCount)
	if len(electionIDs) == 0 {
		return counts, nil
	}
	f := &query.PositionFilter{Elections: &query.ElectionScope{ElectionIDs: electionIDs}}
	for _, vis := range []domain.Visibility{domain.Public, domain.FriendsOnly} {
		for _, p := range s.matching(vis, f) {
			code := strings.ToUpper(p.StateCode)
			c := counts[code]
			if vis == domain.Public {
				c.Public++
			} else {
				c.FriendsOnly++
			}
			counts[code] = c
		}
	}
	return counts, nil
}

func (s *Store) UpdatePosition(ctx context.Context, vis domain.Visibility, p *domain.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	table := s.positions[vis]
	var current *domain.Position
	for _, existing := range table {
		if existing.ID == p.ID {
			current = existing
			break
		}
	}
	if current == nil {
		return domain.ErrNotFound
	}
	if other, taken := table[p.WeVoteID]; taken && other.ID != p.ID {
		return domain.ErrAlreadyExists
	}
	delete(table, current.WeVoteID)
	if p.DateLastChanged.IsZero() {
		p.DateLastChanged = time.Now().UTC()
	}
	stored := *p
	table[p.WeVoteID] = &stored
	return nil
}

func (s *Store) DeletePosition(ctx context.Context, vis domain.Visibility, weVoteID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.positions[vis][weVoteID]; !ok {
		return domain.ErrNotFound
	}
	delete(s.positions[vis], weVoteID)
	return nil
}

// ============================================
// Candidates
// ============================================

func (s *Store) CreateCandidate(ctx context.Context, c *domain.Candidate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.candidates[c.WeVoteID]; exists {
		return domain.ErrAlreadyExists
	}
	c.ID = s.id()
	stored := *c
	s.candidates[c.WeVoteID] = &stored
	return nil
}

func (s *Store) GetCandidate(ctx context.Context, weVoteID string) (*domain.Candidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.candidates[weVoteID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *c
	return &clone, nil
}

func (s *Store) ListCandidates(ctx context.Context, f storage.CandidateFilter) ([]*domain.Candidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Candidate
	for _, c := range s.candidates {
		if f.ElectionIDs != nil && !containsID(f.ElectionIDs, c.GoogleCivicElectionID) {
			continue
		}
		if f.StateCode != "" && !strings.EqualFold(f.StateCode, c.StateCode) {
			continue
		}
		if f.ContestOfficeWeVoteID != "" && c.ContestOfficeWeVoteID != f.ContestOfficeWeVoteID {
			continue
		}
		if f.WeVoteIDs != nil && !containsString(f.WeVoteIDs, c.WeVoteID) {
			continue
		}
		clone := *c
		result = append(result, &clone)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (s *Store) UpdateCandidate(ctx context.Context, c *domain.Candidate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.candidates[c.WeVoteID]
	if !ok || existing.ID != c.ID {
		return domain.ErrNotFound
	}
	stored := *c
	s.candidates[c.WeVoteID] = &stored
	return nil
}

// ============================================
// Contest Offices
// ============================================

func (s *Store) CreateContestOffice(ctx context.Context, o *domain.ContestOffice) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.offices[o.WeVoteID]; exists {
		return domain.ErrAlreadyExists
	}
	o.ID = s.id()
	stored := *o
	s.offices[o.WeVoteID] = &stored
	return nil
}

func (s *Store) GetContestOffice(ctx context.Context, weVoteID string) (*domain.ContestOffice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.offices[weVoteID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *o
	return &clone, nil
}

func (s *Store) GetContestOfficeByID(ctx context.Context, id int64) (*domain.ContestOffice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, o := range s.offices {
		if o.ID == id {
			clone := *o
			return &clone, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *Store) ListContestOffices(ctx context.Context, electionID int64, stateCode string) ([]*domain.ContestOffice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.ContestOffice
	for _, o := range s.offices {
		if electionID != 0 && o.GoogleCivicElectionID != electionID {
			continue
		}
		if stateCode != "" && !strings.EqualFold(stateCode, o.StateCode) {
			continue
		}
		clone := *o
		result = append(result, &clone)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// ============================================
// Contest Measures
// ============================================

func (s *Store) CreateContestMeasure(ctx context.Context, m *domain.ContestMeasure) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.measures[m.WeVoteID]; exists {
		return domain.ErrAlreadyExists
	}
	m.ID = s.id()
	stored := *m
	s.measures[m.WeVoteID] = &stored
	return nil
}

func (s *Store) GetContestMeasure(ctx context.Context, weVoteID string) (*domain.ContestMeasure, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.measures[weVoteID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *m
	return &clone, nil
}

func (s *Store) GetContestMeasureByID(ctx context.Context, id int64) (*domain.ContestMeasure, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, m := range s.measures {
		if m.ID == id {
			clone := *m
			return &clone, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *Store) ListContestMeasures(ctx context.Context, electionID int64, stateCode string) ([]*domain.ContestMeasure, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.ContestMeasure
	for _, m := range s.measures {
		if electionID != 0 && m.GoogleCivicElectionID != electionID {
			continue
		}
		if stateCode != "" && !strings.EqualFold(stateCode, m.StateCode) {
			continue
		}
		clone := *m
		result = append(result, &clone)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (s *Store) UpdateContestMeasure(ctx context.Context, m *domain.ContestMeasure) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.measures[m.WeVoteID]
	if !ok || existing.ID != m.ID {
		return domain.ErrNotFound
	}
	stored := *m
	s.measures[m.WeVoteID] = &stored
	return nil
}

// ============================================
// Politicians and Organizations
// ============================================

func (s *Store) CreatePolitician(ctx context.Context, p *domain.Politician) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.politicians[p.WeVoteID]; exists {
		return domain.ErrAlreadyExists
	}
	p.ID = s.id()
	stored := *p
	s.politicians[p.WeVoteID] = &stored
	return nil
}

func (s *Store) GetPolitician(ctx context.Context, weVoteID string) (*domain.Politician, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.politicians[weVoteID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *p
	return &clone, nil
}

func (s *Store) CreateOrganization(ctx context.Context, o *domain.Organization) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.organizations[o.WeVoteID]; exists {
		return domain.ErrAlreadyExists
	}
	if o.OrganizationType == "" {
		o.OrganizationType = domain.SpeakerTypeUnknown
	}
	o.ID = s.id()
	stored := *o
	s.organizations[o.WeVoteID] = &stored
	return nil
}

func (s *Store) GetOrganization(ctx context.Context, weVoteID string) (*domain.Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.organizations[weVoteID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *o
	return &clone, nil
}

// ============================================
// Elections
// ============================================

func (s *Store) CreateElection(ctx context.Context, e *domain.Election) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.elections[e.GoogleCivicElectionID]; exists {
		return domain.ErrAlreadyExists
	}
	stored := *e
	s.elections[e.GoogleCivicElectionID] = &stored
	return nil
}

func (s *Store) GetElection(ctx context.Context, id int64) (*domain.Election, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.elections[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *e
	return &clone, nil
}

func (s *Store) ListElections(ctx context.Context) ([]*domain.Election, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := s.electionsWhere(func(*domain.Election) bool { return true })
	sortElectionsNewestFirst(result)
	return result, nil
}

func (s *Store) ListUpcomingElections(ctx context.Context, day string) ([]*domain.Election, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := s.electionsWhere(func(e *domain.Election) bool { return e.ElectionDayText >= day })
	sort.Slice(result, func(i, j int) bool {
		if result[i].ElectionDayText != result[j].ElectionDayText {
			return result[i].ElectionDayText < result[j].ElectionDayText
		}
		return result[i].ElectionName < result[j].ElectionName
	})
	return result, nil
}

func (s *Store) ListElectionsByID(ctx context.Context, ids []int64) ([]*domain.Election, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := s.electionsWhere(func(e *domain.Election) bool { return containsID(ids, e.GoogleCivicElectionID) })
	sortElectionsNewestFirst(result)
	return result, nil
}

func (s *Store) electionsWhere(keep func(*domain.Election) bool) []*domain.Election {
	var result []*domain.Election
	for _, e := range s.elections {
		if keep(e) {
			clone := *e
			result = append(result, &clone)
		}
	}
	return result
}

func sortElectionsNewestFirst(elections []*domain.Election) {
	sort.Slice(elections, func(i, j int) bool {
		if elections[i].ElectionDayText != elections[j].ElectionDayText {
			return elections[i].ElectionDayText > elections[j].ElectionDayText
		}
		return elections[i].ElectionName < elections[j].ElectionName
	})
}

// ============================================
// Voters
// ============================================

func (s *Store) CreateVoter(ctx context.Context, v *domain.Voter) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	v.Email = strings.ToLower(strings.TrimSpace(v.Email))
	if _, exists := s.voters[v.WeVoteID]; exists {
		return domain.ErrAlreadyExists
	}
	for _, other := range s.voters {
		if other.Email == v.Email {
			return domain.ErrAlreadyExists
		}
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now().UTC()
	}
	v.ID = s.id()
	stored := *v
	s.voters[v.WeVoteID] = &stored
	return nil
}

func (s *Store) GetVoter(ctx context.Context, weVoteID string) (*domain.Voter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.voters[weVoteID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *v
	return &clone, nil
}

func (s *Store) GetVoterByEmail(ctx context.Context, email string) (*domain.Voter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	email = strings.ToLower(strings.TrimSpace(email))
	for _, v := range s.voters {
		if v.Email == email {
			clone := *v
			return &clone, nil
		}
	}
	return nil, domain.ErrNotFound
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
