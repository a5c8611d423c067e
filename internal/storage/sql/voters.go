package sql

import (
	"context"
	"strings"
	"time"

	"github.com/bcnelson/position-admin/internal/domain"
)

var voterColumns = []string{
	"we_vote_id",
	"email",
	"full_name",
	"password_hash",
	"is_admin",
	"is_analytics_admin",
	"is_partner_organization",
	"is_political_data_manager",
	"is_political_data_viewer",
	"is_verified_volunteer",
	"created_at",
}

const voterSelect = `SELECT id, we_vote_id, email, full_name, password_hash, is_admin, is_analytics_admin,
	is_partner_organization, is_political_data_manager, is_political_data_viewer, is_verified_volunteer, created_at
	FROM voters`

func createVoter(ctx context.Context, db dbInterface, v *domain.Voter) error {
	v.Email = strings.ToLower(strings.TrimSpace(v.Email))
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now().UTC()
	}
	return insertReturningID(ctx, db, "voters", voterColumns, v, &v.ID)
}

func (s *Store) CreateVoter(ctx context.Context, v *domain.Voter) error {
	return createVoter(ctx, s.db, v)
}

func (t *Tx) CreateVoter(ctx context.Context, v *domain.Voter) error {
	return createVoter(ctx, t.tx, v)
}

func getVoter(ctx context.Context, db dbInterface, weVoteID string) (*domain.Voter, error) {
	var v domain.Voter
	if err := db.GetContext(ctx, &v, voterSelect+` WHERE we_vote_id = $1`, weVoteID); err != nil {
		return nil, notFound(err)
	}
	return &v, nil
}

func (s *Store) GetVoter(ctx context.Context, weVoteID string) (*domain.Voter, error) {
	return getVoter(ctx, s.db, weVoteID)
}

func (t *Tx) GetVoter(ctx context.Context, weVoteID string) (*domain.Voter, error) {
	return getVoter(ctx, t.tx, weVoteID)
}

func getVoterByEmail(ctx context.Context, db dbInterface, email string) (*domain.Voter, error) {
	var v domain.Voter
	err := db.GetContext(ctx, &v, voterSelect+` WHERE email = $1`, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, notFound(err)
	}
	return &v, nil
}

func (s *Store) GetVoterByEmail(ctx context.Context, email string) (*domain.Voter, error) {
	return getVoterByEmail(ctx, s.db, email)
}

func (t *Tx) GetVoterByEmail(ctx context.Context, email string) (*domain.Voter, error) {
	return getVoterByEmail(ctx, t.tx, email)
}
