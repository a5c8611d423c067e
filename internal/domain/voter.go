package domain

import "time"

// Role is a staff permission held by a voter.
type Role string

const (
	RoleAdmin                Role = "admin"
	RoleAnalyticsAdmin       Role = "analytics_admin"
	RolePartnerOrganization  Role = "partner_organization"
	RolePoliticalDataManager Role = "political_data_manager"
	RolePoliticalDataViewer  Role = "political_data_viewer"
	RoleVerifiedVolunteer    Role = "verified_volunteer"
)

// AllRoles lists every role in display order.
var AllRoles = []Role{
	RoleAdmin,
	RoleAnalyticsAdmin,
	RolePartnerOrganization,
	RolePoliticalDataManager,
	RolePoliticalDataViewer,
	RoleVerifiedVolunteer,
}

// Voter is a signed-in account. Only staff accounts carry roles.
type Voter struct {
	ID                     int64     `json:"id" db:"id"`
	WeVoteID               string    `json:"we_vote_id" db:"we_vote_id"`
	Email                  string    `json:"email" db:"email"`
	FullName               string    `json:"full_name" db:"full_name"`
	PasswordHash           string    `json:"-" db:"password_hash"`
	IsAdmin                bool      `json:"is_admin" db:"is_admin"`
	IsAnalyticsAdmin       bool      `json:"is_analytics_admin" db:"is_analytics_admin"`
	IsPartnerOrganization  bool      `json:"is_partner_organization" db:"is_partner_organization"`
	IsPoliticalDataManager bool      `json:"is_political_data_manager" db:"is_political_data_manager"`
	IsPoliticalDataViewer  bool      `json:"is_political_data_viewer" db:"is_political_data_viewer"`
	IsVerifiedVolunteer    bool      `json:"is_verified_volunteer" db:"is_verified_volunteer"`
	CreatedAt              time.Time `json:"created_at" db:"created_at"`
}

// Roles returns the roles the voter holds directly.
func (v *Voter) Roles() []Role {
	var roles []Role
	if v.IsAdmin {
		roles = append(roles, RoleAdmin)
	}
	if v.IsAnalyticsAdmin {
		roles = append(roles, RoleAnalyticsAdmin)
	}
	if v.IsPartnerOrganization {
		roles = append(roles, RolePartnerOrganization)
	}
	if v.IsPoliticalDataManager {
		roles = append(roles, RolePoliticalDataManager)
	}
	if v.IsPoliticalDataViewer {
		roles = append(roles, RolePoliticalDataViewer)
	}
	if v.IsVerifiedVolunteer {
		roles = append(roles, RoleVerifiedVolunteer)
	}
	return roles
}

// SetRole turns a role flag on.
func (v *Voter) SetRole(r Role) bool {
	switch r {
	case RoleAdmin:
		v.IsAdmin = true
	case RoleAnalyticsAdmin:
		v.IsAnalyticsAdmin = true
	case RolePartnerOrganization:
		v.IsPartnerOrganization = true
	case RolePoliticalDataManager:
		v.IsPoliticalDataManager = true
	case RolePoliticalDataViewer:
		v.IsPoliticalDataViewer = true
	case RoleVerifiedVolunteer:
		v.IsVerifiedVolunteer = true
	default:
		return false
	}
	return true
}
