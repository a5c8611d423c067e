package auth

import (
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/bcnelson/position-admin/internal/domain"
)

// grants lists, for each role, the other roles it implies.
var grants = map[domain.Role][]domain.Role{
	domain.RoleAdmin: domain.AllRoles,
	domain.RolePoliticalDataManager: {
		domain.RolePoliticalDataViewer,
		domain.RoleVerifiedVolunteer,
	},
}

// Viewer is the role set allowed to read position pages.
var Viewer = []domain.Role{
	domain.RolePartnerOrganization,
	domain.RolePoliticalDataViewer,
	domain.RoleVerifiedVolunteer,
}

// HasAuthority reports whether any role the voter holds, directly or through
// the role hierarchy, is one of required. A nil voter has no authority.
func HasAuthority(voter *domain.Voter, required ...domain.Role) bool {
	if voter == nil {
		return false
	}
	for _, held := range voter.Roles() {
		for _, r := range required {
			if held == r || implies(held, r) {
				return true
			}
		}
	}
	return false
}

func implies(held, r domain.Role) bool {
	for _, g := range grants[held] {
		if g == r {
			return true
		}
	}
	return false
}

// RequiredRolesMessage names the roles that would grant access.
func RequiredRolesMessage(required []domain.Role) string {
	names := make([]string, len(required))
	for i, r := range required {
		names[i] = string(r)
	}
	return "You must sign in with an account that has one of these rights: " + strings.Join(names, ", ")
}

// RedirectToSignIn sends the browser to the sign-in page, remembering where it
// was headed and which roles it lacked.
func RedirectToSignIn(w http.ResponseWriter, r *http.Request, required []domain.Role) {
	q := url.Values{}
	q.Set("next", r.URL.RequestURI())
	q.Set("error", RequiredRolesMessage(required))
	http.Redirect(w, r, "/login?"+q.Encode(), http.StatusSeeOther)
}

// SafeNext returns next when it is a local path, otherwise "/".
func SafeNext(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, `/\`) {
		return "/"
	}
	return next
}

// HashPassword returns the bcrypt hash of password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword reports whether password matches the voter's stored hash.
func CheckPassword(voter *domain.Voter, password string) bool {
	if voter == nil || voter.PasswordHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(voter.PasswordHash), []byte(password)) == nil
}
