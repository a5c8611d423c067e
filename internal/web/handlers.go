package web

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/bcnelson/position-admin/internal/auth"
	"github.com/bcnelson/position-admin/internal/domain"
	"github.com/bcnelson/position-admin/internal/query"
	"github.com/bcnelson/position-admin/internal/service"
)

// LoginData holds data for the login page.
type LoginData struct {
	Next  string
	Email string
}

// handleLoginPage renders the login page.
func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	data := PageData{
		Title:   "Sign in",
		Content: LoginData{Next: auth.SafeNext(r.URL.Query().Get("next"))},
	}

	// Check for flash message in query params
	if msg := r.URL.Query().Get("error"); msg != "" {
		data.Flashes = []FlashMessage{failure(msg)}
	}

	s.render(w, r, "base-noauth", "login", http.StatusOK, data)
}

// handleLogin processes the login form.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Redirect(w, r, "/login?error=Invalid+form+data", http.StatusSeeOther)
		return
	}

	next := auth.SafeNext(r.FormValue("next"))
	email := strings.TrimSpace(r.FormValue("email"))
	password := r.FormValue("password")
	if email == "" || password == "" {
		loginError(w, r, "Email and password are required", next)
		return
	}

	voter, err := s.store.GetVoterByEmail(r.Context(), email)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		s.logger.Error("looking up voter", zap.Error(err))
		loginError(w, r, "Server error", next)
		return
	}
	if !auth.CheckPassword(voter, password) {
		loginError(w, r, "Invalid email or password", next)
		return
	}

	if err := s.sessions.Create(w, voter, "password"); err != nil {
		s.logger.Error("creating session", zap.Error(err))
		loginError(w, r, "Failed to create session", next)
		return
	}
	s.logger.Info("voter signed in", zap.String("voter_we_vote_id", voter.WeVoteID), zap.String("method", "password"))
	http.Redirect(w, r, next, http.StatusSeeOther)
}

func loginError(w http.ResponseWriter, r *http.Request, msg, next string) {
	q := url.Values{}
	q.Set("error", msg)
	if next != "/" {
		q.Set("next", next)
	}
	http.Redirect(w, r, "/login?"+q.Encode(), http.StatusSeeOther)
}

// handleLogout clears the session and redirects to login.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.sessions.Clear(w)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// DashboardData holds data for the dashboard page.
type DashboardData struct {
	PublicCount      int
	FriendsOnlyCount int
	Upcoming         []*domain.Election
	CanEdit          bool
	IsAdmin          bool
}

// handleDashboard renders the dashboard page.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	voter := auth.VoterFromContext(ctx)

	publicCount, err := s.store.CountPositions(ctx, domain.Public, &query.PositionFilter{})
	if err != nil {
		s.logger.Error("counting positions", zap.Error(err))
		s.renderError(w, r, "Failed to load positions", http.StatusInternalServerError)
		return
	}

	data := DashboardData{
		PublicCount: publicCount,
		CanEdit:     auth.HasAuthority(voter, domain.RoleVerifiedVolunteer),
		IsAdmin:     auth.HasAuthority(voter, domain.RoleAdmin),
	}
	if data.IsAdmin {
		data.FriendsOnlyCount, err = s.store.CountPositions(ctx, domain.FriendsOnly, &query.PositionFilter{})
		if err != nil {
			s.logger.Error("counting friends-only positions", zap.Error(err))
		}
	}

	data.Upcoming, err = s.store.ListUpcomingElections(ctx, time.Now().Format("2006-01-02"))
	if err != nil {
		s.logger.Error("listing upcoming elections", zap.Error(err))
	}

	s.render(w, r, "base", "dashboard", http.StatusOK, PageData{
		Title:   "Dashboard",
		Active:  "dashboard",
		Content: data,
	})
}

// SyncDashboardData holds data for the sync dashboard page.
type SyncDashboardData struct {
	SyncURL        string
	IsMaster       bool
	CanImport      bool
	Elections      []*domain.Election
	SelectedID     int64
	StateCode      string
	ImportDisabled bool
}

// handleSyncDashboard renders the page that starts imports from the master server.
func (s *Server) handleSyncDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	elections, err := s.store.ListElections(ctx)
	if err != nil {
		s.logger.Error("listing elections", zap.Error(err))
		s.renderError(w, r, "Failed to load elections", http.StatusInternalServerError)
		return
	}

	isMaster := service.IsSelfTarget(s.syncURL, s.rootURL)
	s.render(w, r, "base", "sync_dashboard", http.StatusOK, PageData{
		Title:  "Sync",
		Active: "sync",
		Content: SyncDashboardData{
			SyncURL:        s.syncURL,
			IsMaster:       isMaster,
			CanImport:      auth.HasAuthority(auth.VoterFromContext(ctx), domain.RoleAdmin),
			Elections:      elections,
			SelectedID:     parseInt64(r.URL.Query().Get("google_civic_election_id")),
			StateCode:      r.URL.Query().Get("state_code"),
			ImportDisabled: isMaster || s.sync == nil,
		},
	})
}
