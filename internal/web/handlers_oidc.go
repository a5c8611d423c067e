package web

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/bcnelson/position-admin/internal/auth"
	"github.com/bcnelson/position-admin/internal/domain"
)

// handleOIDCLogin initiates the OIDC login flow.
func (s *Server) handleOIDCLogin(w http.ResponseWriter, r *http.Request) {
	next := auth.SafeNext(r.URL.Query().Get("next"))

	// Generate state and nonce
	stateData, err := s.oidc.StateStore.Generate(w, next)
	if err != nil {
		s.logger.Error("generating OIDC state", zap.Error(err))
		loginError(w, r, "Failed to initiate login", next)
		return
	}

	// Redirect to OIDC provider
	http.Redirect(w, r, s.oidc.Provider.AuthCodeURL(stateData.State, stateData.Nonce), http.StatusSeeOther)
}

// handleOIDCCallback handles the OIDC callback after authentication.
func (s *Server) handleOIDCCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	// Check for error from provider
	if errParam := q.Get("error"); errParam != "" {
		errDesc := q.Get("error_description")
		if errDesc == "" {
			errDesc = errParam
		}
		s.logger.Warn("OIDC provider returned error", zap.String("error", errParam), zap.String("description", errDesc))
		loginError(w, r, errDesc, "/")
		return
	}

	code := q.Get("code")
	if code == "" {
		loginError(w, r, "No authorization code received", "/")
		return
	}

	stateData, err := s.oidc.StateStore.Validate(r, q.Get("state"))
	if err != nil {
		s.logger.Warn("OIDC state validation failed", zap.Error(err))
		loginError(w, r, "Invalid state parameter", "/")
		return
	}
	s.oidc.StateStore.Clear(w)

	claims, err := s.oidc.Provider.Exchange(ctx, code, stateData.Nonce)
	if err != nil {
		s.logger.Error("OIDC token exchange failed", zap.Error(err))
		loginError(w, r, "Failed to complete authentication", stateData.Next)
		return
	}

	// Domain restriction
	if err := s.oidc.Provider.ValidateClaims(claims); err != nil {
		s.logger.Warn("OIDC claims rejected", zap.String("email", claims.Email), zap.Error(err))
		loginError(w, r, err.Error(), stateData.Next)
		return
	}

	voter, err := s.store.GetVoterByEmail(ctx, claims.Email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			loginError(w, r, "No staff account uses "+claims.Email, stateData.Next)
			return
		}
		s.logger.Error("looking up OIDC voter", zap.Error(err))
		loginError(w, r, "Server error", stateData.Next)
		return
	}

	if err := s.sessions.Create(w, voter, "oidc"); err != nil {
		s.logger.Error("creating OIDC session", zap.Error(err))
		loginError(w, r, "Failed to create session", stateData.Next)
		return
	}

	s.logger.Info("voter signed in", zap.String("voter_we_vote_id", voter.WeVoteID), zap.String("method", "oidc"))
	http.Redirect(w, r, auth.SafeNext(stateData.Next), http.StatusSeeOther)
}
