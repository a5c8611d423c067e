package web

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/bcnelson/position-admin/internal/auth"
	"github.com/bcnelson/position-admin/internal/domain"
)

// loadVoter puts the signed-in voter, if any, on the request context. A
// stale or tampered cookie is cleared and the request continues anonymously.
func (s *Server) loadVoter(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session, err := s.sessions.Get(r)
		if err != nil {
			if !errors.Is(err, http.ErrNoCookie) {
				s.sessions.Clear(w)
			}
			next.ServeHTTP(w, r)
			return
		}

		voter, err := s.store.GetVoter(r.Context(), session.VoterWeVoteID)
		if err != nil {
			if !errors.Is(err, domain.ErrNotFound) {
				s.logger.Error("loading session voter", zap.String("voter_we_vote_id", session.VoterWeVoteID), zap.Error(err))
			}
			s.sessions.Clear(w)
			next.ServeHTTP(w, r)
			return
		}

		next.ServeHTTP(w, r.WithContext(auth.WithVoter(r.Context(), voter)))
	})
}

// require lets the request through when the signed-in voter holds one of
// roles; everyone else is sent to the sign-in page.
func require(roles ...domain.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !auth.HasAuthority(auth.VoterFromContext(r.Context()), roles...) {
				auth.RedirectToSignIn(w, r, roles)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
