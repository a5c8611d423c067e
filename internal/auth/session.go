package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/bcnelson/position-admin/internal/domain"
)

// SessionCookieName is the name of the sign-in session cookie.
const SessionCookieName = "position_admin_session"

// ErrSessionExpired is returned for a well-formed session past its expiry.
var ErrSessionExpired = errors.New("session expired")

// Session is the data stored in the encrypted session cookie.
type Session struct {
	VoterWeVoteID string    `json:"voter_we_vote_id"`
	Email         string    `json:"email"`
	Method        string    `json:"method"` // "password" or "oidc"
	ExpiresAt     time.Time `json:"expires_at"`
	CreatedAt     time.Time `json:"created_at"`
}

// SessionManager issues and reads encrypted session cookies.
type SessionManager struct {
	codec    *Codec
	duration time.Duration
	secure   bool // Secure flag on cookies (HTTPS)
}

// NewSessionManager creates a session manager. The key must be 32 bytes.
func NewSessionManager(key []byte, duration time.Duration, secure bool) (*SessionManager, error) {
	codec, err := NewCodec(key)
	if err != nil {
		return nil, err
	}
	return &SessionManager{codec: codec, duration: duration, secure: secure}, nil
}

// Create signs the voter in by setting the session cookie.
func (sm *SessionManager) Create(w http.ResponseWriter, voter *domain.Voter, method string) error {
	now := time.Now()
	session := &Session{
		VoterWeVoteID: voter.WeVoteID,
		Email:         voter.Email,
		Method:        method,
		CreatedAt:     now,
		ExpiresAt:     now.Add(sm.duration),
	}

	value, err := sm.codec.Seal(session)
	if err != nil {
		return err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   int(sm.duration.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   sm.secure,
	})
	return nil
}

// Get reads and validates the session cookie.
func (sm *SessionManager) Get(r *http.Request) (*Session, error) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		return nil, fmt.Errorf("session cookie not found: %w", err)
	}

	var session Session
	if err := sm.codec.Open(cookie.Value, &session); err != nil {
		return nil, err
	}
	if time.Now().After(session.ExpiresAt) {
		return nil, ErrSessionExpired
	}
	return &session, nil
}

// Clear removes the session cookie.
func (sm *SessionManager) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   sm.secure,
	})
}

type contextKey string

const voterContextKey contextKey = "voter"

// WithVoter returns a context carrying the signed-in voter.
func WithVoter(ctx context.Context, v *domain.Voter) context.Context {
	return context.WithValue(ctx, voterContextKey, v)
}

// VoterFromContext returns the signed-in voter, or nil.
func VoterFromContext(ctx context.Context) *domain.Voter {
	v, _ := ctx.Value(voterContextKey).(*domain.Voter)
	return v
}
