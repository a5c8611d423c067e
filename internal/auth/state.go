package auth

import (
	"fmt"
	"net/http"
	"time"
)

const (
	// StateCookieName is the name of the OIDC state cookie.
	StateCookieName = "position_admin_oidc_state"
	// StateCookieMaxAge is how long the state cookie is valid (5 minutes).
	StateCookieMaxAge = 5 * 60
)

// StateStore keeps the OIDC state and nonce in an encrypted cookie between the
// redirect to the provider and the callback.
type StateStore struct {
	codec  *Codec
	secure bool
}

// StateData holds the state and nonce for an OIDC request, plus the page to
// return to after sign-in.
type StateData struct {
	State     string    `json:"state"`
	Nonce     string    `json:"nonce"`
	Next      string    `json:"next,omitempty"`
	ExpiresAt time.Time `json:"expires_at"`
}

// NewStateStore creates a state store. The key must be 32 bytes.
func NewStateStore(key []byte, secure bool) (*StateStore, error) {
	codec, err := NewCodec(key)
	if err != nil {
		return nil, err
	}
	return &StateStore{codec: codec, secure: secure}, nil
}

// Generate creates a new state/nonce pair and stores it in the state cookie.
func (ss *StateStore) Generate(w http.ResponseWriter, next string) (*StateData, error) {
	state, err := GenerateSecureString(32)
	if err != nil {
		return nil, fmt.Errorf("failed to generate state: %w", err)
	}
	nonce, err := GenerateSecureString(32)
	if err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	data := &StateData{
		State:     state,
		Nonce:     nonce,
		Next:      next,
		ExpiresAt: time.Now().Add(StateCookieMaxAge * time.Second),
	}
	value, err := ss.codec.Seal(data)
	if err != nil {
		return nil, err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     StateCookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   StateCookieMaxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   ss.secure,
	})
	return data, nil
}

// Validate reads the state cookie and checks it against the state returned by
// the provider.
func (ss *StateStore) Validate(r *http.Request, state string) (*StateData, error) {
	cookie, err := r.Cookie(StateCookieName)
	if err != nil {
		return nil, fmt.Errorf("state cookie not found: %w", err)
	}

	var data StateData
	if err := ss.codec.Open(cookie.Value, &data); err != nil {
		return nil, err
	}
	if time.Now().After(data.ExpiresAt) {
		return nil, fmt.Errorf("state expired")
	}
	if !ConstantTimeCompare(data.State, state) {
		return nil, fmt.Errorf("state mismatch")
	}
	return &data, nil
}

// Clear removes the state cookie.
func (ss *StateStore) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     StateCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   ss.secure,
	})
}
