package web

import (
	"net/http"

	"github.com/bcnelson/position-admin/internal/auth"
)

// FlashCookieName is the cookie carrying messages across a redirect.
const FlashCookieName = "position_admin_flash"

// Flash message levels.
const (
	FlashInfo    = "info"
	FlashSuccess = "success"
	FlashError   = "error"
)

// FlashMessage represents a flash message.
type FlashMessage struct {
	Type    string `json:"type"` // "success", "error", "info"
	Message string `json:"message"`
}

// FlashStore keeps flash messages in an encrypted cookie until the next page
// renders them.
type FlashStore struct {
	codec  *auth.Codec
	secure bool
}

// NewFlashStore creates a flash store. The key must be 32 bytes.
func NewFlashStore(key []byte, secure bool) (*FlashStore, error) {
	codec, err := auth.NewCodec(key)
	if err != nil {
		return nil, err
	}
	return &FlashStore{codec: codec, secure: secure}, nil
}

// Add queues messages for the next page, keeping any already queued.
func (f *FlashStore) Add(w http.ResponseWriter, r *http.Request, msgs ...FlashMessage) {
	if len(msgs) == 0 {
		return
	}
	queued := append(f.peek(r), msgs...)
	value, err := f.codec.Seal(queued)
	if err != nil {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     FlashCookieName,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   f.secure,
	})
}

// Take returns the queued messages and clears the cookie.
func (f *FlashStore) Take(w http.ResponseWriter, r *http.Request) []FlashMessage {
	msgs := f.peek(r)
	if _, err := r.Cookie(FlashCookieName); err == nil {
		http.SetCookie(w, &http.Cookie{
			Name:     FlashCookieName,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
			Secure:   f.secure,
		})
	}
	return msgs
}

func (f *FlashStore) peek(r *http.Request) []FlashMessage {
	cookie, err := r.Cookie(FlashCookieName)
	if err != nil {
		return nil
	}
	var msgs []FlashMessage
	if err := f.codec.Open(cookie.Value, &msgs); err != nil {
		return nil
	}
	return msgs
}

func info(msg string) FlashMessage    { return FlashMessage{Type: FlashInfo, Message: msg} }
func success(msg string) FlashMessage { return FlashMessage{Type: FlashSuccess, Message: msg} }
func failure(msg string) FlashMessage { return FlashMessage{Type: FlashError, Message: msg} }

// redirect queues msgs and sends the browser to target.
func (s *Server) redirect(w http.ResponseWriter, r *http.Request, target string, msgs ...FlashMessage) {
	s.flashes.Add(w, r, msgs...)
	http.Redirect(w, r, target, http.StatusSeeOther)
}
