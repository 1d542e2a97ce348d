package session

import (
	"net/http"
	"time"

	"github.com/MrEthical07/authlink/claims"
)

// DefaultCookieNames are the platform session cookies cleared on sign-out:
// the two production session cookies and the local development login cookie.
var DefaultCookieNames = []string{"ACSID", "SACSID", "dev_appserver_login"}

// cookieExpiryOffset is how far in the past expired cookies are dated.
const cookieExpiryOffset = 24 * time.Hour

// Config controls which cookies [Hooks] expires.
type Config struct {
	CookieNames []string
	// Path and Domain are emitted only when non-empty.
	Path   string
	Domain string
}

// Hooks is the session lifecycle adapter. It is stateless and safe for
// concurrent use.
type Hooks struct {
	provider    claims.Provider
	cookieNames []string
	path        string
	domain      string
	now         func() time.Time
}

// Option customizes [Hooks].
type Option func(*Hooks)

// WithClock overrides the time source used to date expired cookies.
func WithClock(now func() time.Time) Option {
	return func(h *Hooks) {
		if now != nil {
			h.now = now
		}
	}
}

// NewHooks returns Hooks relaying claims from provider.
func NewHooks(provider claims.Provider, cfg Config, opts ...Option) *Hooks {
	names := cfg.CookieNames
	if len(names) == 0 {
		names = DefaultCookieNames
	}
	h := &Hooks{
		provider:    provider,
		cookieNames: append([]string(nil), names...),
		path:        cfg.Path,
		domain:      cfg.Domain,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// OnSessionEstablished does nothing; the platform owns session creation.
func (h *Hooks) OnSessionEstablished(w http.ResponseWriter, r *http.Request) error {
	return nil
}

// OnSessionDestroyed appends one Set-Cookie directive per configured cookie,
// each with an empty value and an expiry one day before now. It does not
// depend on whether a session existed.
func (h *Hooks) OnSessionDestroyed(header http.Header) {
	expires := h.now().UTC().Add(-cookieExpiryOffset)
	for _, name := range h.cookieNames {
		c := &http.Cookie{
			Name:    name,
			Value:   "",
			Path:    h.path,
			Domain:  h.domain,
			Expires: expires,
		}
		if v := c.String(); v != "" {
			header.Add("Set-Cookie", v)
		}
	}
}

// CurrentClaims returns the signed-in principal, or (nil, nil) when nobody
// is signed in. Provider errors are returned unchanged.
func (h *Hooks) CurrentClaims(r *http.Request) (*claims.Claims, error) {
	if h.provider == nil {
		return nil, nil
	}
	return h.provider.CurrentClaims(r)
}

// CookieNames returns the cookies expired by OnSessionDestroyed.
func (h *Hooks) CookieNames() []string {
	return append([]string(nil), h.cookieNames...)
}
