package claims

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/MrEthical07/authlink/jwt"
)

// DefaultSessionCookie is the cookie [SelfIssuedProvider] reads by default.
const DefaultSessionCookie = "authlink_session"

// SelfIssuedProvider verifies a session token minted by the application
// itself. The token subject is the auth ID.
type SelfIssuedProvider struct {
	manager    *jwt.Manager
	cookieName string
}

// NewSelfIssuedProvider returns a provider verifying tokens with m.
func NewSelfIssuedProvider(m *jwt.Manager, cookieName string) *SelfIssuedProvider {
	if cookieName == "" {
		cookieName = DefaultSessionCookie
	}
	return &SelfIssuedProvider{manager: m, cookieName: cookieName}
}

// CurrentClaims implements [Provider].
func (p *SelfIssuedProvider) CurrentClaims(r *http.Request) (*Claims, error) {
	raw := tokenFromRequest(r, p.cookieName)
	if raw == "" {
		return nil, nil
	}

	sc, err := p.manager.ParseSession(raw)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %v", ErrStaleSession, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}
	return &Claims{AuthID: sc.Subject, Email: sc.Email, IsAdmin: sc.Admin}, nil
}
