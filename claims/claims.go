// Package claims resolves the principal an external identity platform has
// already authenticated for a request.
//
// A [Provider] is injected wherever the signed-in principal is needed. Two
// strategies are provided: [PlatformProvider] relays a [Platform]'s own
// "who is signed in" answer, and [SelfIssuedProvider] verifies a signed
// session token minted by the application. Neither issues sessions.
package claims

import (
	"errors"
	"net/http"
	"strings"
)

var (
	// ErrInvalidSession reports a session credential that cannot be trusted.
	ErrInvalidSession = errors.New("invalid session")
	// ErrStaleSession reports a session credential that was valid but has
	// expired.
	ErrStaleSession = errors.New("stale session")
)

// Claims describes the authenticated principal.
type Claims struct {
	AuthID  string
	Email   string
	IsAdmin bool
}

// Provider returns the claims for r, or (nil, nil) when nobody is signed in.
type Provider interface {
	CurrentClaims(r *http.Request) (*Claims, error)
}

// ProviderFunc adapts a function to [Provider].
type ProviderFunc func(r *http.Request) (*Claims, error)

// CurrentClaims calls f(r).
func (f ProviderFunc) CurrentClaims(r *http.Request) (*Claims, error) {
	return f(r)
}

// tokenFromRequest extracts a bearer token, falling back to the named
// cookie when the Authorization header is absent.
func tokenFromRequest(r *http.Request, cookieName string) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	if cookieName == "" {
		return ""
	}
	c, err := r.Cookie(cookieName)
	if err != nil {
		return ""
	}
	return c.Value
}

func emailSet(emails []string) map[string]struct{} {
	if len(emails) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(emails))
	for _, e := range emails {
		e = strings.ToLower(strings.TrimSpace(e))
		if e != "" {
			set[e] = struct{}{}
		}
	}
	return set
}

func inEmailSet(set map[string]struct{}, email string) bool {
	if len(set) == 0 || email == "" {
		return false
	}
	_, ok := set[strings.ToLower(email)]
	return ok
}
