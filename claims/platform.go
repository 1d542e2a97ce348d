package claims

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

// PlatformUser is a platform's answer to "who is signed in".
type PlatformUser struct {
	ID      string
	Email   string
	IsAdmin bool
}

// Platform is the external identity platform. CurrentUser returns
// (nil, nil) when no user is signed in.
type Platform interface {
	CurrentUser(r *http.Request) (*PlatformUser, error)
}

// PlatformProvider relays a [Platform] unchanged. Platform errors,
// including [ErrInvalidSession] and [ErrStaleSession], propagate as-is.
type PlatformProvider struct {
	platform Platform
}

// NewPlatformProvider returns a Provider backed by p.
func NewPlatformProvider(p Platform) *PlatformProvider {
	return &PlatformProvider{platform: p}
}

// CurrentClaims implements [Provider].
func (p *PlatformProvider) CurrentClaims(r *http.Request) (*Claims, error) {
	user, err := p.platform.CurrentUser(r)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, nil
	}
	return &Claims{AuthID: user.ID, Email: user.Email, IsAdmin: user.IsAdmin}, nil
}

const (
	// DefaultIDHeader carries the authenticated user's stable ID.
	DefaultIDHeader = "X-Goog-Authenticated-User-Id"
	// DefaultEmailHeader carries the authenticated user's email.
	DefaultEmailHeader = "X-Goog-Authenticated-User-Email"
	// DefaultHeaderPrefix is stripped from both header values.
	DefaultHeaderPrefix = "accounts.google.com:"
)

// HeaderPlatform reads identity headers injected by a trusted
// authenticating proxy. It must only be used behind a proxy that strips
// these headers from client requests.
type HeaderPlatform struct {
	IDHeader    string
	EmailHeader string
	// AdminHeader, when set, marks the user as admin if its value parses
	// as a true boolean.
	AdminHeader string
	// Prefix is removed from the ID and email values when present.
	Prefix      string
	AdminEmails []string

	admins map[string]struct{}
}

// NewHeaderPlatform returns a HeaderPlatform with the identity-aware proxy
// defaults.
func NewHeaderPlatform(adminEmails ...string) *HeaderPlatform {
	return &HeaderPlatform{
		IDHeader:    DefaultIDHeader,
		EmailHeader: DefaultEmailHeader,
		Prefix:      DefaultHeaderPrefix,
		AdminEmails: adminEmails,
		admins:      emailSet(adminEmails),
	}
}

// CurrentUser implements [Platform].
func (p *HeaderPlatform) CurrentUser(r *http.Request) (*PlatformUser, error) {
	idHeader := p.IDHeader
	if idHeader == "" {
		idHeader = DefaultIDHeader
	}
	emailHeader := p.EmailHeader
	if emailHeader == "" {
		emailHeader = DefaultEmailHeader
	}

	id := p.strip(r.Header.Get(idHeader))
	if id == "" {
		return nil, nil
	}
	email := p.strip(r.Header.Get(emailHeader))
	if email == "" {
		return nil, fmt.Errorf("%w: %s present without %s", ErrInvalidSession, idHeader, emailHeader)
	}

	admins := p.admins
	if admins == nil {
		admins = emailSet(p.AdminEmails)
	}
	isAdmin := inEmailSet(admins, email)
	if !isAdmin && p.AdminHeader != "" {
		isAdmin, _ = strconv.ParseBool(strings.TrimSpace(r.Header.Get(p.AdminHeader)))
	}

	return &PlatformUser{ID: id, Email: email, IsAdmin: isAdmin}, nil
}

func (p *HeaderPlatform) strip(v string) string {
	v = strings.TrimSpace(v)
	if p.Prefix != "" {
		v = strings.TrimPrefix(v, p.Prefix)
	}
	return v
}
