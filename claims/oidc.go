package claims

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/coreos/go-oidc/v3/oidc"
)

// OIDCOptions tunes [OIDCPlatform].
type OIDCOptions struct {
	// CookieName is read when the request carries no bearer token.
	CookieName string
	// AdminClaim names a boolean ID-token claim granting admin.
	AdminClaim  string
	AdminEmails []string
}

// OIDCPlatform trusts an ID token already issued by an external OpenID
// provider.
type OIDCPlatform struct {
	verifier   *oidc.IDTokenVerifier
	cookieName string
	adminClaim string
	admins     map[string]struct{}
}

// NewOIDCPlatform wraps an existing verifier.
func NewOIDCPlatform(verifier *oidc.IDTokenVerifier, opts OIDCOptions) *OIDCPlatform {
	return &OIDCPlatform{
		verifier:   verifier,
		cookieName: opts.CookieName,
		adminClaim: opts.AdminClaim,
		admins:     emailSet(opts.AdminEmails),
	}
}

// DiscoverOIDCPlatform runs OIDC discovery against issuer and verifies ID
// tokens issued to clientID.
func DiscoverOIDCPlatform(ctx context.Context, issuer, clientID string, opts OIDCOptions) (*OIDCPlatform, error) {
	if issuer == "" || clientID == "" {
		return nil, errors.New("oidc issuer and client id are required")
	}
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("oidc discovery failed: %w", err)
	}
	return NewOIDCPlatform(provider.Verifier(&oidc.Config{ClientID: clientID}), opts), nil
}

// CurrentUser implements [Platform].
func (p *OIDCPlatform) CurrentUser(r *http.Request) (*PlatformUser, error) {
	raw := tokenFromRequest(r, p.cookieName)
	if raw == "" {
		return nil, nil
	}

	idToken, err := p.verifier.Verify(r.Context(), raw)
	if err != nil {
		var expired *oidc.TokenExpiredError
		if errors.As(err, &expired) {
			return nil, fmt.Errorf("%w: %v", ErrStaleSession, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}

	var fields map[string]any
	if err := idToken.Claims(&fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}
	email, _ := fields["email"].(string)

	isAdmin := inEmailSet(p.admins, email)
	if !isAdmin && p.adminClaim != "" {
		isAdmin, _ = fields[p.adminClaim].(bool)
	}

	return &PlatformUser{ID: idToken.Subject, Email: email, IsAdmin: isAdmin}, nil
}
