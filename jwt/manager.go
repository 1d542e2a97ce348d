package jwt

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SigningMethod names the algorithm session tokens are signed with.
type SigningMethod string

const (
	// MethodEd25519 verifies EdDSA tokens against an ed25519 public key.
	MethodEd25519 SigningMethod = "ed25519"
	// MethodHS256 verifies HMAC-SHA256 tokens against a shared secret.
	MethodHS256 SigningMethod = "hs256"
)

// ErrTokenExpired is the golang-jwt sentinel for tokens past their exp.
var ErrTokenExpired = jwt.ErrTokenExpired

// Config controls token verification.
//
// Config instances are intended to be configured during initialization and then treated as immutable.
type Config struct {
	SigningMethod SigningMethod
	// Secret is the HS256 shared secret.
	Secret []byte
	// PublicKey is a raw or PEM-encoded ed25519 public key.
	PublicKey    []byte
	Issuer       string
	Audience     string
	Leeway       time.Duration
	RequireIAT   bool
	MaxFutureIAT time.Duration
	// VerifyKeys maps kid to key material for rotation. When set, tokens
	// must carry a known kid.
	VerifyKeys map[string][]byte
}

// Manager verifies session tokens.
type Manager struct {
	config Config
}

// SessionClaims is the payload of a session token. Subject carries the
// auth ID.
type SessionClaims struct {
	Email string `json:"email,omitempty"`
	Admin bool   `json:"adm,omitempty"`
	jwt.RegisteredClaims
}

// NewManager validates cfg and returns a Manager.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	if cfg.MaxFutureIAT == 0 {
		cfg.MaxFutureIAT = 10 * time.Minute
	}
	if cfg.MaxFutureIAT < 0 || cfg.MaxFutureIAT > 24*time.Hour {
		return nil, errors.New("invalid MaxFutureIAT configuration")
	}
	switch cfg.SigningMethod {
	case MethodHS256:
		if len(cfg.Secret) == 0 && len(cfg.VerifyKeys) == 0 {
			return nil, errors.New("hs256 requires a secret or verify key set")
		}
	case MethodEd25519:
		if len(cfg.PublicKey) > 0 {
			if _, err := parseEdPublicKey(cfg.PublicKey); err != nil {
				return nil, err
			}
		}
		if len(cfg.VerifyKeys) == 0 && len(cfg.PublicKey) == 0 {
			return nil, errors.New("ed25519 requires public key or verify key set")
		}
		for kid, key := range cfg.VerifyKeys {
			if _, err := parseEdPublicKey(key); err != nil {
				return nil, fmt.Errorf("invalid ed25519 verify key for kid %q: %w", kid, err)
			}
		}
	default:
		return nil, errors.New("unsupported signing method")
	}
	for kid := range cfg.VerifyKeys {
		if strings.TrimSpace(kid) == "" {
			return nil, errors.New("verify key map contains empty kid")
		}
	}

	return &Manager{config: cfg}, nil
}

// ParseSession verifies tokenStr and returns its claims. Expired tokens fail
// with an error matching [ErrTokenExpired].
func (j *Manager) ParseSession(tokenStr string) (*SessionClaims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{j.getMethod().Alg()}),
		jwt.WithExpirationRequired(),
	}
	if j.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(j.config.Leeway))
	}
	if j.config.RequireIAT {
		options = append(options, jwt.WithIssuedAt())
	}
	if j.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(j.config.Issuer))
	}
	if j.config.Audience != "" {
		options = append(options, jwt.WithAudience(j.config.Audience))
	}

	parser := jwt.NewParser(options...)
	token, err := parser.ParseWithClaims(tokenStr, &SessionClaims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != j.getMethod().Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}

		if len(j.config.VerifyKeys) > 0 {
			kid, _ := t.Header["kid"].(string)
			if kid == "" {
				return nil, errors.New("missing kid")
			}
			key, ok := j.config.VerifyKeys[kid]
			if !ok {
				return nil, errors.New("unknown kid")
			}
			return j.keyBytesToVerifyKey(key)
		}

		return j.getVerifyKey()
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", jwt.ErrTokenInvalidClaims)
	}
	if claims.IssuedAt != nil && j.config.MaxFutureIAT > 0 {
		maxAllowed := time.Now().Add(j.config.MaxFutureIAT)
		if claims.IssuedAt.Time.After(maxAllowed) {
			return nil, errors.New("token iat too far in the future")
		}
	}

	return claims, nil
}

func (j *Manager) getMethod() jwt.SigningMethod {
	switch j.config.SigningMethod {
	case MethodHS256:
		return jwt.SigningMethodHS256
	default:
		return jwt.SigningMethodEdDSA
	}
}

func (j *Manager) getVerifyKey() (interface{}, error) {
	switch j.config.SigningMethod {
	case MethodHS256:
		return j.config.Secret, nil
	default:
		return parseEdPublicKey(j.config.PublicKey)
	}
}

func (j *Manager) keyBytesToVerifyKey(key []byte) (interface{}, error) {
	switch j.config.SigningMethod {
	case MethodHS256:
		return key, nil
	default:
		return parseEdPublicKey(key)
	}
}

func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 public key")
	}
	edKey, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("invalid ed25519 public key type")
	}
	return edKey, nil
}
