package authlink

import (
	"errors"
	"strings"
	"time"

	"github.com/MrEthical07/authlink/association/redisstore"
	"github.com/MrEthical07/authlink/claims"
	"github.com/MrEthical07/authlink/session"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Config defines a public type used by authlink APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	Store     StoreConfig     `yaml:"store"`
	Session   SessionConfig   `yaml:"session"`
	JWT       JWTConfig       `yaml:"jwt"`
	Audit     AuditConfig     `yaml:"audit"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Logging   LoggingConfig   `yaml:"logging"`
	Reconcile ReconcileConfig `yaml:"reconcile"`
}

/*
====================================
STORE CONFIG
====================================
*/

const (
	// BackendRedis stores associations in Redis.
	BackendRedis = "redis"
	// BackendPostgres stores associations in PostgreSQL.
	BackendPostgres = "postgres"
)

// StoreConfig selects and addresses the association backend. A store or
// client passed to the [Builder] takes precedence over the address fields.
type StoreConfig struct {
	Backend       string `yaml:"backend" env:"AUTHLINK_STORE_BACKEND"`
	RedisAddr     string `yaml:"redis_addr" env:"AUTHLINK_REDIS_ADDR"`
	RedisPassword string `yaml:"redis_password" env:"AUTHLINK_REDIS_PASSWORD"`
	RedisDB       int    `yaml:"redis_db" env:"AUTHLINK_REDIS_DB"`
	RedisPrefix   string `yaml:"redis_prefix" env:"AUTHLINK_REDIS_PREFIX"`
	PostgresURL   string `yaml:"postgres_url" env:"AUTHLINK_POSTGRES_URL"`
	AutoMigrate   bool   `yaml:"auto_migrate" env:"AUTHLINK_AUTO_MIGRATE"`
}

/*
====================================
SESSION CONFIG
====================================
*/

const (
	// StrategyPlatformHeader trusts identity headers set by a fronting proxy.
	StrategyPlatformHeader = "platform_header"
	// StrategySelfIssued verifies application-minted session tokens.
	StrategySelfIssued = "self_issued"
	// StrategyCustom uses the provider passed to [Builder.WithClaimsProvider].
	StrategyCustom = "custom"
)

// SessionConfig defines a public type used by authlink APIs.
//
// CookieNames are the platform session cookies expired on sign-out.
// AdminEmails grants admin rights for the header strategy.
type SessionConfig struct {
	CookieNames  []string `yaml:"cookie_names"`
	CookiePath   string   `yaml:"cookie_path" env:"AUTHLINK_COOKIE_PATH"`
	CookieDomain string   `yaml:"cookie_domain" env:"AUTHLINK_COOKIE_DOMAIN"`
	Strategy     string   `yaml:"strategy" env:"AUTHLINK_SESSION_STRATEGY"`
	AdminEmails  []string `yaml:"admin_emails"`
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig configures verification of self-issued session tokens. It is
// only consulted when Session.Strategy is "self_issued".
type JWTConfig struct {
	SigningMethod string        `yaml:"signing_method" env:"AUTHLINK_JWT_SIGNING_METHOD"` // "ed25519" (default), "hs256" optional
	Secret        string        `yaml:"secret" env:"AUTHLINK_JWT_SECRET"`
	PublicKey     string        `yaml:"public_key" env:"AUTHLINK_JWT_PUBLIC_KEY"`
	Issuer        string        `yaml:"issuer" env:"AUTHLINK_JWT_ISSUER"`
	Audience      string        `yaml:"audience" env:"AUTHLINK_JWT_AUDIENCE"`
	Leeway        time.Duration `yaml:"leeway" env:"AUTHLINK_JWT_LEEWAY"`
	RequireIAT    bool          `yaml:"require_iat" env:"AUTHLINK_JWT_REQUIRE_IAT"`
	MaxFutureIAT  time.Duration `yaml:"max_future_iat" env:"AUTHLINK_JWT_MAX_FUTURE_IAT"`
	CookieName    string        `yaml:"cookie_name" env:"AUTHLINK_JWT_COOKIE_NAME"`
}

/*
====================================
OBSERVABILITY CONFIG
====================================
*/

// AuditConfig defines a public type used by authlink APIs.
//
// AuditConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuditConfig struct {
	Enabled    bool `yaml:"enabled" env:"AUTHLINK_AUDIT_ENABLED"`
	BufferSize int  `yaml:"buffer_size" env:"AUTHLINK_AUDIT_BUFFER_SIZE"`
	DropIfFull bool `yaml:"drop_if_full" env:"AUTHLINK_AUDIT_DROP_IF_FULL"`
}

// MetricsConfig defines a public type used by authlink APIs.
//
// MetricsConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricsConfig struct {
	Enabled                 bool `yaml:"enabled" env:"AUTHLINK_METRICS_ENABLED"`
	EnableLatencyHistograms bool `yaml:"latency_histograms" env:"AUTHLINK_METRICS_LATENCY"`
}

// LoggingConfig controls the default logger built when none is supplied.
type LoggingConfig struct {
	Level  string `yaml:"level" env:"AUTHLINK_LOG_LEVEL"`
	Format string `yaml:"format" env:"AUTHLINK_LOG_FORMAT"` // "json" (default) or "text"
}

// ReconcileConfig drives the authlink-reconcile command.
type ReconcileConfig struct {
	// Schedule is a cron spec or descriptor such as "@every 1h".
	Schedule string `yaml:"schedule" env:"AUTHLINK_RECONCILE_SCHEDULE"`
}

// DefaultConfig returns the configuration used when none is supplied.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Store: StoreConfig{
			Backend:     BackendRedis,
			RedisAddr:   "localhost:6379",
			RedisPrefix: redisstore.DefaultPrefix,
		},
		Session: SessionConfig{
			CookieNames: append([]string(nil), session.DefaultCookieNames...),
			Strategy:    StrategyPlatformHeader,
		},
		JWT: JWTConfig{
			SigningMethod: "ed25519",
			MaxFutureIAT:  10 * time.Minute,
			CookieName:    claims.DefaultSessionCookie,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Reconcile: ReconcileConfig{
			Schedule: "@every 1h",
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Session.CookieNames = cloneStrings(cfg.Session.CookieNames)
	out.Session.AdminEmails = cloneStrings(cfg.Session.AdminEmails)
	return out
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate describes the validate operation and its observable behavior.
//
// Validate may return an error when input validation, dependency calls, or security checks fail.
// Validate does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Config) Validate() error {
	// Store
	switch c.Store.Backend {
	case BackendRedis, BackendPostgres:
	default:
		return errors.New("Store Backend must be 'redis' or 'postgres'")
	}
	if c.Store.Backend == BackendRedis {
		if strings.TrimSpace(c.Store.RedisPrefix) == "" {
			return errors.New("Store RedisPrefix must not be empty")
		}
		if strings.ContainsAny(c.Store.RedisPrefix, " \t\r\n") {
			return errors.New("Store RedisPrefix must not contain whitespace")
		}
		if c.Store.RedisDB < 0 {
			return errors.New("Store RedisDB must be >= 0")
		}
	}

	// Session
	for _, name := range c.Session.CookieNames {
		if strings.TrimSpace(name) == "" {
			return errors.New("Session CookieNames must not contain blank names")
		}
		if strings.ContainsAny(name, "=;, \t") {
			return errors.New("Session CookieNames contains an invalid cookie name")
		}
	}
	switch c.Session.Strategy {
	case StrategyPlatformHeader, StrategyCustom:
	case StrategySelfIssued:
		if err := c.JWT.validate(); err != nil {
			return err
		}
	default:
		return errors.New("Session Strategy must be 'platform_header', 'self_issued' or 'custom'")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when enabled")
	}

	// Metrics
	if c.Metrics.EnableLatencyHistograms && !c.Metrics.Enabled {
		return errors.New("Metrics EnableLatencyHistograms requires Metrics Enabled")
	}

	// Logging
	if c.Logging.Level != "" {
		if _, err := logrus.ParseLevel(c.Logging.Level); err != nil {
			return errors.New("Logging Level is invalid")
		}
	}
	switch c.Logging.Format {
	case "", "json", "text":
	default:
		return errors.New("Logging Format must be 'json' or 'text'")
	}

	// Reconcile
	if c.Reconcile.Schedule != "" {
		if _, err := cron.ParseStandard(c.Reconcile.Schedule); err != nil {
			return errors.New("Reconcile Schedule is not a valid cron spec")
		}
	}

	return nil
}

func (c JWTConfig) validate() error {
	switch c.SigningMethod {
	case "ed25519":
		if strings.TrimSpace(c.PublicKey) == "" {
			return errors.New("ed25519 requires PublicKey")
		}
	case "hs256":
		if c.Secret == "" {
			return errors.New("hs256 requires Secret")
		}
	default:
		return errors.New("unsupported JWT signing method")
	}
	if c.Leeway < 0 || c.Leeway > 2*time.Minute {
		return errors.New("JWT Leeway must be between 0 and 2m")
	}
	if c.MaxFutureIAT < 0 || c.MaxFutureIAT > 24*time.Hour {
		return errors.New("JWT MaxFutureIAT must be between 0 and 24h")
	}
	if c.Audience != "" && strings.TrimSpace(c.Audience) == "" {
		return errors.New("JWT Audience must not be blank")
	}
	if c.Issuer != "" && strings.TrimSpace(c.Issuer) == "" {
		return errors.New("JWT Issuer must not be blank")
	}
	if strings.TrimSpace(c.CookieName) == "" {
		return errors.New("JWT CookieName must not be empty")
	}
	return nil
}
