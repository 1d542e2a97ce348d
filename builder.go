package authlink

import (
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/MrEthical07/authlink/association"
	"github.com/MrEthical07/authlink/association/pgstore"
	"github.com/MrEthical07/authlink/association/redisstore"
	"github.com/MrEthical07/authlink/claims"
	"github.com/MrEthical07/authlink/jwt"
	"github.com/MrEthical07/authlink/session"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Builder defines a public type used by authlink APIs.
//
// Builder instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Builder struct {
	config Config
	redis  redis.UniversalClient
	db     *sql.DB
	store  association.Store

	provider  claims.Provider
	logger    logrus.FieldLogger
	auditSink AuditSink
	newUserID UserIDGenerator
	clock     func() time.Time

	built bool
}

// New describes the new operation and its observable behavior.
//
// New does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig describes the withconfig operation and its observable behavior.
//
// WithConfig does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis uses client for the redis backend instead of dialing
// Store.RedisAddr. The caller keeps ownership of client.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithDB uses db for the postgres backend instead of opening
// Store.PostgresURL. The caller keeps ownership of db.
func (b *Builder) WithDB(db *sql.DB) *Builder {
	b.db = db
	return b
}

// WithStore bypasses backend selection entirely.
func (b *Builder) WithStore(store association.Store) *Builder {
	b.store = store
	return b
}

// WithClaimsProvider sets the provider consulted for the signed-in principal.
// It overrides Session.Strategy and is required when the strategy is
// "custom".
func (b *Builder) WithClaimsProvider(p claims.Provider) *Builder {
	b.provider = p
	return b
}

// WithLogger describes the withlogger operation and its observable behavior.
func (b *Builder) WithLogger(logger logrus.FieldLogger) *Builder {
	b.logger = logger
	return b
}

// WithAuditSink describes the withauditsink operation and its observable behavior.
//
// WithAuditSink does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithMetricsEnabled describes the withmetricsenabled operation and its observable behavior.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms describes the withlatencyhistograms operation and its observable behavior.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// WithUserIDGenerator sets the generator [Engine.ResolveUser] uses for new
// principals. The default is uuid.NewString.
func (b *Builder) WithUserIDGenerator(gen UserIDGenerator) *Builder {
	b.newUserID = gen
	return b
}

// WithClock overrides the time source for record timestamps and cookie
// expiry. Tests only.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.clock = now
	return b
}

// Build describes the build operation and its observable behavior.
//
// Build may return an error when input validation, dependency calls, or security checks fail.
// Build does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = NewLogger(cfg.Logging, os.Stderr)
	}

	// -------- CLAIMS PROVIDER --------
	provider, err := b.buildProvider(cfg)
	if err != nil {
		return nil, err
	}

	// -------- ASSOCIATION STORE --------
	store, closers, err := b.buildStore(cfg)
	if err != nil {
		return nil, err
	}

	clock := b.clock
	if clock == nil {
		clock = time.Now
	}

	engine := &Engine{
		config:       cloneConfig(cfg),
		store:        store,
		associations: association.NewService(store, store, association.WithClock(clock)),
		hooks: session.NewHooks(provider, session.Config{
			CookieNames: cfg.Session.CookieNames,
			Path:        cfg.Session.CookiePath,
			Domain:      cfg.Session.CookieDomain,
		}, session.WithClock(clock)),
		logger:    logger,
		newUserID: b.newUserID,
		now:       clock,
		closers:   closers,
	}
	if engine.newUserID == nil {
		engine.newUserID = uuid.NewString
	}

	sink := b.auditSink
	if sink == nil {
		sink = NewLogrusSink(logger)
	}
	engine.audit = newAuditDispatcher(cfg.Audit, sink, logger)
	engine.metrics = NewMetrics(cfg.Metrics)

	b.built = true

	logger.WithFields(logrus.Fields{
		"backend":  cfg.Store.Backend,
		"strategy": cfg.Session.Strategy,
	}).Debug("authlink engine built")

	return engine, nil
}

func (b *Builder) buildProvider(cfg Config) (claims.Provider, error) {
	if b.provider != nil {
		return b.provider, nil
	}

	switch cfg.Session.Strategy {
	case StrategyPlatformHeader:
		return claims.NewPlatformProvider(claims.NewHeaderPlatform(cfg.Session.AdminEmails...)), nil
	case StrategySelfIssued:
		jm, err := jwt.NewManager(jwt.Config{
			SigningMethod: jwt.SigningMethod(cfg.JWT.SigningMethod),
			Secret:        []byte(cfg.JWT.Secret),
			PublicKey:     []byte(cfg.JWT.PublicKey),
			Issuer:        cfg.JWT.Issuer,
			Audience:      cfg.JWT.Audience,
			Leeway:        cfg.JWT.Leeway,
			RequireIAT:    cfg.JWT.RequireIAT,
			MaxFutureIAT:  cfg.JWT.MaxFutureIAT,
		})
		if err != nil {
			return nil, err
		}
		return claims.NewSelfIssuedProvider(jm, cfg.JWT.CookieName), nil
	default:
		return nil, errors.New("custom session strategy requires a claims provider")
	}
}

func (b *Builder) buildStore(cfg Config) (association.Store, []io.Closer, error) {
	if b.store != nil {
		return b.store, nil, nil
	}

	switch cfg.Store.Backend {
	case BackendPostgres:
		if b.db != nil {
			return pgstore.NewStore(b.db), nil, nil
		}
		if cfg.Store.PostgresURL == "" {
			return nil, nil, errors.New("postgres backend requires a database handle or PostgresURL")
		}
		if cfg.Store.AutoMigrate {
			if err := pgstore.Migrate(cfg.Store.PostgresURL); err != nil {
				return nil, nil, fmt.Errorf("migrate: %w", err)
			}
		}
		db, err := pgstore.Open(cfg.Store.PostgresURL)
		if err != nil {
			return nil, nil, err
		}
		return pgstore.NewStore(db), []io.Closer{db}, nil
	default:
		if b.redis != nil {
			return redisstore.NewStore(b.redis, cfg.Store.RedisPrefix), nil, nil
		}
		if cfg.Store.RedisAddr == "" {
			return nil, nil, errors.New("redis client or RedisAddr required")
		}
		client := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    []string{cfg.Store.RedisAddr},
			Password: cfg.Store.RedisPassword,
			DB:       cfg.Store.RedisDB,
		})
		return redisstore.NewStore(client, cfg.Store.RedisPrefix), []io.Closer{client}, nil
	}
}

// NewLogger returns the logrus logger Build uses when none is supplied,
// writing to out with the configured format and level.
func NewLogger(cfg LoggingConfig, out io.Writer) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(out)
	if cfg.Format == "text" {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	if level, err := logrus.ParseLevel(cfg.Level); err == nil {
		logger.SetLevel(level)
	}
	return logger
}
