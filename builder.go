package secureauth

import (
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/siriuslabs/secureauth/internal/rate"
	"github.com/siriuslabs/secureauth/jwt"
	"github.com/siriuslabs/secureauth/password"
)

// Builder assembles an [Engine] step by step. Collect the configuration and
// collaborators, then call Build exactly once.
type Builder struct {
	config   Config
	store    Store
	notifier Notifier
	redis    redis.UniversalClient
	logger   *zap.Logger
	sink     AuditSink

	built bool
}

// New returns a Builder preloaded with the default configuration.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the builder configuration wholesale.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithStore sets the persistence backend. Required.
func (b *Builder) WithStore(s Store) *Builder {
	b.store = s
	return b
}

// WithNotifier sets the outbound message channel. Defaults to
// [NoOpNotifier] when unset.
func (b *Builder) WithNotifier(n Notifier) *Builder {
	b.notifier = n
	return b
}

// WithRedis supplies the Redis client backing the rate limiter. Without it
// rate limiting is disabled regardless of configuration.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithLogger sets the structured logger. Defaults to a no-op logger.
func (b *Builder) WithLogger(logger *zap.Logger) *Builder {
	b.logger = logger
	return b
}

// WithAuditSink sets the destination for the asynchronous audit stream.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.sink = sink
	return b
}

// Build validates the configuration, wires the collaborators and returns a
// ready Engine. A Builder can build at most one Engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	if b.store == nil {
		return nil, errors.New("store required")
	}

	notifier := b.notifier
	if notifier == nil {
		notifier = NoOpNotifier{}
	}

	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	if cfg.RateLimit.Enabled && b.redis == nil {
		return nil, errors.New("rate limiting requires a redis client")
	}

	var limiter *rate.Limiter
	if cfg.RateLimit.Enabled {
		limiter = rate.New(b.redis, rate.Config{
			EnableIPThrottle:  cfg.RateLimit.EnableIPThrottle,
			MaxSigninAttempts: cfg.RateLimit.MaxSigninAttempts,
			SigninCooldown:    cfg.RateLimit.SigninCooldown,
			MaxResetRequests:  cfg.RateLimit.MaxResetRequests,
			ResetCooldown:     cfg.RateLimit.ResetCooldown,
		})
	}

	hasher, err := password.NewArgon2(password.Config{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	})
	if err != nil {
		return nil, err
	}

	tokens, err := jwt.NewManager(jwt.Config{
		AccessSecret:  cloneBytes(cfg.JWT.AccessSecret),
		RefreshSecret: cloneBytes(cfg.JWT.RefreshSecret),
		AccessTTL:     cfg.JWT.AccessTTL,
		RefreshTTL:    cfg.JWT.RefreshTTL,
		Issuer:        cfg.JWT.Issuer,
		Leeway:        cfg.JWT.Leeway,
	})
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		config:   cfg,
		store:    b.store,
		notifier: notifier,
		hasher:   hasher,
		tokens:   tokens,
		limiter:  limiter,
		audit:    newAuditDispatcher(cfg.Audit, b.sink),
		metrics:  NewMetrics(cfg.Metrics),
		log:      logger,
		now:      time.Now,
	}

	b.built = true

	return engine, nil
}
