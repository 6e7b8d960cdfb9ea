package rotauth

import (
	"errors"

	"github.com/redis/go-redis/v9"

	internalaudit "github.com/rotauth/rotauth/internal/audit"
	"github.com/rotauth/rotauth/internal/rate"
	"github.com/rotauth/rotauth/jwt"
	"github.com/rotauth/rotauth/password"
	"github.com/rotauth/rotauth/tokenstore"
)

// Builder defines a public type used by rotauth APIs.
//
// Builder instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	directory UserDirectory
	verifier  PasswordVerifier
	store     TokenStore
	auditSink AuditSink

	built bool
}

// New describes the new operation and its observable behavior.
//
// New may return an error when input validation, dependency calls, or security checks fail.
// New does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig describes the withconfig operation and its observable behavior.
//
// WithConfig may return an error when input validation, dependency calls, or security checks fail.
// WithConfig does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis describes the withredis operation and its observable behavior.
//
// WithRedis may return an error when input validation, dependency calls, or security checks fail.
// WithRedis does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithUserDirectory describes the withuserdirectory operation and its observable behavior.
//
// WithUserDirectory may return an error when input validation, dependency calls, or security checks fail.
// WithUserDirectory does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithUserDirectory(dir UserDirectory) *Builder {
	b.directory = dir
	return b
}

// WithPasswordVerifier describes the withpasswordverifier operation and its observable behavior.
//
// WithPasswordVerifier may return an error when input validation, dependency calls, or security checks fail.
// WithPasswordVerifier does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithPasswordVerifier(v PasswordVerifier) *Builder {
	b.verifier = v
	return b
}

// WithTokenStore describes the withtokenstore operation and its observable behavior.
//
// WithTokenStore may return an error when input validation, dependency calls, or security checks fail.
// WithTokenStore does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithTokenStore(store TokenStore) *Builder {
	b.store = store
	return b
}

// WithAuditSink describes the withauditsink operation and its observable behavior.
//
// WithAuditSink may return an error when input validation, dependency calls, or security checks fail.
// WithAuditSink does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithMetricsEnabled describes the withmetricsenabled operation and its observable behavior.
//
// WithMetricsEnabled may return an error when input validation, dependency calls, or security checks fail.
// WithMetricsEnabled does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms describes the withlatencyhistograms operation and its observable behavior.
//
// WithLatencyHistograms may return an error when input validation, dependency calls, or security checks fail.
// WithLatencyHistograms does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
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

	if b.directory == nil {
		return nil, errors.New("user directory required")
	}

	if b.store == nil && b.redis == nil {
		return nil, errors.New("redis client required for the default token store")
	}
	if cfg.RateLimit.Enabled && b.redis == nil {
		return nil, errors.New("redis client required for rate limiting")
	}

	engine := &Engine{
		config:    cloneConfig(cfg),
		directory: b.directory,
	}

	// -------- TOKEN STORE --------
	engine.store = b.store
	if engine.store == nil {
		engine.store = tokenstore.NewStore(b.redis, cfg.Store.RedisPrefix)
	}

	// -------- RATE LIMITER --------
	if cfg.RateLimit.Enabled {
		engine.rateLimiter = rate.New(b.redis, rate.Config{
			Enabled: true,
			Profiles: map[rate.Endpoint]rate.Profile{
				rate.EndpointLogin: {
					Capacity:     cfg.RateLimit.Login.Capacity,
					RefillTokens: cfg.RateLimit.Login.RefillTokens,
					RefillPeriod: cfg.RateLimit.Login.RefillPeriod,
				},
				rate.EndpointRefresh: {
					Capacity:     cfg.RateLimit.Refresh.Capacity,
					RefillTokens: cfg.RateLimit.Refresh.RefillTokens,
					RefillPeriod: cfg.RateLimit.Refresh.RefillPeriod,
				},
			},
		})
	}

	// -------- PASSWORD VERIFIER --------
	engine.verifier = b.verifier
	if engine.verifier == nil {
		ph, err := password.NewArgon2(password.Config{
			Memory:      cfg.Password.Memory,
			Time:        cfg.Password.Time,
			Parallelism: cfg.Password.Parallelism,
			SaltLength:  cfg.Password.SaltLength,
			KeyLength:   cfg.Password.KeyLength,
		})
		if err != nil {
			return nil, err
		}
		engine.verifier = ph
	}

	// -------- JWT CODEC --------
	codec, err := jwt.NewCodec(jwt.Config{
		SigningMethod: jwt.SigningMethod(cfg.JWT.SigningMethod),
		PrivateKey:    cloneBytes(cfg.JWT.PrivateKey),
		PublicKey:     cloneBytes(cfg.JWT.PublicKey),
		Issuer:        cfg.JWT.Issuer,
		Leeway:        cfg.JWT.Leeway,
	})
	if err != nil {
		return nil, err
	}
	engine.codec = codec

	engine.audit = internalaudit.NewDispatcher(b.auditSink, cfg.Audit.BufferSize, cfg.Audit.DropIfFull, cfg.Audit.Enabled)
	engine.metrics = NewMetrics(cfg.Metrics)

	b.built = true

	return engine, nil
}
