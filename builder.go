package bakeryauth

import (
	"errors"

	"github.com/MrEthical07/bakeryauth/account"
	"github.com/MrEthical07/bakeryauth/internal"
	"github.com/MrEthical07/bakeryauth/internal/audit"
	"github.com/MrEthical07/bakeryauth/internal/rate"
	"github.com/MrEthical07/bakeryauth/jwt"
	"github.com/MrEthical07/bakeryauth/password"
	"github.com/MrEthical07/bakeryauth/session"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Builder assembles an Engine. A Builder can be used once.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	users  account.CredentialStore
	otps   account.OTPStore
	hasher *password.Argon2

	logger    *zap.Logger
	auditSink AuditSink
	generate  func(digits int) (string, error)

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis enables rate limiting and, when configured, refresh serialization.
// Without it the engine runs unthrottled.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

func (b *Builder) WithUserStore(s account.CredentialStore) *Builder {
	b.users = s
	return b
}

func (b *Builder) WithOTPStore(s account.OTPStore) *Builder {
	b.otps = s
	return b
}

// WithPasswordHasher shares the hasher the stores were built with. Its
// parameters decide when a stored hash is upgraded on login, so it must be the
// stores' hasher. Build requires it while Password.UpgradeOnLogin is set and
// otherwise derives one from Config.Password.
func (b *Builder) WithPasswordHasher(h *password.Argon2) *Builder {
	b.hasher = h
	return b
}

func (b *Builder) WithLogger(log *zap.Logger) *Builder {
	b.logger = log
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithOTPGenerator replaces the crypto/rand code generator. Tests use it to
// pin codes.
func (b *Builder) WithOTPGenerator(gen func(digits int) (string, error)) *Builder {
	b.generate = gen
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates configuration and wires the engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.users == nil {
		return nil, errors.New("user store required")
	}
	if b.otps == nil {
		return nil, errors.New("otp store required")
	}
	if cfg.Refresh.SerializePerUser && b.redis == nil {
		return nil, errors.New("Refresh SerializePerUser requires redis client")
	}
	if cfg.Password.UpgradeOnLogin && b.hasher == nil {
		return nil, errors.New("Password UpgradeOnLogin requires WithPasswordHasher")
	}

	log := b.logger
	if log == nil {
		log = zap.NewNop()
	}

	engine := &Engine{
		config:   cloneConfig(cfg),
		users:    b.users,
		otps:     b.otps,
		log:      log.Named("bakeryauth"),
		generate: b.generate,
	}
	if engine.generate == nil {
		engine.generate = internal.NewOTP
	}

	if b.redis != nil {
		engine.rateLimiter = rate.New(b.redis, rate.Config{
			EnableIPThrottle:        cfg.Security.EnableIPThrottle,
			MaxLoginAttempts:        cfg.Security.MaxLoginAttempts,
			LoginCooldownDuration:   cfg.Security.LoginCooldownDuration,
			MaxRefreshAttempts:      cfg.Security.MaxRefreshAttempts,
			RefreshCooldownDuration: cfg.Security.RefreshCooldownDuration,
			MaxOTPRequests:          cfg.Security.MaxOTPRequests,
			OTPRequestWindow:        cfg.Security.OTPRequestWindow,
		})
		if cfg.Refresh.SerializePerUser {
			engine.locker = session.NewLocker(b.redis, cfg.Refresh.LockPrefix, cfg.Refresh.LockTTL)
		}
	}

	engine.audit = audit.NewDispatcher(audit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, b.auditSink, engine.log)
	engine.metrics = NewMetrics(cfg.Metrics)

	ph := b.hasher
	if ph == nil {
		var err error
		ph, err = password.NewArgon2(password.Config{
			Memory:      cfg.Password.Memory,
			Time:        cfg.Password.Time,
			Parallelism: cfg.Password.Parallelism,
			SaltLength:  cfg.Password.SaltLength,
			KeyLength:   cfg.Password.KeyLength,
		})
		if err != nil {
			return nil, err
		}
	}
	engine.passwordHash = ph

	jm, err := jwt.NewManager(jwt.Config{
		AccessSecret:  cloneBytes(cfg.JWT.AccessSecret),
		RefreshSecret: cloneBytes(cfg.JWT.RefreshSecret),
		AccessTTL:     cfg.JWT.AccessTTL,
		RefreshTTL:    cfg.JWT.RefreshTTL,
		Leeway:        cfg.JWT.Leeway,
		Issuer:        cfg.JWT.Issuer,
	})
	if err != nil {
		return nil, err
	}
	engine.jwtManager = jm

	engine.flowDeps = engine.buildFlowDeps()

	b.built = true

	return engine, nil
}
