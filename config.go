package bakeryauth

import (
	"errors"
	"time"

	"github.com/MrEthical07/bakeryauth/jwt"
	"github.com/MrEthical07/bakeryauth/session"
)

// Config holds engine tuning. Start from DefaultConfig and override fields.
type Config struct {
	JWT           JWTConfig
	Password      PasswordConfig
	Refresh       RefreshConfig
	PasswordReset PasswordResetConfig
	Security      SecurityConfig
	Audit         AuditConfig
	Metrics       MetricsConfig
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig holds the two signing secrets. They must differ.
type JWTConfig struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Leeway        time.Duration
	Issuer        string
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig holds Argon2id cost parameters for new hashes.
type PasswordConfig struct {
	Memory         uint32
	Time           uint32
	Parallelism    uint8
	SaltLength     uint32
	KeyLength      uint32
	// UpgradeOnLogin rewrites weaker hashes after a successful login. The
	// engine and the stores must then share one hasher.
	UpgradeOnLogin bool
}

/*
====================================
REFRESH CONFIG
====================================
*/

// RefreshConfig controls rotation and reuse handling.
type RefreshConfig struct {
	// MaxTokens caps the refresh tokens a user may hold. Oldest are evicted.
	MaxTokens int
	// CrossCheckAccess requires the presented access token to name the same
	// user as the refresh token.
	CrossCheckAccess bool
	// RevokeAllOnReuse clears the user's whole collection when a verified
	// token that is not a member is presented.
	RevokeAllOnReuse bool
	// SerializePerUser wraps rotation in a Redis lock per user id.
	SerializePerUser bool
	LockTTL          time.Duration
	LockPrefix       string
}

/*
====================================
PASSWORD RESET CONFIG
====================================
*/

// PasswordResetConfig controls side effects of a completed reset.
type PasswordResetConfig struct {
	RevokeSessions bool
}

/*
====================================
SECURITY CONFIG
====================================
*/

// SecurityConfig holds the Redis-backed per-identity limits. A zero max
// disables that limit.
type SecurityConfig struct {
	EnableIPThrottle        bool
	MaxLoginAttempts        int
	LoginCooldownDuration   time.Duration
	MaxRefreshAttempts      int
	RefreshCooldownDuration time.Duration
	MaxOTPRequests          int
	OTPRequestWindow        time.Duration
}

/*
====================================
AUDIT / METRICS CONFIG
====================================
*/

// AuditConfig controls the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls in-process counters and latency histograms.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the production defaults. Secrets are left empty.
func DefaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL:  jwt.DefaultAccessTTL,
			RefreshTTL: jwt.DefaultRefreshTTL,
		},
		Password: PasswordConfig{
			Memory:         64 * 1024,
			Time:           3,
			Parallelism:    2,
			SaltLength:     16,
			KeyLength:      32,
			UpgradeOnLogin: true,
		},
		Refresh: RefreshConfig{
			MaxTokens:        session.MaxTokens,
			CrossCheckAccess: true,
			LockTTL:          5 * time.Second,
			LockPrefix:       "bk:rlock",
		},
		Security: SecurityConfig{
			MaxLoginAttempts:        5,
			LoginCooldownDuration:   15 * time.Minute,
			MaxRefreshAttempts:      20,
			RefreshCooldownDuration: time.Minute,
			MaxOTPRequests:          10,
			OTPRequestWindow:        10 * time.Minute,
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
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.AccessSecret = cloneBytes(cfg.JWT.AccessSecret)
	out.JWT.RefreshSecret = cloneBytes(cfg.JWT.RefreshSecret)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate rejects inconsistent configuration. Build calls it.
func (c *Config) Validate() error {
	// JWT
	if len(c.JWT.AccessSecret) == 0 || len(c.JWT.RefreshSecret) == 0 {
		return errors.New("JWT AccessSecret and RefreshSecret are required")
	}
	if string(c.JWT.AccessSecret) == string(c.JWT.RefreshSecret) {
		return errors.New("JWT AccessSecret and RefreshSecret must differ")
	}
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT AccessTTL must be > 0")
	}
	if c.JWT.RefreshTTL <= 0 {
		return errors.New("JWT RefreshTTL must be > 0")
	}
	if c.JWT.RefreshTTL <= c.JWT.AccessTTL {
		return errors.New("JWT RefreshTTL must be greater than AccessTTL")
	}

	// Refresh
	if c.Refresh.MaxTokens <= 0 {
		return errors.New("Refresh MaxTokens must be > 0")
	}
	if c.Refresh.SerializePerUser && c.Refresh.LockTTL <= 0 {
		return errors.New("Refresh LockTTL must be > 0 when SerializePerUser is true")
	}

	// Security
	if c.Security.MaxLoginAttempts < 0 || c.Security.MaxRefreshAttempts < 0 || c.Security.MaxOTPRequests < 0 {
		return errors.New("Security limits must be >= 0")
	}
	if c.Security.MaxLoginAttempts > 0 && c.Security.LoginCooldownDuration <= 0 {
		return errors.New("Security LoginCooldownDuration must be > 0")
	}
	if c.Security.MaxRefreshAttempts > 0 && c.Security.RefreshCooldownDuration <= 0 {
		return errors.New("Security RefreshCooldownDuration must be > 0")
	}
	if c.Security.MaxOTPRequests > 0 && c.Security.OTPRequestWindow <= 0 {
		return errors.New("Security OTPRequestWindow must be > 0")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	return nil
}
