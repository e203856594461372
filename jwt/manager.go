package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	// DefaultAccessTTL is the access-token lifetime used when Config.AccessTTL is zero.
	DefaultAccessTTL = 15 * time.Minute
	// DefaultRefreshTTL is the refresh-token lifetime used when Config.RefreshTTL is zero.
	DefaultRefreshTTL = 7 * 24 * time.Hour

	minSecretLen = 16
)

// Config holds the two independent signing secrets and lifetimes.
type Config struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
	Leeway        time.Duration
}

// Subject is the identity embedded in both token kinds.
type Subject struct {
	ID   string
	Role string
}

// Claims is the payload of access and refresh tokens.
type Claims struct {
	ID   string `json:"_id"`
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Manager signs and verifies access and refresh tokens. It is safe for concurrent use.
type Manager struct {
	config Config
	now    func() time.Time
}

// NewManager validates cfg and returns a token manager.
func NewManager(cfg Config) (*Manager, error) {
	if len(cfg.AccessSecret) < minSecretLen {
		return nil, errors.New("access secret too short")
	}
	if len(cfg.RefreshSecret) < minSecretLen {
		return nil, errors.New("refresh secret too short")
	}
	if string(cfg.AccessSecret) == string(cfg.RefreshSecret) {
		return nil, errors.New("access and refresh secrets must differ")
	}
	if cfg.AccessTTL == 0 {
		cfg.AccessTTL = DefaultAccessTTL
	}
	if cfg.RefreshTTL == 0 {
		cfg.RefreshTTL = DefaultRefreshTTL
	}
	if cfg.AccessTTL < 0 || cfg.RefreshTTL < 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}

	return &Manager{config: cfg, now: time.Now}, nil
}

// RefreshTTL reports the configured refresh lifetime. The transport uses it as the cookie max age.
func (j *Manager) RefreshTTL() time.Duration {
	return j.config.RefreshTTL
}

// IssueAccess signs {_id, role} with the access secret.
func (j *Manager) IssueAccess(sub Subject) (string, error) {
	return j.sign(sub, j.config.AccessSecret, j.config.AccessTTL, "")
}

// IssueRefresh signs {_id, role} with the refresh secret. Each token carries a
// random jti so two tokens minted within the same second never collide.
func (j *Manager) IssueRefresh(sub Subject) (string, error) {
	return j.sign(sub, j.config.RefreshSecret, j.config.RefreshTTL, uuid.NewString())
}

func (j *Manager) sign(sub Subject, secret []byte, ttl time.Duration, jti string) (string, error) {
	if sub.ID == "" {
		return "", errors.New("empty subject id")
	}
	now := j.now()
	claims := Claims{
		ID:   sub.ID,
		Role: sub.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    j.config.Issuer,
			ID:        jti,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ParseAccess fully verifies an access token. Used by the bearer middleware.
func (j *Manager) ParseAccess(tokenStr string) (*Claims, error) {
	return j.parse(tokenStr, j.config.AccessSecret)
}

// VerifyRefresh reports whether the refresh token has a valid signature and
// has not expired. Any failure is reported as ok=false.
func (j *Manager) VerifyRefresh(tokenStr string) (*Claims, bool) {
	if tokenStr == "" {
		return nil, false
	}
	claims, err := j.parse(tokenStr, j.config.RefreshSecret)
	if err != nil {
		return nil, false
	}
	return claims, true
}

// DecodeAccess returns the claims embedded in an access token without checking
// its signature or expiry.
func (j *Manager) DecodeAccess(tokenStr string) (*Claims, bool) {
	if tokenStr == "" {
		return nil, false
	}
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenStr, claims); err != nil {
		return nil, false
	}
	return claims, true
}

func (j *Manager) parse(tokenStr string, secret []byte) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(j.now),
	}
	if j.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(j.config.Leeway))
	}
	if j.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(j.config.Issuer))
	}

	parser := jwt.NewParser(options...)
	token, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		return secret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	if claims.ID == "" {
		return nil, errors.New("token missing subject id")
	}
	return claims, nil
}
