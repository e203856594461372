package bakeryauth

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/bakeryauth/account"
	"github.com/MrEthical07/bakeryauth/internal/audit"
	"github.com/MrEthical07/bakeryauth/internal/flows"
	"github.com/MrEthical07/bakeryauth/internal/rate"
	"github.com/MrEthical07/bakeryauth/jwt"
	"github.com/MrEthical07/bakeryauth/password"
	"github.com/MrEthical07/bakeryauth/session"
	"go.uber.org/zap"
)

// Engine runs the marketplace auth flows against injected stores.
//
// Engine instances are configured by Builder.Build and then treated as
// immutable.
type Engine struct {
	config       Config
	users        account.CredentialStore
	otps         account.OTPStore
	rateLimiter  *rate.Limiter
	locker       *session.Locker
	audit        *audit.Dispatcher
	metrics      *Metrics
	passwordHash *password.Argon2
	jwtManager   *jwt.Manager
	log          *zap.Logger
	generate     func(digits int) (string, error)
	flowDeps     flows.Deps
}

// Close drains the audit dispatcher. Stores and Redis are owned by the caller.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped reports events dropped by audit backpressure.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot copies the current counters and histograms.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// RefreshTTL is the refresh-token lifetime, used as the cookie max age.
func (e *Engine) RefreshTTL() time.Duration {
	return e.jwtManager.RefreshTTL()
}

// ValidateAccess fully verifies an access token. The bearer middleware uses it.
func (e *Engine) ValidateAccess(token string) (AccessClaims, error) {
	if token == "" {
		return AccessClaims{}, ErrUnauthorized
	}
	claims, err := e.jwtManager.ParseAccess(token)
	if err != nil {
		return AccessClaims{}, wrap(ErrUnauthorized, err)
	}
	return AccessClaims{UserID: claims.ID, Role: Role(claims.Role)}, nil
}

// Me returns the stored user without hidden fields.
func (e *Engine) Me(ctx context.Context, userID string) (*User, error) {
	if userID == "" {
		return nil, ErrUnauthorized
	}
	u, err := e.users.FindByID(ctx, userID, false)
	if err != nil {
		return nil, e.storeError(err)
	}
	return u.Sanitized(), nil
}

// SetProfilePicture stores url as the user's avatar.
func (e *Engine) SetProfilePicture(ctx context.Context, userID, url string) (*User, error) {
	if userID == "" {
		return nil, ErrUnauthorized
	}
	u, err := e.users.UpdateByID(ctx, userID, account.UserPatch{ProfilePicture: &url})
	if err != nil {
		return nil, e.storeError(err)
	}
	e.metricInc(MetricAvatarUpdated)
	e.emitAudit(ctx, auditEventProfilePictureUpdated, true, userID, u.Email, nil, nil)
	return u.Sanitized(), nil
}

func (e *Engine) buildFlowDeps() flows.Deps {
	otp := flows.OTPDeps{Store: e.otps, Generate: e.generate}
	tokens := e.jwtManager
	verifier := localVerifier{hasher: e.passwordHash, upgrade: e.config.Password.UpgradeOnLogin}
	warn := e.log.Warn

	deps := flows.Deps{
		Register: flows.RegisterDeps{Users: e.users, OTP: otp},
		Verify:   flows.VerifyEmailDeps{Users: e.users, OTP: otp},
		Request:  flows.RequestOTPDeps{Users: e.users, OTP: otp},
		Forgot:   flows.RequestOTPDeps{Users: e.users, OTP: otp, LocalOnly: true},
		Reset: flows.PasswordResetDeps{
			Users:          e.users,
			OTP:            otp,
			RevokeSessions: e.config.PasswordReset.RevokeSessions,
		},
		Login: flows.LoginDeps{Users: e.users, Verifier: verifier, Warn: warn},
		Complete: flows.CompleteLoginDeps{
			Users:     e.users,
			Tokens:    tokens,
			MaxTokens: e.config.Refresh.MaxTokens,
		},
		Refresh: flows.RefreshDeps{
			Users:            e.users,
			Tokens:           tokens,
			MaxTokens:        e.config.Refresh.MaxTokens,
			CrossCheckAccess: e.config.Refresh.CrossCheckAccess,
			RevokeAllOnReuse: e.config.Refresh.RevokeAllOnReuse,
			Warn:             warn,
		},
		Logout:    flows.LogoutDeps{Users: e.users},
		Federated: flows.FederatedDeps{Users: e.users},
	}

	// Assign only non-nil pointers so the interfaces stay nil when unset.
	if e.rateLimiter != nil {
		deps.Request.Limiter = e.rateLimiter
		deps.Forgot.Limiter = e.rateLimiter
		deps.Login.Limiter = e.rateLimiter
		deps.Refresh.Limiter = e.rateLimiter
	}
	if e.locker != nil {
		deps.Refresh.Locker = e.locker
	}
	return deps
}

// localVerifier checks candidates with password.VerifyPassword and asks the
// shared hasher whether a matching hash is due for a rewrite.
type localVerifier struct {
	hasher  *password.Argon2
	upgrade bool
}

func (v localVerifier) Verify(candidate, hash string) (bool, error) {
	return password.VerifyPassword(hash, candidate), nil
}

func (v localVerifier) NeedsUpgrade(hash string) (bool, error) {
	if !v.upgrade || v.hasher == nil {
		return false, nil
	}
	return v.hasher.NeedsUpgrade(hash)
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) observeLatency(id MetricID, start time.Time) {
	if e == nil || !e.metrics.LatencyEnabled() {
		return
	}
	e.metrics.Observe(id, time.Since(start))
}

// storeError maps a raw store error onto the public taxonomy.
func (e *Engine) storeError(err error) error {
	if errors.Is(err, account.ErrNotFound) {
		return ErrUserNotFound
	}
	e.log.Error("store failure", zap.Error(err))
	return wrap(ErrInternal, err)
}

// internalError logs err and wraps it in sentinel.
func (e *Engine) internalError(op string, sentinel *Error, err error) error {
	e.log.Error(op+" failed", zap.Error(err))
	return wrap(sentinel, err)
}

func limiterError(err error, limited *Error) error {
	if errors.Is(err, rate.ErrRedisUnavailable) || errors.Is(err, session.ErrRedisUnavailable) {
		return wrap(ErrUnavailable, err)
	}
	return wrap(limited, err)
}
