package flows

import (
	"context"
	"errors"

	"github.com/MrEthical07/bakeryauth/account"
	"github.com/MrEthical07/bakeryauth/jwt"
	"github.com/MrEthical07/bakeryauth/session"
	"go.uber.org/zap"
)

// LoginFailureKind classifies local authentication and session issuance failures.
type LoginFailureKind int

const (
	LoginFailureNone LoginFailureKind = iota
	LoginFailureValidation
	LoginFailureRateLimited
	LoginFailureInvalidCredentials
	LoginFailureUserNotFound
	LoginFailureIssue
	LoginFailureStore
)

// LoginLimiter throttles failed password attempts.
type LoginLimiter interface {
	CheckLogin(ctx context.Context, email, ip string) error
	IncrementLogin(ctx context.Context, email, ip string) error
	ResetLogin(ctx context.Context, email, ip string) error
}

// PasswordVerifier checks a candidate against a stored hash.
type PasswordVerifier interface {
	Verify(password, encodedHash string) (bool, error)
	NeedsUpgrade(encodedHash string) (bool, error)
}

// LoginResult carries the authenticated user or failure metadata.
type LoginResult struct {
	Failure LoginFailureKind
	Err     error
	User    *account.User
	// Upgraded is set when the stored hash was rewritten with current parameters.
	Upgraded bool
}

// LoginDeps captures local authentication dependencies.
type LoginDeps struct {
	Users    account.CredentialStore
	Verifier PasswordVerifier
	Limiter  LoginLimiter
	Warn     func(string, ...zap.Field)
}

// RunAuthenticateLocal checks an email/password pair. Unknown emails,
// federated accounts and wrong passwords all report
// LoginFailureInvalidCredentials so callers cannot tell them apart.
func RunAuthenticateLocal(ctx context.Context, email, password, ip string, deps LoginDeps) LoginResult {
	email = account.NormalizeEmail(email)
	if email == "" || password == "" {
		return LoginResult{Failure: LoginFailureValidation}
	}

	if deps.Limiter != nil {
		if err := deps.Limiter.CheckLogin(ctx, email, ip); err != nil {
			return LoginResult{Failure: LoginFailureRateLimited, Err: err}
		}
	}

	user, err := deps.Users.FindByEmail(ctx, email, true)
	if err != nil && !errors.Is(err, account.ErrNotFound) {
		return LoginResult{Failure: LoginFailureStore, Err: err}
	}

	ok := false
	if err == nil && user.AuthMethod == account.AuthLocal && user.PasswordHash != "" {
		ok, _ = deps.Verifier.Verify(password, user.PasswordHash)
	}
	if !ok {
		if deps.Limiter != nil {
			if err := deps.Limiter.IncrementLogin(ctx, email, ip); err != nil {
				warn(deps.Warn, "login limiter increment failed", zap.Error(err))
			}
		}
		return LoginResult{Failure: LoginFailureInvalidCredentials}
	}

	if deps.Limiter != nil {
		if err := deps.Limiter.ResetLogin(ctx, email, ip); err != nil {
			warn(deps.Warn, "login limiter reset failed", zap.Error(err))
		}
	}

	res := LoginResult{User: user}
	if upgrade, err := deps.Verifier.NeedsUpgrade(user.PasswordHash); err == nil && upgrade {
		user.Password = password
		if err := deps.Users.Save(ctx, user); err != nil {
			warn(deps.Warn, "password hash upgrade failed", zap.String("user_id", user.ID), zap.Error(err))
		} else {
			res.Upgraded = true
		}
	}
	return res
}

// CompleteLoginResult carries the issued pair or failure metadata.
type CompleteLoginResult struct {
	Failure      LoginFailureKind
	Err          error
	User         *account.User
	AccessToken  string
	RefreshToken string
}

// CompleteLoginDeps captures session issuance dependencies.
type CompleteLoginDeps struct {
	Users     account.CredentialStore
	Tokens    TokenCodec
	MaxTokens int
}

// RunCompleteLogin issues a token pair for an authenticated user and appends
// the refresh token to the stored collection, keeping the newest MaxTokens.
func RunCompleteLogin(ctx context.Context, userID string, deps CompleteLoginDeps) CompleteLoginResult {
	if userID == "" {
		return CompleteLoginResult{Failure: LoginFailureValidation}
	}

	stored, err := deps.Users.FindByID(ctx, userID, true)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return CompleteLoginResult{Failure: LoginFailureUserNotFound}
		}
		return CompleteLoginResult{Failure: LoginFailureStore, Err: err}
	}

	sub := jwt.Subject{ID: stored.ID, Role: string(stored.Role)}
	access, err := deps.Tokens.IssueAccess(sub)
	if err != nil {
		return CompleteLoginResult{Failure: LoginFailureIssue, Err: err}
	}
	refresh, err := deps.Tokens.IssueRefresh(sub)
	if err != nil {
		return CompleteLoginResult{Failure: LoginFailureIssue, Err: err}
	}

	tokens := session.Push(stored.RefreshTokens, refresh, maxTokens(deps.MaxTokens))
	updated, err := deps.Users.UpdateByID(ctx, stored.ID, account.UserPatch{RefreshTokens: &tokens})
	if err != nil {
		return CompleteLoginResult{Failure: LoginFailureStore, Err: err}
	}

	return CompleteLoginResult{
		User:         updated.Sanitized(),
		AccessToken:  access,
		RefreshToken: refresh,
	}
}

func maxTokens(n int) int {
	if n <= 0 {
		return session.MaxTokens
	}
	return n
}

func warn(fn func(string, ...zap.Field), msg string, fields ...zap.Field) {
	if fn != nil {
		fn(msg, fields...)
	}
}
