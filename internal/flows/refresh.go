package flows

import (
	"context"
	"errors"

	"github.com/MrEthical07/bakeryauth/account"
	"github.com/MrEthical07/bakeryauth/jwt"
	"github.com/MrEthical07/bakeryauth/session"
	"go.uber.org/zap"
)

// RefreshFailureKind classifies refresh rotation failures.
type RefreshFailureKind int

const (
	RefreshFailureNone RefreshFailureKind = iota
	RefreshFailureMissing
	RefreshFailureInvalid
	RefreshFailureMismatch
	RefreshFailureRateLimited
	RefreshFailureBusy
	RefreshFailureReuse
	RefreshFailureIssue
	RefreshFailureStore
)

// RefreshLimiter throttles refresh attempts per user.
type RefreshLimiter interface {
	CheckRefresh(ctx context.Context, userID string) error
}

// UserLocker serializes rotations for one user.
type UserLocker interface {
	Acquire(ctx context.Context, userID string) (func(), error)
}

// RefreshResult carries the rotated pair or failure metadata.
type RefreshResult struct {
	Failure      RefreshFailureKind
	Err          error
	UserID       string
	AccessToken  string
	RefreshToken string
	// Revoked is set when reuse detection cleared the whole collection.
	Revoked bool
}

// RefreshDeps captures rotation dependencies.
type RefreshDeps struct {
	Users            account.CredentialStore
	Tokens           TokenCodec
	Limiter          RefreshLimiter
	Locker           UserLocker
	MaxTokens        int
	CrossCheckAccess bool
	RevokeAllOnReuse bool
	Warn             func(string, ...zap.Field)
}

// RunRefresh rotates a refresh token. The presented token must verify, be
// owned by the same user as the access token when cross-checking is on, and
// be a member of the stored collection. On success the old token is replaced
// by a new one; expired entries are pruned in the same write.
func RunRefresh(ctx context.Context, refreshToken, accessToken string, deps RefreshDeps) RefreshResult {
	if refreshToken == "" || (deps.CrossCheckAccess && accessToken == "") {
		return RefreshResult{Failure: RefreshFailureMissing}
	}

	claims, ok := deps.Tokens.VerifyRefresh(refreshToken)
	if !ok {
		return RefreshResult{Failure: RefreshFailureInvalid}
	}

	if deps.CrossCheckAccess {
		access, ok := deps.Tokens.DecodeAccess(accessToken)
		if !ok || access.ID != claims.ID {
			return RefreshResult{Failure: RefreshFailureMismatch, UserID: claims.ID}
		}
	}

	if deps.Limiter != nil {
		if err := deps.Limiter.CheckRefresh(ctx, claims.ID); err != nil {
			return RefreshResult{Failure: RefreshFailureRateLimited, Err: err, UserID: claims.ID}
		}
	}

	if deps.Locker != nil {
		release, err := deps.Locker.Acquire(ctx, claims.ID)
		if err != nil {
			return RefreshResult{Failure: RefreshFailureBusy, Err: err, UserID: claims.ID}
		}
		defer release()
	}

	user, err := deps.Users.FindByID(ctx, claims.ID, true)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return RefreshResult{Failure: RefreshFailureReuse, UserID: claims.ID}
		}
		return RefreshResult{Failure: RefreshFailureStore, Err: err, UserID: claims.ID}
	}

	if !session.Contains(user.RefreshTokens, refreshToken) {
		res := RefreshResult{Failure: RefreshFailureReuse, UserID: user.ID}
		if deps.RevokeAllOnReuse && len(user.RefreshTokens) > 0 {
			empty := []string{}
			if _, err := deps.Users.UpdateByID(ctx, user.ID, account.UserPatch{RefreshTokens: &empty}); err != nil {
				warn(deps.Warn, "revoke on reuse failed", zap.String("user_id", user.ID), zap.Error(err))
			} else {
				res.Revoked = true
			}
		}
		return res
	}

	sub := jwt.Subject{ID: user.ID, Role: string(user.Role)}
	newAccess, err := deps.Tokens.IssueAccess(sub)
	if err != nil {
		return RefreshResult{Failure: RefreshFailureIssue, Err: err, UserID: user.ID}
	}
	newRefresh, err := deps.Tokens.IssueRefresh(sub)
	if err != nil {
		return RefreshResult{Failure: RefreshFailureIssue, Err: err, UserID: user.ID}
	}

	live := session.Prune(user.RefreshTokens, func(t string) bool {
		if t == refreshToken {
			return true
		}
		_, ok := deps.Tokens.VerifyRefresh(t)
		return ok
	})
	tokens := session.Replace(live, refreshToken, newRefresh, maxTokens(deps.MaxTokens))
	if _, err := deps.Users.UpdateByID(ctx, user.ID, account.UserPatch{RefreshTokens: &tokens}); err != nil {
		return RefreshResult{Failure: RefreshFailureStore, Err: err, UserID: user.ID}
	}

	return RefreshResult{UserID: user.ID, AccessToken: newAccess, RefreshToken: newRefresh}
}
