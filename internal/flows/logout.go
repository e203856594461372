package flows

import (
	"context"
	"errors"

	"github.com/MrEthical07/bakeryauth/account"
	"github.com/MrEthical07/bakeryauth/session"
)

// LogoutFailureKind classifies logout failures.
type LogoutFailureKind int

const (
	LogoutFailureNone LogoutFailureKind = iota
	LogoutFailureMissing
	LogoutFailureStore
)

// LogoutResult reports whether a stored token was removed.
type LogoutResult struct {
	Failure LogoutFailureKind
	Err     error
	Removed bool
}

// LogoutDeps captures logout dependencies.
type LogoutDeps struct {
	Users account.CredentialStore
}

// RunLogout removes one refresh token from the user's collection. Unknown
// users and tokens not in the collection succeed without writing.
func RunLogout(ctx context.Context, userID, refreshToken string, deps LogoutDeps) LogoutResult {
	if userID == "" || refreshToken == "" {
		return LogoutResult{Failure: LogoutFailureMissing}
	}

	user, err := deps.Users.FindByID(ctx, userID, true)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return LogoutResult{}
		}
		return LogoutResult{Failure: LogoutFailureStore, Err: err}
	}

	tokens, removed := session.Remove(user.RefreshTokens, refreshToken)
	if !removed {
		return LogoutResult{}
	}
	if _, err := deps.Users.UpdateByID(ctx, user.ID, account.UserPatch{RefreshTokens: &tokens}); err != nil {
		return LogoutResult{Failure: LogoutFailureStore, Err: err}
	}
	return LogoutResult{Removed: true}
}
