package flows

import (
	"context"
	"errors"

	"github.com/MrEthical07/bakeryauth/account"
)

// PasswordResetFailureKind classifies reset failures.
type PasswordResetFailureKind int

const (
	PasswordResetFailureNone PasswordResetFailureKind = iota
	PasswordResetFailureValidation
	PasswordResetFailureInvalidOTP
	PasswordResetFailureUserNotFound
	PasswordResetFailureNotLocal
	PasswordResetFailureStore
)

// PasswordResetResult carries the user id or failure metadata.
type PasswordResetResult struct {
	Failure PasswordResetFailureKind
	Err     error
	UserID  string
}

// PasswordResetDeps captures reset dependencies.
type PasswordResetDeps struct {
	Users account.CredentialStore
	OTP   OTPDeps
	// RevokeSessions clears every refresh token on reset.
	RevokeSessions bool
}

// RunPasswordReset replaces the password of the user owning a matching OTP.
// The attempt counter is not touched; the record is deleted afterwards.
func RunPasswordReset(ctx context.Context, email, code, newPassword string, deps PasswordResetDeps) PasswordResetResult {
	email = account.NormalizeEmail(email)
	if email == "" || code == "" || newPassword == "" {
		return PasswordResetResult{Failure: PasswordResetFailureValidation}
	}

	match := MatchOTP(ctx, email, code, deps.OTP)
	switch match.Failure {
	case OTPFailureNone:
	case OTPFailureInvalid:
		return PasswordResetResult{Failure: PasswordResetFailureInvalidOTP}
	default:
		return PasswordResetResult{Failure: PasswordResetFailureStore, Err: match.Err}
	}

	user, err := deps.Users.FindByEmail(ctx, email, false)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return PasswordResetResult{Failure: PasswordResetFailureUserNotFound}
		}
		return PasswordResetResult{Failure: PasswordResetFailureStore, Err: err}
	}
	if user.AuthMethod != account.AuthLocal {
		// The code can never be used; drop it with the refusal.
		if err := deps.OTP.Store.DeleteOne(ctx, email, ""); err != nil {
			return PasswordResetResult{Failure: PasswordResetFailureStore, Err: err, UserID: user.ID}
		}
		return PasswordResetResult{Failure: PasswordResetFailureNotLocal, UserID: user.ID}
	}

	patch := account.UserPatch{Password: &newPassword}
	if deps.RevokeSessions {
		empty := []string{}
		patch.RefreshTokens = &empty
	}
	if _, err := deps.Users.UpdateByID(ctx, user.ID, patch); err != nil {
		return PasswordResetResult{Failure: PasswordResetFailureStore, Err: err, UserID: user.ID}
	}

	if err := deps.OTP.Store.DeleteOne(ctx, email, ""); err != nil {
		return PasswordResetResult{Failure: PasswordResetFailureStore, Err: err, UserID: user.ID}
	}
	return PasswordResetResult{UserID: user.ID}
}
