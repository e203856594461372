package flows

import (
	"context"
	"errors"

	"github.com/MrEthical07/bakeryauth/account"
)

// VerifyEmailFailureKind classifies OTP verification failures.
type VerifyEmailFailureKind int

const (
	VerifyEmailFailureNone VerifyEmailFailureKind = iota
	VerifyEmailFailureValidation
	VerifyEmailFailureInvalidOTP
	VerifyEmailFailureUserNotFound
	VerifyEmailFailureStore
)

// VerifyEmailResult carries the updated user or failure metadata.
type VerifyEmailResult struct {
	Failure VerifyEmailFailureKind
	Err     error
	User    *account.User
}

// VerifyEmailDeps captures verification dependencies.
type VerifyEmailDeps struct {
	Users account.CredentialStore
	OTP   OTPDeps
}

// RunVerifyEmail matches the code, marks the email verified, promotes buyers
// to verified and consumes the OTP record. Sellers keep their status until a
// separate approval.
//
// The record is deleted after the user is persisted so a store failure in
// between leaves the code usable.
func RunVerifyEmail(ctx context.Context, email, code string, deps VerifyEmailDeps) VerifyEmailResult {
	email = account.NormalizeEmail(email)
	if email == "" || code == "" {
		return VerifyEmailResult{Failure: VerifyEmailFailureValidation}
	}

	match := MatchOTP(ctx, email, code, deps.OTP)
	switch match.Failure {
	case OTPFailureNone:
	case OTPFailureInvalid:
		return VerifyEmailResult{Failure: VerifyEmailFailureInvalidOTP}
	default:
		return VerifyEmailResult{Failure: VerifyEmailFailureStore, Err: match.Err}
	}

	user, err := deps.Users.FindByEmail(ctx, email, false)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return VerifyEmailResult{Failure: VerifyEmailFailureUserNotFound}
		}
		return VerifyEmailResult{Failure: VerifyEmailFailureStore, Err: err}
	}

	verified := true
	patch := account.UserPatch{EmailVerified: &verified}
	if user.Role == account.RoleBuyer {
		status := account.StatusVerified
		patch.Status = &status
	}
	updated, err := deps.Users.UpdateByID(ctx, user.ID, patch)
	if err != nil {
		return VerifyEmailResult{Failure: VerifyEmailFailureStore, Err: err}
	}

	if err := deps.OTP.Store.DeleteOne(ctx, email, code); err != nil {
		return VerifyEmailResult{Failure: VerifyEmailFailureStore, Err: err}
	}
	return VerifyEmailResult{User: updated.Sanitized()}
}
