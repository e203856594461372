package flows

import (
	"context"
	"errors"

	"github.com/MrEthical07/bakeryauth/account"
)

// RequestOTPFailureKind classifies resend and forgot-password failures.
type RequestOTPFailureKind int

const (
	RequestOTPFailureNone RequestOTPFailureKind = iota
	RequestOTPFailureValidation
	RequestOTPFailureRateLimited
	RequestOTPFailureUserNotFound
	RequestOTPFailureNotLocal
	RequestOTPFailureLimit
	RequestOTPFailureStore
	RequestOTPFailureDispatch
)

// RequestOTPResult carries the written record or failure metadata.
type RequestOTPResult struct {
	Failure RequestOTPFailureKind
	Err     error
	Record  *account.OTPRecord
}

// RequestOTPDeps captures resend/forgot-password dependencies.
type RequestOTPDeps struct {
	Users   account.CredentialStore
	OTP     OTPDeps
	Limiter OTPRequestLimiter
	// LocalOnly refuses accounts without a password, which cannot use a
	// reset code.
	LocalOnly bool
}

// RunRequestOTP requires an existing user, then resends or issues a code of
// the given length. Registration resend uses 4 digits, forgot-password 6.
func RunRequestOTP(ctx context.Context, email string, digits int, deps RequestOTPDeps) RequestOTPResult {
	email = account.NormalizeEmail(email)
	if email == "" {
		return RequestOTPResult{Failure: RequestOTPFailureValidation}
	}

	if deps.Limiter != nil {
		if err := deps.Limiter.CheckOTPRequest(ctx, email); err != nil {
			return RequestOTPResult{Failure: RequestOTPFailureRateLimited, Err: err}
		}
	}

	user, err := deps.Users.FindByEmail(ctx, email, false)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return RequestOTPResult{Failure: RequestOTPFailureUserNotFound}
		}
		return RequestOTPResult{Failure: RequestOTPFailureStore, Err: err}
	}
	if deps.LocalOnly && user.AuthMethod != account.AuthLocal {
		return RequestOTPResult{Failure: RequestOTPFailureNotLocal}
	}

	res := ResendOTP(ctx, email, digits, deps.OTP)
	switch res.Failure {
	case OTPFailureNone:
		return RequestOTPResult{Record: res.Record}
	case OTPFailureLimit:
		return RequestOTPResult{Failure: RequestOTPFailureLimit}
	case OTPFailureDispatch:
		return RequestOTPResult{Failure: RequestOTPFailureDispatch, Err: res.Err}
	default:
		return RequestOTPResult{Failure: RequestOTPFailureStore, Err: res.Err}
	}
}
