package flows

import (
	"context"
	"errors"

	"github.com/MrEthical07/bakeryauth/account"
)

// OTPFailureKind classifies OTP lifecycle failures.
type OTPFailureKind int

const (
	OTPFailureNone OTPFailureKind = iota
	OTPFailureGenerate
	OTPFailureLimit
	OTPFailureInvalid
	OTPFailureDispatch
	OTPFailureStore
)

const (
	RegistrationDigits = 4
	ResetDigits        = 6
)

// OTPResult carries the record written or matched, or failure metadata.
type OTPResult struct {
	Failure OTPFailureKind
	Err     error
	Record  *account.OTPRecord
}

// OTPDeps captures the OTP lifecycle dependencies.
type OTPDeps struct {
	Store    account.OTPStore
	Generate func(digits int) (string, error)
}

// IssueOTP creates a fresh record with count 0. The store dispatches the mail
// before persisting, so a dispatch failure leaves no record.
func IssueOTP(ctx context.Context, email string, digits int, deps OTPDeps) OTPResult {
	code, err := deps.Generate(digits)
	if err != nil {
		return OTPResult{Failure: OTPFailureGenerate, Err: err}
	}

	rec := &account.OTPRecord{Email: account.NormalizeEmail(email), Code: code}
	if err := deps.Store.Create(ctx, rec); err != nil {
		return writeFailure(err)
	}
	return OTPResult{Record: rec}
}

// ResendOTP overwrites an active record's code and increments its counter, or
// issues a new record when none is active. A record already at the cap is
// left untouched and reported as OTPFailureLimit.
func ResendOTP(ctx context.Context, email string, digits int, deps OTPDeps) OTPResult {
	existing, err := deps.Store.FindOne(ctx, email, "")
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return IssueOTP(ctx, email, digits, deps)
		}
		return OTPResult{Failure: OTPFailureStore, Err: err}
	}
	if existing.Count >= account.MaxOTPCount {
		return OTPResult{Failure: OTPFailureLimit, Record: existing}
	}

	code, err := deps.Generate(digits)
	if err != nil {
		return OTPResult{Failure: OTPFailureGenerate, Err: err}
	}
	existing.Code = code
	existing.Count++
	if err := deps.Store.Save(ctx, existing); err != nil {
		if errors.Is(err, account.ErrNotFound) {
			// Expired between read and write.
			return IssueOTP(ctx, email, digits, deps)
		}
		return writeFailure(err)
	}
	return OTPResult{Record: existing}
}

// MatchOTP checks that a record with exactly (email, code) exists. It has no
// side effects.
func MatchOTP(ctx context.Context, email, code string, deps OTPDeps) OTPResult {
	if code == "" {
		return OTPResult{Failure: OTPFailureInvalid}
	}
	rec, err := deps.Store.FindOne(ctx, email, code)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return OTPResult{Failure: OTPFailureInvalid}
		}
		return OTPResult{Failure: OTPFailureStore, Err: err}
	}
	return OTPResult{Record: rec}
}

// VerifyOTP matches (email, code) and deletes the record on success. The
// attempt counter is not consulted.
func VerifyOTP(ctx context.Context, email, code string, deps OTPDeps) OTPResult {
	res := MatchOTP(ctx, email, code, deps)
	if res.Failure != OTPFailureNone {
		return res
	}
	if err := deps.Store.DeleteOne(ctx, email, code); err != nil {
		return OTPResult{Failure: OTPFailureStore, Err: err}
	}
	return res
}

func writeFailure(err error) OTPResult {
	if errors.Is(err, account.ErrDispatch) {
		return OTPResult{Failure: OTPFailureDispatch, Err: err}
	}
	return OTPResult{Failure: OTPFailureStore, Err: err}
}
