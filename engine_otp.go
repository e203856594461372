package bakeryauth

import (
	"context"
	"strconv"

	"github.com/MrEthical07/bakeryauth/internal/flows"
)

// VerifyOTP consumes a registration code, marks the email verified and
// promotes buyers to verified.
func (e *Engine) VerifyOTP(ctx context.Context, email, code string) (*User, error) {
	res := flows.RunVerifyEmail(ctx, email, code, e.flowDeps.Verify)

	var err error
	switch res.Failure {
	case flows.VerifyEmailFailureNone:
		e.metricInc(MetricEmailVerifySuccess)
		e.emitAudit(ctx, auditEventEmailVerifySuccess, true, res.User.ID, res.User.Email, nil, nil)
		return res.User, nil
	case flows.VerifyEmailFailureValidation:
		err = ErrAllFieldsRequired
	case flows.VerifyEmailFailureInvalidOTP:
		err = ErrInvalidOTP
	case flows.VerifyEmailFailureUserNotFound:
		err = ErrUserNotFound
	default:
		err = e.internalError("verify otp", ErrInternal, res.Err)
	}

	e.metricInc(MetricEmailVerifyFailure)
	e.emitAudit(ctx, auditEventEmailVerifyFailure, false, "", email, err, nil)
	return nil, err
}

// ResendOTP mails a fresh 4-digit code, reusing the active record while it
// has attempts left.
func (e *Engine) ResendOTP(ctx context.Context, email string) error {
	return e.requestOTP(ctx, email, flows.RegistrationDigits, auditEventOTPIssued, e.flowDeps.Request)
}

// ForgotPassword mails a 6-digit reset code. Accounts without a password
// are refused.
func (e *Engine) ForgotPassword(ctx context.Context, email string) error {
	return e.requestOTP(ctx, email, flows.ResetDigits, auditEventPasswordResetRequest, e.flowDeps.Forgot)
}

func (e *Engine) requestOTP(ctx context.Context, email string, digits int, event string, deps flows.RequestOTPDeps) error {
	res := flows.RunRequestOTP(ctx, email, digits, deps)

	var err error
	switch res.Failure {
	case flows.RequestOTPFailureNone:
		e.metricInc(MetricOTPIssued)
		if digits == flows.ResetDigits {
			e.metricInc(MetricPasswordResetRequest)
		}
		e.emitAudit(ctx, event, true, "", res.Record.Email, nil, func() map[string]string {
			return map[string]string{"digits": strconv.Itoa(digits), "count": strconv.Itoa(res.Record.Count)}
		})
		return nil
	case flows.RequestOTPFailureValidation:
		err = ErrEmailRequired
	case flows.RequestOTPFailureRateLimited:
		err = limiterError(res.Err, ErrOTPRateLimited)
		if KindOf(err) == KindRateLimited {
			e.emitRateLimit(ctx, "otp", email)
		}
	case flows.RequestOTPFailureUserNotFound:
		err = ErrUserNotFound
	case flows.RequestOTPFailureNotLocal:
		err = ErrNotLocalAccount
	case flows.RequestOTPFailureLimit:
		e.metricInc(MetricOTPLimitExceeded)
		e.emitAudit(ctx, auditEventOTPLimitExceeded, false, "", email, ErrOTPLimitExceeded, nil)
		return ErrOTPLimitExceeded
	case flows.RequestOTPFailureDispatch:
		e.metricInc(MetricOTPDispatchFailure)
		err = e.internalError("otp dispatch", ErrMailFailed, res.Err)
	default:
		err = e.internalError("otp request", ErrInternal, res.Err)
	}

	e.emitAudit(ctx, event, false, "", email, err, nil)
	return err
}

// ResetPassword replaces the password of the account owning a matching
// reset code.
func (e *Engine) ResetPassword(ctx context.Context, email, code, newPassword string) error {
	res := flows.RunPasswordReset(ctx, email, code, newPassword, e.flowDeps.Reset)

	var err error
	switch res.Failure {
	case flows.PasswordResetFailureNone:
		e.metricInc(MetricPasswordResetSuccess)
		e.emitAudit(ctx, auditEventPasswordResetConfirm, true, res.UserID, email, nil, nil)
		return nil
	case flows.PasswordResetFailureValidation:
		err = ErrAllFieldsRequired
	case flows.PasswordResetFailureInvalidOTP:
		err = ErrInvalidOTP
	case flows.PasswordResetFailureUserNotFound:
		err = ErrUserNotFound
	case flows.PasswordResetFailureNotLocal:
		err = ErrNotLocalAccount
	default:
		err = e.internalError("password reset", ErrInternal, res.Err)
	}

	e.metricInc(MetricPasswordResetFailure)
	e.emitAudit(ctx, auditEventPasswordResetConfirm, false, res.UserID, email, err, nil)
	return err
}
