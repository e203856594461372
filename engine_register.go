package bakeryauth

import (
	"context"

	"github.com/MrEthical07/bakeryauth/internal/flows"
)

// Register creates a pending local account and mails a 4-digit code. No
// session is established. When the mail fails the account stays persisted
// and ErrMailFailed is returned.
func (e *Engine) Register(ctx context.Context, req RegisterRequest) (*User, error) {
	res := flows.RunRegister(ctx, flows.RegisterRequest{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
	}, e.flowDeps.Register)

	if res.Failure != flows.RegisterFailureNone {
		err := e.registerError(res)
		switch res.Failure {
		case flows.RegisterFailureDuplicate:
			e.metricInc(MetricRegisterDuplicate)
			e.emitAudit(ctx, auditEventRegisterDuplicate, false, "", req.Email, err, nil)
		default:
			e.metricInc(MetricRegisterFailure)
			userID := ""
			if res.User != nil {
				userID = res.User.ID
			}
			e.emitAudit(ctx, auditEventRegisterFailure, false, userID, req.Email, err, nil)
		}
		return nil, err
	}

	e.metricInc(MetricRegisterSuccess)
	e.metricInc(MetricOTPIssued)
	e.emitAudit(ctx, auditEventRegisterSuccess, true, res.User.ID, res.User.Email, nil, func() map[string]string {
		return map[string]string{"role": string(res.User.Role)}
	})
	return res.User, nil
}

func (e *Engine) registerError(res flows.RegisterResult) error {
	switch res.Failure {
	case flows.RegisterFailureValidation:
		switch res.Reason {
		case "Invalid email":
			return ErrInvalidEmail
		case "Invalid role":
			return ErrInvalidRole
		default:
			return ErrAllFieldsRequired
		}
	case flows.RegisterFailureDuplicate:
		return ErrUserExists
	case flows.RegisterFailureOTP:
		if res.OTPFailure == flows.OTPFailureDispatch {
			e.metricInc(MetricOTPDispatchFailure)
			return e.internalError("register otp dispatch", ErrMailFailed, res.Err)
		}
		return e.internalError("register otp", ErrInternal, res.Err)
	default:
		return e.internalError("register", ErrInternal, res.Err)
	}
}
