package bakeryauth

import (
	"context"
	"time"

	"github.com/MrEthical07/bakeryauth/internal/flows"
)

// AuthenticateLocal checks an email/password pair and returns the stored
// user. Unknown emails, federated accounts and wrong passwords all return
// ErrInvalidCredentials.
func (e *Engine) AuthenticateLocal(ctx context.Context, email, password string) (*User, error) {
	start := time.Now()
	defer e.observeLatency(MetricLoginLatency, start)

	res := flows.RunAuthenticateLocal(ctx, email, password, clientIPFromContext(ctx), e.flowDeps.Login)

	var err error
	switch res.Failure {
	case flows.LoginFailureNone:
		if res.Upgraded {
			e.metricInc(MetricPasswordUpgraded)
		}
		return res.User.Sanitized(), nil
	case flows.LoginFailureValidation:
		err = ErrAllFieldsRequired
	case flows.LoginFailureRateLimited:
		err = limiterError(res.Err, ErrLoginRateLimited)
		if KindOf(err) == KindRateLimited {
			e.metricInc(MetricLoginRateLimited)
			e.emitRateLimit(ctx, "login", email)
			e.emitAudit(ctx, auditEventLoginRateLimited, false, "", email, err, nil)
			return nil, err
		}
	case flows.LoginFailureInvalidCredentials:
		err = ErrInvalidCredentials
	default:
		err = e.internalError("authenticate", ErrInternal, res.Err)
	}

	e.metricInc(MetricLoginFailure)
	e.emitAudit(ctx, auditEventLoginFailure, false, "", email, err, nil)
	return nil, err
}

// CompleteLogin issues a token pair for an authenticated user and records the
// refresh token, keeping the newest Config.Refresh.MaxTokens.
func (e *Engine) CompleteLogin(ctx context.Context, user *User) (*LoginResult, error) {
	if user == nil || user.ID == "" {
		return nil, ErrUnauthorized
	}

	res := flows.RunCompleteLogin(ctx, user.ID, e.flowDeps.Complete)

	var err error
	switch res.Failure {
	case flows.LoginFailureNone:
		e.metricInc(MetricLoginSuccess)
		e.metricInc(MetricSessionCreated)
		e.emitAudit(ctx, auditEventLoginSuccess, true, res.User.ID, res.User.Email, nil, func() map[string]string {
			return map[string]string{"method": string(res.User.AuthMethod)}
		})
		return &LoginResult{
			User:         res.User,
			AccessToken:  res.AccessToken,
			RefreshToken: res.RefreshToken,
		}, nil
	case flows.LoginFailureUserNotFound:
		err = ErrUserNotFound
	default:
		err = e.internalError("complete login", ErrInternal, res.Err)
	}

	e.metricInc(MetricLoginFailure)
	e.emitAudit(ctx, auditEventLoginFailure, false, user.ID, user.Email, err, nil)
	return nil, err
}

// Login runs AuthenticateLocal followed by CompleteLogin.
func (e *Engine) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	user, err := e.AuthenticateLocal(ctx, email, password)
	if err != nil {
		return nil, err
	}
	return e.CompleteLogin(ctx, user)
}

// ProvisionFederated returns the account for a provider-asserted email,
// creating a verified buyer without a password when none exists.
func (e *Engine) ProvisionFederated(ctx context.Context, profile FederatedProfile) (*User, error) {
	res := flows.RunProvisionFederated(ctx, flows.FederatedProfile{
		Email:         profile.Email,
		Name:          profile.Name,
		Picture:       profile.Picture,
		EmailVerified: profile.EmailVerified,
	}, e.flowDeps.Federated)

	switch res.Failure {
	case flows.FederatedFailureNone:
	case flows.FederatedFailureValidation:
		return nil, ErrInvalidEmail
	default:
		return nil, e.internalError("provision federated", ErrInternal, res.Err)
	}

	if res.Created {
		e.metricInc(MetricFederatedProvisioned)
		e.emitAudit(ctx, auditEventFederatedProvisioned, true, res.User.ID, res.User.Email, nil, func() map[string]string {
			return map[string]string{"method": string(res.User.AuthMethod)}
		})
	}
	return res.User, nil
}
