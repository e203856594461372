package bakeryauth

import (
	"context"

	"github.com/MrEthical07/bakeryauth/internal/flows"
)

// Logout removes one refresh token from the user's collection. Repeating it,
// or logging out an unknown user, succeeds without writing.
func (e *Engine) Logout(ctx context.Context, userID, refreshToken string) error {
	res := flows.RunLogout(ctx, userID, refreshToken, e.flowDeps.Logout)

	switch res.Failure {
	case flows.LogoutFailureNone:
	case flows.LogoutFailureMissing:
		return ErrUnauthorized
	default:
		return e.internalError("logout", ErrInternal, res.Err)
	}

	e.metricInc(MetricLogout)
	e.emitAudit(ctx, auditEventLogout, true, userID, "", nil, func() map[string]string {
		if res.Removed {
			return map[string]string{"removed": "true"}
		}
		return map[string]string{"removed": "false"}
	})
	return nil
}
