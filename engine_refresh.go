package bakeryauth

import (
	"context"
	"strconv"
	"time"

	"github.com/MrEthical07/bakeryauth/internal/flows"
	"go.uber.org/zap"
)

// Refresh rotates a refresh token. The old token leaves the user's
// collection and the new one joins it. Presenting a verified token that is
// no longer a member returns ErrInvalidToken and is audited as reuse.
func (e *Engine) Refresh(ctx context.Context, refreshToken, accessToken string) (*TokenPair, error) {
	start := time.Now()
	defer e.observeLatency(MetricRefreshLatency, start)

	res := flows.RunRefresh(ctx, refreshToken, accessToken, e.flowDeps.Refresh)

	var err error
	switch res.Failure {
	case flows.RefreshFailureNone:
		e.metricInc(MetricRefreshSuccess)
		e.emitAudit(ctx, auditEventRefreshSuccess, true, res.UserID, "", nil, nil)
		return &TokenPair{AccessToken: res.AccessToken, RefreshToken: res.RefreshToken}, nil
	case flows.RefreshFailureMissing:
		err = ErrBothTokensRequired
	case flows.RefreshFailureInvalid:
		err = ErrInvalidRefreshToken
	case flows.RefreshFailureMismatch:
		err = ErrTokenMismatch
	case flows.RefreshFailureRateLimited:
		err = limiterError(res.Err, ErrRefreshRateLimited)
		if KindOf(err) == KindRateLimited {
			e.metricInc(MetricRefreshRateLimited)
			e.emitRateLimit(ctx, "refresh", res.UserID)
			e.emitAudit(ctx, auditEventRefreshRateLimited, false, res.UserID, "", err, nil)
			return nil, err
		}
	case flows.RefreshFailureBusy:
		err = limiterError(res.Err, ErrRefreshBusy)
	case flows.RefreshFailureReuse:
		err = ErrInvalidToken
		e.metricInc(MetricRefreshReuseDetected)
		if res.Revoked {
			e.metricInc(MetricRefreshRevokedAll)
		}
		e.log.Warn("refresh token reuse detected", zap.String("user_id", res.UserID))
		e.emitAudit(ctx, auditEventRefreshReuseDetected, false, res.UserID, "", err, func() map[string]string {
			return map[string]string{"revoked_all": strconv.FormatBool(res.Revoked)}
		})
		e.metricInc(MetricRefreshFailure)
		return nil, err
	default:
		err = e.internalError("refresh", ErrInternal, res.Err)
	}

	e.metricInc(MetricRefreshFailure)
	e.emitAudit(ctx, auditEventRefreshInvalid, false, res.UserID, "", err, nil)
	return nil, err
}
