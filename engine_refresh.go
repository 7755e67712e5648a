package secureauth

import (
	"context"
	"errors"

	"github.com/siriuslabs/secureauth/jwt"
)

// Refresh exchanges a valid refresh token for a fresh access/refresh pair.
// The subject must still resolve to an active user; deactivated accounts get
// [ErrUserNotFound]. The device claim, when present, is carried into the new
// pair. The old refresh token is not revoked and stays valid until expiry.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	if e == nil || e.store == nil || e.tokens == nil {
		return TokenPair{}, ErrEngineNotReady
	}

	payload, err := e.tokens.ParseRefresh(refreshToken)
	if err != nil {
		mapped := ErrTokenInvalid
		if errors.Is(err, jwt.ErrExpired) {
			mapped = ErrTokenExpired
		}
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshFailure, false, 0, mapped, func() map[string]string {
			return map[string]string{"reason": "parse_failed"}
		})
		return TokenPair{}, mapped
	}

	user, err := e.store.GetUserByID(ctx, payload.UserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			e.metricInc(MetricRefreshFailure)
			e.emitAudit(ctx, auditEventRefreshFailure, false, payload.UserID, ErrUserNotFound, func() map[string]string {
				return map[string]string{"reason": "user_not_found"}
			})
			return TokenPair{}, ErrUserNotFound
		}
		return TokenPair{}, err
	}

	pair, err := e.issueTokenPair(user.ID, payload.DeviceID)
	if err != nil {
		return TokenPair{}, err
	}

	e.metricInc(MetricRefreshSuccess)
	e.emitAudit(ctx, auditEventRefreshSuccess, true, user.ID, nil, nil)

	return pair, nil
}

// VerifyAccess parses and validates an access token, returning the user id
// and optional device claim. Middleware calls this per request.
func (e *Engine) VerifyAccess(ctx context.Context, accessToken string) (jwt.Payload, error) {
	if e == nil || e.tokens == nil {
		return jwt.Payload{}, ErrEngineNotReady
	}

	payload, err := e.tokens.ParseAccess(accessToken)
	if err != nil {
		if errors.Is(err, jwt.ErrExpired) {
			return jwt.Payload{}, ErrTokenExpired
		}
		return jwt.Payload{}, ErrTokenInvalid
	}

	return *payload, nil
}
