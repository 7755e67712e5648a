package secureauth

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/siriuslabs/secureauth/internal"
)

// RequestPasswordReset issues a single-use reset token for the account and
// mails it out. An unknown email returns [ErrUserNotFound]. The token is a
// bearer capability: possession authorizes exactly one password change
// within the configured window.
func (e *Engine) RequestPasswordReset(ctx context.Context, email string) error {
	if e == nil || e.store == nil {
		return ErrEngineNotReady
	}

	email = strings.TrimSpace(strings.ToLower(email))

	if err := e.limiter.CheckResetRequest(ctx, email); err != nil {
		e.metricInc(MetricResetRateLimited)
		e.emitAudit(ctx, auditEventResetRateLimited, false, 0, ErrResetRateLimited, func() map[string]string {
			return map[string]string{"email": email}
		})
		return ErrResetRateLimited
	}

	user, err := e.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			e.emitAudit(ctx, auditEventResetRequest, false, 0, ErrUserNotFound, func() map[string]string {
				return map[string]string{"email": email}
			})
			return ErrUserNotFound
		}
		return err
	}

	token, err := internal.NewResetToken()
	if err != nil {
		return err
	}

	record := PasswordResetToken{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		Token:     token,
		ExpiresAt: e.now().Add(e.config.PasswordReset.TTL),
	}
	if err := e.store.CreateResetToken(ctx, record); err != nil {
		return err
	}

	if err := e.notifier.SendPasswordReset(ctx, user.Email, token); err != nil {
		e.log.Warn("password reset delivery failed", zap.Int64("user_id", user.ID), zap.Error(err))
		e.metricInc(MetricNotifyFailure)
		e.emitAudit(ctx, auditEventNotifyFailure, false, user.ID, err, func() map[string]string {
			return map[string]string{"kind": "password_reset"}
		})
	}

	e.metricInc(MetricResetRequested)
	e.emitAudit(ctx, auditEventResetRequest, true, user.ID, nil, nil)

	return nil
}

// ConfirmPasswordReset redeems a reset token and installs the new password.
// The hash update and the token consumption commit atomically in the store,
// so when two confirmations race on the same token exactly one succeeds and
// the other observes [ErrResetTokenNotFound]. Consumed and expired tokens
// are indistinguishable from unknown ones.
func (e *Engine) ConfirmPasswordReset(ctx context.Context, token, newPassword string) error {
	if e == nil || e.store == nil || e.hasher == nil {
		return ErrEngineNotReady
	}

	if token == "" || newPassword == "" {
		return ErrResetTokenNotFound
	}

	record, err := e.store.GetValidResetToken(ctx, token)
	if err != nil {
		if errors.Is(err, ErrResetTokenNotFound) {
			e.metricInc(MetricResetConfirmFailure)
			e.emitAudit(ctx, auditEventResetConfirm, false, 0, ErrResetTokenNotFound, func() map[string]string {
				return map[string]string{"reason": "token_invalid"}
			})
			return ErrResetTokenNotFound
		}
		return err
	}

	newHash, err := e.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	newPassword = ""

	if err := e.store.ResetPassword(ctx, record.UserID, token, newHash); err != nil {
		if errors.Is(err, ErrResetTokenNotFound) {
			// Lost the redemption race; the token was consumed in between.
			e.metricInc(MetricResetConfirmFailure)
			e.emitAudit(ctx, auditEventResetConfirm, false, record.UserID, ErrResetTokenNotFound, func() map[string]string {
				return map[string]string{"reason": "token_consumed"}
			})
			return ErrResetTokenNotFound
		}
		return err
	}

	e.recordActivity(ctx, record.UserID, ActivityPasswordReset)

	// Password changed, forgive prior failed attempts. Best-effort.
	if user, err := e.store.GetUserByID(ctx, record.UserID); err == nil {
		if err := e.limiter.ResetSignin(ctx, user.Email, clientIPFromContext(ctx)); err != nil {
			e.log.Warn("signin limiter reset failed", zap.Int64("user_id", record.UserID), zap.Error(err))
		}
	}

	e.metricInc(MetricResetConfirmSuccess)
	e.emitAudit(ctx, auditEventResetConfirm, true, record.UserID, nil, nil)

	return nil
}
