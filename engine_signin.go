package secureauth

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/siriuslabs/secureauth/internal"
)

// Signin runs the password stage of the two-step signin. On success a
// one-time passcode is stored on the user record and mailed out, and the
// caller must follow up with [Engine.ConfirmSigninOTP]; no tokens are issued
// here. An unknown or deactivated email returns [ErrUserNotFound], a wrong
// password [ErrInvalidCredentials].
//
// When deviceID is non-empty and unseen, a trust binding is recorded and a
// new-device alert is sent. A registration race with a concurrent signin is
// non-fatal.
func (e *Engine) Signin(ctx context.Context, email, plaintext, deviceID string) (SigninResult, error) {
	if e == nil || e.store == nil || e.hasher == nil {
		return SigninResult{}, ErrEngineNotReady
	}

	email = strings.TrimSpace(strings.ToLower(email))
	ip := clientIPFromContext(ctx)

	if err := e.limiter.CheckSignin(ctx, email, ip); err != nil {
		e.metricInc(MetricSigninRateLimited)
		e.emitAudit(ctx, auditEventSigninRateLimited, false, 0, ErrSigninRateLimited, func() map[string]string {
			return map[string]string{"email": email}
		})
		return SigninResult{}, ErrSigninRateLimited
	}

	user, err := e.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			e.chargeSigninFailure(ctx, email, ip, 0, "user_not_found")
			return SigninResult{}, ErrUserNotFound
		}
		return SigninResult{}, err
	}

	if !e.hasher.Verify(plaintext, user.PasswordHash) {
		e.chargeSigninFailure(ctx, email, ip, user.ID, "password_mismatch")
		return SigninResult{}, ErrInvalidCredentials
	}

	if e.config.Password.UpgradeOnSignin {
		if needsUpgrade, err := e.hasher.NeedsUpgrade(user.PasswordHash); err == nil && needsUpgrade {
			// Rehash is best-effort and must not block the signin.
			if upgraded, err := e.hasher.Hash(plaintext); err == nil {
				if err := e.store.UpdatePasswordHash(ctx, user.ID, upgraded); err != nil {
					e.log.Warn("password hash upgrade failed", zap.Int64("user_id", user.ID), zap.Error(err))
				}
			}
		}
	}
	plaintext = ""

	code, err := internal.NewLoginCode(e.config.OTP.Length)
	if err != nil {
		return SigninResult{}, err
	}

	// Last writer wins: a concurrent signin for the same user replaces any
	// pending code, and only the newest one verifies.
	if err := e.store.SetLoginOTP(ctx, user.ID, code, e.now()); err != nil {
		return SigninResult{}, err
	}

	if err := e.notifier.SendLoginOTP(ctx, user.Email, code); err != nil {
		e.log.Warn("otp delivery failed", zap.Int64("user_id", user.ID), zap.Error(err))
		e.metricInc(MetricNotifyFailure)
		e.emitAudit(ctx, auditEventNotifyFailure, false, user.ID, err, func() map[string]string {
			return map[string]string{"kind": "login_otp"}
		})
	}

	e.recordActivity(ctx, user.ID, ActivitySignin)

	result := SigninResult{OTPPending: true}
	if deviceID != "" {
		result.NewDevice = e.registerDeviceIfUnseen(ctx, user, deviceID)
	}

	if err := e.limiter.ResetSignin(ctx, email, ip); err != nil {
		e.log.Warn("signin limiter reset failed", zap.String("email", email), zap.Error(err))
	}

	e.metricInc(MetricSigninOTPPending)
	e.emitAudit(ctx, auditEventSigninOTPPending, true, user.ID, nil, func() map[string]string {
		return map[string]string{"email": user.Email}
	})

	return result, nil
}

// ConfirmSigninOTP completes a pending signin. The submitted code must match
// the stored one exactly; a mismatch returns [ErrOTPInvalid], leaves the
// pending code in place so the caller can retry until expiry, and spends one
// attempt from the signin rate-limit budget. A matching code past the window
// returns [ErrOTPExpired]. On success the stored code is cleared and a token
// pair carrying the device claim is issued.
func (e *Engine) ConfirmSigninOTP(ctx context.Context, email, code, deviceID string) (TokenPair, error) {
	if e == nil || e.store == nil || e.tokens == nil {
		return TokenPair{}, ErrEngineNotReady
	}

	email = strings.TrimSpace(strings.ToLower(email))
	ip := clientIPFromContext(ctx)

	if err := e.limiter.CheckSignin(ctx, email, ip); err != nil {
		e.metricInc(MetricSigninRateLimited)
		e.emitAudit(ctx, auditEventSigninRateLimited, false, 0, ErrSigninRateLimited, func() map[string]string {
			return map[string]string{"email": email}
		})
		return TokenPair{}, ErrSigninRateLimited
	}

	user, err := e.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			e.metricInc(MetricOTPFailure)
			e.emitAudit(ctx, auditEventOTPFailure, false, 0, ErrUserNotFound, func() map[string]string {
				return map[string]string{"email": email, "reason": "user_not_found"}
			})
			return TokenPair{}, ErrUserNotFound
		}
		return TokenPair{}, err
	}

	// An absent pending code and a wrong code are indistinguishable to the
	// caller; only a matching code is ever examined for expiry.
	if user.LoginOTP == "" || subtle.ConstantTimeCompare([]byte(user.LoginOTP), []byte(code)) != 1 {
		if err := e.limiter.IncrementSignin(ctx, email, ip); err != nil {
			e.log.Warn("signin limiter increment failed", zap.String("email", email), zap.Error(err))
		}
		e.metricInc(MetricOTPFailure)
		e.emitAudit(ctx, auditEventOTPFailure, false, user.ID, ErrOTPInvalid, func() map[string]string {
			return map[string]string{"reason": "code_mismatch"}
		})
		return TokenPair{}, ErrOTPInvalid
	}

	if e.now().Sub(user.LoginOTPIssuedAt) > e.config.OTP.TTL {
		e.metricInc(MetricOTPExpired)
		e.emitAudit(ctx, auditEventOTPFailure, false, user.ID, ErrOTPExpired, func() map[string]string {
			return map[string]string{"reason": "code_expired"}
		})
		return TokenPair{}, ErrOTPExpired
	}

	// Single use: clear before issuing so a replay of the same code fails.
	if err := e.store.SetLoginOTP(ctx, user.ID, "", time.Time{}); err != nil {
		return TokenPair{}, err
	}

	pair, err := e.issueTokenPair(user.ID, deviceID)
	if err != nil {
		return TokenPair{}, err
	}

	if err := e.limiter.ResetSignin(ctx, email, ip); err != nil {
		e.log.Warn("signin limiter reset failed", zap.String("email", email), zap.Error(err))
	}

	e.metricInc(MetricSigninSuccess)
	e.emitAudit(ctx, auditEventSigninSuccess, true, user.ID, nil, func() map[string]string {
		return map[string]string{"email": user.Email}
	})

	return pair, nil
}

func (e *Engine) chargeSigninFailure(ctx context.Context, email, ip string, userID int64, reason string) {
	if err := e.limiter.IncrementSignin(ctx, email, ip); err != nil {
		e.log.Warn("signin limiter increment failed", zap.String("email", email), zap.Error(err))
	}
	e.metricInc(MetricSigninFailure)
	e.emitAudit(ctx, auditEventSigninFailure, false, userID, ErrInvalidCredentials, func() map[string]string {
		return map[string]string{"email": email, "reason": reason}
	})
}

// registerDeviceIfUnseen records a first-sight device binding and sends the
// alert. Returns true only when this call created the binding. A duplicate
// from a concurrent signin skips the alert, so at most one alert is sent per
// device under normal operation.
func (e *Engine) registerDeviceIfUnseen(ctx context.Context, user User, deviceID string) bool {
	seen, err := e.store.DeviceSeen(ctx, user.ID, deviceID)
	if err != nil {
		e.log.Warn("device lookup failed", zap.Int64("user_id", user.ID), zap.Error(err))
		return false
	}
	if seen {
		return false
	}

	if _, err := e.store.CreateDevice(ctx, user.ID, deviceID); err != nil {
		if errors.Is(err, ErrAlreadyExists) {
			e.metricInc(MetricDeviceDuplicate)
			e.emitAudit(ctx, auditEventDeviceAlertSkipped, true, user.ID, nil, func() map[string]string {
				return map[string]string{"device_id": deviceID}
			})
			return false
		}
		e.log.Warn("device registration failed", zap.Int64("user_id", user.ID), zap.Error(err))
		return false
	}

	if err := e.notifier.SendNewDeviceAlert(ctx, user.Email, deviceID); err != nil {
		e.log.Warn("new device alert failed", zap.Int64("user_id", user.ID), zap.Error(err))
		e.metricInc(MetricNotifyFailure)
		e.emitAudit(ctx, auditEventNotifyFailure, false, user.ID, err, func() map[string]string {
			return map[string]string{"kind": "new_device_alert"}
		})
	}

	e.metricInc(MetricDeviceRegistered)
	e.emitAudit(ctx, auditEventDeviceRegistered, true, user.ID, nil, func() map[string]string {
		return map[string]string{"device_id": deviceID}
	})

	return true
}
