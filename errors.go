package secureauth

import "errors"

var (
	// ErrInvalidCredentials is returned when a password does not match the
	// stored hash (or the account has no usable hash at all).
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserNotFound is returned when no active user exists for the given
	// email or id.
	ErrUserNotFound = errors.New("user not found")
	// ErrAlreadyExists is returned when a unique constraint on email, phone,
	// or device id is violated.
	ErrAlreadyExists = errors.New("already exists")
	// ErrOTPInvalid is returned when the submitted signin code does not match
	// the pending challenge, or no challenge is pending.
	ErrOTPInvalid = errors.New("invalid one-time passcode")
	// ErrOTPExpired is returned when the pending signin code has aged past the
	// configured window.
	ErrOTPExpired = errors.New("one-time passcode expired")
	// ErrResetTokenNotFound is returned when a password-reset token is absent,
	// already consumed, or expired.
	ErrResetTokenNotFound = errors.New("reset token not found or expired")
	// ErrTokenInvalid is returned on bad signature or malformed token payload.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrTokenExpired is returned when a structurally valid token is past its
	// expiry.
	ErrTokenExpired = errors.New("token expired")
	// ErrSigninRateLimited is returned when the signin attempt budget for an
	// identifier or IP is exhausted.
	ErrSigninRateLimited = errors.New("signin rate limited")
	// ErrResetRateLimited is returned when the reset-request budget for an
	// identifier or IP is exhausted.
	ErrResetRateLimited = errors.New("password reset rate limited")
	// ErrEngineNotReady is returned when an Engine is used before Build
	// completed.
	ErrEngineNotReady = errors.New("engine not initialized")
)

// ErrorCode maps an engine error to a stable machine-readable code suitable
// for transport boundaries. Unknown errors map to "InternalError" so storage
// detail never leaks to callers.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrInvalidCredentials),
		errors.Is(err, ErrOTPInvalid),
		errors.Is(err, ErrOTPExpired):
		return "AuthenticationError"
	case errors.Is(err, ErrUserNotFound),
		errors.Is(err, ErrResetTokenNotFound):
		return "NotFoundError"
	case errors.Is(err, ErrAlreadyExists):
		return "DataAlreadyExistsError"
	case errors.Is(err, ErrTokenExpired):
		return "TokenExpiredError"
	case errors.Is(err, ErrTokenInvalid):
		return "TokenInvalidError"
	case errors.Is(err, ErrSigninRateLimited),
		errors.Is(err, ErrResetRateLimited):
		return "RateLimitedError"
	default:
		return "InternalError"
	}
}
