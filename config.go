package secureauth

import (
	"errors"
	"time"
)

// Config holds every tunable of the engine. It is constructed once at process
// start and injected through [Builder.WithConfig]; there is no ambient global
// lookup inside business logic.
//
// Config instances are treated as immutable after Build.
type Config struct {
	JWT           JWTConfig
	OTP           OTPConfig
	Password      PasswordConfig
	PasswordReset PasswordResetConfig
	RateLimit     RateLimitConfig
	Audit         AuditConfig
	Metrics       MetricsConfig
	Pagination    PaginationConfig
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig configures the token issuer. Access and refresh tokens are signed
// with distinct secrets so that one class can never be replayed as the other.
type JWTConfig struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
	Leeway        time.Duration
}

/*
====================================
OTP CONFIG
====================================
*/

// OTPConfig configures the signin one-time-passcode challenge.
type OTPConfig struct {
	// TTL is the wall-clock validity window measured from issuance.
	TTL time.Duration
	// Length is the code length in characters.
	Length int
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig carries the Argon2id parameters plus the opportunistic
// rehash-on-signin switch.
type PasswordConfig struct {
	Memory          uint32
	Time            uint32
	Parallelism     uint8
	SaltLength      uint32
	KeyLength       uint32
	UpgradeOnSignin bool
}

/*
====================================
PASSWORD RESET CONFIG
====================================
*/

// PasswordResetConfig configures the single-use reset-token lifecycle.
type PasswordResetConfig struct {
	// TTL is the absolute validity window of an issued reset token.
	TTL time.Duration
}

/*
====================================
RATE LIMIT CONFIG
====================================
*/

// RateLimitConfig tunes the Redis-backed attempt limiter. Limiting only takes
// effect when Enabled is set and a Redis client was supplied to the Builder.
type RateLimitConfig struct {
	Enabled          bool
	EnableIPThrottle bool

	MaxSigninAttempts int
	SigninCooldown    time.Duration

	MaxResetRequests int
	ResetCooldown    time.Duration
}

/*
====================================
AUDIT CONFIG
====================================
*/

// AuditConfig configures the asynchronous audit-event dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

/*
====================================
METRICS CONFIG
====================================
*/

// MetricsConfig toggles the in-process counters.
type MetricsConfig struct {
	Enabled bool
}

/*
====================================
PAGINATION CONFIG
====================================
*/

// PaginationConfig sets the fallback page size for activity queries issued
// without an explicit limit.
type PaginationConfig struct {
	DefaultLimit int
}

func defaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL:  60 * time.Minute,
			RefreshTTL: 30 * 24 * time.Hour,
		},
		OTP: OTPConfig{
			TTL:    300 * time.Second,
			Length: 6,
		},
		Password: PasswordConfig{
			Memory:          65536,
			Time:            3,
			Parallelism:     2,
			SaltLength:      16,
			KeyLength:       32,
			UpgradeOnSignin: true,
		},
		PasswordReset: PasswordResetConfig{
			TTL: time.Hour,
		},
		RateLimit: RateLimitConfig{
			Enabled:           false,
			EnableIPThrottle:  true,
			MaxSigninAttempts: 3,
			SigninCooldown:    20 * time.Second,
			MaxResetRequests:  3,
			ResetCooldown:     20 * time.Second,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: false,
		},
		Pagination: PaginationConfig{
			DefaultLimit: 10,
		},
	}
}

func validateConfig(cfg Config) error {
	if len(cfg.JWT.AccessSecret) == 0 || len(cfg.JWT.RefreshSecret) == 0 {
		return errors.New("jwt access and refresh secrets are required")
	}
	if string(cfg.JWT.AccessSecret) == string(cfg.JWT.RefreshSecret) {
		return errors.New("jwt access and refresh secrets must differ")
	}
	if cfg.JWT.AccessTTL <= 0 || cfg.JWT.RefreshTTL <= 0 {
		return errors.New("jwt TTLs must be positive")
	}
	if cfg.JWT.RefreshTTL <= cfg.JWT.AccessTTL {
		return errors.New("refresh TTL must exceed access TTL")
	}
	if cfg.OTP.TTL <= 0 {
		return errors.New("otp TTL must be positive")
	}
	if cfg.OTP.Length < 6 || cfg.OTP.Length > 10 {
		return errors.New("otp length must be between 6 and 10")
	}
	if cfg.PasswordReset.TTL <= 0 {
		return errors.New("password reset TTL must be positive")
	}
	if cfg.RateLimit.Enabled {
		if cfg.RateLimit.MaxSigninAttempts <= 0 || cfg.RateLimit.SigninCooldown <= 0 {
			return errors.New("signin rate limit requires positive budget and cooldown")
		}
		if cfg.RateLimit.MaxResetRequests <= 0 || cfg.RateLimit.ResetCooldown <= 0 {
			return errors.New("reset rate limit requires positive budget and cooldown")
		}
	}
	if cfg.Audit.Enabled && cfg.Audit.BufferSize <= 0 {
		return errors.New("audit buffer size must be positive")
	}
	if cfg.Pagination.DefaultLimit <= 0 {
		return errors.New("default pagination limit must be positive")
	}
	return nil
}

// cloneConfig copies the config so later mutation of the caller's struct
// cannot reach into a built engine. Secrets are the only reference fields.
func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.AccessSecret = cloneBytes(cfg.JWT.AccessSecret)
	out.JWT.RefreshSecret = cloneBytes(cfg.JWT.RefreshSecret)
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// DefaultConfig returns the engine defaults: 60m access / 30d refresh tokens,
// 300s six-character OTP window, 1h reset tokens, page size 10. Secrets are
// left empty and must be filled in by the caller.
func DefaultConfig() Config {
	return defaultConfig()
}
