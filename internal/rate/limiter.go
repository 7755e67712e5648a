// Package rate enforces fixed-window attempt budgets for signin and
// password-reset requests using Redis counters.
package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds rate limiter tuning parameters.
type Config struct {
	EnableIPThrottle  bool
	MaxSigninAttempts int
	SigninCooldown    time.Duration
	MaxResetRequests  int
	ResetCooldown     time.Duration
}

// Limiter tracks per-email and per-IP counters in Redis. A nil *Limiter is
// valid and enforces nothing, so callers never branch on configuration.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

// New creates a [Limiter] backed by the given Redis client.
func New(redisClient redis.UniversalClient, cfg Config) *Limiter {
	return &Limiter{
		redis:  redisClient,
		config: cfg,
	}
}

// CheckSignin reports whether the email+IP pair still has signin budget
// left. It does not consume an attempt.
func (l *Limiter) CheckSignin(ctx context.Context, email, ip string) error {
	if l == nil {
		return nil
	}

	if err := l.checkCounter(ctx, signinEmailKey(email), l.config.MaxSigninAttempts); err != nil {
		return err
	}

	if l.config.EnableIPThrottle && ip != "" {
		if err := l.checkCounter(ctx, signinIPKey(ip), l.config.MaxSigninAttempts); err != nil {
			return err
		}
	}

	return nil
}

// IncrementSignin records a failed signin attempt for the email+IP pair.
func (l *Limiter) IncrementSignin(ctx context.Context, email, ip string) error {
	if l == nil {
		return nil
	}

	count, err := l.incrementWithTTL(ctx, signinEmailKey(email), l.config.SigninCooldown)
	if err != nil {
		return err
	}
	if count > int64(l.config.MaxSigninAttempts) {
		return ErrRateLimited
	}

	if l.config.EnableIPThrottle && ip != "" {
		count, err = l.incrementWithTTL(ctx, signinIPKey(ip), l.config.SigninCooldown)
		if err != nil {
			return err
		}
		if count > int64(l.config.MaxSigninAttempts) {
			return ErrRateLimited
		}
	}

	return nil
}

// ResetSignin clears the failed-signin counters for the email+IP pair.
// Called after a completed signin or a password change.
func (l *Limiter) ResetSignin(ctx context.Context, email, ip string) error {
	if l == nil {
		return nil
	}

	keys := []string{signinEmailKey(email)}
	if l.config.EnableIPThrottle && ip != "" {
		keys = append(keys, signinIPKey(ip))
	}

	if err := l.redis.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return nil
}

// CheckResetRequest consumes one password-reset request for the email and
// fails once the window budget is spent. Reset requests are counted up
// front because every request sends mail, unlike signin where only
// failures are charged.
func (l *Limiter) CheckResetRequest(ctx context.Context, email string) error {
	if l == nil {
		return nil
	}

	count, err := l.incrementWithTTL(ctx, resetEmailKey(email), l.config.ResetCooldown)
	if err != nil {
		return err
	}
	if count > int64(l.config.MaxResetRequests) {
		return ErrRateLimited
	}

	return nil
}

// SigninAttempts returns the current failed-signin counter for an email.
// Missing keys return zero and do not reveal account existence.
func (l *Limiter) SigninAttempts(ctx context.Context, email string) (int, error) {
	if l == nil {
		return 0, nil
	}

	count, err := l.redis.Get(ctx, signinEmailKey(email)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count < 0 {
		return 0, nil
	}
	return int(count), nil
}

func (l *Limiter) checkCounter(ctx context.Context, key string, maxAttempts int) error {
	count, err := l.redis.Get(ctx, key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	if count >= int64(maxAttempts) {
		return ErrRateLimited
	}

	return nil
}

func (l *Limiter) incrementWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// Fixed-window semantics: the TTL is set only on the first hit.
	if count == 1 {
		if err := l.redis.Expire(ctx, key, ttl).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	return count, nil
}
