// Package secureauth provides a user-authentication engine with JWT access and
// refresh tokens, an email one-time-passcode (OTP) step-up on signin, device
// recognition, single-use password-reset tokens, and per-user activity logging.
//
// The package is designed for concurrent server workloads: Engine methods are
// safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// secureauth is the orchestration core. Persistent storage is consumed through
// the [Store] interface and outbound email through the [Notifier] interface;
// both are supplied by the caller (reference implementations live in sqlstore
// and mailer). HTTP transport, request validation, and routing stay outside
// the engine.
//
// # Failure policy
//
// Expected outcomes (wrong password, wrong or expired OTP, missing user,
// spent reset token) are sentinel error values, never panics. Activity-log
// and notifier failures are logged and suppressed so that instrumentation and
// email delivery cannot break the authentication critical path.
package secureauth
