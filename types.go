package secureauth

import (
	"context"
	"time"
)

// Role is the access role assigned to a user account.
type Role string

const (
	// RoleAdmin marks an administrative account. Admin accounts are never
	// created through Signup; see sqlstore bootstrap helpers.
	RoleAdmin Role = "admin"
	// RoleClient is the default role for self-registered accounts.
	RoleClient Role = "client"
)

// ActivityType classifies an entry in the per-user activity log.
type ActivityType string

const (
	ActivitySignup        ActivityType = "signup"
	ActivitySignin        ActivityType = "signin"
	ActivityPasswordReset ActivityType = "password_reset"
	ActivityProfileUpdate ActivityType = "profile_update"
)

// User is the identity record consumed and mutated by the engine. Email and
// phone are unique among non-deleted users; that invariant is owned by the
// Store. LoginOTP and LoginOTPIssuedAt carry an in-flight signin challenge and
// are zero-valued otherwise.
type User struct {
	ID               int64
	FirstName        string
	LastName         string
	Email            string
	Phone            string
	Role             Role
	PasswordHash     string
	LoginOTP         string
	LoginOTPIssuedAt time.Time
	Deleted          bool
	CreatedAt        time.Time
}

// IsActive reports whether the account is usable (not tombstoned).
func (u User) IsActive() bool { return !u.Deleted }

// Device binds a user to an opaque client-supplied device identifier. Device
// ids are globally unique; existence of a binding is the trust signal.
type Device struct {
	ID        int64
	UserID    int64
	DeviceID  string
	Revoked   bool
	CreatedAt time.Time
}

// IsRevoked reports whether the binding has been tombstoned.
func (d Device) IsRevoked() bool { return d.Revoked }

// PasswordResetToken is a single-use, time-boxed bearer capability scoped to
// exactly one password change.
type PasswordResetToken struct {
	ID        string
	UserID    int64
	Token     string
	ExpiresAt time.Time
	Consumed  bool
}

// IsConsumed reports whether the token has been spent.
func (t PasswordResetToken) IsConsumed() bool { return t.Consumed }

// IsExpired reports whether the token is past its expiry at the given time.
// The boundary is inclusive: a token is expired once now >= ExpiresAt.
func (t PasswordResetToken) IsExpired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// ActivityEntry is an immutable audit fact in the per-user activity log.
type ActivityEntry struct {
	ID         string
	UserID     int64
	Type       ActivityType
	ActionDate time.Time
}

// TokenPair is the bearer credential pair returned to callers.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

// SignupInput is the input for [Engine.Signup].
type SignupInput struct {
	FirstName string
	LastName  string
	Email     string
	Phone     string
	Password  string
}

// SigninResult is returned by [Engine.Signin]. The password stage never
// issues tokens directly; OTPPending signals that the caller must follow up
// with [Engine.ConfirmSigninOTP].
type SigninResult struct {
	OTPPending bool
	NewDevice  bool
}

// ProfileUpdate carries the mutable profile fields. Email, password hash, and
// role are never touched by the profile path.
type ProfileUpdate struct {
	FirstName string
	LastName  string
	Phone     string
}

// ActivityFilter narrows activity queries. The zero value matches everything.
type ActivityFilter struct {
	Email string
}

// ActivityPage is one page of the activity log together with the total count
// for the filter.
type ActivityPage struct {
	Count int64
	Items []ActivityEntry
}

// CreateUserInput is the input for [Store.CreateUser].
type CreateUserInput struct {
	FirstName    string
	LastName     string
	Email        string
	Phone        string
	Role         Role
	PasswordHash string
}

// Store is the persistence interface the engine consumes. Implementations own
// transactional boundaries: every call commits or rolls back as a unit, and
// unique-constraint violations are translated into [ErrAlreadyExists] before
// they reach the engine.
type Store interface {
	// CreateUser persists a new user and returns it with ID and CreatedAt
	// populated. Email/phone collisions yield ErrAlreadyExists.
	CreateUser(ctx context.Context, input CreateUserInput) (User, error)
	// GetUserByEmail returns the active (non-deleted) user for the email, or
	// ErrUserNotFound.
	GetUserByEmail(ctx context.Context, email string) (User, error)
	// GetUserByID returns the active user for the id, or ErrUserNotFound.
	GetUserByID(ctx context.Context, id int64) (User, error)
	// UpdateProfile overwrites the mutable profile fields and returns the
	// refreshed record. Phone collisions yield ErrAlreadyExists.
	UpdateProfile(ctx context.Context, userID int64, upd ProfileUpdate) (User, error)
	// SetLoginOTP stores a pending signin challenge, overwriting any prior
	// one. An empty code clears the challenge.
	SetLoginOTP(ctx context.Context, userID int64, code string, issuedAt time.Time) error
	// UpdatePasswordHash replaces the stored credential hash.
	UpdatePasswordHash(ctx context.Context, userID int64, newHash string) error

	// DeviceSeen reports whether a non-revoked binding exists for the pair.
	DeviceSeen(ctx context.Context, userID int64, deviceID string) (bool, error)
	// CreateDevice records a first-sight binding. Device ids are globally
	// unique; a duplicate yields ErrAlreadyExists.
	CreateDevice(ctx context.Context, userID int64, deviceID string) (Device, error)

	// CreateResetToken persists a freshly issued reset token.
	CreateResetToken(ctx context.Context, token PasswordResetToken) error
	// GetValidResetToken returns the token only if it is neither consumed nor
	// expired; otherwise ErrResetTokenNotFound.
	GetValidResetToken(ctx context.Context, token string) (PasswordResetToken, error)
	// ResetPassword atomically replaces the user's password hash and consumes
	// the token. When two calls race on the same token, exactly one succeeds;
	// the loser observes ErrResetTokenNotFound.
	ResetPassword(ctx context.Context, userID int64, token string, newHash string) error

	// AppendActivity inserts an immutable activity entry.
	AppendActivity(ctx context.Context, entry ActivityEntry) error
	// ListActivity returns a page ordered by ActionDate descending.
	ListActivity(ctx context.Context, filter ActivityFilter, skip, limit int) ([]ActivityEntry, error)
	// CountActivity returns the total number of entries for the filter.
	CountActivity(ctx context.Context, filter ActivityFilter) (int64, error)
}

// Notifier delivers outbound security email. Implementations should return
// promptly; the engine logs failures and never lets them block a flow.
type Notifier interface {
	SendLoginOTP(ctx context.Context, email, code string) error
	SendNewDeviceAlert(ctx context.Context, email, deviceID string) error
	SendPasswordReset(ctx context.Context, email, token string) error
}

// NoOpNotifier discards all messages. Useful in tests and as the default when
// no notifier is wired.
type NoOpNotifier struct{}

func (NoOpNotifier) SendLoginOTP(context.Context, string, string) error       { return nil }
func (NoOpNotifier) SendNewDeviceAlert(context.Context, string, string) error { return nil }
func (NoOpNotifier) SendPasswordReset(context.Context, string, string) error  { return nil }
