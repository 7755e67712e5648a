// Package sqlstore implements the engine's Store interface on PostgreSQL
// using sqlx. Unique-constraint violations are translated into
// secureauth.ErrAlreadyExists; absent rows into the matching not-found
// sentinel.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/siriuslabs/secureauth"
)

const pqUniqueViolation = "23505"

// Store is a PostgreSQL-backed secureauth.Store.
type Store struct {
	db *sqlx.DB
}

// New wraps an open sqlx database handle.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Open connects to PostgreSQL, pings, and returns a Store.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return New(db), nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

type userRow struct {
	ID               int64        `db:"id"`
	FirstName        string       `db:"first_name"`
	LastName         string       `db:"last_name"`
	Email            string       `db:"email"`
	Phone            string       `db:"phone"`
	Role             string       `db:"role"`
	PasswordHash     string       `db:"password_hash"`
	LoginOTP         string       `db:"login_otp"`
	LoginOTPIssuedAt sql.NullTime `db:"login_otp_created_at"`
	Deleted          bool         `db:"is_deleted"`
	CreatedAt        time.Time    `db:"created_at"`
}

func (r userRow) toUser() secureauth.User {
	u := secureauth.User{
		ID:           r.ID,
		FirstName:    r.FirstName,
		LastName:     r.LastName,
		Email:        r.Email,
		Phone:        r.Phone,
		Role:         secureauth.Role(r.Role),
		PasswordHash: r.PasswordHash,
		LoginOTP:     r.LoginOTP,
		Deleted:      r.Deleted,
		CreatedAt:    r.CreatedAt,
	}
	if r.LoginOTPIssuedAt.Valid {
		u.LoginOTPIssuedAt = r.LoginOTPIssuedAt.Time
	}
	return u
}

const userColumns = `id, first_name, last_name, email, phone, role,
	password_hash, login_otp, login_otp_created_at, is_deleted, created_at`

func (s *Store) CreateUser(ctx context.Context, input secureauth.CreateUserInput) (secureauth.User, error) {
	var row userRow
	err := s.db.GetContext(ctx, &row, `
		INSERT INTO users (first_name, last_name, email, phone, role, password_hash)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+userColumns,
		input.FirstName, input.LastName, input.Email, input.Phone,
		string(input.Role), input.PasswordHash,
	)
	if err != nil {
		return secureauth.User{}, translateUnique(err)
	}
	return row.toUser(), nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (secureauth.User, error) {
	var row userRow
	err := s.db.GetContext(ctx, &row, `
		SELECT `+userColumns+` FROM users
		WHERE email = $1 AND NOT is_deleted`,
		email,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return secureauth.User{}, secureauth.ErrUserNotFound
		}
		return secureauth.User{}, err
	}
	return row.toUser(), nil
}

func (s *Store) GetUserByID(ctx context.Context, id int64) (secureauth.User, error) {
	var row userRow
	err := s.db.GetContext(ctx, &row, `
		SELECT `+userColumns+` FROM users
		WHERE id = $1 AND NOT is_deleted`,
		id,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return secureauth.User{}, secureauth.ErrUserNotFound
		}
		return secureauth.User{}, err
	}
	return row.toUser(), nil
}

func (s *Store) UpdateProfile(ctx context.Context, userID int64, upd secureauth.ProfileUpdate) (secureauth.User, error) {
	var row userRow
	err := s.db.GetContext(ctx, &row, `
		UPDATE users
		SET first_name = $2, last_name = $3, phone = $4
		WHERE id = $1 AND NOT is_deleted
		RETURNING `+userColumns,
		userID, upd.FirstName, upd.LastName, upd.Phone,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return secureauth.User{}, secureauth.ErrUserNotFound
		}
		return secureauth.User{}, translateUnique(err)
	}
	return row.toUser(), nil
}

func (s *Store) SetLoginOTP(ctx context.Context, userID int64, code string, issuedAt time.Time) error {
	var stamp sql.NullTime
	if code != "" {
		stamp = sql.NullTime{Time: issuedAt, Valid: true}
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET login_otp = $2, login_otp_created_at = $3
		WHERE id = $1 AND NOT is_deleted`,
		userID, code, stamp,
	)
	if err != nil {
		return err
	}
	return oneRowOr(res, secureauth.ErrUserNotFound)
}

func (s *Store) UpdatePasswordHash(ctx context.Context, userID int64, newHash string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET password_hash = $2
		WHERE id = $1 AND NOT is_deleted`,
		userID, newHash,
	)
	if err != nil {
		return err
	}
	return oneRowOr(res, secureauth.ErrUserNotFound)
}

func (s *Store) DeviceSeen(ctx context.Context, userID int64, deviceID string) (bool, error) {
	var seen bool
	err := s.db.GetContext(ctx, &seen, `
		SELECT EXISTS (
			SELECT 1 FROM user_devices
			WHERE user_id = $1 AND device_id = $2 AND NOT is_deleted
		)`,
		userID, deviceID,
	)
	return seen, err
}

func (s *Store) CreateDevice(ctx context.Context, userID int64, deviceID string) (secureauth.Device, error) {
	var dev secureauth.Device
	err := s.db.QueryRowxContext(ctx, `
		INSERT INTO user_devices (user_id, device_id)
		VALUES ($1, $2)
		RETURNING id, user_id, device_id, is_deleted, created_at`,
		userID, deviceID,
	).Scan(&dev.ID, &dev.UserID, &dev.DeviceID, &dev.Revoked, &dev.CreatedAt)
	if err != nil {
		return secureauth.Device{}, translateUnique(err)
	}
	return dev, nil
}

func (s *Store) CreateResetToken(ctx context.Context, token secureauth.PasswordResetToken) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO password_reset_tokens (id, user_id, token, expires_at)
		VALUES ($1, $2, $3, $4)`,
		token.ID, token.UserID, token.Token, token.ExpiresAt,
	)
	return translateUnique(err)
}

func (s *Store) GetValidResetToken(ctx context.Context, token string) (secureauth.PasswordResetToken, error) {
	var t secureauth.PasswordResetToken
	err := s.db.QueryRowxContext(ctx, `
		SELECT id, user_id, token, expires_at, is_deleted
		FROM password_reset_tokens
		WHERE token = $1 AND NOT is_deleted AND expires_at > now()`,
		token,
	).Scan(&t.ID, &t.UserID, &t.Token, &t.ExpiresAt, &t.Consumed)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return secureauth.PasswordResetToken{}, secureauth.ErrResetTokenNotFound
		}
		return secureauth.PasswordResetToken{}, err
	}
	return t, nil
}

// ResetPassword consumes the token and installs the new hash in one
// transaction. The conditional UPDATE on the token row is the arbiter under
// concurrent redemption: the loser matches zero rows and gets
// ErrResetTokenNotFound.
func (s *Store) ResetPassword(ctx context.Context, userID int64, token string, newHash string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE password_reset_tokens SET is_deleted = TRUE
		WHERE token = $1 AND user_id = $2 AND NOT is_deleted AND expires_at > now()`,
		token, userID,
	)
	if err != nil {
		return err
	}
	if err := oneRowOr(res, secureauth.ErrResetTokenNotFound); err != nil {
		return err
	}

	res, err = tx.ExecContext(ctx, `
		UPDATE users SET password_hash = $2
		WHERE id = $1 AND NOT is_deleted`,
		userID, newHash,
	)
	if err != nil {
		return err
	}
	if err := oneRowOr(res, secureauth.ErrUserNotFound); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *Store) AppendActivity(ctx context.Context, entry secureauth.ActivityEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO activity_logs (id, user_id, action, action_date)
		VALUES ($1, $2, $3, $4)`,
		entry.ID, entry.UserID, string(entry.Type), entry.ActionDate,
	)
	return err
}

func (s *Store) ListActivity(ctx context.Context, filter secureauth.ActivityFilter, skip, limit int) ([]secureauth.ActivityEntry, error) {
	rows, err := s.db.QueryxContext(ctx, `
		SELECT a.id, a.user_id, a.action, a.action_date
		FROM activity_logs a
		JOIN users u ON u.id = a.user_id
		WHERE ($1 = '' OR u.email = $1)
		ORDER BY a.action_date DESC
		LIMIT $2 OFFSET $3`,
		filter.Email, limit, skip,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []secureauth.ActivityEntry
	for rows.Next() {
		var e secureauth.ActivityEntry
		var action string
		if err := rows.Scan(&e.ID, &e.UserID, &action, &e.ActionDate); err != nil {
			return nil, err
		}
		e.Type = secureauth.ActivityType(action)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *Store) CountActivity(ctx context.Context, filter secureauth.ActivityFilter) (int64, error) {
	var count int64
	err := s.db.GetContext(ctx, &count, `
		SELECT COUNT(*)
		FROM activity_logs a
		JOIN users u ON u.id = a.user_id
		WHERE ($1 = '' OR u.email = $1)`,
		filter.Email,
	)
	return count, err
}

// translateUnique maps PostgreSQL unique violations to ErrAlreadyExists,
// keeping the offending constraint in the wrap for diagnostics.
func translateUnique(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == pqUniqueViolation {
		constraint := strings.TrimSpace(pqErr.Constraint)
		if constraint == "" {
			return secureauth.ErrAlreadyExists
		}
		return errors.Join(secureauth.ErrAlreadyExists, errors.New("constraint "+constraint))
	}
	return err
}

func oneRowOr(res sql.Result, sentinel error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sentinel
	}
	return nil
}
