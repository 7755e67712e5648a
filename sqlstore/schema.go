package sqlstore

import "context"

// Schema is applied by EnsureSchema. Email, phone, and device uniqueness are
// enforced with partial indexes so tombstoned rows do not block reuse.
const schema = `
CREATE TABLE IF NOT EXISTS users (
	id                   BIGSERIAL PRIMARY KEY,
	first_name           TEXT NOT NULL DEFAULT '',
	last_name            TEXT NOT NULL DEFAULT '',
	email                TEXT NOT NULL,
	phone                TEXT NOT NULL DEFAULT '',
	role                 TEXT NOT NULL DEFAULT 'client',
	password_hash        TEXT NOT NULL,
	login_otp            TEXT NOT NULL DEFAULT '',
	login_otp_created_at TIMESTAMPTZ,
	is_deleted           BOOLEAN NOT NULL DEFAULT FALSE,
	created_at           TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE UNIQUE INDEX IF NOT EXISTS users_email_active_key
	ON users (email) WHERE NOT is_deleted;
CREATE UNIQUE INDEX IF NOT EXISTS users_phone_active_key
	ON users (phone) WHERE NOT is_deleted AND phone <> '';

CREATE TABLE IF NOT EXISTS user_devices (
	id         BIGSERIAL PRIMARY KEY,
	user_id    BIGINT NOT NULL REFERENCES users (id),
	device_id  TEXT NOT NULL,
	is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE UNIQUE INDEX IF NOT EXISTS user_devices_device_id_key
	ON user_devices (device_id);

CREATE TABLE IF NOT EXISTS password_reset_tokens (
	id         TEXT PRIMARY KEY,
	user_id    BIGINT NOT NULL REFERENCES users (id),
	token      TEXT NOT NULL UNIQUE,
	expires_at TIMESTAMPTZ NOT NULL,
	is_deleted BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE TABLE IF NOT EXISTS activity_logs (
	id          TEXT PRIMARY KEY,
	user_id     BIGINT NOT NULL REFERENCES users (id),
	action      TEXT NOT NULL,
	action_date TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS activity_logs_action_date_idx
	ON activity_logs (action_date DESC);
`

// EnsureSchema creates the tables and indexes if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schema)
	return err
}
