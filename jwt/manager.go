package jwt

import (
	"crypto/subtle"
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalid is returned on bad signature, malformed payload, or a token
	// signed for the other class.
	ErrInvalid = errors.New("invalid token")
	// ErrExpired is returned when a structurally valid token is past expiry.
	ErrExpired = errors.New("token expired")
)

// Config defines the signing material and lifetimes for both token classes.
type Config struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
	Leeway        time.Duration
}

// Manager issues and parses access and refresh tokens.
//
// Manager instances are configured once and safe for concurrent use.
type Manager struct {
	config Config
	now    func() time.Time
}

// Payload is the decoded content of a verified token.
type Payload struct {
	UserID    int64
	DeviceID  string
	ExpiresAt time.Time
}

type tokenClaims struct {
	DeviceID string `json:"dev,omitempty"`
	jwt.RegisteredClaims
}

// NewManager validates cfg and returns a ready Manager. Both secrets are
// required and must differ; the refresh lifetime must exceed the access
// lifetime.
func NewManager(cfg Config) (*Manager, error) {
	if len(cfg.AccessSecret) == 0 || len(cfg.RefreshSecret) == 0 {
		return nil, errors.New("both access and refresh secrets are required")
	}
	if subtle.ConstantTimeCompare(cfg.AccessSecret, cfg.RefreshSecret) == 1 {
		return nil, errors.New("access and refresh secrets must differ")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.RefreshTTL <= cfg.AccessTTL {
		return nil, errors.New("refresh TTL must exceed access TTL")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}

	return &Manager{config: cfg, now: time.Now}, nil
}

// SetNow replaces the manager clock. Intended for tests that need to pin or
// advance time; call before the manager is shared between goroutines.
func (m *Manager) SetNow(now func() time.Time) {
	if now != nil {
		m.now = now
	}
}

// IssueAccess signs a short-lived access token for userID, optionally bound
// to a device id.
func (m *Manager) IssueAccess(userID int64, deviceID string) (string, error) {
	return m.issue(userID, deviceID, m.config.AccessSecret, m.config.AccessTTL)
}

// IssueRefresh signs a long-lived refresh token for userID, optionally bound
// to a device id.
func (m *Manager) IssueRefresh(userID int64, deviceID string) (string, error) {
	return m.issue(userID, deviceID, m.config.RefreshSecret, m.config.RefreshTTL)
}

func (m *Manager) issue(userID int64, deviceID string, secret []byte, ttl time.Duration) (string, error) {
	now := m.now()
	claims := tokenClaims{
		DeviceID: deviceID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    m.config.Issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// ParseAccess verifies a token against the access secret.
func (m *Manager) ParseAccess(tokenStr string) (*Payload, error) {
	return m.parse(tokenStr, m.config.AccessSecret)
}

// ParseRefresh verifies a token against the refresh secret.
func (m *Manager) ParseRefresh(tokenStr string) (*Payload, error) {
	return m.parse(tokenStr, m.config.RefreshSecret)
}

func (m *Manager) parse(tokenStr string, secret []byte) (*Payload, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	}
	if m.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(m.config.Leeway))
	}
	if m.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(m.config.Issuer))
	}

	parser := jwt.NewParser(options...)
	token, err := parser.ParseWithClaims(tokenStr, &tokenClaims{}, func(*jwt.Token) (interface{}, error) {
		return secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpired
		}
		return nil, ErrInvalid
	}

	claims, ok := token.Claims.(*tokenClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalid
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || userID <= 0 {
		return nil, ErrInvalid
	}

	payload := &Payload{
		UserID:   userID,
		DeviceID: claims.DeviceID,
	}
	if claims.ExpiresAt != nil {
		payload.ExpiresAt = claims.ExpiresAt.Time
	}
	return payload, nil
}
