package internal

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"math/big"
	"strings"
)

// Alphabet for signin codes: upper-case letters and digits with the
// ambiguous 0/O/1/I/L pairs removed, 31 symbols. Six characters give
// 31^6 ≈ 8.9e8 combinations, comfortably unguessable inside a 300s window.
const loginCodeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

const resetTokenBytes = 24

// NewLoginCode draws a signin one-time passcode of the given length from
// crypto/rand.
func NewLoginCode(length int) (string, error) {
	if length < 6 || length > 10 {
		return "", errors.New("invalid login code length")
	}

	var b strings.Builder
	b.Grow(length)

	max := big.NewInt(int64(len(loginCodeAlphabet)))
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(loginCodeAlphabet[n.Int64()])
	}

	return b.String(), nil
}

// NewResetToken returns a URL-safe password-reset token backed by 24 random
// bytes (192 bits of entropy).
func NewResetToken() (string, error) {
	raw := make([]byte, resetTokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}
