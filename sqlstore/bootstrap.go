package sqlstore

import (
	"context"
	"errors"

	"github.com/siriuslabs/secureauth"
)

// EnsureAdmin creates the administrative account if no active user holds the
// email yet. The password must arrive pre-hashed; plaintext never reaches
// this package. Idempotent across restarts.
func (s *Store) EnsureAdmin(ctx context.Context, email, passwordHash string) (secureauth.User, error) {
	existing, err := s.GetUserByEmail(ctx, email)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, secureauth.ErrUserNotFound) {
		return secureauth.User{}, err
	}

	user, err := s.CreateUser(ctx, secureauth.CreateUserInput{
		FirstName:    "Admin",
		Email:        email,
		Role:         secureauth.RoleAdmin,
		PasswordHash: passwordHash,
	})
	if err != nil {
		if errors.Is(err, secureauth.ErrAlreadyExists) {
			// Raced with another instance; read back the winner.
			return s.GetUserByEmail(ctx, email)
		}
		return secureauth.User{}, err
	}
	return user, nil
}
