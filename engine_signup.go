package secureauth

import (
	"context"
	"errors"
	"strings"
)

// Signup registers a new client account and signs it in immediately. Email
// and phone must be unused among active accounts; collisions return
// [ErrAlreadyExists]. The returned pair carries no device claim because no
// device has been presented yet.
func (e *Engine) Signup(ctx context.Context, input SignupInput) (TokenPair, error) {
	if e == nil || e.store == nil || e.hasher == nil {
		return TokenPair{}, ErrEngineNotReady
	}

	input.Email = strings.TrimSpace(strings.ToLower(input.Email))
	input.Phone = strings.TrimSpace(input.Phone)

	if input.Email == "" || input.Password == "" {
		return TokenPair{}, ErrInvalidCredentials
	}

	hash, err := e.hasher.Hash(input.Password)
	if err != nil {
		return TokenPair{}, err
	}
	input.Password = ""

	user, err := e.store.CreateUser(ctx, CreateUserInput{
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		Email:        input.Email,
		Phone:        input.Phone,
		Role:         RoleClient,
		PasswordHash: hash,
	})
	if err != nil {
		if errors.Is(err, ErrAlreadyExists) {
			e.metricInc(MetricSignupDuplicate)
			e.emitAudit(ctx, auditEventSignupDuplicate, false, 0, err, func() map[string]string {
				return map[string]string{
					"email": input.Email,
				}
			})
			return TokenPair{}, ErrAlreadyExists
		}
		return TokenPair{}, err
	}

	pair, err := e.issueTokenPair(user.ID, "")
	if err != nil {
		return TokenPair{}, err
	}

	e.recordActivity(ctx, user.ID, ActivitySignup)

	e.metricInc(MetricSignupSuccess)
	e.emitAudit(ctx, auditEventSignup, true, user.ID, nil, func() map[string]string {
		return map[string]string{
			"email": user.Email,
		}
	})

	return pair, nil
}
