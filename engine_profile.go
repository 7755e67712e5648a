package secureauth

import (
	"context"
	"errors"
	"strings"
)

// UpdateProfile overwrites the mutable profile fields for the user and
// returns the refreshed record. Email, password hash, and role are never
// touched by this path. A phone collision with another account returns
// [ErrAlreadyExists].
func (e *Engine) UpdateProfile(ctx context.Context, userID int64, upd ProfileUpdate) (User, error) {
	if e == nil || e.store == nil {
		return User{}, ErrEngineNotReady
	}

	upd.FirstName = strings.TrimSpace(upd.FirstName)
	upd.LastName = strings.TrimSpace(upd.LastName)
	upd.Phone = strings.TrimSpace(upd.Phone)

	user, err := e.store.UpdateProfile(ctx, userID, upd)
	if err != nil {
		if errors.Is(err, ErrAlreadyExists) {
			return User{}, ErrAlreadyExists
		}
		if errors.Is(err, ErrUserNotFound) {
			return User{}, ErrUserNotFound
		}
		return User{}, err
	}

	e.recordActivity(ctx, userID, ActivityProfileUpdate)

	e.metricInc(MetricProfileUpdated)
	e.emitAudit(ctx, auditEventProfileUpdate, true, userID, nil, nil)

	return user, nil
}
