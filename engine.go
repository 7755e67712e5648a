package secureauth

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/siriuslabs/secureauth/internal/rate"
	"github.com/siriuslabs/secureauth/jwt"
	"github.com/siriuslabs/secureauth/password"
)

// Engine is the authentication core. Construct one with [New] and [Builder];
// the zero value is not usable. All methods are safe for concurrent use when
// the wired Store and Notifier are.
type Engine struct {
	config   Config
	store    Store
	notifier Notifier
	hasher   *password.Argon2
	tokens   *jwt.Manager
	limiter  *rate.Limiter
	audit    *auditDispatcher
	metrics  *Metrics
	log      *zap.Logger

	// now is the engine clock. Restated per call so tests can pin time.
	now func() time.Time
}

// Close flushes the audit dispatcher. Idempotent.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped reports how many audit events were discarded because the
// dispatcher buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a point-in-time copy of the engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{Counters: map[string]uint64{}}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// emitAudit queues an audit event. The metadata closure is only invoked when
// a dispatcher is wired, so callers pay nothing when auditing is off.
func (e *Engine) emitAudit(ctx context.Context, eventType string, success bool, userID int64, err error, metadata func() map[string]string) {
	if e == nil || e.audit == nil {
		return
	}

	event := AuditEvent{
		Timestamp: e.now(),
		EventType: eventType,
		UserID:    userID,
		IP:        clientIPFromContext(ctx),
		Success:   success,
	}
	if err != nil {
		event.Error = err.Error()
	}
	if metadata != nil {
		event.Metadata = metadata()
	}

	e.audit.Emit(ctx, event)
}

// recordActivity appends an activity entry. Activity writes never fail a
// flow: errors are logged, counted, and audited, then suppressed.
func (e *Engine) recordActivity(ctx context.Context, userID int64, typ ActivityType) {
	entry := ActivityEntry{
		ID:         uuid.NewString(),
		UserID:     userID,
		Type:       typ,
		ActionDate: e.now(),
	}

	if err := e.store.AppendActivity(ctx, entry); err != nil {
		e.log.Warn("activity write failed",
			zap.Int64("user_id", userID),
			zap.String("activity", string(typ)),
			zap.Error(err),
		)
		e.metricInc(MetricActivityDropped)
		e.emitAudit(ctx, auditEventActivityDropped, false, userID, err, func() map[string]string {
			return map[string]string{
				"activity": string(typ),
			}
		})
	}
}

// issueTokenPair mints an access/refresh pair for the user. deviceID is
// carried into both tokens when non-empty.
func (e *Engine) issueTokenPair(userID int64, deviceID string) (TokenPair, error) {
	access, err := e.tokens.IssueAccess(userID, deviceID)
	if err != nil {
		return TokenPair{}, err
	}

	refresh, err := e.tokens.IssueRefresh(userID, deviceID)
	if err != nil {
		return TokenPair{}, err
	}

	return TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "bearer",
	}, nil
}
