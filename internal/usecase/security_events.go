package usecase

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/benefitsdesk/enrollment-core/internal/core/domain"
	"github.com/benefitsdesk/enrollment-core/internal/core/port"
	"github.com/benefitsdesk/enrollment-core/internal/infra/telemetry"
)

// Security event types emitted by the auth flows.
const (
	EventLoginSuccess           = "login.success"
	EventLoginFailed            = "login.failed"
	EventLoginLockedOut         = "login.locked_out"
	EventSignupInvite           = "signup.invite"
	EventRefreshRotated         = "refresh.rotated"
	EventRefreshInvalidToken    = "refresh.invalid_token"
	EventRefreshExpired         = "refresh.expired"
	EventRefreshReplayDetected  = "refresh.replay_detected"
	EventLogout                 = "logout"
	EventLogoutAll              = "logout.all"
	EventPasswordResetRequested = "password_reset.requested"
	EventPasswordResetCompleted = "password_reset.completed"
)

// SecurityEvents is the best-effort audit side channel. Append failures are
// logged and counted, never propagated: audit durability must not block the
// primary operation.
type SecurityEvents struct {
	store     port.SecurityEventStore
	publisher port.EventPublisher
	logger    *zap.Logger
	metrics   *telemetry.Metrics
	now       func() time.Time
}

// NewSecurityEvents constructs the emitter. The publisher is optional.
func NewSecurityEvents(store port.SecurityEventStore, publisher port.EventPublisher, metrics *telemetry.Metrics, logger *zap.Logger) *SecurityEvents {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = telemetry.NewNopMetrics()
	}
	return &SecurityEvents{
		store:     store,
		publisher: publisher,
		logger:    logger,
		metrics:   metrics,
		now:       time.Now,
	}
}

// WithClock overrides the clock, primarily for tests.
func (e *SecurityEvents) WithClock(clock func() time.Time) {
	if clock != nil {
		e.now = clock
	}
}

// SecurityEventInput carries the audit context for one event.
type SecurityEventInput struct {
	EventType string
	Severity  domain.SecurityEventSeverity
	UserID    *string
	TenantID  *string
	IPAddress *string
	UserAgent *string
	Metadata  map[string]any
}

// Emit appends the event to durable storage and, when configured, publishes
// it to the broker. Both writes are fire-and-forget.
func (e *SecurityEvents) Emit(ctx context.Context, input SecurityEventInput) {
	severity := input.Severity
	if severity == "" {
		severity = domain.SeverityInfo
	}

	event := domain.SecurityEvent{
		ID:        ulid.Make().String(),
		UserID:    input.UserID,
		TenantID:  input.TenantID,
		EventType: input.EventType,
		Severity:  severity,
		IPAddress: input.IPAddress,
		UserAgent: input.UserAgent,
		Metadata:  input.Metadata,
		CreatedAt: e.now().UTC(),
	}

	if e.store != nil {
		if err := e.store.Append(ctx, event); err != nil {
			e.metrics.SecurityEventFailure.Inc()
			e.logger.Error("security event persist failed",
				zap.String("event_type", event.EventType),
				zap.Error(err),
			)
		}
	}

	if e.publisher != nil {
		if err := e.publisher.PublishSecurityEvent(ctx, event); err != nil {
			e.logger.Warn("security event publish failed",
				zap.String("event_type", event.EventType),
				zap.Error(err),
			)
		}
	}
}
