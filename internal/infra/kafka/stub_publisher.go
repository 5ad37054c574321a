package kafka

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/benefitsdesk/enrollment-core/internal/core/domain"
	"github.com/benefitsdesk/enrollment-core/internal/core/port"
)

// StubPublisher logs events instead of sending them to Kafka. Useful for
// development environments and tests.
type StubPublisher struct {
	logger *zap.Logger
}

// NewStubPublisher constructs a development-friendly event publisher.
func NewStubPublisher(logger *zap.Logger) *StubPublisher {
	return &StubPublisher{logger: logger}
}

// PublishSecurityEvent logs the event.
func (p *StubPublisher) PublishSecurityEvent(_ context.Context, event domain.SecurityEvent) error {
	at := event.CreatedAt
	if at.IsZero() {
		at = time.Now().UTC()
	}

	p.logger.Info("stub security event published",
		zap.String("event_type", event.EventType),
		zap.String("severity", string(event.Severity)),
		zap.Time("timestamp", at.UTC()),
		zap.Any("metadata", event.Metadata),
	)
	return nil
}

// Close is a no-op.
func (p *StubPublisher) Close() error { return nil }

var _ port.EventPublisher = (*StubPublisher)(nil)
