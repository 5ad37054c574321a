package port

import (
	"context"

	"github.com/benefitsdesk/enrollment-core/internal/core/domain"
)

// EventPublisher pushes security events to an external side channel (message
// broker). Publishing is best-effort: failures are logged by the caller and
// never propagate to the triggering operation.
type EventPublisher interface {
	PublishSecurityEvent(ctx context.Context, event domain.SecurityEvent) error
	Close() error
}
