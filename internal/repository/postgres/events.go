package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	squirrel "github.com/Masterminds/squirrel"

	"github.com/benefitsdesk/enrollment-core/internal/core/domain"
)

// SecurityEventRepository implements port.SecurityEventStore using
// PostgreSQL. The table is append-only.
type SecurityEventRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewSecurityEventRepository constructs a repository backed by any executor.
func NewSecurityEventRepository(exec pgExecutor) *SecurityEventRepository {
	return &SecurityEventRepository{
		exec:    exec,
		builder: newBuilder(),
	}
}

// Append inserts one audit event. Metadata is stored as jsonb.
func (r *SecurityEventRepository) Append(ctx context.Context, event domain.SecurityEvent) error {
	var metadata []byte
	if len(event.Metadata) > 0 {
		encoded, err := json.Marshal(event.Metadata)
		if err != nil {
			return fmt.Errorf("encode event metadata: %w", err)
		}
		metadata = encoded
	}

	stmt, args, err := r.builder.Insert("security_events").
		Columns("id", "user_id", "tenant_id", "event_type", "severity", "ip_address", "user_agent", "metadata", "created_at").
		Values(
			event.ID,
			event.UserID,
			event.TenantID,
			event.EventType,
			event.Severity,
			event.IPAddress,
			event.UserAgent,
			metadata,
			event.CreatedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert security event sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert security event: %w", err)
	}
	return nil
}
