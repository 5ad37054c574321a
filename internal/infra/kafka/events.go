package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/benefitsdesk/enrollment-core/internal/core/domain"
	"github.com/benefitsdesk/enrollment-core/internal/core/port"
	"github.com/benefitsdesk/enrollment-core/internal/infra/config"
)

const (
	schemaVersion      = "1.0"
	securityEventTopic = "security.event"
)

// EventPublisher implements port.EventPublisher using Kafka.
type EventPublisher struct {
	producer *Producer
	logger   *zap.Logger
	appCfg   config.AppSettings
}

// NewEventPublisher constructs a Kafka-backed security event publisher.
func NewEventPublisher(producer *Producer, appCfg config.AppSettings, logger *zap.Logger) *EventPublisher {
	return &EventPublisher{producer: producer, appCfg: appCfg, logger: logger}
}

type eventEnvelope struct {
	EventID   string            `json:"event_id"`
	EventType string            `json:"event_type"`
	Severity  string            `json:"severity"`
	UserID    *string           `json:"user_id,omitempty"`
	TenantID  *string           `json:"tenant_id,omitempty"`
	IPAddress *string           `json:"ip_address,omitempty"`
	UserAgent *string           `json:"user_agent,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Version   string            `json:"version"`
	Metadata  map[string]any    `json:"metadata,omitempty"`
	Service   map[string]string `json:"service"`
}

// PublishSecurityEvent pushes one audit event to the side channel.
func (p *EventPublisher) PublishSecurityEvent(ctx context.Context, event domain.SecurityEvent) error {
	ts := event.CreatedAt
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	envelope := eventEnvelope{
		EventID:   event.ID,
		EventType: event.EventType,
		Severity:  string(event.Severity),
		UserID:    event.UserID,
		TenantID:  event.TenantID,
		IPAddress: event.IPAddress,
		UserAgent: event.UserAgent,
		Timestamp: ts.UTC(),
		Version:   schemaVersion,
		Metadata:  event.Metadata,
		Service: map[string]string{
			"name":        p.appCfg.Name,
			"environment": p.appCfg.Env,
		},
	}

	bytes, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: p.producer.TopicName(securityEventTopic),
		Value: sarama.ByteEncoder(bytes),
	}

	select {
	case p.producer.Input() <- message:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close shuts down the underlying producer.
func (p *EventPublisher) Close() error {
	return p.producer.Close()
}

var _ port.EventPublisher = (*EventPublisher)(nil)
