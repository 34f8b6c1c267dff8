package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go/jetstream"
)

// Publisher provides typed methods for publishing events to NATS JetStream.
// A nil Publisher is valid and drops everything, so callers never need to
// branch on whether NATS is configured.
type Publisher struct {
	js jetstream.JetStream
}

func NewPublisher(js jetstream.JetStream) *Publisher {
	return &Publisher{js: js}
}

// PublishSecurity publishes a security event. Best-effort: failures are
// logged, never surfaced, since event delivery must not affect admission.
func (p *Publisher) PublishSecurity(ctx context.Context, event SecurityEvent) {
	if p == nil {
		return
	}
	if err := p.publish(ctx, SubjectSecurityEvent, event); err != nil {
		slog.Warn("publishing security event", "event_type", event.EventType, "error", err)
	}
}

// PublishUsage publishes a usage event, best-effort.
func (p *Publisher) PublishUsage(ctx context.Context, event UsageEvent) {
	if p == nil {
		return
	}
	if err := p.publish(ctx, SubjectUsageEvent, event); err != nil {
		slog.Warn("publishing usage event", "account_id", event.AccountID, "error", err)
	}
}

func (p *Publisher) publish(ctx context.Context, subject string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshaling event for %s: %w", subject, err)
	}
	if _, err := p.js.Publish(ctx, subject, payload); err != nil {
		return fmt.Errorf("publishing to %s: %w", subject, err)
	}
	return nil
}
