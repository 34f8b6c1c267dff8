package events

import (
	"time"

	"github.com/google/uuid"
)

// FetchTimeout is the default timeout for batch fetching messages from consumers.
const FetchTimeout = 2 * time.Second

// Stream names.
const (
	StreamEvents = "NEURAGATE_EVENTS"
)

// Subject constants.
const (
	SubjectSecurityEvent = "neuragate.events.security"
	SubjectUsageEvent    = "neuragate.events.usage"
)

// Security event types.
const (
	EventLoginFailed   = "login_failed"
	EventAccountLocked = "account_locked"
	EventRateLimited   = "rate_limited"
	EventQuotaExceeded = "quota_exceeded"
)

// SecurityEvent is published when an admission gate rejects or flags a request.
type SecurityEvent struct {
	AccountID *uuid.UUID `json:"account_id,omitempty"`
	EventType string     `json:"event_type"`
	Severity  string     `json:"severity"`
	Details   string     `json:"details,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}

// UsageEvent is published after a metered request's quota commit.
type UsageEvent struct {
	AccountID uuid.UUID `json:"account_id"`
	Endpoint  string    `json:"endpoint"`
	Timestamp time.Time `json:"timestamp"`
}
