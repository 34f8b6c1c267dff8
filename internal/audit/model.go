package audit

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Entry matches the security_events table schema.
type Entry struct {
	ID        uuid.UUID       `json:"id"`
	AccountID *uuid.UUID      `json:"account_id,omitempty"`
	EventType string          `json:"event_type"`
	Severity  string          `json:"severity"`
	Details   json.RawMessage `json:"details,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// ListParams holds pagination and filtering parameters for audit queries.
type ListParams struct {
	EventType string
	Severity  string
	From      *time.Time
	To        *time.Time
	Page      int
	PageSize  int
}

// DefaultListParams returns sensible defaults.
func DefaultListParams() ListParams {
	return ListParams{
		Page:     1,
		PageSize: 20,
	}
}
