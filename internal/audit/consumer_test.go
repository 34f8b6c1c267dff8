package audit

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neuragate-ai/neuragate/internal/events"
)

func TestConvertEventToEntry(t *testing.T) {
	accountID := uuid.New()
	event := events.SecurityEvent{
		AccountID: &accountID,
		EventType: events.EventAccountLocked,
		Severity:  "warning",
		Details:   "5 failed login attempts",
		Timestamp: time.Now().UTC(),
	}

	entry := convertEventToEntry(event)

	require.NotNil(t, entry.AccountID)
	assert.Equal(t, accountID, *entry.AccountID)
	assert.Equal(t, "account_locked", entry.EventType)
	assert.Equal(t, "warning", entry.Severity)
	assert.Equal(t, event.Timestamp, entry.CreatedAt)
	assert.NotEqual(t, uuid.Nil, entry.ID)

	var details map[string]string
	require.NoError(t, json.Unmarshal(entry.Details, &details))
	assert.Equal(t, "5 failed login attempts", details["message"])
}

func TestConvertEventToEntry_AnonymousEvent(t *testing.T) {
	// Rate-limit events for unauthenticated callers carry no account.
	event := events.SecurityEvent{
		EventType: events.EventRateLimited,
		Severity:  "warning",
		Details:   "ai-proxy policy tripped by 203.0.113.7",
		Timestamp: time.Now().UTC(),
	}

	entry := convertEventToEntry(event)

	assert.Nil(t, entry.AccountID)
	assert.Equal(t, "rate_limited", entry.EventType)
}

func TestSecurityEventRoundTrip(t *testing.T) {
	accountID := uuid.New()
	event := events.SecurityEvent{
		AccountID: &accountID,
		EventType: events.EventQuotaExceeded,
		Severity:  "warning",
		Details:   "daily API call limit exceeded (50/50)",
		Timestamp: time.Now().UTC().Truncate(time.Second),
	}

	data, err := json.Marshal(event)
	require.NoError(t, err)

	var decoded events.SecurityEvent
	require.NoError(t, json.Unmarshal(data, &decoded))

	require.NotNil(t, decoded.AccountID)
	assert.Equal(t, accountID, *decoded.AccountID)
	assert.Equal(t, "quota_exceeded", decoded.EventType)
	assert.True(t, event.Timestamp.Equal(decoded.Timestamp))
}
