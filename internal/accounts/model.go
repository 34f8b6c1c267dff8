package accounts

import (
	"time"

	"github.com/google/uuid"
)

// Plan is a subscription tier. Unknown values are treated as free.
type Plan string

const (
	PlanFree       Plan = "free"
	PlanBasic      Plan = "basic"
	PlanPremium    Plan = "premium"
	PlanEnterprise Plan = "enterprise"
)

// Usage holds the rolling API-call counters embedded in an account.
// LastReset is overwritten on every commit, so window checks must compare
// against calendar boundaries rather than against "has LastReset changed".
type Usage struct {
	Total     int64     `json:"total"`
	Daily     int64     `json:"daily"`
	Monthly   int64     `json:"monthly"`
	LastReset time.Time `json:"last_reset"`
}

type Account struct {
	ID              uuid.UUID  `json:"id"`
	Email           string     `json:"email"`
	PasswordHash    string     `json:"-"`
	IsActive        bool       `json:"is_active"`
	IsEmailVerified bool       `json:"is_email_verified"`
	Plan            Plan       `json:"subscription_plan"`
	LoginAttempts   int        `json:"-"`
	LockoutUntil    *time.Time `json:"-"`
	LastSeenAt      *time.Time `json:"last_seen_at,omitempty"`
	Usage           Usage      `json:"usage"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Locked reports whether an unexpired lockout is in effect at now.
func (a *Account) Locked(now time.Time) bool {
	return a.LockoutUntil != nil && a.LockoutUntil.After(now)
}
