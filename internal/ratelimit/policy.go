package ratelimit

import "time"

// KeyStrategy selects what a policy's counters are keyed by.
type KeyStrategy string

const (
	// KeyByAddress keys on the caller's network address unconditionally.
	// Used by pre-authentication policies where no identity exists yet.
	KeyByAddress KeyStrategy = "address"

	// KeyByIdentity keys on the authenticated account when available and
	// falls back to the network address for anonymous callers, so one
	// tenant behind a shared NAT cannot burn another tenant's budget.
	KeyByIdentity KeyStrategy = "identity"
)

// Policy is one endpoint class's admission configuration. Each policy owns
// independent counters per key; policies never interact.
type Policy struct {
	Name     string
	Key      KeyStrategy
	Capacity int64
	Window   time.Duration
	Block    time.Duration
}

// Default policies per endpoint class. Block duration is independent from the
// window: tripping a policy blocks the key for the full block duration even
// when the window would refill sooner.
var (
	PolicyGeneral = Policy{
		Name:     "general",
		Key:      KeyByIdentity,
		Capacity: 100,
		Window:   15 * time.Minute,
		Block:    time.Minute,
	}

	PolicyAuth = Policy{
		Name:     "auth",
		Key:      KeyByAddress,
		Capacity: 5,
		Window:   15 * time.Minute,
		Block:    15 * time.Minute,
	}

	PolicyRegistration = Policy{
		Name:     "registration",
		Key:      KeyByAddress,
		Capacity: 3,
		Window:   time.Hour,
		Block:    time.Hour,
	}

	PolicyAIProxy = Policy{
		Name:     "ai-proxy",
		Key:      KeyByIdentity,
		Capacity: 30,
		Window:   time.Minute,
		Block:    2 * time.Minute,
	}
)
