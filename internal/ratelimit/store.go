package ratelimit

import (
	"context"
	"time"
)

// CounterStore is the pluggable counter backend behind the limiter: an
// in-process map for single-instance deployments and tests, Redis when
// multiple instances must share state. The fixed-window-with-block algorithm
// is identical over either.
type CounterStore interface {
	// Increment bumps the key's counter within the current fixed window and
	// returns the post-increment count. The first increment of a window
	// starts it; the counter expires with the window.
	Increment(ctx context.Context, key string, window time.Duration) (int64, error)

	// Block marks the key blocked for d.
	Block(ctx context.Context, key string, d time.Duration) error

	// BlockRemaining returns how long the key stays blocked, zero when it
	// is not blocked.
	BlockRemaining(ctx context.Context, key string) (time.Duration, error)
}
