package ratelimit

import (
	"context"
	"sync"
	"time"
)

type windowCounter struct {
	count     int64
	expiresAt time.Time
}

// MemoryStore is the in-process CounterStore. Safe for concurrent use; state
// does not survive restarts and does not coordinate across instances.
type MemoryStore struct {
	mu       sync.Mutex
	counters map[string]*windowCounter
	blocks   map[string]time.Time

	nowFn func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		counters: make(map[string]*windowCounter),
		blocks:   make(map[string]time.Time),
		nowFn:    time.Now,
	}
}

func (s *MemoryStore) Increment(_ context.Context, key string, window time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.nowFn()
	c, ok := s.counters[key]
	if !ok || now.After(c.expiresAt) {
		c = &windowCounter{expiresAt: now.Add(window)}
		s.counters[key] = c
	}
	c.count++
	return c.count, nil
}

func (s *MemoryStore) Block(_ context.Context, key string, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.blocks[key] = s.nowFn().Add(d)
	return nil
}

func (s *MemoryStore) BlockRemaining(_ context.Context, key string) (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	until, ok := s.blocks[key]
	if !ok {
		return 0, nil
	}
	remaining := until.Sub(s.nowFn())
	if remaining <= 0 {
		delete(s.blocks, key)
		return 0, nil
	}
	return remaining, nil
}
