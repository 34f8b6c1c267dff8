package accounts

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-process Store used by tests and local development.
// All mutations are applied under a single mutex, mirroring the
// single-document atomicity of the SQL implementation.
type MemoryStore struct {
	mu       sync.Mutex
	byID     map[uuid.UUID]*Account
	emailIdx map[string]uuid.UUID
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:     make(map[uuid.UUID]*Account),
		emailIdx: make(map[string]uuid.UUID),
	}
}

func (s *MemoryStore) Create(_ context.Context, a *Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *a
	s.byID[a.ID] = &cp
	s.emailIdx[a.Email] = a.ID
	return nil
}

func (s *MemoryStore) LoadByID(_ context.Context, id uuid.UUID) (*Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.byID[id]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (s *MemoryStore) LoadByEmail(ctx context.Context, email string) (*Account, error) {
	s.mu.Lock()
	id, ok := s.emailIdx[email]
	s.mu.Unlock()
	if !ok {
		return nil, nil
	}
	return s.LoadByID(ctx, id)
}

func (s *MemoryStore) ExistsByEmail(_ context.Context, email string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.emailIdx[email]
	return ok, nil
}

func (s *MemoryStore) IncrementUsage(_ context.Context, id uuid.UUID, dayStart, monthStart time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.byID[id]
	if !ok {
		return nil
	}
	a.Usage.Total++
	if a.Usage.LastReset.Before(dayStart) {
		a.Usage.Daily = 1
	} else {
		a.Usage.Daily++
	}
	if a.Usage.LastReset.Before(monthStart) {
		a.Usage.Monthly = 1
	} else {
		a.Usage.Monthly++
	}
	a.Usage.LastReset = time.Now().UTC()
	a.UpdatedAt = a.Usage.LastReset
	return nil
}

func (s *MemoryStore) SetLockout(_ context.Context, id uuid.UUID, until *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.byID[id]; ok {
		a.LockoutUntil = until
	}
	return nil
}

func (s *MemoryStore) ResetLoginAttempts(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.byID[id]; ok {
		a.LoginAttempts = 0
		a.LockoutUntil = nil
	}
	return nil
}

func (s *MemoryStore) IncrementLoginAttempts(_ context.Context, id uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.byID[id]
	if !ok {
		return 0, nil
	}
	a.LoginAttempts++
	return a.LoginAttempts, nil
}

func (s *MemoryStore) TouchLastSeen(_ context.Context, id uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.byID[id]; ok {
		a.LastSeenAt = &at
	}
	return nil
}

func (s *MemoryStore) Deactivate(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.byID[id]; ok {
		a.IsActive = false
	}
	return nil
}
