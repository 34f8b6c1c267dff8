package accounts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Admission failures. Callers pattern-match these with errors.Is and map them
// to the HTTP error contract.
var (
	ErrNotFound        = errors.New("account not found")
	ErrDeactivated     = errors.New("account deactivated")
	ErrLocked          = errors.New("account locked")
	ErrEmailUnverified = errors.New("email not verified")
)

// LockedError wraps ErrLocked with the lockout expiry for retry hints.
type LockedError struct {
	Until time.Time
}

func (e *LockedError) Error() string { return "account locked" }
func (e *LockedError) Unwrap() error { return ErrLocked }

// Service evaluates admission predicates and keeps login-attempt bookkeeping.
type Service struct {
	store           Store
	maxAttempts     int
	lockoutDuration time.Duration
}

func NewService(store Store, maxAttempts int, lockoutDuration time.Duration) *Service {
	return &Service{
		store:           store,
		maxAttempts:     maxAttempts,
		lockoutDuration: lockoutDuration,
	}
}

func (s *Service) Store() Store {
	return s.store
}

// Admit loads the account and checks it in order: exists, active, not locked,
// and (when requireVerified) email verified. Each check is a hard stop.
// On success the last-seen timestamp is touched without blocking the request.
func (s *Service) Admit(ctx context.Context, id uuid.UUID, requireVerified bool) (*Account, error) {
	a, err := s.store.LoadByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("loading account: %w", err)
	}
	if a == nil {
		return nil, ErrNotFound
	}
	if !a.IsActive {
		return nil, ErrDeactivated
	}
	now := time.Now().UTC()
	if a.Locked(now) {
		return nil, &LockedError{Until: *a.LockoutUntil}
	}
	if requireVerified && !a.IsEmailVerified {
		return nil, ErrEmailUnverified
	}

	go func() {
		touchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := s.store.TouchLastSeen(touchCtx, a.ID, now); err != nil {
			slog.Warn("touching last seen", "account_id", a.ID, "error", err)
		}
	}()

	return a, nil
}

// RecordFailedAttempt applies the credential-failure bookkeeping: a failure
// after an expired lockout starts a fresh count at 1 and clears the lockout;
// otherwise the count increments, and reaching the threshold with no active
// lockout sets one. Returns the lockout expiry when this attempt triggered it.
func (s *Service) RecordFailedAttempt(ctx context.Context, a *Account) (*time.Time, error) {
	now := time.Now().UTC()

	if a.LockoutUntil != nil && !a.LockoutUntil.After(now) {
		if err := s.store.ResetLoginAttempts(ctx, a.ID); err != nil {
			return nil, fmt.Errorf("clearing expired lockout: %w", err)
		}
		if _, err := s.store.IncrementLoginAttempts(ctx, a.ID); err != nil {
			return nil, fmt.Errorf("recording failed attempt: %w", err)
		}
		return nil, nil
	}

	attempts, err := s.store.IncrementLoginAttempts(ctx, a.ID)
	if err != nil {
		return nil, fmt.Errorf("recording failed attempt: %w", err)
	}

	if attempts >= s.maxAttempts && !a.Locked(now) {
		until := now.Add(s.lockoutDuration)
		if err := s.store.SetLockout(ctx, a.ID, &until); err != nil {
			return nil, fmt.Errorf("setting lockout: %w", err)
		}
		slog.Warn("account locked after repeated failed logins",
			"account_id", a.ID, "attempts", attempts, "until", until)
		return &until, nil
	}
	return nil, nil
}

// RecordSuccess clears login attempts and any lockout unconditionally.
func (s *Service) RecordSuccess(ctx context.Context, a *Account) error {
	if err := s.store.ResetLoginAttempts(ctx, a.ID); err != nil {
		return fmt.Errorf("clearing login attempts: %w", err)
	}
	return nil
}
