package accounts

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) (*Service, *MemoryStore) {
	t.Helper()
	store := NewMemoryStore()
	return NewService(store, 5, 15*time.Minute), store
}

func seedAccount(t *testing.T, store *MemoryStore, mutate func(*Account)) *Account {
	t.Helper()
	now := time.Now().UTC()
	a := &Account{
		ID:              uuid.New(),
		Email:           "user@example.com",
		IsActive:        true,
		IsEmailVerified: true,
		Plan:            PlanFree,
		Usage:           Usage{LastReset: now},
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if mutate != nil {
		mutate(a)
	}
	require.NoError(t, store.Create(context.Background(), a))
	return a
}

func TestAdmit_Success(t *testing.T) {
	svc, store := newTestService(t)
	seeded := seedAccount(t, store, nil)

	a, err := svc.Admit(context.Background(), seeded.ID, false)
	require.NoError(t, err)
	assert.Equal(t, seeded.ID, a.ID)
}

func TestAdmit_NotFound(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Admit(context.Background(), uuid.New(), false)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAdmit_Deactivated(t *testing.T) {
	svc, store := newTestService(t)
	seeded := seedAccount(t, store, func(a *Account) { a.IsActive = false })

	_, err := svc.Admit(context.Background(), seeded.ID, false)
	assert.ErrorIs(t, err, ErrDeactivated)
}

func TestAdmit_Locked(t *testing.T) {
	svc, store := newTestService(t)
	until := time.Now().UTC().Add(10 * time.Minute)
	seeded := seedAccount(t, store, func(a *Account) { a.LockoutUntil = &until })

	_, err := svc.Admit(context.Background(), seeded.ID, false)
	require.ErrorIs(t, err, ErrLocked)

	var lockedErr *LockedError
	require.True(t, errors.As(err, &lockedErr))
	assert.WithinDuration(t, until, lockedErr.Until, time.Second)
}

func TestAdmit_ExpiredLockoutAdmits(t *testing.T) {
	svc, store := newTestService(t)
	until := time.Now().UTC().Add(-time.Minute)
	seeded := seedAccount(t, store, func(a *Account) { a.LockoutUntil = &until })

	_, err := svc.Admit(context.Background(), seeded.ID, false)
	assert.NoError(t, err)
}

func TestAdmit_EmailUnverified(t *testing.T) {
	svc, store := newTestService(t)
	seeded := seedAccount(t, store, func(a *Account) { a.IsEmailVerified = false })

	_, err := svc.Admit(context.Background(), seeded.ID, true)
	assert.ErrorIs(t, err, ErrEmailUnverified)

	// Not required on this route: admitted.
	_, err = svc.Admit(context.Background(), seeded.ID, false)
	assert.NoError(t, err)
}

func TestRecordFailedAttempt_LockoutOnFifthFailure(t *testing.T) {
	svc, store := newTestService(t)
	seeded := seedAccount(t, store, nil)
	ctx := context.Background()

	for i := 1; i <= 4; i++ {
		a, err := store.LoadByID(ctx, seeded.ID)
		require.NoError(t, err)
		until, err := svc.RecordFailedAttempt(ctx, a)
		require.NoError(t, err)
		assert.Nil(t, until, "failure %d must not lock", i)
	}

	before := time.Now().UTC()
	a, err := store.LoadByID(ctx, seeded.ID)
	require.NoError(t, err)
	until, err := svc.RecordFailedAttempt(ctx, a)
	require.NoError(t, err)
	require.NotNil(t, until, "5th failure must lock")
	assert.WithinDuration(t, before.Add(15*time.Minute), *until, time.Second)

	stored, err := store.LoadByID(ctx, seeded.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.LockoutUntil)
	assert.Equal(t, 5, stored.LoginAttempts)
}

func TestRecordFailedAttempt_FreshStartAfterExpiredLockout(t *testing.T) {
	svc, store := newTestService(t)
	expired := time.Now().UTC().Add(-time.Minute)
	seeded := seedAccount(t, store, func(a *Account) {
		a.LoginAttempts = 5
		a.LockoutUntil = &expired
	})
	ctx := context.Background()

	a, err := store.LoadByID(ctx, seeded.ID)
	require.NoError(t, err)
	until, err := svc.RecordFailedAttempt(ctx, a)
	require.NoError(t, err)
	assert.Nil(t, until)

	stored, err := store.LoadByID(ctx, seeded.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.LoginAttempts)
	assert.Nil(t, stored.LockoutUntil)
}

func TestRecordSuccess_ClearsEverything(t *testing.T) {
	svc, store := newTestService(t)
	until := time.Now().UTC().Add(10 * time.Minute)
	seeded := seedAccount(t, store, func(a *Account) {
		a.LoginAttempts = 5
		a.LockoutUntil = &until
	})
	ctx := context.Background()

	a, err := store.LoadByID(ctx, seeded.ID)
	require.NoError(t, err)
	require.NoError(t, svc.RecordSuccess(ctx, a))

	stored, err := store.LoadByID(ctx, seeded.ID)
	require.NoError(t, err)
	assert.Zero(t, stored.LoginAttempts)
	assert.Nil(t, stored.LockoutUntil)
}
