package accounts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store is the persistence surface the pipeline depends on. It is injected
// everywhere so gates are testable without a live database.
type Store interface {
	Create(ctx context.Context, a *Account) error
	LoadByID(ctx context.Context, id uuid.UUID) (*Account, error)
	LoadByEmail(ctx context.Context, email string) (*Account, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)

	// IncrementUsage bumps total/daily/monthly by one in a single statement.
	// Daily and monthly counters restart at 1 when the stored LastReset
	// precedes dayStart or monthStart respectively.
	IncrementUsage(ctx context.Context, id uuid.UUID, dayStart, monthStart time.Time) error

	SetLockout(ctx context.Context, id uuid.UUID, until *time.Time) error
	// ResetLoginAttempts zeroes the counter and clears any lockout.
	ResetLoginAttempts(ctx context.Context, id uuid.UUID) error
	// IncrementLoginAttempts returns the post-increment count.
	IncrementLoginAttempts(ctx context.Context, id uuid.UUID) (int, error)

	TouchLastSeen(ctx context.Context, id uuid.UUID, at time.Time) error
	Deactivate(ctx context.Context, id uuid.UUID) error
}

type postgresStore struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) Store {
	return &postgresStore{pool: pool}
}

const accountColumns = `id, email, password_hash, is_active, is_email_verified,
	subscription_plan, login_attempts, lockout_until, last_seen_at,
	usage_total, usage_daily, usage_monthly, usage_last_reset,
	created_at, updated_at`

func (s *postgresStore) Create(ctx context.Context, a *Account) error {
	query := `
		INSERT INTO accounts (id, email, password_hash, is_active, is_email_verified,
			subscription_plan, usage_last_reset, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := s.pool.Exec(ctx, query,
		a.ID, a.Email, a.PasswordHash, a.IsActive, a.IsEmailVerified,
		a.Plan, a.Usage.LastReset, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("inserting account: %w", err)
	}
	return nil
}

func (s *postgresStore) LoadByID(ctx context.Context, id uuid.UUID) (*Account, error) {
	return s.load(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id)
}

func (s *postgresStore) LoadByEmail(ctx context.Context, email string) (*Account, error) {
	return s.load(ctx, `SELECT `+accountColumns+` FROM accounts WHERE email = $1`, email)
}

func (s *postgresStore) load(ctx context.Context, query string, arg any) (*Account, error) {
	a := &Account{}
	err := s.pool.QueryRow(ctx, query, arg).Scan(
		&a.ID, &a.Email, &a.PasswordHash, &a.IsActive, &a.IsEmailVerified,
		&a.Plan, &a.LoginAttempts, &a.LockoutUntil, &a.LastSeenAt,
		&a.Usage.Total, &a.Usage.Daily, &a.Usage.Monthly, &a.Usage.LastReset,
		&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying account: %w", err)
	}
	return a, nil
}

func (s *postgresStore) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM accounts WHERE email = $1)`, email).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking email existence: %w", err)
	}
	return exists, nil
}

func (s *postgresStore) IncrementUsage(ctx context.Context, id uuid.UUID, dayStart, monthStart time.Time) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE accounts
		 SET usage_total = usage_total + 1,
		     usage_daily = CASE WHEN usage_last_reset < $2 THEN 1 ELSE usage_daily + 1 END,
		     usage_monthly = CASE WHEN usage_last_reset < $3 THEN 1 ELSE usage_monthly + 1 END,
		     usage_last_reset = NOW(),
		     updated_at = NOW()
		 WHERE id = $1`, id, dayStart, monthStart)
	if err != nil {
		return fmt.Errorf("incrementing usage counters: %w", err)
	}
	return nil
}

func (s *postgresStore) SetLockout(ctx context.Context, id uuid.UUID, until *time.Time) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE accounts SET lockout_until = $2, updated_at = NOW() WHERE id = $1`, id, until)
	if err != nil {
		return fmt.Errorf("setting lockout: %w", err)
	}
	return nil
}

func (s *postgresStore) ResetLoginAttempts(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE accounts SET login_attempts = 0, lockout_until = NULL, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("resetting login attempts: %w", err)
	}
	return nil
}

func (s *postgresStore) IncrementLoginAttempts(ctx context.Context, id uuid.UUID) (int, error) {
	var attempts int
	err := s.pool.QueryRow(ctx,
		`UPDATE accounts SET login_attempts = login_attempts + 1, updated_at = NOW()
		 WHERE id = $1 RETURNING login_attempts`, id).Scan(&attempts)
	if err != nil {
		return 0, fmt.Errorf("incrementing login attempts: %w", err)
	}
	return attempts, nil
}

func (s *postgresStore) TouchLastSeen(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE accounts SET last_seen_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("touching last seen: %w", err)
	}
	return nil
}

func (s *postgresStore) Deactivate(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE accounts SET is_active = FALSE, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deactivating account: %w", err)
	}
	return nil
}
