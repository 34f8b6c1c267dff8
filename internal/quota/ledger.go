package quota

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/neuragate-ai/neuragate/internal/accounts"
)

// Calendar boundaries are computed in UTC everywhere.

func StartOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func StartOfMonth(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

func StartOfNextDay(t time.Time) time.Time {
	return StartOfDay(t).AddDate(0, 0, 1)
}

func StartOfNextMonth(t time.Time) time.Time {
	return StartOfMonth(t).AddDate(0, 1, 0)
}

// Scope names the quota window that rejected a request.
type Scope string

const (
	ScopeDaily   Scope = "daily"
	ScopeMonthly Scope = "monthly"
)

// Counts is a point-in-time usage snapshot over both windows.
type Counts struct {
	Daily   int64
	Monthly int64
}

// ExceededError reports an exhausted quota window with everything a client
// needs to back off: the limit, the usage snapshot, and when the window resets.
type ExceededError struct {
	Scope   Scope
	Limit   int64
	Limits  Counts
	Current Counts
	ResetAt time.Time
}

func (e *ExceededError) Error() string {
	return fmt.Sprintf("%s API call limit exceeded (%d/%d)", e.Scope, current(e), e.Limit)
}

func current(e *ExceededError) int64 {
	if e.Scope == ScopeDaily {
		return e.Current.Daily
	}
	return e.Current.Monthly
}

// Headroom is the informational remaining-calls result of a successful check.
type Headroom struct {
	Daily   Limit
	Monthly Limit
}

// Ledger checks accounts against their plan's windows and commits usage after
// the protected operation ran.
type Ledger struct {
	store accounts.Store
}

func NewLedger(store accounts.Store) *Ledger {
	return &Ledger{store: store}
}

// EffectiveCounts applies the lazy window reset: counters whose LastReset
// precedes the current window's start count as zero for this check. The
// persisted reset happens on commit. LastReset is overwritten on every commit,
// so this must compare against calendar boundaries, never against "changed".
func EffectiveCounts(u accounts.Usage, now time.Time) Counts {
	c := Counts{Daily: u.Daily, Monthly: u.Monthly}
	if u.LastReset.Before(StartOfDay(now)) {
		c.Daily = 0
	}
	if u.LastReset.Before(StartOfMonth(now)) {
		c.Monthly = 0
	}
	return c
}

// Check gates the account against its plan limits at now. Pure over the
// already-loaded account plus the clock; note the check does not serialize
// against concurrent commits for the same account, so simultaneous requests
// may slightly overshoot a limit.
func (l *Ledger) Check(a *accounts.Account, now time.Time) (Headroom, error) {
	limits := LimitsFor(a.Plan)
	used := EffectiveCounts(a.Usage, now)

	if limits.Daily.Exceeded(used.Daily) {
		return Headroom{}, &ExceededError{
			Scope:   ScopeDaily,
			Limit:   limits.Daily.N,
			Limits:  Counts{Daily: limits.Daily.N, Monthly: limits.Monthly.N},
			Current: used,
			ResetAt: StartOfNextDay(now),
		}
	}
	if limits.Monthly.Exceeded(used.Monthly) {
		return Headroom{}, &ExceededError{
			Scope:   ScopeMonthly,
			Limit:   limits.Monthly.N,
			Limits:  Counts{Daily: limits.Daily.N, Monthly: limits.Monthly.N},
			Current: used,
			ResetAt: StartOfNextMonth(now),
		}
	}

	return Headroom{
		Daily:   limits.Daily.Remaining(used.Daily),
		Monthly: limits.Monthly.Remaining(used.Monthly),
	}, nil
}

// Commit records one call against the account's counters. Best-effort by
// contract: the response has already been produced, so a failed write is
// logged and swallowed, never surfaced.
func (l *Ledger) Commit(ctx context.Context, accountID uuid.UUID) {
	now := time.Now().UTC()
	err := l.store.IncrementUsage(ctx, accountID, StartOfDay(now), StartOfMonth(now))
	if err != nil {
		slog.Warn("committing usage counters", "account_id", accountID, "error", err)
	}
}
