// Package profile serves the authenticated account's own resources: profile,
// usage headroom, and soft-deletion.
package profile

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/neuragate-ai/neuragate/internal/accounts"
	"github.com/neuragate-ai/neuragate/internal/api"
	"github.com/neuragate-ai/neuragate/internal/auth"
	"github.com/neuragate-ai/neuragate/internal/quota"
)

type Handler struct {
	store  accounts.Store
	tokens *auth.Service
}

func NewHandler(store accounts.Store, tokens *auth.Service) *Handler {
	return &Handler{store: store, tokens: tokens}
}

type profileResponse struct {
	ID              uuid.UUID     `json:"id"`
	Email           string        `json:"email"`
	Plan            accounts.Plan `json:"plan"`
	IsEmailVerified bool          `json:"is_email_verified"`
	CreatedAt       time.Time     `json:"created_at"`
}

// Me returns the admitted account's profile.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	a := auth.AccountFromContext(r.Context())
	if a == nil {
		api.HandleError(w, api.ErrInvalidToken)
		return
	}

	api.JSON(w, http.StatusOK, profileResponse{
		ID:              a.ID,
		Email:           a.Email,
		Plan:            a.Plan,
		IsEmailVerified: a.IsEmailVerified,
		CreatedAt:       a.CreatedAt,
	})
}

type windowUsage struct {
	Used      int64  `json:"used"`
	Limit     any    `json:"limit"`
	Remaining any    `json:"remaining"`
	ResetsAt  string `json:"resets_at"`
}

type usageResponse struct {
	Plan    accounts.Plan `json:"plan"`
	Total   int64         `json:"total"`
	Daily   windowUsage   `json:"daily"`
	Monthly windowUsage   `json:"monthly"`
}

// Usage returns the account's usage counters and remaining headroom per
// window, with lazily reset counters already applied.
func (h *Handler) Usage(w http.ResponseWriter, r *http.Request) {
	a := auth.AccountFromContext(r.Context())
	if a == nil {
		api.HandleError(w, api.ErrInvalidToken)
		return
	}

	now := time.Now().UTC()
	counts := quota.EffectiveCounts(a.Usage, now)
	limits := quota.LimitsFor(a.Plan)

	api.JSON(w, http.StatusOK, usageResponse{
		Plan:  a.Plan,
		Total: a.Usage.Total,
		Daily: windowUsage{
			Used:      counts.Daily,
			Limit:     limitValue(limits.Daily),
			Remaining: limitValue(limits.Daily.Remaining(counts.Daily)),
			ResetsAt:  quota.StartOfNextDay(now).Format(time.RFC3339),
		},
		Monthly: windowUsage{
			Used:      counts.Monthly,
			Limit:     limitValue(limits.Monthly),
			Remaining: limitValue(limits.Monthly.Remaining(counts.Monthly)),
			ResetsAt:  quota.StartOfNextMonth(now).Format(time.RFC3339),
		},
	})
}

// Delete soft-deletes the account and revokes its refresh tokens. The record
// is kept with isActive=false, never hard-deleted.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	a := auth.AccountFromContext(r.Context())
	if a == nil {
		api.HandleError(w, api.ErrInvalidToken)
		return
	}

	if err := h.store.Deactivate(r.Context(), a.ID); err != nil {
		slog.Error("deactivating account", "account_id", a.ID, "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	if err := h.tokens.RevokeAll(r.Context(), a.ID.String()); err != nil {
		slog.Warn("revoking tokens after deactivation", "account_id", a.ID, "error", err)
	}

	api.JSONMessage(w, http.StatusOK, "account deactivated")
}

func limitValue(l quota.Limit) any {
	if l.Unlimited {
		return "unlimited"
	}
	return l.N
}
