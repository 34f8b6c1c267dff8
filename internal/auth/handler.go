package auth

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/neuragate-ai/neuragate/internal/accounts"
	"github.com/neuragate-ai/neuragate/internal/api"
	"github.com/neuragate-ai/neuragate/internal/events"
)

type Handler struct {
	authSvc  *Service
	gate     *accounts.Service
	events   *events.Publisher
	validate *validator.Validate
}

func NewHandler(authSvc *Service, gate *accounts.Service, publisher *events.Publisher) *Handler {
	return &Handler{
		authSvc:  authSvc,
		gate:     gate,
		events:   publisher,
		validate: validator.New(),
	}
}

type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}

	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.NewValidationError(err.Error()))
		return
	}

	store := h.gate.Store()
	exists, err := store.ExistsByEmail(r.Context(), req.Email)
	if err != nil {
		slog.Error("checking email existence", "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}
	if exists {
		api.HandleError(w, api.ErrEmailAlreadyExists)
		return
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		slog.Error("hashing password", "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	now := time.Now().UTC()
	account := &accounts.Account{
		ID:           uuid.New(),
		Email:        req.Email,
		PasswordHash: hash,
		IsActive:     true,
		Plan:         accounts.PlanFree,
		Usage:        accounts.Usage{LastReset: now},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := store.Create(r.Context(), account); err != nil {
		slog.Error("creating account", "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	tokens, err := h.authSvc.IssueTokens(r.Context(), account.ID.String())
	if err != nil {
		slog.Error("issuing tokens", "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	api.JSON(w, http.StatusCreated, tokens)
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}

	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.NewValidationError(err.Error()))
		return
	}

	account, err := h.gate.Store().LoadByEmail(r.Context(), req.Email)
	if err != nil {
		slog.Error("loading account by email", "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}
	if account == nil {
		api.HandleError(w, api.ErrInvalidCredentials)
		return
	}

	now := time.Now().UTC()
	if account.Locked(now) {
		api.WriteError(w, api.AccountLocked(*account.LockoutUntil))
		return
	}
	if !account.IsActive {
		api.HandleError(w, api.ErrAccountDeactivated)
		return
	}

	if err := ComparePassword(account.PasswordHash, req.Password); err != nil {
		h.recordFailure(r, account)
		api.HandleError(w, api.ErrInvalidCredentials)
		return
	}

	if err := h.gate.RecordSuccess(r.Context(), account); err != nil {
		slog.Warn("clearing login attempts", "account_id", account.ID, "error", err)
	}

	tokens, err := h.authSvc.IssueTokens(r.Context(), account.ID.String())
	if err != nil {
		slog.Error("issuing tokens", "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	api.JSON(w, http.StatusOK, tokens)
}

func (h *Handler) recordFailure(r *http.Request, account *accounts.Account) {
	lockedUntil, err := h.gate.RecordFailedAttempt(r.Context(), account)
	if err != nil {
		slog.Warn("recording failed login attempt", "account_id", account.ID, "error", err)
		return
	}

	now := time.Now().UTC()
	h.events.PublishSecurity(r.Context(), events.SecurityEvent{
		AccountID: &account.ID,
		EventType: events.EventLoginFailed,
		Severity:  "warning",
		Timestamp: now,
	})
	if lockedUntil != nil {
		h.events.PublishSecurity(r.Context(), events.SecurityEvent{
			AccountID: &account.ID,
			EventType: events.EventAccountLocked,
			Severity:  "critical",
			Details:   "locked until " + lockedUntil.Format(time.RFC3339),
			Timestamp: now,
		})
	}
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}

	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.NewValidationError(err.Error()))
		return
	}

	tokens, err := h.authSvc.RefreshTokens(r.Context(), req.RefreshToken)
	if err != nil {
		slog.Warn("refreshing tokens", "error", err)
		api.HandleError(w, api.ErrInvalidToken)
		return
	}

	api.JSON(w, http.StatusOK, tokens)
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	account := AccountFromContext(r.Context())
	if account == nil {
		api.HandleError(w, api.ErrInvalidToken)
		return
	}

	if err := h.authSvc.RevokeAll(r.Context(), account.ID.String()); err != nil {
		slog.Error("revoking refresh tokens", "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	api.JSONMessage(w, http.StatusOK, "logged out successfully")
}
