package audit

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/neuragate-ai/neuragate/internal/api"
	"github.com/neuragate-ai/neuragate/internal/auth"
)

type Handler struct {
	repo *Repository
}

func NewHandler(repo *Repository) *Handler {
	return &Handler{repo: repo}
}

type listResponse struct {
	Events     []Entry `json:"events"`
	TotalCount int64   `json:"total_count"`
	Page       int     `json:"page"`
	PageSize   int     `json:"page_size"`
}

// List returns the admitted account's security event history, newest first.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	a := auth.AccountFromContext(r.Context())
	if a == nil {
		api.HandleError(w, api.ErrInvalidToken)
		return
	}

	params := parseListParams(r)
	entries, total, err := h.repo.ListByAccount(r.Context(), a.ID, params)
	if err != nil {
		slog.Error("listing security events", "account_id", a.ID, "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	if entries == nil {
		entries = []Entry{}
	}

	api.JSON(w, http.StatusOK, listResponse{
		Events:     entries,
		TotalCount: total,
		Page:       params.Page,
		PageSize:   params.PageSize,
	})
}

func parseListParams(r *http.Request) ListParams {
	params := DefaultListParams()
	q := r.URL.Query()

	if page, err := strconv.Atoi(q.Get("page")); err == nil && page > 0 {
		params.Page = page
	}
	if size, err := strconv.Atoi(q.Get("page_size")); err == nil && size > 0 {
		params.PageSize = size
	}
	params.EventType = q.Get("event_type")
	params.Severity = q.Get("severity")

	if from, err := time.Parse(time.RFC3339, q.Get("from")); err == nil {
		params.From = &from
	}
	if to, err := time.Parse(time.RFC3339, q.Get("to")); err == nil {
		params.To = &to
	}

	return params
}
