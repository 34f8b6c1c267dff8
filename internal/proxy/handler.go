// Package proxy exposes the metered AI endpoints. Handlers here run behind
// the full admission pipeline; they validate input, forward to the provider,
// and translate upstream failures into a stable 502 contract.
package proxy

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/neuragate-ai/neuragate/internal/api"
	"github.com/neuragate-ai/neuragate/internal/metrics"
	"github.com/neuragate-ai/neuragate/internal/providers"
)

type Handler struct {
	client   providers.Client
	validate *validator.Validate
}

func NewHandler(client providers.Client) *Handler {
	return &Handler{
		client:   client,
		validate: validator.New(),
	}
}

type chatRequest struct {
	Messages []providers.Message `json:"messages" validate:"required,min=1,dive"`
	Model    string              `json:"model"`
}

func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.NewValidationError(err.Error()))
		return
	}

	resp, err := h.client.Complete(r.Context(), &providers.CompletionRequest{
		Messages: req.Messages,
		Model:    req.Model,
	})
	if err != nil {
		h.upstreamError(w, "chat", err)
		return
	}

	metrics.ProviderRequestsTotal.WithLabelValues("chat", "ok").Inc()
	api.JSON(w, http.StatusOK, resp)
}

type moodRequest struct {
	Text string `json:"text" validate:"required,max=10000"`
}

func (h *Handler) Mood(w http.ResponseWriter, r *http.Request) {
	var req moodRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.NewValidationError(err.Error()))
		return
	}

	resp, err := h.client.AnalyzeMood(r.Context(), &providers.MoodRequest{Text: req.Text})
	if err != nil {
		h.upstreamError(w, "mood", err)
		return
	}

	metrics.ProviderRequestsTotal.WithLabelValues("mood", "ok").Inc()
	api.JSON(w, http.StatusOK, resp)
}

type speechRequest struct {
	Text  string `json:"text" validate:"required,max=5000"`
	Voice string `json:"voice"`
}

func (h *Handler) Speech(w http.ResponseWriter, r *http.Request) {
	var req speechRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.NewValidationError(err.Error()))
		return
	}

	resp, err := h.client.Synthesize(r.Context(), &providers.SpeechRequest{
		Text:  req.Text,
		Voice: req.Voice,
	})
	if err != nil {
		h.upstreamError(w, "speech", err)
		return
	}

	metrics.ProviderRequestsTotal.WithLabelValues("speech", "ok").Inc()
	api.JSON(w, http.StatusOK, resp)
}

type visionRequest struct {
	ImageURL string `json:"image_url" validate:"required,url"`
	Prompt   string `json:"prompt" validate:"max=2000"`
}

func (h *Handler) Vision(w http.ResponseWriter, r *http.Request) {
	var req visionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.NewValidationError(err.Error()))
		return
	}

	resp, err := h.client.DescribeImage(r.Context(), &providers.VisionRequest{
		ImageURL: req.ImageURL,
		Prompt:   req.Prompt,
	})
	if err != nil {
		h.upstreamError(w, "vision", err)
		return
	}

	metrics.ProviderRequestsTotal.WithLabelValues("vision", "ok").Inc()
	api.JSON(w, http.StatusOK, resp)
}

func (h *Handler) upstreamError(w http.ResponseWriter, endpoint string, err error) {
	slog.Error("provider call failed", "endpoint", endpoint, "error", err)
	metrics.ProviderRequestsTotal.WithLabelValues(endpoint, "error").Inc()
	api.HandleError(w, api.NewUpstreamError("AI provider request failed"))
}
