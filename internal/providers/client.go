// Package providers wraps the upstream AI provider's HTTP API behind a small
// typed client. The proxy handlers depend on the Client interface so tests can
// substitute a stub without a network.
package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client is the surface the proxy handlers consume.
type Client interface {
	Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error)
	AnalyzeMood(ctx context.Context, req *MoodRequest) (*MoodResponse, error)
	Synthesize(ctx context.Context, req *SpeechRequest) (*SpeechResponse, error)
	DescribeImage(ctx context.Context, req *VisionRequest) (*VisionResponse, error)
}

// Config holds client configuration.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

type httpClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// New creates a provider client against cfg.BaseURL.
func New(cfg Config) Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return &httpClient{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: timeout},
	}
}

// CompletionRequest is a chat completion call.
type CompletionRequest struct {
	Messages []Message `json:"messages"`
	Model    string    `json:"model,omitempty"`
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type CompletionResponse struct {
	Content string `json:"content"`
	Model   string `json:"model"`
	Usage   Tokens `json:"usage"`
}

type Tokens struct {
	Prompt     int `json:"prompt_tokens"`
	Completion int `json:"completion_tokens"`
}

// MoodRequest asks for sentiment analysis over a text.
type MoodRequest struct {
	Text string `json:"text"`
}

type MoodResponse struct {
	Mood       string  `json:"mood"`
	Confidence float64 `json:"confidence"`
}

// SpeechRequest asks for text-to-speech synthesis.
type SpeechRequest struct {
	Text  string `json:"text"`
	Voice string `json:"voice,omitempty"`
}

type SpeechResponse struct {
	AudioBase64 string `json:"audio_base64"`
	Format      string `json:"format"`
}

// VisionRequest asks for a description of an image.
type VisionRequest struct {
	ImageURL string `json:"image_url"`
	Prompt   string `json:"prompt,omitempty"`
}

type VisionResponse struct {
	Description string `json:"description"`
}

func (c *httpClient) Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	var resp CompletionResponse
	if err := c.post(ctx, "/v1/chat/completions", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *httpClient) AnalyzeMood(ctx context.Context, req *MoodRequest) (*MoodResponse, error) {
	var resp MoodResponse
	if err := c.post(ctx, "/v1/mood", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *httpClient) Synthesize(ctx context.Context, req *SpeechRequest) (*SpeechResponse, error) {
	var resp SpeechResponse
	if err := c.post(ctx, "/v1/speech", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *httpClient) DescribeImage(ctx context.Context, req *VisionRequest) (*VisionResponse, error) {
	var resp VisionResponse
	if err := c.post(ctx, "/v1/vision", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *httpClient) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("provider returned %s: %s", resp.Status, string(respBody))
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}
