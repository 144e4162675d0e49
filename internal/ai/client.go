package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/finboard/finboard-api/internal/retry"
)

// Provider health states reported by Status.
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// ChatMessage is one turn sent to a provider.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatResult is a completed chat turn with token accounting.
type ChatResult struct {
	Content          string `json:"content"`
	Model            string `json:"model"`
	PromptTokens     int    `json:"prompt_tokens"`
	CompletionTokens int    `json:"completion_tokens"`
}

// TotalTokens returns prompt plus completion tokens.
func (r *ChatResult) TotalTokens() int {
	return r.PromptTokens + r.CompletionTokens
}

// ProviderStatus is the probe result for one provider.
type ProviderStatus struct {
	Name   string   `json:"name"`
	Status string   `json:"status"`
	Models []string `json:"models,omitempty"`
}

// Client performs HTTP calls against OpenAI-compatible endpoints.
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a client. chatTimeout bounds completion calls;
// status probes are bounded by the caller's context instead.
func NewClient(chatTimeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: chatTimeout},
		logger:     logger,
	}
}

// Status probes a provider's models endpoint. The caller bounds the
// probe with its context (the service uses a 3s timeout); any failure
// inside that window reports the provider offline rather than erroring.
func (c *Client) Status(ctx context.Context, p Provider) ProviderStatus {
	var models []string
	err := retry.Do(ctx, retry.Config{Attempts: 2, BaseDelay: 200 * time.Millisecond, MaxDelay: time.Second}, func(ctx context.Context) error {
		var probeErr error
		models, probeErr = c.listModels(ctx, p)
		return probeErr
	})
	if err != nil {
		c.logger.Debug("provider probe failed", "provider", p.Name, "error", err)
		return ProviderStatus{Name: p.Name, Status: StatusOffline}
	}
	return ProviderStatus{Name: p.Name, Status: StatusOnline, Models: models}
}

func (c *Client) listModels(ctx context.Context, p Provider) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, joinURL(p.BaseURL, "/v1/models"), nil)
	if err != nil {
		return nil, retry.Permanent(err)
	}
	if p.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("models endpoint returned %d", resp.StatusCode)
	}

	var body struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, err
	}

	models := make([]string, 0, len(body.Data))
	for _, m := range body.Data {
		models = append(models, m.ID)
	}
	return models, nil
}

// ChatCompletion sends a non-streaming completion request and returns
// the assistant turn with usage counts.
func (c *Client) ChatCompletion(ctx context.Context, p Provider, model string, messages []ChatMessage) (*ChatResult, error) {
	if model == "" {
		model = p.Model
	}

	payload, err := json.Marshal(map[string]any{
		"model":    model,
		"messages": messages,
		"stream":   false,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, joinURL(p.BaseURL, "/v1/chat/completions"), bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if p.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.APIKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("provider %s unreachable: %w", p.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("provider %s returned %d: %s", p.Name, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var completion struct {
		Model   string `json:"model"`
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		Usage struct {
			PromptTokens     int `json:"prompt_tokens"`
			CompletionTokens int `json:"completion_tokens"`
		} `json:"usage"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
		return nil, fmt.Errorf("provider %s sent malformed response: %w", p.Name, err)
	}
	if len(completion.Choices) == 0 {
		return nil, fmt.Errorf("provider %s returned no choices", p.Name)
	}

	c.logger.Debug("chat completion",
		"provider", p.Name,
		"model", model,
		"prompt_tokens", completion.Usage.PromptTokens,
		"completion_tokens", completion.Usage.CompletionTokens,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return &ChatResult{
		Content:          completion.Choices[0].Message.Content,
		Model:            completion.Model,
		PromptTokens:     completion.Usage.PromptTokens,
		CompletionTokens: completion.Usage.CompletionTokens,
	}, nil
}

func joinURL(base, path string) string {
	return strings.TrimRight(base, "/") + path
}
