package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"echochat/internal/domain"
)

const apiVersion = "2023-06-01"

// ProviderError is any failure of a generation request: network error,
// non-2xx status, or an undecodable response.
type ProviderError struct {
	Status int // 0 for transport errors
	Detail string
}

func (e *ProviderError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("llm provider: %s", e.Detail)
	}
	return fmt.Sprintf("llm provider: status %d: %s", e.Status, e.Detail)
}

// Transient reports whether a retry might succeed.
func (e *ProviderError) Transient() bool {
	return e.Status == 0 || e.Status == http.StatusTooManyRequests || e.Status >= 500
}

// Client talks to an Anthropic-compatible messages API.
type Client struct {
	baseURL   string
	apiKey    string
	model     string
	maxTokens int
	client    *http.Client
}

// Config configures the provider client.
type Config struct {
	BaseURL   string
	APIKeyEnv string
	Model     string
	MaxTokens int
	Timeout   time.Duration
}

// NewClient creates a provider client using the provided configuration.
func NewClient(cfg Config) (*Client, error) {
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("missing API key in env %s", cfg.APIKeyEnv)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.anthropic.com"
	}
	if cfg.Model == "" {
		cfg.Model = "claude-3-haiku-20240307"
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 4096
	}
	t := cfg.Timeout
	if t == 0 {
		t = 120 * time.Second
	}
	return &Client{
		baseURL:   cfg.BaseURL,
		apiKey:    key,
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		client:    &http.Client{Timeout: t},
	}, nil
}

// Chat sends the ordered message list with an optional system prompt
// and returns the generated text.
func (c *Client) Chat(ctx context.Context, messages []domain.ProviderMessage, system string) (string, error) {
	payload := map[string]any{
		"model":      c.model,
		"max_tokens": c.maxTokens,
		"messages":   messages,
	}
	if system != "" {
		payload["system"] = system
	}
	body, _ := json.Marshal(payload)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", apiVersion)
	req.Header.Set("content-type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", &ProviderError{Detail: err.Error()}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &ProviderError{Status: resp.StatusCode, Detail: err.Error()}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &ProviderError{Status: resp.StatusCode, Detail: string(raw)}
	}

	var out struct {
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", &ProviderError{Status: resp.StatusCode, Detail: "undecodable response: " + err.Error()}
	}
	if len(out.Content) == 0 {
		return "", &ProviderError{Status: resp.StatusCode, Detail: "response has no content blocks"}
	}
	return out.Content[0].Text, nil
}

var _ domain.Provider = (*Client)(nil)
