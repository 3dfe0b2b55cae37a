package llm

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

// anthropicVersion is the Messages API version header value.
const anthropicVersion = "2023-06-01"

// AnthropicBackend talks to the Anthropic Messages API.
type AnthropicBackend struct {
	*httpBackend
}

// NewAnthropicBackend creates a new Anthropic backend instance.
func NewAnthropicBackend(cfg Config) (*AnthropicBackend, error) {
	if cfg.APIKey == "" {
		return nil, &ConfigError{
			Provider: "anthropic",
			Field:    "api_key",
			Message:  "API key is required",
		}
	}
	if cfg.Model == "" {
		cfg.Model = "claude-3-5-haiku-latest"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.anthropic.com"
	}
	// max_tokens is mandatory on this API.
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 512
	}

	return &AnthropicBackend{httpBackend: newHTTPBackend("anthropic", cfg)}, nil
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	Messages    []anthropicMessage `json:"messages"`
	Temperature float64            `json:"temperature,omitempty"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// Complete sends the prompt as a single user message and returns the
// concatenated text blocks of the response.
func (b *AnthropicBackend) Complete(ctx context.Context, prompt string) (string, error) {
	reqBody := anthropicRequest{
		Model:       b.cfg.Model,
		MaxTokens:   b.cfg.MaxTokens,
		Messages:    []anthropicMessage{{Role: "user", Content: prompt}},
		Temperature: b.cfg.Temperature,
	}

	url := strings.TrimSuffix(b.cfg.BaseURL, "/") + "/v1/messages"
	headers := map[string]string{
		"x-api-key":         b.cfg.APIKey,
		"anthropic-version": anthropicVersion,
	}

	var resp anthropicResponse
	if err := b.doJSON(ctx, http.MethodPost, url, reqBody, &resp, headers); err != nil {
		return "", err
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return "", &ParseError{
			Provider: b.name,
			Cause:    errors.New("no text content returned"),
		}
	}

	return sb.String(), nil
}
