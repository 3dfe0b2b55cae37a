package llm

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

// OpenAIBackend talks to an OpenAI-compatible chat completions API. It also
// covers self-hosted gateways that expose the same surface.
type OpenAIBackend struct {
	*httpBackend
}

// NewOpenAIBackend creates a new OpenAI backend instance.
func NewOpenAIBackend(cfg Config) (*OpenAIBackend, error) {
	if cfg.APIKey == "" {
		return nil, &ConfigError{
			Provider: "openai",
			Field:    "api_key",
			Message:  "API key is required",
		}
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}

	return &OpenAIBackend{httpBackend: newHTTPBackend("openai", cfg)}, nil
}

type chatCompletionRequest struct {
	Model          string              `json:"model"`
	Messages       []chatMessage       `json:"messages"`
	Temperature    float64             `json:"temperature"`
	MaxTokens      int                 `json:"max_tokens,omitempty"`
	ResponseFormat *chatResponseFormat `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponseFormat struct {
	Type string `json:"type"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete sends the prompt as a single user message and returns the first
// choice's content. JSON output mode is always requested; the model may still
// ignore it, which the caller's parser tolerates.
func (b *OpenAIBackend) Complete(ctx context.Context, prompt string) (string, error) {
	reqBody := chatCompletionRequest{
		Model:          b.cfg.Model,
		Messages:       []chatMessage{{Role: "user", Content: prompt}},
		Temperature:    b.cfg.Temperature,
		MaxTokens:      b.cfg.MaxTokens,
		ResponseFormat: &chatResponseFormat{Type: "json_object"},
	}

	url := strings.TrimSuffix(b.cfg.BaseURL, "/") + "/chat/completions"
	headers := map[string]string{
		"Authorization": "Bearer " + b.cfg.APIKey,
	}

	var resp chatCompletionResponse
	if err := b.doJSON(ctx, http.MethodPost, url, reqBody, &resp, headers); err != nil {
		return "", err
	}

	if len(resp.Choices) == 0 {
		return "", &ParseError{
			Provider: b.name,
			Cause:    errors.New("no completion choices returned"),
		}
	}

	return resp.Choices[0].Message.Content, nil
}
