package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// GeminiBackend talks to the Google Generative Language API.
type GeminiBackend struct {
	*httpBackend
}

// NewGeminiBackend creates a new Gemini backend instance. A fast, low-cost
// model is the default: guardrail verdicts sit on the latency path of every
// primary-agent request.
func NewGeminiBackend(cfg Config) (*GeminiBackend, error) {
	if cfg.APIKey == "" {
		return nil, &ConfigError{
			Provider: "gemini",
			Field:    "api_key",
			Message:  "API key is required",
		}
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.0-flash"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://generativelanguage.googleapis.com"
	}

	return &GeminiBackend{httpBackend: newHTTPBackend("gemini", cfg)}, nil
}

type geminiRequest struct {
	Contents         []geminiContent         `json:"contents"`
	GenerationConfig *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenerationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Complete sends the prompt via generateContent and returns the concatenated
// text parts of the first candidate.
func (b *GeminiBackend) Complete(ctx context.Context, prompt string) (string, error) {
	reqBody := geminiRequest{
		Contents: []geminiContent{
			{Parts: []geminiPart{{Text: prompt}}},
		},
		GenerationConfig: &geminiGenerationConfig{
			Temperature:     b.cfg.Temperature,
			MaxOutputTokens: b.cfg.MaxTokens,
		},
	}

	// The key travels as a query parameter on this API, so it is escaped.
	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s",
		strings.TrimSuffix(b.cfg.BaseURL, "/"), b.cfg.Model, url.QueryEscape(b.cfg.APIKey))

	var resp geminiResponse
	if err := b.doJSON(ctx, http.MethodPost, endpoint, reqBody, &resp, nil); err != nil {
		return "", err
	}

	if resp.Error != nil {
		return "", &ProviderError{
			Provider: b.name,
			Message:  resp.Error.Message,
		}
	}

	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", &ParseError{
			Provider: b.name,
			Cause:    errors.New("no candidates returned"),
		}
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}
	return sb.String(), nil
}
