package llm

import (
	"context"
	"strings"
	"time"
)

// Backend produces one opaque text response for one prompt. Implementations
// must be safe for concurrent use.
type Backend interface {
	// Name returns the provider name for logs, metrics, and audit records.
	Name() string

	// Complete sends the prompt and returns the model's raw text response.
	// The response may be fenced, malformed, or otherwise off-contract; the
	// caller is responsible for interpreting it.
	Complete(ctx context.Context, prompt string) (string, error)
}

// Config holds provider-neutral backend settings. Credentials arrive here as
// explicit values, never read from ambient state by the adapters themselves.
type Config struct {
	Provider    string
	Model       string
	BaseURL     string
	APIKey      string
	Timeout     time.Duration
	MaxRetries  int
	Temperature float64
	MaxTokens   int
}

// New builds the configured backend.
func New(cfg Config) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "openai":
		return NewOpenAIBackend(cfg)
	case "gemini":
		return NewGeminiBackend(cfg)
	case "anthropic":
		return NewAnthropicBackend(cfg)
	case "mock", "":
		return NewMockBackend(), nil
	default:
		return nil, &ConfigError{
			Provider: cfg.Provider,
			Field:    "provider",
			Message:  "unknown provider (supported: openai, gemini, anthropic, mock)",
		}
	}
}
