package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAIRequestShape(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody chatCompletionRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"verdict"}}]}`))
	}))
	defer srv.Close()

	backend, err := NewOpenAIBackend(Config{
		APIKey:      "sk-test",
		BaseURL:     srv.URL,
		Model:       "gpt-4o-mini",
		Temperature: 0.1,
		MaxTokens:   128,
	})
	require.NoError(t, err)

	text, err := backend.Complete(context.Background(), "screen this")
	require.NoError(t, err)
	assert.Equal(t, "verdict", text)

	assert.Equal(t, "/chat/completions", gotPath)
	assert.Equal(t, "Bearer sk-test", gotAuth)
	assert.Equal(t, "gpt-4o-mini", gotBody.Model)
	require.Len(t, gotBody.Messages, 1)
	assert.Equal(t, "user", gotBody.Messages[0].Role)
	assert.Equal(t, "screen this", gotBody.Messages[0].Content)
	assert.Equal(t, 128, gotBody.MaxTokens)
	require.NotNil(t, gotBody.ResponseFormat)
	assert.Equal(t, "json_object", gotBody.ResponseFormat.Type)
}

func TestOpenAIEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	backend, err := NewOpenAIBackend(Config{APIKey: "sk-test", BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = backend.Complete(context.Background(), "screen this")
	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
}

func TestOpenAIRequiresAPIKey(t *testing.T) {
	_, err := NewOpenAIBackend(Config{})
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "api_key", cfgErr.Field)
}

func TestGeminiRequestShape(t *testing.T) {
	var gotPath, gotKey string
	var gotBody geminiRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.URL.Query().Get("key")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"{\"compliance"},{"text":"_status\":\"compliant\"}"}]}}]}`))
	}))
	defer srv.Close()

	backend, err := NewGeminiBackend(Config{
		APIKey:    "g/key+special",
		BaseURL:   srv.URL,
		MaxTokens: 256,
	})
	require.NoError(t, err)

	text, err := backend.Complete(context.Background(), "screen this")
	require.NoError(t, err)
	assert.Equal(t, `{"compliance_status":"compliant"}`, text, "candidate parts must concatenate")

	assert.Equal(t, "/v1beta/models/gemini-2.0-flash:generateContent", gotPath)
	assert.Equal(t, "g/key+special", gotKey, "key must survive query escaping")
	require.Len(t, gotBody.Contents, 1)
	require.Len(t, gotBody.Contents[0].Parts, 1)
	assert.Equal(t, "screen this", gotBody.Contents[0].Parts[0].Text)
	require.NotNil(t, gotBody.GenerationConfig)
	assert.Equal(t, 256, gotBody.GenerationConfig.MaxOutputTokens)
}

func TestGeminiAPIErrorObject(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"error":{"message":"quota exhausted"}}`))
	}))
	defer srv.Close()

	backend, err := NewGeminiBackend(Config{APIKey: "k", BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = backend.Complete(context.Background(), "screen this")
	var provErr *ProviderError
	require.ErrorAs(t, err, &provErr)
	assert.Contains(t, provErr.Message, "quota exhausted")
}

func TestGeminiNoCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"candidates":[]}`))
	}))
	defer srv.Close()

	backend, err := NewGeminiBackend(Config{APIKey: "k", BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = backend.Complete(context.Background(), "screen this")
	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
}

func TestAnthropicRequestShape(t *testing.T) {
	var gotPath, gotKey, gotVersion string
	var gotBody anthropicRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("x-api-key")
		gotVersion = r.Header.Get("anthropic-version")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"part one "},{"type":"tool_use","text":"skipped"},{"type":"text","text":"part two"}]}`))
	}))
	defer srv.Close()

	backend, err := NewAnthropicBackend(Config{
		APIKey:  "ak-test",
		BaseURL: srv.URL,
	})
	require.NoError(t, err)

	text, err := backend.Complete(context.Background(), "screen this")
	require.NoError(t, err)
	assert.Equal(t, "part one part two", text, "only text blocks must be joined")

	assert.Equal(t, "/v1/messages", gotPath)
	assert.Equal(t, "ak-test", gotKey)
	assert.Equal(t, anthropicVersion, gotVersion)
	assert.Equal(t, "claude-3-5-haiku-latest", gotBody.Model)
	assert.Equal(t, 512, gotBody.MaxTokens, "max_tokens is mandatory and must default")
	require.Len(t, gotBody.Messages, 1)
	assert.Equal(t, "user", gotBody.Messages[0].Role)
}

func TestAnthropicNoTextContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"content":[]}`))
	}))
	defer srv.Close()

	backend, err := NewAnthropicBackend(Config{APIKey: "ak", BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = backend.Complete(context.Background(), "screen this")
	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
}
