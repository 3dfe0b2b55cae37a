package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSelectsProvider(t *testing.T) {
	tests := []struct {
		name     string
		cfg      Config
		wantName string
	}{
		{name: "openai", cfg: Config{Provider: "openai", APIKey: "k"}, wantName: "openai"},
		{name: "gemini", cfg: Config{Provider: "gemini", APIKey: "k"}, wantName: "gemini"},
		{name: "anthropic", cfg: Config{Provider: "anthropic", APIKey: "k"}, wantName: "anthropic"},
		{name: "mock", cfg: Config{Provider: "mock"}, wantName: "mock"},
		{name: "empty defaults to mock", cfg: Config{}, wantName: "mock"},
		{name: "case and spacing ignored", cfg: Config{Provider: "  OpenAI ", APIKey: "k"}, wantName: "openai"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend, err := New(tt.cfg)
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, backend.Name())
		})
	}
}

func TestNewUnknownProvider(t *testing.T) {
	_, err := New(Config{Provider: "watson"})
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "provider", cfgErr.Field)
	assert.Equal(t, "watson", cfgErr.Provider)
}

func TestNewMissingKeyPropagates(t *testing.T) {
	for _, provider := range []string{"openai", "gemini", "anthropic"} {
		t.Run(provider, func(t *testing.T) {
			_, err := New(Config{Provider: provider})
			var cfgErr *ConfigError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, "api_key", cfgErr.Field)
		})
	}
}

func TestMockBackendDefaultReply(t *testing.T) {
	mock := NewMockBackend()

	text, err := mock.Complete(context.Background(), "anything")
	require.NoError(t, err)
	assert.Contains(t, text, `"compliance_status": "compliant"`)
}

func TestMockBackendCyclesReplies(t *testing.T) {
	mock := NewMockBackend("first", "second")

	for i, want := range []string{"first", "second", "first"} {
		text, err := mock.Complete(context.Background(), "p")
		require.NoError(t, err, "call %d", i)
		assert.Equal(t, want, text, "call %d", i)
	}
}

func TestMockBackendScriptedError(t *testing.T) {
	mock := NewMockBackend("unused")
	boom := errors.New("backend down")
	mock.SetError(boom)

	_, err := mock.Complete(context.Background(), "p")
	require.ErrorIs(t, err, boom)

	mock.SetError(nil)
	text, err := mock.Complete(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, "unused", text)
}

func TestMockBackendRecordsPrompts(t *testing.T) {
	mock := NewMockBackend()

	_, _ = mock.Complete(context.Background(), "one")
	_, _ = mock.Complete(context.Background(), "two")

	prompts := mock.Prompts()
	require.Equal(t, []string{"one", "two"}, prompts)

	// The returned slice is a copy.
	prompts[0] = "mutated"
	assert.Equal(t, []string{"one", "two"}, mock.Prompts())
}
