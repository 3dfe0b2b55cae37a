package e2e

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// defaultVerdict is served when no reply has been scripted.
const defaultVerdict = `{"compliance_status": "compliant", "evaluation_summary": "No issues found.", "triggered_policies": []}`

// upstreamReply is one scripted response. A zero status means 200 with the
// verdict wrapped in the provider envelope of whichever route was hit.
type upstreamReply struct {
	status     int
	verdict    string
	retryAfter string
}

// MockProviderUpstream simulates the provider HTTP APIs the guardrail
// backends talk to. One server answers all three wire formats, routed by
// path, so the same scripted verdicts can drive any configured provider.
type MockProviderUpstream struct {
	t      *testing.T
	server *httptest.Server

	mu       sync.Mutex
	replies  []upstreamReply
	prompts  []string
	requests int
}

// NewMockProviderUpstream creates a mock provider server.
func NewMockProviderUpstream(t *testing.T) *MockProviderUpstream {
	t.Helper()

	mock := &MockProviderUpstream{t: t}
	mock.server = httptest.NewServer(http.HandlerFunc(mock.handleRequest))
	t.Cleanup(mock.server.Close)
	return mock
}

// URL returns the server URL, suitable as a backend BaseURL.
func (m *MockProviderUpstream) URL() string {
	return m.server.URL
}

// EnqueueVerdict scripts a successful completion whose text is the given
// enforcer verdict.
func (m *MockProviderUpstream) EnqueueVerdict(verdict string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replies = append(m.replies, upstreamReply{verdict: verdict})
}

// EnqueueError scripts an HTTP error response.
func (m *MockProviderUpstream) EnqueueError(status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replies = append(m.replies, upstreamReply{status: status})
}

// EnqueueRateLimited scripts a 429 that invites an immediate retry.
func (m *MockProviderUpstream) EnqueueRateLimited() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replies = append(m.replies, upstreamReply{status: http.StatusTooManyRequests, retryAfter: "0"})
}

// Prompts returns the prompt text extracted from each request so far.
func (m *MockProviderUpstream) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.prompts...)
}

// RequestCount returns how many completion requests the server has seen.
func (m *MockProviderUpstream) RequestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requests
}

func (m *MockProviderUpstream) nextReply() upstreamReply {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.replies) == 0 {
		return upstreamReply{verdict: defaultVerdict}
	}
	reply := m.replies[0]
	m.replies = m.replies[1:]
	return reply
}

func (m *MockProviderUpstream) handleRequest(w http.ResponseWriter, r *http.Request) {
	var body map[string]interface{}
	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil && err != io.EOF {
			m.t.Logf("failed to decode request body: %v", err)
		}
	}

	switch {
	case strings.HasSuffix(r.URL.Path, "/chat/completions"):
		m.serve(w, body, extractOpenAIPrompt, openaiEnvelope)
	case strings.HasSuffix(r.URL.Path, "/v1/messages"):
		m.serve(w, body, extractAnthropicPrompt, anthropicEnvelope)
	case strings.HasPrefix(r.URL.Path, "/v1beta/models/") && strings.HasSuffix(r.URL.Path, ":generateContent"):
		m.serve(w, body, extractGeminiPrompt, geminiEnvelope)
	default:
		http.Error(w, "Not Found", http.StatusNotFound)
	}
}

func (m *MockProviderUpstream) serve(w http.ResponseWriter, body map[string]interface{}, extract func(map[string]interface{}) string, envelope func(string) map[string]interface{}) {
	m.mu.Lock()
	m.requests++
	m.prompts = append(m.prompts, extract(body))
	m.mu.Unlock()

	reply := m.nextReply()

	w.Header().Set("Content-Type", "application/json")
	if reply.status != 0 && reply.status != http.StatusOK {
		if reply.retryAfter != "" {
			w.Header().Set("Retry-After", reply.retryAfter)
		}
		w.WriteHeader(reply.status)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"error": map[string]interface{}{
				"message": http.StatusText(reply.status),
				"type":    "api_error",
			},
		})
		return
	}

	_ = json.NewEncoder(w).Encode(envelope(reply.verdict))
}

// extractOpenAIPrompt pulls the last message content from an OpenAI-style
// chat completion request.
func extractOpenAIPrompt(body map[string]interface{}) string {
	messages, ok := body["messages"].([]interface{})
	if !ok || len(messages) == 0 {
		return ""
	}
	last, ok := messages[len(messages)-1].(map[string]interface{})
	if !ok {
		return ""
	}
	content, _ := last["content"].(string)
	return content
}

func extractAnthropicPrompt(body map[string]interface{}) string {
	// Anthropic requests carry the same messages shape with string content.
	return extractOpenAIPrompt(body)
}

// extractGeminiPrompt pulls the first part text from a generateContent
// request.
func extractGeminiPrompt(body map[string]interface{}) string {
	contents, ok := body["contents"].([]interface{})
	if !ok || len(contents) == 0 {
		return ""
	}
	first, ok := contents[0].(map[string]interface{})
	if !ok {
		return ""
	}
	parts, ok := first["parts"].([]interface{})
	if !ok || len(parts) == 0 {
		return ""
	}
	part, ok := parts[0].(map[string]interface{})
	if !ok {
		return ""
	}
	text, _ := part["text"].(string)
	return text
}

func openaiEnvelope(verdict string) map[string]interface{} {
	return map[string]interface{}{
		"id":     "chatcmpl-mock",
		"object": "chat.completion",
		"model":  "gpt-4o-mini",
		"choices": []map[string]interface{}{
			{
				"index": 0,
				"message": map[string]interface{}{
					"role":    "assistant",
					"content": verdict,
				},
				"finish_reason": "stop",
			},
		},
		"usage": map[string]interface{}{
			"prompt_tokens":     1000,
			"completion_tokens": 40,
			"total_tokens":      1040,
		},
	}
}

func anthropicEnvelope(verdict string) map[string]interface{} {
	return map[string]interface{}{
		"id":   "msg_mock",
		"type": "message",
		"role": "assistant",
		"content": []map[string]interface{}{
			{
				"type": "text",
				"text": verdict,
			},
		},
		"model":       "claude-3-5-haiku-latest",
		"stop_reason": "end_turn",
	}
}

func geminiEnvelope(verdict string) map[string]interface{} {
	return map[string]interface{}{
		"candidates": []map[string]interface{}{
			{
				"content": map[string]interface{}{
					"role": "model",
					"parts": []map[string]interface{}{
						{"text": verdict},
					},
				},
				"finishReason": "STOP",
			},
		},
	}
}
