package llm

import (
	"context"
	"sync"
)

// defaultMockReply is the verdict returned when no replies are scripted.
const defaultMockReply = `{"compliance_status": "compliant", "evaluation_summary": "Mock backend approved the input.", "triggered_policies": []}`

// MockBackend is a scripted Backend for tests and offline evaluation. Replies
// are served in order and cycle once exhausted; every prompt is recorded.
type MockBackend struct {
	mu      sync.Mutex
	replies []string
	next    int
	err     error
	prompts []string
}

// NewMockBackend creates a mock backend serving the given replies. With no
// replies it always returns a compliant verdict.
func NewMockBackend(replies ...string) *MockBackend {
	return &MockBackend{replies: replies}
}

// SetError makes every subsequent Complete call fail with err. Pass nil to
// restore scripted replies.
func (m *MockBackend) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Prompts returns a copy of every prompt received so far.
func (m *MockBackend) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.prompts...)
}

// Name returns the provider name.
func (m *MockBackend) Name() string {
	return "mock"
}

// Complete records the prompt and returns the next scripted reply.
func (m *MockBackend) Complete(_ context.Context, prompt string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.prompts = append(m.prompts, prompt)

	if m.err != nil {
		return "", m.err
	}
	if len(m.replies) == 0 {
		return defaultMockReply, nil
	}

	reply := m.replies[m.next%len(m.replies)]
	m.next++
	return reply, nil
}
