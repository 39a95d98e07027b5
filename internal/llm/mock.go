package llm

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// MockClient returns canned completions for local development and tests.
// Replies are keyed by purpose; unknown purposes get a generic echo.
type MockClient struct {
	mu      sync.Mutex
	replies map[string]string
	err     error
	prompts []string
}

// NewMock creates a MockClient with a fenced JSON weekly-goal reply and a
// generic reply for everything else.
func NewMock() *MockClient {
	return &MockClient{replies: map[string]string{
		"first_week_goal":      mockGoalReply,
		"subsequent_week_goal": mockGoalReply,
	}}
}

const mockGoalReply = "```json\n{\n\t\"goal\": \"Complete the assigned setup work and share progress with the team.\",\n\t\"reason\": \"Generated by the mock provider.\"\n}\n```"

// SetReply fixes the completion returned for purpose.
func (m *MockClient) SetReply(purpose, reply string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replies[purpose] = reply
}

// SetError makes every subsequent call fail with err. A nil err restores replies.
func (m *MockClient) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Prompts returns every prompt received so far.
func (m *MockClient) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.prompts...)
}

func (m *MockClient) Complete(ctx context.Context, prompt string, gen GenerationConfig) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.prompts = append(m.prompts, prompt)
	if m.err != nil {
		return "", m.err
	}
	if reply, ok := m.replies[gen.Purpose]; ok {
		return reply, nil
	}
	first := strings.TrimSpace(prompt)
	if i := strings.IndexByte(first, '\n'); i >= 0 {
		first = first[:i]
	}
	return fmt.Sprintf("Mock %s response (%s): %s", gen.Purpose, gen.Model, first), nil
}
