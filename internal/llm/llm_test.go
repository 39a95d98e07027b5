package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/ashureev/pm-advisor/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

type recordingObserver struct {
	mu     sync.Mutex
	events []CallEvent
}

func (r *recordingObserver) OnCallComplete(e CallEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func TestOpenAIComplete(t *testing.T) {
	t.Parallel()

	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"  advice text\n"}}]}`))
	}))
	defer srv.Close()

	c := NewOpenAI("sk-test", srv.URL+"/v1/", 5*time.Second)
	text, err := c.Complete(context.Background(), "hello", GenerationConfig{Model: "gpt-4o-mini", Temperature: 0.7, MaxTokens: 2000})
	require.NoError(t, err)

	assert.Equal(t, "  advice text\n", text, "completion is returned verbatim")
	assert.Equal(t, "gpt-4o-mini", got.Model)
	assert.InDelta(t, 0.7, got.Temperature, 1e-9)
	assert.Equal(t, 2000, got.MaxTokens)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, chatMessage{Role: "user", Content: "hello"}, got.Messages[0])
}

func TestOpenAIErrors(t *testing.T) {
	t.Parallel()

	t.Run("api error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":{"message":"Incorrect API key provided","type":"invalid_request_error"}}`))
		}))
		defer srv.Close()

		_, err := NewOpenAI("bad", srv.URL, time.Second).Complete(context.Background(), "x", GenerationConfig{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Incorrect API key provided")
	})

	t.Run("no choices", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"choices":[]}`))
		}))
		defer srv.Close()

		_, err := NewOpenAI("k", srv.URL, time.Second).Complete(context.Background(), "x", GenerationConfig{})
		require.ErrorIs(t, err, ErrEmptyResponse)
	})

	t.Run("empty content is returned verbatim", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":""}}]}`))
		}))
		defer srv.Close()

		got, err := NewOpenAI("k", srv.URL, time.Second).Complete(context.Background(), "x", GenerationConfig{})
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("unreachable", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		_, err := NewOpenAI("k", url, time.Second).Complete(context.Background(), "x", GenerationConfig{})
		require.ErrorIs(t, err, ErrUnavailable)
	})

	t.Run("timeout", func(t *testing.T) {
		release := make(chan struct{})
		srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
			select {
			case <-release:
			case <-r.Context().Done():
			}
		}))
		defer srv.Close()
		defer close(release)

		_, err := NewOpenAI("k", srv.URL, 50*time.Millisecond).Complete(context.Background(), "x", GenerationConfig{})
		require.ErrorIs(t, err, ErrTimeout)
	})
}

func TestGeminiText(t *testing.T) {
	t.Parallel()

	_, err := geminiText(nil)
	require.ErrorIs(t, err, ErrEmptyResponse)

	_, err = geminiText(&genai.GenerateContentResponse{})
	require.ErrorIs(t, err, ErrEmptyResponse)

	empty := &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{Content: genai.NewContentFromText("", genai.RoleModel)}}}
	got, err := geminiText(empty)
	require.NoError(t, err)
	assert.Empty(t, got)

	full := &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{Content: genai.NewContentFromText("  plan ahead\n", genai.RoleModel)}}}
	got, err = geminiText(full)
	require.NoError(t, err)
	assert.Equal(t, "  plan ahead\n", got)
}

func TestObserveReportsCalls(t *testing.T) {
	t.Parallel()

	mock := NewMock()
	obs := &recordingObserver{}
	c := Observe(mock, "mock", obs)

	_, err := c.Complete(context.Background(), "prompt", GenerationConfig{Purpose: "conversation", Model: "m"})
	require.NoError(t, err)

	mock.SetError(ErrUnavailable)
	_, err = c.Complete(context.Background(), "prompt", GenerationConfig{Purpose: "conversation", Model: "m"})
	require.ErrorIs(t, err, ErrUnavailable)

	require.Len(t, obs.events, 2)
	assert.True(t, obs.events[0].Success)
	assert.Equal(t, "conversation", obs.events[0].Purpose)
	assert.Equal(t, "mock", obs.events[0].Provider)
	assert.Equal(t, 6, obs.events[0].PromptChars)
	assert.False(t, obs.events[1].Success)
	assert.Equal(t, "unavailable", obs.events[1].ErrorCode)
}

func TestMockReplies(t *testing.T) {
	t.Parallel()

	m := NewMock()
	text, err := m.Complete(context.Background(), "\nFirst line\nsecond", GenerationConfig{Purpose: "project_analysis", Model: "x"})
	require.NoError(t, err)
	assert.Equal(t, "Mock project_analysis response (x): First line", text)

	text, err = m.Complete(context.Background(), "p", GenerationConfig{Purpose: "first_week_goal"})
	require.NoError(t, err)
	assert.Contains(t, text, "```json")

	m.SetReply("conversation", "hi")
	text, err = m.Complete(context.Background(), "p", GenerationConfig{Purpose: "conversation"})
	require.NoError(t, err)
	assert.Equal(t, "hi", text)
	assert.Len(t, m.Prompts(), 3)
}

func TestNew(t *testing.T) {
	t.Parallel()

	c, err := New(context.Background(), config.LLMConfig{Provider: "mock"}, nil)
	require.NoError(t, err)
	assert.NotNil(t, c)

	_, err = New(context.Background(), config.LLMConfig{Provider: "llama"}, nil)
	require.ErrorIs(t, err, ErrUnknownProvider)
}

func TestProfilesFromConfig(t *testing.T) {
	t.Parallel()

	p := ProfilesFromConfig(config.LLMConfig{AdviceModel: "a", AgentModel: "b", Temperature: 0.7, MaxTokens: 2000})
	assert.Equal(t, GenerationConfig{Model: "a", Temperature: 0.7}, p.Advice)
	assert.Equal(t, GenerationConfig{Model: "b", Temperature: 0.7, MaxTokens: 2000}, p.Agent)
}

func TestErrorCode(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "", errorCode(nil))
	assert.Equal(t, "timeout", errorCode(ErrTimeout))
	assert.Equal(t, "empty_response", errorCode(ErrEmptyResponse))
	assert.Equal(t, "canceled", errorCode(context.Canceled))
	assert.Equal(t, "provider_error", errorCode(errors.New("boom")))
}
