//nolint:revive // "api" package name is intentionally concise for this layer.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ashureev/pm-advisor/internal/advisor"
	"github.com/ashureev/pm-advisor/internal/config"
	"github.com/ashureev/pm-advisor/internal/llm"
	"github.com/ashureev/pm-advisor/internal/middleware"
	"github.com/ashureev/pm-advisor/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticDocs struct{}

func (staticDocs) Fetch(_ context.Context, url string) string { return "notes at " + url }

type testServer struct {
	router http.Handler
	mock   *llm.MockClient
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo, err := store.NewFileStore(t.TempDir(), logger)
	require.NoError(t, err)

	mock := llm.NewMock()
	svc := advisor.New(advisor.Deps{
		LLM:       mock,
		Profiles:  llm.Profiles{Advice: llm.GenerationConfig{Model: "advice"}, Agent: llm.GenerationConfig{Model: "agent", MaxTokens: 100}},
		Store:     repo,
		Documents: staticDocs{},
		Logger:    logger,
	})

	r := chi.NewRouter()
	r.Use(middleware.BodyLimit(1 << 16))
	NewHandler(svc, logger).RegisterRoutes(r)
	NewHealthHandler(repo).RegisterHealth(r)

	return &testServer{router: r, mock: mock}
}

func (ts *testServer) do(t *testing.T, method, path, body string) (int, map[string]interface{}) {
	t.Helper()

	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rdr)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	return rec.Code, got
}

func TestJSON(t *testing.T) {
	w := httptest.NewRecorder()
	data := map[string]string{"foo": "bar"}

	JSON(w, http.StatusOK, data)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Expected JSON content type, got %q", ct)
	}

	var got map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if got["foo"] != "bar" {
		t.Errorf("Expected foo=bar, got %v", got["foo"])
	}
}

func TestErrorUsesDetailField(t *testing.T) {
	w := httptest.NewRecorder()
	Error(w, http.StatusUnprocessableEntity, "field required: task_id")

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.JSONEq(t, `{"detail":"field required: task_id"}`, w.Body.String())
}

func TestInitialAdvice(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	ts.mock.SetReply("initial_assignment", "Rebalance the backend work.")

	code, body := ts.do(t, http.MethodPost, "/task-assignment/initial-advice", `{
		"task_description": "Todo app",
		"group_name": "G1",
		"task_name": "T1",
		"assignments": [{"user_id": 1, "user_name": "Ann", "description": "UI"}]
	}`)

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Rebalance the backend work.", body["advice"])
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, "G1_T1", body["conversation_id"])
}

func TestAssignmentValidation(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	tests := []struct {
		name       string
		path       string
		body       string
		wantDetail string
	}{
		{"missing fields", "/task-assignment/initial-advice", `{"group_name": "G"}`, "field required: task_description"},
		{"incomplete assignment", "/task-assignment/initial-advice",
			`{"task_description": "d", "group_name": "g", "task_name": "t", "assignments": [{"user_id": 1}]}`,
			"field required: assignments[0].user_name"},
		{"days since start", "/task-assignment/followup-advice",
			`{"task_description": "d", "group_name": "g", "task_name": "t", "finalized_assignments": []}`,
			"field required: days_since_start"},
		{"project analysis", "/task-assignment/project-analysis", `{"task_description": "d"}`, "field required: project_url"},
		{"malformed json", "/task-assignment/confirmation-advice", `{`, "Invalid JSON body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := ts.do(t, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, http.StatusUnprocessableEntity, code)
			assert.Contains(t, body["detail"], tt.wantDetail)
		})
	}
}

func TestAdviceUpstreamFailure(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	ts.mock.SetError(llm.ErrUnavailable)

	code, body := ts.do(t, http.MethodPost, "/task-assignment/project-analysis",
		`{"project_url": "http://repo", "task_description": "d"}`)
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.True(t, strings.HasPrefix(body["detail"].(string), "Error analyzing project: "))

	code, body = ts.do(t, http.MethodPost, "/task-assignment/followup-advice",
		`{"task_description": "d", "group_name": "g", "task_name": "t", "finalized_assignments": [], "days_since_start": 4}`)
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.True(t, strings.HasPrefix(body["detail"].(string), "Error generating follow-up advice: "))
}

func TestAnalyzeWeeklyProgress(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	ts.mock.SetReply("weekly_analysis", "Solid week.")

	code, body := ts.do(t, http.MethodPost, "/agent/analyze-weekly-progress",
		`{"task_id": 12, "week_no": 3, "meeting_document_url": "http://docs/w3"}`)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, "Solid week.", body["analysis"])
	assert.EqualValues(t, 12, body["task_id"])
	assert.EqualValues(t, 3, body["week_no"])

	prompts := ts.mock.Prompts()
	assert.Contains(t, prompts[len(prompts)-1], "notes at http://docs/w3")
}

func TestAnalyzeWeeklyProgressFailureIsReportedInBody(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	ts.mock.SetError(errors.New("rate limited"))

	code, body := ts.do(t, http.MethodPost, "/agent/analyze-weekly-progress",
		`{"task_id": 1, "week_no": 1, "meeting_document_url": "u", "meeting_document_content": "notes"}`)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "error", body["status"])
	assert.Equal(t, "Analysis failed: rate limited", body["message"])
}

func TestGenerateWeeklyGoal(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	ts.mock.SetReply("first_week_goal", "```json\n{\"goal\": \"Ship login\", \"reason\": \"Assigned\"}\n```")

	code, body := ts.do(t, http.MethodPost, "/weekly-goal/generate",
		`{"task_id": 1, "student_id": 7, "week_no": 1, "task_content": "Build X", "initial_assignments": "- 7: build the login page"}`)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, map[string]interface{}{"goal": "Ship login", "reason": "Assigned"}, body["weekly_goal"])
}

func TestGenerateWeeklyGoalValidation(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	code, body := ts.do(t, http.MethodPost, "/weekly-goal/generate", `{"task_id": 1, "student_id": 7, "week_no": 0}`)
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, "week_no must be >= 1", body["detail"])

	code, body = ts.do(t, http.MethodPost, "/weekly-goal/generate", `{"task_id": 1}`)
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, "field required: student_id; field required: week_no", body["detail"])
}

func TestGenerateWeeklyGoalAbsorbsModelFailure(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	ts.mock.SetError(errors.New("down"))

	code, body := ts.do(t, http.MethodPost, "/weekly-goal/generate", `{"task_id": 1, "student_id": 2, "week_no": 2}`)
	assert.Equal(t, http.StatusOK, code)
	goal := body["weekly_goal"].(map[string]interface{})
	assert.Equal(t, "Error generating goal: down", goal["goal"])
}

func TestChatUsesSuppliedContext(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	ts.mock.SetReply("conversation", "Split the API work.")

	code, body := ts.do(t, http.MethodPost, "/conversation/chat", `{
		"user_message": "How should we split work?",
		"task_id": 5, "group_id": 6,
		"task_name": "Todo",
		"conversation_history": [{"sender": "USER", "content": "hi"}]
	}`)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, map[string]interface{}{"status": "success", "response": "Split the API work."}, body)

	prompts := ts.mock.Prompts()
	p := prompts[len(prompts)-1]
	assert.Contains(t, p, "Project: Todo\nDescription: \nTeam: \nTask ID: 5, Group ID: 6")
	assert.Contains(t, p, "USER: hi")

	code, _ = ts.do(t, http.MethodGet, "/conversation/history?task_id=5&group_id=6", "")
	assert.Equal(t, http.StatusOK, code)
}

func TestConversationLifecycle(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	ts.mock.SetReply("conversation", "Happy to help.")

	code, body := ts.do(t, http.MethodPost, "/conversation/send-message",
		`{"task_id": 1, "group_id": 2, "message": "Hello", "sender_id": 9}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Happy to help.", body["response"])

	code, body = ts.do(t, http.MethodPost, "/conversation/add-agent-message?task_id=1&group_id=2&content=Standup+at+10", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Agent message added successfully", body["message"])

	code, body = ts.do(t, http.MethodPost, "/conversation/add-agent-message",
		`{"task_id": 1, "group_id": 2, "content": "From body"}`)
	require.Equal(t, http.StatusOK, code)

	code, body = ts.do(t, http.MethodGet, "/conversation/history?task_id=1&group_id=2", "")
	require.Equal(t, http.StatusOK, code)
	messages := body["messages"].([]interface{})
	require.Len(t, messages, 4)
	first := messages[0].(map[string]interface{})
	assert.EqualValues(t, 1, first["message_id"])
	assert.Equal(t, "USER", first["sender_type"])
	assert.EqualValues(t, 9, first["sender_id"])
	second := messages[1].(map[string]interface{})
	assert.Equal(t, "AGENT", second["sender_type"])
	assert.Nil(t, second["sender_id"])
	assert.Equal(t, "Standup at 10", messages[2].(map[string]interface{})["content"])

	code, body = ts.do(t, http.MethodGet, "/conversation/summary?task_id=1&group_id=2", "")
	require.Equal(t, http.StatusOK, code)
	summary := body["summary"].(map[string]interface{})
	assert.Equal(t, "2_1", summary["conversation_id"])
	assert.EqualValues(t, 4, summary["total_messages"])
	assert.EqualValues(t, 1, summary["user_messages"])
	assert.EqualValues(t, 3, summary["agent_messages"])

	for i := 0; i < 2; i++ {
		code, body = ts.do(t, http.MethodDelete, "/conversation/clear?task_id=1&group_id=2", "")
		require.Equal(t, http.StatusOK, code)
		assert.Equal(t, "Conversation cleared successfully", body["message"])
	}

	_, body = ts.do(t, http.MethodGet, "/conversation/history?task_id=1&group_id=2", "")
	assert.Empty(t, body["messages"])
}

func TestConversationQueryValidation(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	code, body := ts.do(t, http.MethodGet, "/conversation/history?task_id=abc&group_id=2", "")
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, "task_id must be an integer", body["detail"])

	code, body = ts.do(t, http.MethodPost, "/conversation/add-agent-message?task_id=1&group_id=2", "")
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, "field required: content", body["detail"])

	code, body = ts.do(t, http.MethodPost, "/conversation/send-message", `{"task_id": 1, "group_id": 2, "message": "x"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, "field required: sender_id", body["detail"])
}

func TestBodyTooLarge(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	big := `{"user_message": "` + strings.Repeat("x", 1<<17) + `", "task_id": 1, "group_id": 1}`
	code, body := ts.do(t, http.MethodPost, "/conversation/chat", big)
	assert.Equal(t, http.StatusRequestEntityTooLarge, code)
	assert.Equal(t, "Request body too large", body["detail"])
}

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("disk gone") }

func TestReadiness(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	code, body := ts.do(t, http.MethodGet, "/health/ready", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "healthy", body["status"])

	r := chi.NewRouter()
	NewHealthHandler(failingPinger{}).RegisterHealth(r)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"conversation_store":"unreachable"`)
}

func TestDefaultConfigLeavesSingleCallerUnthrottled(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "mock")
	t.Setenv("RATE_LIMIT_REQUESTS", "")

	cfg, err := config.Load()
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo, err := store.NewFileStore(t.TempDir(), logger)
	require.NoError(t, err)
	mock := llm.NewMock()
	mock.SetReply("subsequent_week_goal", "GOAL: keep going REASON: on track")
	svc := advisor.New(advisor.Deps{LLM: mock, Store: repo, Documents: staticDocs{}, Logger: logger})

	h := NewHandler(svc, logger)
	if cfg.RateLimit.Enabled() {
		h.SetRateLimit(middleware.NewRateLimiter(context.Background(), cfg.RateLimit.Requests, cfg.RateLimit.Window).Middleware)
	}
	r := chi.NewRouter()
	h.RegisterRoutes(r)

	codes := map[int]int{}
	for i := 0; i < 80; i++ {
		req := httptest.NewRequest(http.MethodPost, "/weekly-goal/generate",
			strings.NewReader(`{"task_id": 1, "student_id": 2, "week_no": 3}`))
		req.RemoteAddr = "10.0.0.5:41000"
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		codes[rec.Code]++
	}
	assert.Equal(t, map[int]int{http.StatusOK: 80}, codes)
}

func TestRateLimitAppliesToModelRoutesOnly(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo, err := store.NewFileStore(t.TempDir(), logger)
	require.NoError(t, err)
	svc := advisor.New(advisor.Deps{LLM: llm.NewMock(), Store: repo, Documents: staticDocs{}, Logger: logger})

	h := NewHandler(svc, logger)
	h.SetRateLimit(middleware.NewRateLimiter(ctx, 1, time.Minute).Middleware)
	r := chi.NewRouter()
	h.RegisterRoutes(r)

	send := func(method, path, body string) int {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		req.RemoteAddr = "192.0.2.1:1234"
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec.Code
	}

	chat := `{"user_message": "hi", "task_id": 1, "group_id": 1}`
	assert.Equal(t, http.StatusOK, send(http.MethodPost, "/conversation/chat", chat))
	assert.Equal(t, http.StatusTooManyRequests, send(http.MethodPost, "/conversation/chat", chat))
	assert.Equal(t, http.StatusOK, send(http.MethodGet, "/conversation/history?task_id=1&group_id=1", ""))
}
