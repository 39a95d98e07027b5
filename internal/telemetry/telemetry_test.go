package telemetry

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ashureev/pm-advisor/internal/domain"
	"github.com/ashureev/pm-advisor/internal/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ llm.Observer = (*Metrics)(nil)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}

func TestMetricsExposeRecordedValues(t *testing.T) {
	ctx := context.Background()
	m, err := New(ctx, "telemetry-test")
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Shutdown(context.Background()) })

	m.OnCallComplete(llm.CallEvent{
		Purpose:     "conversation",
		Provider:    "mock",
		Model:       "agent-model",
		Latency:     150 * time.Millisecond,
		PromptChars: 1200,
		Success:     true,
	})
	m.OnCallComplete(llm.CallEvent{
		Purpose:   "weekly_analysis",
		Provider:  "mock",
		Model:     "agent-model",
		Success:   false,
		ErrorCode: "timeout",
	})
	m.GoalRecovered(ctx, "markers")
	m.MessageAppended(ctx, domain.SenderUser)
	m.MessageAppended(ctx, domain.SenderAgent)

	body := scrape(t, m)
	assert.Contains(t, body, "pm_advisor_llm_calls_total")
	assert.Contains(t, body, `outcome="success"`)
	assert.Contains(t, body, `outcome="timeout"`)
	assert.Contains(t, body, "pm_advisor_llm_call_duration_seconds")
	assert.Contains(t, body, `stage="markers"`)
	assert.Contains(t, body, `sender_type="AGENT"`)
	assert.Contains(t, body, `service_name="telemetry-test"`)
}

func TestNewDefaultsServiceName(t *testing.T) {
	m, err := New(context.Background(), "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Shutdown(context.Background()) })

	assert.Contains(t, scrape(t, m), `service_name="pm-advisor"`)
}
