package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_New(t *testing.T) {
	m := New()
	assert.NotNil(t, m.LLMRequestsTotal)
	assert.NotNil(t, m.LLMRetriesTotal)
	assert.NotNil(t, m.TransitionsTotal)
	assert.NotNil(t, m.AgentDuration)
	assert.NotNil(t, m.ErrorsTotal)
	assert.NotNil(t, m.Registry())
}

func TestMetrics_RecordLLMRequest(t *testing.T) {
	m := New()
	m.RecordLLMRequest("Backend Developer", "ok")
	m.RecordLLMRequest("Backend Developer", "ok")
	m.RecordLLMRequest("Project Manager", "fatal")

	body := getMetricsBody(t, m)
	assert.Contains(t, body, `autodev_llm_requests_total{agent="Backend Developer",outcome="ok"} 2`)
	assert.Contains(t, body, `autodev_llm_requests_total{agent="Project Manager",outcome="fatal"} 1`)
}

func TestMetrics_RecordTransition(t *testing.T) {
	m := New()
	m.RecordTransition("Backend Developer", "Discovery", "Working")

	body := getMetricsBody(t, m)
	assert.Contains(t, body, `autodev_agent_transitions_total{agent="Backend Developer",from="Discovery",to="Working"} 1`)
}

func TestMetrics_RecordErrorAndRetry(t *testing.T) {
	m := New()
	m.RecordError("task", "gateway_transport")
	m.RecordRetry("Solution Architect")
	m.RecordRun("failed")

	body := getMetricsBody(t, m)
	assert.Contains(t, body, `autodev_errors_total{module="task",type="gateway_transport"} 1`)
	assert.Contains(t, body, `autodev_llm_retries_total{agent="Solution Architect"} 1`)
	assert.Contains(t, body, `autodev_runs_total{status="failed"} 1`)
}

func TestMetrics_ObserveAgentDuration(t *testing.T) {
	m := New()
	m.ObserveAgentDuration("Backend Developer", 3.2)

	body := getMetricsBody(t, m)
	assert.Contains(t, body, `autodev_agent_duration_seconds_count{agent="Backend Developer"} 1`)
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordLLMRequest("a", "ok")
		m.RecordRetry("a")
		m.RecordTransition("a", "b", "c")
		m.ObserveAgentDuration("a", 1)
		m.RecordError("a", "b")
		m.RecordRun("ok")
	})
}

func getMetricsBody(t *testing.T, m *Metrics) string {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	body, _ := io.ReadAll(rr.Body)
	return strings.TrimSpace(string(body))
}
