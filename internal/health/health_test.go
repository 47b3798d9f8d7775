package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/p-blackswan/autodev/internal/agent"
)

func TestLivenessHandler(t *testing.T) {
	handler := LivenessHandler()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "ok")
}

func TestChecker_OneDown(t *testing.T) {
	c := NewChecker(zerolog.Nop())
	c.Register("store", func(ctx context.Context) Status { return StatusOK })
	c.Register("template", func(ctx context.Context) Status { return StatusDown })

	assert.False(t, c.IsReady(context.Background()))
}

func TestChecker_Degraded_StillReady(t *testing.T) {
	c := NewChecker(zerolog.Nop())
	c.Register("store", func(ctx context.Context) Status { return StatusDegraded })

	assert.True(t, c.IsReady(context.Background()))
}

func TestPingCheck(t *testing.T) {
	ok := PingCheck(func(context.Context) error { return nil })
	bad := PingCheck(func(context.Context) error { return errors.New("closed") })

	assert.Equal(t, StatusOK, ok(context.Background()))
	assert.Equal(t, StatusDown, bad(context.Background()))
}

func TestFileCheck(t *testing.T) {
	path := filepath.Join(t.TempDir(), "code_template.go")
	assert.Equal(t, StatusDown, FileCheck(path)(context.Background()))

	require.NoError(t, os.WriteFile(path, []byte("package main"), 0o644))
	assert.Equal(t, StatusOK, FileCheck(path)(context.Background()))
}

func TestReadinessHandler_NotReady(t *testing.T) {
	c := NewChecker(zerolog.Nop())
	c.Register("template", FileCheck(filepath.Join(t.TempDir(), "missing")))

	rr := httptest.NewRecorder()
	c.ReadinessHandler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Contains(t, rr.Body.String(), "not_ready")
}

func TestProgress(t *testing.T) {
	p := NewProgress()
	var obs agent.Observer = p

	now := time.Now()
	obs.OnTransition(agent.Transition{Agent: "Solution Architect", From: agent.Discovery, To: agent.Finished, At: now})
	obs.OnTransition(agent.Transition{Agent: "Backend Developer", From: agent.Discovery, To: agent.Working, At: now})
	obs.OnTransition(agent.Transition{Agent: "Backend Developer", From: agent.Working, To: agent.UnitTesting, At: now})

	snap := p.Snapshot()
	assert.Equal(t, "finished", snap["Solution Architect"].State)
	assert.Equal(t, "unit_testing", snap["Backend Developer"].State)

	rr := httptest.NewRecorder()
	p.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/progress", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"order":["Solution Architect","Backend Developer"]`)
}
