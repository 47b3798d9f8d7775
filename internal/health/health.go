// Package health serves liveness, readiness and run progress for a project run.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/p-blackswan/autodev/internal/agent"
)

// Status represents the health status of a dependency.
type Status string

const (
	StatusOK       Status = "ok"
	StatusDegraded Status = "degraded"
	StatusDown     Status = "down"
)

// CheckFunc is a function that checks a dependency's health.
type CheckFunc func(ctx context.Context) Status

// Checker runs named dependency checks.
type Checker struct {
	mu     sync.RWMutex
	checks map[string]CheckFunc
	logger zerolog.Logger
}

// NewChecker creates a new health checker.
func NewChecker(logger zerolog.Logger) *Checker {
	return &Checker{
		checks: make(map[string]CheckFunc),
		logger: logger.With().Str("component", "health").Logger(),
	}
}

// Register adds a named health check.
func (c *Checker) Register(name string, fn CheckFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = fn
}

// RunAll executes all health checks concurrently.
func (c *Checker) RunAll(ctx context.Context) map[string]Status {
	c.mu.RLock()
	checks := make(map[string]CheckFunc, len(c.checks))
	for k, v := range c.checks {
		checks[k] = v
	}
	c.mu.RUnlock()

	results := make(map[string]Status, len(checks))
	var wg sync.WaitGroup
	var mu sync.Mutex

	for name, fn := range checks {
		wg.Add(1)
		go func(n string, f CheckFunc) {
			defer wg.Done()
			checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			s := f(checkCtx)
			if s != StatusOK {
				c.logger.Warn().Str("check", n).Str("status", string(s)).Msg("health check not ok")
			}
			mu.Lock()
			results[n] = s
			mu.Unlock()
		}(name, fn)
	}

	wg.Wait()
	return results
}

// IsReady returns true if no check is down.
func (c *Checker) IsReady(ctx context.Context) bool {
	for _, s := range c.RunAll(ctx) {
		if s == StatusDown {
			return false
		}
	}
	return true
}

// PingCheck reports down when ping fails. *store.Store satisfies the signature.
func PingCheck(ping func(ctx context.Context) error) CheckFunc {
	return func(ctx context.Context) Status {
		if err := ping(ctx); err != nil {
			return StatusDown
		}
		return StatusOK
	}
}

// FileCheck reports down when path cannot be read.
func FileCheck(path string) CheckFunc {
	return func(context.Context) Status {
		f, err := os.Open(path)
		if err != nil {
			return StatusDown
		}
		f.Close()
		return StatusOK
	}
}

// LivenessHandler returns an HTTP handler for /health (liveness).
func LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// ReadinessHandler returns an HTTP handler for /ready (readiness).
func (c *Checker) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		results := c.RunAll(r.Context())

		code := http.StatusOK
		status := "ready"
		for _, s := range results {
			if s == StatusDown {
				code = http.StatusServiceUnavailable
				status = "not_ready"
				break
			}
		}
		writeJSON(w, code, map[string]interface{}{"status": status, "checks": results})
	}
}

// AgentProgress is the last known state of one agent.
type AgentProgress struct {
	State     string    `json:"state"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Progress tracks agent states as an agent.Observer.
type Progress struct {
	mu     sync.RWMutex
	agents map[string]AgentProgress
	order  []string
}

// NewProgress creates an empty tracker.
func NewProgress() *Progress {
	return &Progress{agents: make(map[string]AgentProgress)}
}

func (p *Progress) OnTransition(t agent.Transition) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.agents[t.Agent]; !ok {
		p.order = append(p.order, t.Agent)
	}
	p.agents[t.Agent] = AgentProgress{State: t.To.String(), UpdatedAt: t.At}
}

// Snapshot returns the current state per agent.
func (p *Progress) Snapshot() map[string]AgentProgress {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make(map[string]AgentProgress, len(p.agents))
	for k, v := range p.agents {
		out[k] = v
	}
	return out
}

// Handler returns an HTTP handler for /progress.
func (p *Progress) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p.mu.RLock()
		order := append([]string(nil), p.order...)
		p.mu.RUnlock()
		writeJSON(w, http.StatusOK, map[string]interface{}{"order": order, "agents": p.Snapshot()})
	}
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
