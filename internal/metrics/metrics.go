// Package metrics provides Prometheus metrics for agent runs.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the engine.
type Metrics struct {
	LLMRequestsTotal *prometheus.CounterVec
	LLMRetriesTotal  *prometheus.CounterVec
	TransitionsTotal *prometheus.CounterVec
	AgentDuration    *prometheus.HistogramVec
	ErrorsTotal      *prometheus.CounterVec
	RunsTotal        *prometheus.CounterVec

	registry *prometheus.Registry
}

// New creates and registers all metrics.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		LLMRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "autodev_llm_requests_total",
				Help: "Total completion requests by agent and outcome.",
			},
			[]string{"agent", "outcome"},
		),
		LLMRetriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "autodev_llm_retries_total",
				Help: "Completion requests that needed their retry.",
			},
			[]string{"agent"},
		),
		TransitionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "autodev_agent_transitions_total",
				Help: "Agent state transitions.",
			},
			[]string{"agent", "from", "to"},
		),
		AgentDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "autodev_agent_duration_seconds",
				Help:    "Time spent in an agent's Execute.",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
			},
			[]string{"agent"},
		),
		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "autodev_errors_total",
				Help: "Total errors by module and type.",
			},
			[]string{"module", "type"},
		),
		RunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "autodev_runs_total",
				Help: "Project runs by final status.",
			},
			[]string{"status"},
		),
		registry: reg,
	}

	reg.MustRegister(m.LLMRequestsTotal)
	reg.MustRegister(m.LLMRetriesTotal)
	reg.MustRegister(m.TransitionsTotal)
	reg.MustRegister(m.AgentDuration)
	reg.MustRegister(m.ErrorsTotal)
	reg.MustRegister(m.RunsTotal)

	return m
}

// Handler returns an http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the private registry (for tests and custom collectors).
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordLLMRequest increments the request counter. Safe on a nil receiver.
func (m *Metrics) RecordLLMRequest(agent, outcome string) {
	if m == nil {
		return
	}
	m.LLMRequestsTotal.WithLabelValues(agent, outcome).Inc()
}

// RecordRetry increments the retry counter.
func (m *Metrics) RecordRetry(agent string) {
	if m == nil {
		return
	}
	m.LLMRetriesTotal.WithLabelValues(agent).Inc()
}

// RecordTransition increments the transition counter.
func (m *Metrics) RecordTransition(agent, from, to string) {
	if m == nil {
		return
	}
	m.TransitionsTotal.WithLabelValues(agent, from, to).Inc()
}

// ObserveAgentDuration records how long an agent ran.
func (m *Metrics) ObserveAgentDuration(agent string, seconds float64) {
	if m == nil {
		return
	}
	m.AgentDuration.WithLabelValues(agent).Observe(seconds)
}

// RecordError increments the error counter.
func (m *Metrics) RecordError(module, errType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(module, errType).Inc()
}

// RecordRun increments the run counter.
func (m *Metrics) RecordRun(status string) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(status).Inc()
}
