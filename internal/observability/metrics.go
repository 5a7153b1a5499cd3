// Package observability provides Prometheus metrics for the front-end.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics contains the custom GrandGaze metrics.
type Metrics struct {
	registry *prometheus.Registry

	SessionTransitions *prometheus.CounterVec
	LoginAttempts      *prometheus.CounterVec
	APIRequests        *prometheus.CounterVec
	APIDuration        *prometheus.HistogramVec
}

// NewMetrics creates a private registry with Go/process collectors and the custom metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{
		registry: registry,
		SessionTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "grandgaze_session_transitions_total",
				Help: "Session state transitions by source and target status",
			},
			[]string{"from", "to"},
		),
		LoginAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "grandgaze_login_attempts_total",
				Help: "Login attempts by result",
			},
			[]string{"result"},
		),
		APIRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "grandgaze_api_requests_total",
				Help: "Requests to the marketplace API by method and status code",
			},
			[]string{"code", "method"},
		),
		APIDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "grandgaze_api_request_duration_seconds",
				Help:    "Latency of requests to the marketplace API",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"code", "method"},
		),
	}

	registry.MustRegister(m.SessionTransitions, m.LoginAttempts, m.APIRequests, m.APIDuration)
	return m
}

// RecordTransition counts a session state transition.
func (m *Metrics) RecordTransition(from, to string) {
	m.SessionTransitions.WithLabelValues(from, to).Inc()
}

// RecordLogin counts a login attempt; result is "success" or the failure kind.
func (m *Metrics) RecordLogin(result string) {
	m.LoginAttempts.WithLabelValues(result).Inc()
}

// InstrumentRoundTripper wraps an outgoing transport with request counting and latency.
func (m *Metrics) InstrumentRoundTripper(next http.RoundTripper) http.RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}
	return promhttp.InstrumentRoundTripperCounter(m.APIRequests,
		promhttp.InstrumentRoundTripperDuration(m.APIDuration, next))
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry (tests gather from it).
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
