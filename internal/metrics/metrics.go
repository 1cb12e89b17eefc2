// Package metrics holds the Prometheus collectors exported by the service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the collectors for the authentication core. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	AuthOperations *prometheus.CounterVec
	RateLimited    *prometheus.CounterVec
	MailDispatch   *prometheus.CounterVec
}

// New creates the collectors and registers them on registry.
func New(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		AuthOperations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auth_operations_total",
				Help: "Authentication and verification operations by outcome.",
			},
			[]string{"operation", "outcome"},
		),
		RateLimited: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auth_rate_limited_total",
				Help: "Requests rejected by the rate limiter.",
			},
			[]string{"route"},
		),
		MailDispatch: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auth_mail_dispatch_total",
				Help: "Outbound mail dispatch attempts by kind and result.",
			},
			[]string{"kind", "result"},
		),
	}
	if registry != nil {
		registry.MustRegister(m.AuthOperations, m.RateLimited, m.MailDispatch)
	}
	return m
}

// Operation records the outcome of an operation.
func (m *Metrics) Operation(op, outcome string) {
	if m == nil {
		return
	}
	m.AuthOperations.WithLabelValues(op, outcome).Inc()
}

// Limited records a rate-limited request.
func (m *Metrics) Limited(route string) {
	if m == nil {
		return
	}
	m.RateLimited.WithLabelValues(route).Inc()
}

// Mail records a mail dispatch attempt.
func (m *Metrics) Mail(kind string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.MailDispatch.WithLabelValues(kind, result).Inc()
}

// Handler exposes registry in the Prometheus text format.
func Handler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
