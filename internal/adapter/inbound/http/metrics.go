package http

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/lin-gate/lingate/internal/service"
)

// Metrics holds the Prometheus metrics for lingate. It doubles as the
// pipeline's service.Metrics hook.
type Metrics struct {
	RequestsTotal     *prometheus.CounterVec
	RequestDuration   *prometheus.HistogramVec
	ExchangesTotal    *prometheus.CounterVec
	UpstreamErrors    prometheus.Counter
	LogAppendFailures prometheus.Counter
}

// NewMetrics creates and registers all metrics with the given registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		RequestsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "lingate",
				Name:      "http_requests_total",
				Help:      "HTTP requests served, by path and status",
			},
			[]string{"path", "status"},
		),
		RequestDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "lingate",
				Name:      "http_request_duration_seconds",
				Help:      "Request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"path"},
		),
		ExchangesTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "lingate",
				Name:      "exchanges_total",
				Help:      "Proxied exchanges, by RPC method and fired actions",
			},
			[]string{"method", "request_action", "response_action"},
		),
		UpstreamErrors: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: "lingate",
				Name:      "upstream_errors_total",
				Help:      "Failed requests to the control server",
			},
		),
		LogAppendFailures: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: "lingate",
				Name:      "audit_append_failures_total",
				Help:      "Audit records that could not be persisted",
			},
		),
	}
}

// ExchangeProcessed records a completed proxy exchange.
func (m *Metrics) ExchangeProcessed(method, requestAction, responseAction string) {
	m.ExchangesTotal.WithLabelValues(
		orNone(method), orNone(requestAction), orNone(responseAction)).Inc()
}

// UpstreamError records a failed upstream call.
func (m *Metrics) UpstreamError() {
	m.UpstreamErrors.Inc()
}

// LogAppendFailure records a dropped audit record.
func (m *Metrics) LogAppendFailure() {
	m.LogAppendFailures.Inc()
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}

var _ service.Metrics = (*Metrics)(nil)
