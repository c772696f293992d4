// Package metrics provides Prometheus metrics collection for the health
// engine and its HTTP surface.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds every Prometheus collector the service registers.
type Metrics struct {
	// HTTP metrics
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge

	// Check execution metrics
	ChecksExecutedTotal  *prometheus.CounterVec
	CheckExecutionSeconds *prometheus.HistogramVec
	CheckNotOkTotal      *prometheus.CounterVec
	CheckAxisActivated   *prometheus.GaugeVec

	// Report metrics
	ReportsGeneratedTotal *prometheus.CounterVec

	ServiceInfo *prometheus.GaugeVec
}

// New creates a Metrics instance registered against prometheus's default
// registerer.
func New(serviceName string) *Metrics {
	return NewWithRegistry(serviceName, prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a Metrics instance registered against registerer,
// which may be nil to skip registration (useful in tests).
func NewWithRegistry(serviceName string, registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"service", "method", "path", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"service", "method", "path"},
		),
		RequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Current number of HTTP requests being processed",
			},
		),
		ChecksExecutedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "health_checks_executed_total",
				Help: "Total number of health check executions",
			},
			[]string{"service", "check"},
		),
		CheckExecutionSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "health_check_execution_seconds",
				Help:    "Health check execution duration in seconds",
				Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 2, 4, 8},
			},
			[]string{"service", "check"},
		),
		CheckNotOkTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "health_checks_not_ok_total",
				Help: "Total number of health check executions that produced a not-ok result",
			},
			[]string{"service", "check"},
		),
		CheckAxisActivated: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "health_check_axis_activated",
				Help: "Whether a given axis is currently activated for a check (1) or not (0)",
			},
			[]string{"service", "check", "axis"},
		),
		ReportsGeneratedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "health_reports_generated_total",
				Help: "Total number of health reports generated",
			},
			[]string{"service", "view"},
		),
		ServiceInfo: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "service_info",
				Help: "Service build/version information",
			},
			[]string{"service", "version"},
		),
	}

	if registerer != nil {
		registerer.MustRegister(
			m.RequestsTotal,
			m.RequestDuration,
			m.RequestsInFlight,
			m.ChecksExecutedTotal,
			m.CheckExecutionSeconds,
			m.CheckNotOkTotal,
			m.CheckAxisActivated,
			m.ReportsGeneratedTotal,
			m.ServiceInfo,
		)
	}

	return m
}

// RecordHTTPRequest records one completed HTTP request.
func (m *Metrics) RecordHTTPRequest(service, method, path, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(service, method, path, status).Inc()
	m.RequestDuration.WithLabelValues(service, method, path).Observe(duration.Seconds())
}

// IncrementInFlight increments the in-flight HTTP request gauge.
func (m *Metrics) IncrementInFlight() { m.RequestsInFlight.Inc() }

// DecrementInFlight decrements the in-flight HTTP request gauge.
func (m *Metrics) DecrementInFlight() { m.RequestsInFlight.Dec() }

// RecordCheckExecution records one health check execution's outcome.
func (m *Metrics) RecordCheckExecution(service, check string, duration time.Duration, ok bool) {
	m.ChecksExecutedTotal.WithLabelValues(service, check).Inc()
	m.CheckExecutionSeconds.WithLabelValues(service, check).Observe(duration.Seconds())
	if !ok {
		m.CheckNotOkTotal.WithLabelValues(service, check).Inc()
	}
}

// SetCheckAxisActivated records whether axis is currently activated for
// check.
func (m *Metrics) SetCheckAxisActivated(service, check, axis string, activated bool) {
	value := 0.0
	if activated {
		value = 1.0
	}
	m.CheckAxisActivated.WithLabelValues(service, check, axis).Set(value)
}

// RecordReportGenerated records one CreateReport call for the named probe
// view ("full", "readiness", "liveness", "critical", "startup").
func (m *Metrics) RecordReportGenerated(service, view string) {
	m.ReportsGeneratedTotal.WithLabelValues(service, view).Inc()
}

// SetServiceInfo publishes the service's version as a constant gauge.
func (m *Metrics) SetServiceInfo(service, version string) {
	m.ServiceInfo.WithLabelValues(service, version).Set(1)
}

var (
	global   *Metrics
	globalMu sync.Mutex
)

// Init initializes (once) and returns the global Metrics instance.
func Init(serviceName string) *Metrics {
	globalMu.Lock()
	defer globalMu.Unlock()
	if global == nil {
		global = New(serviceName)
	}
	return global
}

// Global returns the global Metrics instance, initializing it with an
// "unknown" service name if Init was never called.
func Global() *Metrics {
	globalMu.Lock()
	defer globalMu.Unlock()
	if global == nil {
		global = New("unknown")
	}
	return global
}
