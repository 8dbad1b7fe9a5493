package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recompute outcomes recorded by MetricsService.
const (
	OutcomeOK        = "ok"
	OutcomeReference = "reference_error"
	OutcomePolicy    = "policy_error"
	OutcomeFailed    = "failed"
)

// MetricsService encapsulates Prometheus instrumentation. Labels never carry student identifiers.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	unlockAttempts  *prometheus.CounterVec
	recomputes      *prometheus.CounterVec
	recomputeTime   prometheus.Histogram
	ingestedRows    *prometheus.CounterVec
	unlocked        prometheus.Gauge
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	unlockAttempts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vault_unlock_attempts_total",
		Help: "Unlock attempts by outcome",
	}, []string{"outcome"})

	recomputes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "recompute_total",
		Help: "Per (student, year) recomputations by outcome",
	}, []string{"outcome"})

	recomputeTime := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "recompute_duration_seconds",
		Help:    "Duration of a single (student, year) recomputation",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
	})

	ingestedRows := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ingested_rows_total",
		Help: "Rows seen by the importer by data type and outcome",
	}, []string{"data_type", "outcome"})

	unlocked := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "vault_unlocked",
		Help: "1 while a session is unlocked",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, unlockAttempts, recomputes, recomputeTime, ingestedRows, unlocked, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		unlockAttempts:  unlockAttempts,
		recomputes:      recomputes,
		recomputeTime:   recomputeTime,
		ingestedRows:    ingestedRows,
		unlocked:        unlocked,
	}
}

// Registry exposes the underlying registry.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics. path must be a route template.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordUnlock counts an unlock attempt and tracks session state.
func (m *MetricsService) RecordUnlock(ok bool) {
	if m == nil {
		return
	}
	if ok {
		m.unlockAttempts.WithLabelValues("success").Inc()
		m.unlocked.Set(1)
		return
	}
	m.unlockAttempts.WithLabelValues("rejected").Inc()
}

// RecordLock marks the session closed.
func (m *MetricsService) RecordLock() {
	if m == nil {
		return
	}
	m.unlocked.Set(0)
}

// RecordRecompute counts one recomputation.
func (m *MetricsService) RecordRecompute(outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.recomputes.WithLabelValues(outcome).Inc()
	m.recomputeTime.Observe(duration.Seconds())
}

// RecordIngest counts accepted and rejected rows of one upload.
func (m *MetricsService) RecordIngest(dataType string, accepted, rejected int) {
	if m == nil {
		return
	}
	m.ingestedRows.WithLabelValues(dataType, "accepted").Add(float64(accepted))
	m.ingestedRows.WithLabelValues(dataType, "rejected").Add(float64(rejected))
}
