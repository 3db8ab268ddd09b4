package telemetry

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides Prometheus metrics for SiteStack.
type Metrics struct {
	config MetricsConfig

	// Validation metrics
	validationsStarted   *prometheus.CounterVec
	validationsCompleted *prometheus.CounterVec
	validationDuration   *prometheus.HistogramVec
	validationErrors     *prometheus.CounterVec

	// Policy metrics
	policyViolations *prometheus.CounterVec

	// Output derivation metrics
	outputsDerived *prometheus.CounterVec
	deriveDuration *prometheus.HistogramVec

	// Topology metrics
	topologyResolutions *prometheus.CounterVec

	// Computed expression metrics
	starlarkEvalDuration prometheus.Histogram

	// Watch mode metrics
	watchReloads  prometheus.Counter
	activeWatches prometheus.Gauge

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		// Return a no-op metrics instance
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	buckets := cfg.DefaultHistogramBuckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		validationsStarted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "validations_started_total",
				Help:      "Total number of validation runs started",
			},
			[]string{"trigger"},
		),
		validationsCompleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "validations_completed_total",
				Help:      "Total number of validation runs completed",
			},
			[]string{"status"},
		),
		validationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "validation_duration_seconds",
				Help:      "Duration of validation runs in seconds",
				Buckets:   buckets,
			},
			[]string{"status"},
		),
		validationErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "validation_errors_total",
				Help:      "Total number of field validation errors",
			},
			[]string{"field"},
		),

		policyViolations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "policy_violations_total",
				Help:      "Total number of policy violations",
			},
			[]string{"policy", "severity"},
		),

		outputsDerived: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "outputs_derived_total",
				Help:      "Total number of output derivations",
			},
			[]string{"source", "status"},
		),
		deriveDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "derive_duration_seconds",
				Help:      "Duration of output derivations in seconds",
				Buckets:   buckets,
			},
			[]string{"source"},
		),

		topologyResolutions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "topology_resolutions_total",
				Help:      "Total number of topology resolutions",
			},
			[]string{"source", "status"},
		),

		starlarkEvalDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "starlark_eval_duration_seconds",
				Help:      "Duration of computed-expression evaluations in seconds",
				Buckets:   buckets,
			},
		),

		watchReloads: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "watch_reloads_total",
				Help:      "Total number of watch-triggered revalidations",
			},
		),
		activeWatches: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_watches",
				Help:      "Current number of watched configuration directories",
			},
		),
	}

	registry.MustRegister(
		m.validationsStarted,
		m.validationsCompleted,
		m.validationDuration,
		m.validationErrors,
		m.policyViolations,
		m.outputsDerived,
		m.deriveDuration,
		m.topologyResolutions,
		m.starlarkEvalDuration,
		m.watchReloads,
		m.activeWatches,
	)

	return m, nil
}

// Validation Metrics

// RecordValidationStarted increments the counter for started validations.
// trigger is "cli" for one-shot runs and "watch" for file-change reruns.
func (m *Metrics) RecordValidationStarted(trigger string) {
	if m.validationsStarted == nil {
		return
	}
	m.validationsStarted.WithLabelValues(trigger).Inc()
}

// RecordValidationCompleted records a completed validation with its status
// and duration.
func (m *Metrics) RecordValidationCompleted(status string, duration time.Duration) {
	if m.validationsCompleted == nil {
		return
	}
	m.validationsCompleted.WithLabelValues(status).Inc()
	m.validationDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// RecordValidationError records one field validation error.
func (m *Metrics) RecordValidationError(field string) {
	if m.validationErrors == nil {
		return
	}
	m.validationErrors.WithLabelValues(field).Inc()
}

// Policy Metrics

// RecordPolicyViolation records a policy violation.
func (m *Metrics) RecordPolicyViolation(policy, severity string) {
	if m.policyViolations == nil {
		return
	}
	m.policyViolations.WithLabelValues(policy, severity).Inc()
}

// Output Metrics

// RecordOutputsDerived records an output derivation attempt.
func (m *Metrics) RecordOutputsDerived(source, status string, duration time.Duration) {
	if m.outputsDerived == nil {
		return
	}
	m.outputsDerived.WithLabelValues(source, status).Inc()
	m.deriveDuration.WithLabelValues(source).Observe(duration.Seconds())
}

// Topology Metrics

// RecordTopologyResolution records a topology resolution attempt.
func (m *Metrics) RecordTopologyResolution(source, status string) {
	if m.topologyResolutions == nil {
		return
	}
	m.topologyResolutions.WithLabelValues(source, status).Inc()
}

// Computed Expression Metrics

// ObserveStarlarkEval records the duration of one computed-expression run.
func (m *Metrics) ObserveStarlarkEval(duration time.Duration) {
	if m.starlarkEvalDuration == nil {
		return
	}
	m.starlarkEvalDuration.Observe(duration.Seconds())
}

// Watch Metrics

// RecordWatchReload increments the watch reload counter.
func (m *Metrics) RecordWatchReload() {
	if m.watchReloads == nil {
		return
	}
	m.watchReloads.Inc()
}

// SetActiveWatches sets the current number of watched directories.
func (m *Metrics) SetActiveWatches(count float64) {
	if m.activeWatches == nil {
		return
	}
	m.activeWatches.Set(count)
}

// Timer provides a convenient way to time operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the elapsed time since the timer was created.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// ObserveDuration is a helper to time an operation and record it.
func (t *Timer) ObserveDuration(observer prometheus.Observer) {
	observer.Observe(t.Duration().Seconds())
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// StartMetricsServer starts an HTTP server to expose metrics.
func (m *Metrics) StartMetricsServer() error {
	if !m.config.Enabled {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle(m.config.Path, m.Handler())

	server := &http.Server{
		Addr:              m.config.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			// Log error but don't fail the application
			fmt.Printf("metrics server error: %v\n", err)
		}
	}()

	return nil
}
