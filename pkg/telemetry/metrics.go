package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/xequation/xequation/pkg/equation"
	"github.com/xequation/xequation/pkg/expr"
)

var _ equation.Recorder = (*Metrics)(nil)

// Metrics provides Prometheus metrics for xeq. It implements
// equation.Recorder; a disabled instance accepts every call and records
// nothing.
type Metrics struct {
	config MetricsConfig

	evaluations        *prometheus.CounterVec
	evaluationDuration *prometheus.HistogramVec

	updatePasses       prometheus.Counter
	updatePassDuration prometheus.Histogram
	updatePassSize     prometheus.Histogram

	equations prometheus.Gauge

	parseCacheEntries prometheus.Gauge
	parseCacheHits    prometheus.Gauge
	parseCacheMisses  prometheus.Gauge

	workbookRuns     *prometheus.CounterVec
	workbookDuration *prometheus.HistogramVec

	errorsByCode     *prometheus.CounterVec
	policyViolations *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
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

		evaluations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "evaluations_total",
				Help:      "Total number of equation evaluations by resulting status",
			},
			[]string{"status"},
		),
		evaluationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "evaluation_duration_seconds",
				Help:      "Duration of single equation evaluations in seconds",
				Buckets:   buckets,
			},
			[]string{"status"},
		),

		updatePasses: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "update_passes_total",
				Help:      "Total number of recomputation passes",
			},
		),
		updatePassDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "update_pass_duration_seconds",
				Help:      "Duration of recomputation passes in seconds",
				Buckets:   buckets,
			},
		),
		updatePassSize: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "update_pass_equations",
				Help:      "Number of equations visited per recomputation pass",
				Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
			},
		),

		equations: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "equations",
				Help:      "Current number of equations",
			},
		),

		parseCacheEntries: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "parse_cache_entries",
				Help:      "Current number of cached parse results",
			},
		),
		parseCacheHits: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "parse_cache_hits",
				Help:      "Parse cache hits since the engine was created",
			},
		),
		parseCacheMisses: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "parse_cache_misses",
				Help:      "Parse cache misses since the engine was created",
			},
		),

		workbookRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "workbook_runs_total",
				Help:      "Total number of workbook runs by outcome",
			},
			[]string{"status"},
		),
		workbookDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "workbook_run_duration_seconds",
				Help:      "Duration of workbook runs in seconds",
				Buckets:   buckets,
			},
			[]string{"status"},
		),

		errorsByCode: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_by_code_total",
				Help:      "Total number of manager errors by error code",
			},
			[]string{"code"},
		),
		policyViolations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "policy_violations_total",
				Help:      "Total number of workbook policy violations",
			},
			[]string{"rule", "severity"},
		),
	}

	registry.MustRegister(
		m.evaluations,
		m.evaluationDuration,
		m.updatePasses,
		m.updatePassDuration,
		m.updatePassSize,
		m.equations,
		m.parseCacheEntries,
		m.parseCacheHits,
		m.parseCacheMisses,
		m.workbookRuns,
		m.workbookDuration,
		m.errorsByCode,
		m.policyViolations,
	)

	return m, nil
}

// ObserveEvaluation records one equation evaluation.
func (m *Metrics) ObserveEvaluation(status expr.Status, elapsed time.Duration) {
	if m.evaluations == nil {
		return
	}
	m.evaluations.WithLabelValues(status.String()).Inc()
	m.evaluationDuration.WithLabelValues(status.String()).Observe(elapsed.Seconds())
}

// ObserveUpdatePass records one recomputation pass.
func (m *Metrics) ObserveUpdatePass(evaluated int, elapsed time.Duration) {
	if m.updatePasses == nil {
		return
	}
	m.updatePasses.Inc()
	m.updatePassDuration.Observe(elapsed.Seconds())
	m.updatePassSize.Observe(float64(evaluated))
}

// SetEquationCount sets the current number of equations.
func (m *Metrics) SetEquationCount(n int) {
	if m.equations == nil {
		return
	}
	m.equations.Set(float64(n))
}

// SetParseCache records the parse cache size and counters.
func (m *Metrics) SetParseCache(entries int, hits, misses uint64) {
	if m.parseCacheEntries == nil {
		return
	}
	m.parseCacheEntries.Set(float64(entries))
	m.parseCacheHits.Set(float64(hits))
	m.parseCacheMisses.Set(float64(misses))
}

// RecordWorkbookRun records a completed workbook run.
func (m *Metrics) RecordWorkbookRun(status string, duration time.Duration) {
	if m.workbookRuns == nil {
		return
	}
	m.workbookRuns.WithLabelValues(status).Inc()
	m.workbookDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// RecordError records a manager error by code.
func (m *Metrics) RecordError(code string) {
	if m.errorsByCode == nil || code == "" {
		return
	}
	m.errorsByCode.WithLabelValues(code).Inc()
}

// RecordPolicyViolation records one policy violation.
func (m *Metrics) RecordPolicyViolation(rule, severity string) {
	if m.policyViolations == nil {
		return
	}
	m.policyViolations.WithLabelValues(rule, severity).Inc()
}

// Registry returns the registry metrics are registered in, or nil when
// metrics are disabled.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
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

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// StartMetricsServer serves metrics on the configured address. It does
// nothing when metrics are disabled or no address is configured.
func (m *Metrics) StartMetricsServer(logger zerolog.Logger) *http.Server {
	if !m.config.Enabled || m.config.ListenAddress == "" {
		return nil
	}

	path := m.config.Path
	if path == "" {
		path = "/metrics"
	}
	mux := http.NewServeMux()
	mux.Handle(path, m.Handler())

	server := &http.Server{
		Addr:              m.config.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Str("address", m.config.ListenAddress).Msg("Metrics server failed")
		}
	}()

	return server
}
