package middleware

import (
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/portico-dev/portico/pkg/dom"
	"github.com/portico-dev/portico/pkg/server"
)

// MetricsConfig configures the Prometheus metrics middleware.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "portico").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for event duration.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// MetricsOption configures the Prometheus metrics middleware.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) MetricsOption {
	return func(c *MetricsConfig) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the histogram buckets.
func WithBuckets(buckets []float64) MetricsOption {
	return func(c *MetricsConfig) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) {
		c.Registry = registry
	}
}

// defaultMetricsConfig returns the default metrics configuration.
func defaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace:   "portico",
		Subsystem:   "",
		ConstLabels: nil,
		Buckets:     prometheus.DefBuckets,
		Registry:    prometheus.DefaultRegisterer,
	}
}

// metrics holds the Prometheus instruments.
type metrics struct {
	eventsTotal      *prometheus.CounterVec
	eventDuration    *prometheus.HistogramVec
	eventErrors      *prometheus.CounterVec
	patchesSent      prometheus.Counter
	relocationsTotal prometheus.Counter
	activeSessions   prometheus.Gauge
	detachedSessions prometheus.Gauge
	reconnectsTotal  prometheus.Counter
}

// globalMetrics is the singleton metrics instance.
// Created on first call to Prometheus().
var (
	globalMetrics   *metrics
	globalMetricsMu sync.Mutex
)

// initMetrics registers the Prometheus instruments.
func initMetrics(config MetricsConfig) *metrics {
	factory := promauto.With(config.Registry)

	return &metrics{
		eventsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "events_total",
			Help:        "Total number of events processed",
			ConstLabels: config.ConstLabels,
		}, []string{"type", "status"}),

		eventDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "event_duration_seconds",
			Help:        "Event processing duration in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}, []string{"type"}),

		eventErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "event_errors_total",
			Help:        "Total number of event processing errors",
			ConstLabels: config.ConstLabels,
		}, []string{"type", "error_type"}),

		patchesSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "patches_sent_total",
			Help:        "Total number of patches sent to clients",
			ConstLabels: config.ConstLabels,
		}),

		relocationsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "relocations_total",
			Help:        "Total number of subtree relocations (move patches)",
			ConstLabels: config.ConstLabels,
		}),

		activeSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "active_sessions",
			Help:        "Number of active WebSocket sessions",
			ConstLabels: config.ConstLabels,
		}),

		detachedSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "detached_sessions",
			Help:        "Number of detached (disconnected but resumable) sessions",
			ConstLabels: config.ConstLabels,
		}),

		reconnectsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "reconnects_total",
			Help:        "Total number of session reconnections",
			ConstLabels: config.ConstLabels,
		}),
	}
}

// Prometheus creates middleware that collects Prometheus metrics for every
// dispatched event.
//
// Metrics collected:
//   - portico_events_total: Counter of events by type and status
//   - portico_event_duration_seconds: Histogram of event processing duration
//   - portico_event_errors_total: Counter of event errors by type and category
//   - portico_patches_sent_total: Counter of patches produced by events
//   - portico_relocations_total: Counter of subtree move patches
//   - portico_active_sessions: Gauge of attached sessions
//   - portico_detached_sessions: Gauge of resumable sessions
//   - portico_reconnects_total: Counter of session reconnections
//
// The session gauges are driven by the RecordSession* helpers; call them
// from the application's session hooks.
//
// Example:
//
//	srv.Use(middleware.Prometheus(
//	    middleware.WithNamespace("myapp"),
//	))
//
//	// Expose metrics endpoint
//	http.Handle("/metrics", promhttp.Handler())
func Prometheus(opts ...MetricsOption) server.Middleware {
	config := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&config)
	}

	// Initialize metrics once
	globalMetricsMu.Lock()
	if globalMetrics == nil {
		globalMetrics = initMetrics(config)
	}
	m := globalMetrics
	globalMetricsMu.Unlock()

	return func(c server.Ctx, next func() error) error {
		eventType := "Unknown"
		if ev := c.Event(); ev != nil {
			eventType = ev.Type.String()
		}

		start := time.Now()
		err := next()
		duration := time.Since(start).Seconds()

		m.eventDuration.WithLabelValues(eventType).Observe(duration)

		status := "success"
		if err != nil {
			status = "error"
			m.eventErrors.WithLabelValues(eventType, categorizeError(err)).Inc()
		}
		m.eventsTotal.WithLabelValues(eventType, status).Inc()

		// The pending patches are exactly what this event will flush.
		pending := c.PendingPatches()
		moves := 0
		for _, p := range pending {
			if p.Op == dom.OpMoveNode {
				moves++
			}
		}
		m.patchesSent.Add(float64(len(pending)))
		if moves > 0 {
			m.relocationsTotal.Add(float64(moves))
		}

		return err
	}
}

// categorizeError returns a low-cardinality category for an error so it can
// be used as a metric label.
func categorizeError(err error) string {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timeout"):
		return "timeout"
	case strings.Contains(msg, "queue full"):
		return "queue_full"
	case strings.Contains(msg, "not found"):
		return "not_found"
	case strings.Contains(msg, "panic"):
		return "panic"
	case strings.Contains(msg, "closed"):
		return "closed"
	default:
		return "internal"
	}
}

// RecordSessionStart records a new session becoming active.
// Call from the application's session start hook.
func RecordSessionStart() {
	if globalMetrics != nil {
		globalMetrics.activeSessions.Inc()
	}
}

// RecordSessionEnd records a session ending.
func RecordSessionEnd() {
	if globalMetrics != nil {
		globalMetrics.activeSessions.Dec()
	}
}

// RecordSessionDetach records a session becoming detached.
func RecordSessionDetach() {
	if globalMetrics != nil {
		globalMetrics.activeSessions.Dec()
		globalMetrics.detachedSessions.Inc()
	}
}

// RecordSessionReattach records a detached session being reattached.
func RecordSessionReattach() {
	if globalMetrics != nil {
		globalMetrics.activeSessions.Inc()
		globalMetrics.detachedSessions.Dec()
		globalMetrics.reconnectsTotal.Inc()
	}
}
