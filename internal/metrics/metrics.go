// Package metrics provides Prometheus metrics for logalert.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "logalert"
)

// HTTP metrics
var (
	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration tracks HTTP request latency.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	// HTTPRequestsInFlight tracks concurrent HTTP requests.
	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_in_flight",
			Help:      "Number of HTTP requests currently being processed",
		},
	)
)

// Alerting metrics
var (
	// EvaluationsTotal counts evaluation passes.
	EvaluationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alerting",
			Name:      "evaluations_total",
			Help:      "Total alert evaluation passes",
		},
	)

	// EvaluationDuration tracks evaluation pass latency.
	EvaluationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "alerting",
			Name:      "evaluation_duration_seconds",
			Help:      "Alert evaluation pass latency in seconds",
			Buckets:   []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
	)

	// AlertsFiredTotal counts fired alert events.
	AlertsFiredTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alerting",
			Name:      "fired_total",
			Help:      "Total alert events fired",
		},
	)

	// AlertsSuppressedTotal counts rules skipped because of cooldown.
	AlertsSuppressedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alerting",
			Name:      "suppressed_total",
			Help:      "Total rule evaluations skipped due to cooldown",
		},
	)

	// RulesEnabled tracks the number of enabled rules seen by the last pass.
	RulesEnabled = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "alerting",
			Name:      "rules_enabled",
			Help:      "Number of enabled rules in the last evaluation pass",
		},
	)

	// StoreCorruptTotal counts persisted values that failed to decode.
	StoreCorruptTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alerting",
			Name:      "store_corrupt_total",
			Help:      "Total persisted values treated as empty because they could not be decoded",
		},
		[]string{"key"},
	)
)

// Notification metrics
var (
	// NotificationsTotal counts notification attempts by channel and result.
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notifier",
			Name:      "notifications_total",
			Help:      "Total notification attempts",
		},
		[]string{"channel", "result"}, // result: success, failure, skipped
	)

	// NotificationDuration tracks per-channel send latency.
	NotificationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "notifier",
			Name:      "send_duration_seconds",
			Help:      "Notification send latency in seconds",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"channel"},
	)

	// NotificationsDropped counts events not dispatched due to rate limiting.
	NotificationsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notifier",
			Name:      "dropped_total",
			Help:      "Total alert events not dispatched due to rate limiting",
		},
	)
)

// Log source metrics
var (
	// LogFetchesTotal counts log source fetches by result.
	LogFetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "logsource",
			Name:      "fetches_total",
			Help:      "Total log source fetches",
		},
		[]string{"result"},
	)

	// LogRecordsFetched counts records returned by the log source.
	LogRecordsFetched = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "logsource",
			Name:      "records_total",
			Help:      "Total log records fetched",
		},
	)
)

// Info metric
var (
	// BuildInfo exposes build information.
	BuildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "build_info",
			Help:      "Build information",
		},
		[]string{"version", "commit", "build_time"},
	)
)

// SetBuildInfo sets the build info metric.
func SetBuildInfo(version, commit, buildTime string) {
	BuildInfo.WithLabelValues(version, commit, buildTime).Set(1)
}
