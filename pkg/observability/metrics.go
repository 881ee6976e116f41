package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Run metrics
	RunsTotal       *prometheus.CounterVec
	RunDuration     prometheus.Histogram
	ClientsProcessed prometheus.Counter
	ClientErrors    prometheus.Counter

	// External source metrics
	PollsTotal   *prometheus.CounterVec
	PollDuration prometheus.Histogram

	// Status machine metrics
	StatusTransitionsTotal prometheus.Counter

	// Notification metrics
	EmailsTotal *prometheus.CounterVec

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		RunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "andromeda_monitor_runs_total",
				Help: "Total number of monitoring runs by outcome",
			},
			[]string{"outcome"}, // completed, fatal, skipped
		),
		RunDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "andromeda_monitor_run_duration_seconds",
				Help:    "Duration of a full monitoring run in seconds",
				Buckets: prometheus.ExponentialBuckets(1, 2, 12),
			},
		),
		ClientsProcessed: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "andromeda_monitor_clients_processed_total",
				Help: "Total number of clients processed across runs",
			},
		),
		ClientErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "andromeda_monitor_client_errors_total",
				Help: "Total number of per-client errors recorded",
			},
		),
		PollsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "andromeda_extsource_polls_total",
				Help: "Total number of external invoice-count polls",
			},
			[]string{"status"}, // ok, unavailable
		),
		PollDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "andromeda_extsource_poll_duration_seconds",
				Help:    "Duration of external invoice-count polls in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
		StatusTransitionsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "andromeda_monitor_status_transitions_total",
				Help: "Total number of automated status transitions to pending",
			},
		),
		EmailsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "andromeda_notify_emails_total",
				Help: "Total number of outbound emails by kind and outcome",
			},
			[]string{"kind", "outcome"}, // kind: consumption, reminder, digest, failure
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "andromeda_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "andromeda_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
	}

	registry.MustRegister(
		m.RunsTotal,
		m.RunDuration,
		m.ClientsProcessed,
		m.ClientErrors,
		m.PollsTotal,
		m.PollDuration,
		m.StatusTransitionsTotal,
		m.EmailsTotal,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
	)

	return m
}

// Handler returns an HTTP handler exposing the registry
func Handler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
