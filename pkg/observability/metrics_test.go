package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestNewMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)

	if m == nil {
		t.Fatal("Expected metrics to be created")
	}

	// Exercise every metric once so gathering returns them all.
	m.RunsTotal.WithLabelValues("completed").Inc()
	m.RunDuration.Observe(12.5)
	m.ClientsProcessed.Inc()
	m.ClientErrors.Inc()
	m.PollsTotal.WithLabelValues("ok").Inc()
	m.PollDuration.Observe(0.25)
	m.StatusTransitionsTotal.Inc()
	m.EmailsTotal.WithLabelValues("consumption", "sent").Inc()
	m.HTTPRequestsTotal.WithLabelValues("POST", "/api/v1/clients/{id}/sync", "200").Inc()
	m.HTTPRequestDuration.WithLabelValues("POST", "/api/v1/clients/{id}/sync").Observe(0.05)

	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("Failed to gather metrics: %v", err)
	}

	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}

	expected := []string{
		"andromeda_monitor_runs_total",
		"andromeda_monitor_run_duration_seconds",
		"andromeda_monitor_clients_processed_total",
		"andromeda_monitor_client_errors_total",
		"andromeda_extsource_polls_total",
		"andromeda_extsource_poll_duration_seconds",
		"andromeda_monitor_status_transitions_total",
		"andromeda_notify_emails_total",
		"andromeda_http_requests_total",
		"andromeda_http_request_duration_seconds",
	}
	for _, name := range expected {
		if !names[name] {
			t.Errorf("Expected metric %s to be registered", name)
		}
	}
}

func TestNewMetrics_DuplicateRegistrationPanics(t *testing.T) {
	registry := prometheus.NewRegistry()
	NewMetrics(registry)

	defer func() {
		if r := recover(); r == nil {
			t.Error("Expected duplicate registration to panic")
		}
	}()
	NewMetrics(registry)
}

func TestMetricsHandler(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)
	m.RunsTotal.WithLabelValues("completed").Inc()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	Handler(registry).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "andromeda_monitor_runs_total") {
		t.Error("Expected exposition output to contain run counter")
	}
}
