// Package observability provides structured logging and Prometheus metrics
// for the Andromeda monitoring backend.
//
// Logging is a thin wrapper over stdlib slog: JSON output for the daemons,
// text output for the human-readable daily run log. Loggers travel through
// context so the orchestrator can scope a run's output to its own sink.
//
// Metrics are registered on a caller-owned prometheus.Registry and exposed
// by the API server on /metrics.
package observability
