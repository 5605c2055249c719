// Package observability provides extensions that watch the queue's
// lifecycle events: a Prometheus MetricsExtension with counters for every
// job transition, a StateTracker that mirrors queue state for dashboards,
// and a LoggingExtension used by the scheduler's debug mode.
//
// For per-execution tracing and metrics, see the middleware package:
// middleware.Tracing() and middleware.Metrics().
package observability
