// Package api exposes a Scheduler over HTTP for inspection and
// administration: listing and submitting jobs, cancelling, requeueing and
// removing them, aggregate counts, the queue state snapshot, and
// Prometheus metrics.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/xraph/jobqueue/observability"
	"github.com/xraph/jobqueue/scheduler"
)

// API wires the HTTP handlers for a Scheduler together.
type API struct {
	sched    *scheduler.Scheduler
	state    *observability.StateTracker
	gatherer prometheus.Gatherer
	logger   *slog.Logger
}

// Option configures an API.
type Option func(*API)

// WithStateTracker serves tracker snapshots on GET /v1/snapshot.
func WithStateTracker(t *observability.StateTracker) Option {
	return func(a *API) { a.state = t }
}

// WithMetrics serves g in the Prometheus exposition format on GET /metrics.
func WithMetrics(g prometheus.Gatherer) Option {
	return func(a *API) { a.gatherer = g }
}

// WithLogger sets the request logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *API) { a.logger = l }
}

// New creates an API for s.
func New(s *scheduler.Scheduler, opts ...Option) *API {
	a := &API{sched: s, logger: slog.Default()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Handler returns the fully assembled http.Handler with all routes.
func (a *API) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(a.requestLogger)
	a.RegisterRoutes(r)
	return r
}

// RegisterRoutes registers all routes into router.
func (a *API) RegisterRoutes(router chi.Router) {
	router.Route("/v1", func(r chi.Router) {
		a.registerJobRoutes(r)
		a.registerStatsRoutes(r)
	})
	if a.gatherer != nil {
		router.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(a.gatherer, promhttp.HandlerOpts{}))
	}
}

// registerJobRoutes registers job management routes.
func (a *API) registerJobRoutes(r chi.Router) {
	r.Get("/jobs", a.listJobs)
	r.Post("/jobs", a.addJob)
	r.Get("/jobs/counts", a.jobCounts)
	r.Get("/jobs/{jobId}", a.getJob)
	r.Post("/jobs/{jobId}/cancel", a.cancelJob)
	r.Post("/jobs/{jobId}/requeue", a.requeueJob)
	r.Delete("/jobs/{jobId}", a.deleteJob)
}

// registerStatsRoutes registers aggregate and worker routes.
func (a *API) registerStatsRoutes(r chi.Router) {
	r.Get("/workers", a.listWorkers)
	r.Get("/stats", a.stats)
	r.Get("/snapshot", a.snapshot)
}

// requestLogger logs every request with its status and duration.
func (a *API) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		a.logger.Info("http request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Duration("duration", time.Since(start)),
			slog.String("request_id", chimw.GetReqID(r.Context())),
		)
	})
}
