package scheduler

import (
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/jobqueue"
	"github.com/xraph/jobqueue/ext"
	"github.com/xraph/jobqueue/job"
	"github.com/xraph/jobqueue/middleware"
)

// Option configures a Scheduler at construction.
type Option func(*Scheduler)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) { s.logger = l }
}

// WithConfig replaces the whole configuration.
func WithConfig(cfg jobqueue.Config) Option {
	return func(s *Scheduler) { s.settings.Config = cfg }
}

// WithExtension registers an extension with the scheduler.
func WithExtension(e ext.Extension) Option {
	return func(s *Scheduler) { s.pending = append(s.pending, e) }
}

// WithMiddleware appends middleware to the execution chain. It runs
// inside the built-in recover, tracing, metrics and logging middleware.
func WithMiddleware(mws ...middleware.Middleware) Option {
	return func(s *Scheduler) { s.mws = append(s.mws, mws...) }
}

// WithDebug enables lifecycle logging of every queue event.
func WithDebug(debug bool) Option {
	return func(s *Scheduler) { s.settings.Debug = debug }
}

// WithTracerProvider sets a custom OTel TracerProvider for the tracing
// middleware. If not set, the global provider is used.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Scheduler) { s.tracerProvider = tp }
}

// WithMeterProvider sets a custom OTel MeterProvider for the metrics
// middleware. If not set, the global provider is used.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(s *Scheduler) { s.meterProvider = mp }
}

// ──────────────────────────────────────────────────
// Runtime configuration
// ──────────────────────────────────────────────────

// ConfigOption changes a runtime setting. It is accepted by New and by
// Configure; settings not named keep their current value.
type ConfigOption func(*settings)

type settings struct {
	jobqueue.Config
	onQueueFinish func([]*job.Record)
}

// WithConcurrency sets the global ceiling on simultaneous executions
// across all workers. Zero or less means unbounded.
func WithConcurrency(n int) ConfigOption {
	return func(c *settings) { c.Concurrency = n }
}

// WithUpdateInterval sets the pause between run loop ticks. Non-positive
// values are ignored.
func WithUpdateInterval(d time.Duration) ConfigOption {
	return func(c *settings) {
		if d > 0 {
			c.UpdateInterval = d
		}
	}
}

// WithOnQueueFinish sets a callback invoked when the run loop halts, with
// the records executed since it last started.
func WithOnQueueFinish(fn func(executed []*job.Record)) ConfigOption {
	return func(c *settings) { c.onQueueFinish = fn }
}

// Configured adapts ConfigOptions for use with New.
func Configured(opts ...ConfigOption) Option {
	return func(s *Scheduler) {
		for _, opt := range opts {
			opt(&s.settings)
		}
	}
}
