package middleware

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/xraph/jobqueue"
	"github.com/xraph/jobqueue/job"
)

// meterName is the instrumentation scope name for jobqueue metrics.
const meterName = "github.com/xraph/jobqueue"

// Metrics returns middleware that records per-job execution metrics using
// the global OTel MeterProvider. If no MeterProvider is configured, noop
// instruments are used and this middleware becomes a pass-through.
//
// Instruments:
//   - jobqueue.job.duration (Float64Histogram): execution time in seconds,
//     with attributes: worker, status ("ok", "error", "timeout" or "cancelled")
//   - jobqueue.job.executions (Int64Counter): total executions,
//     with attributes: worker, status
func Metrics() Middleware {
	meter := otel.Meter(meterName)
	return MetricsWithMeter(meter)
}

// MetricsWithMeter returns metrics middleware using the provided meter.
// This variant allows injecting a specific MeterProvider for testing.
func MetricsWithMeter(meter metric.Meter) Middleware {
	// Create instruments once at middleware construction time.
	// OTel instruments are safe for concurrent use. On error, the API
	// returns noop instruments so the middleware degrades gracefully.
	duration, dErr := meter.Float64Histogram(
		"jobqueue.job.duration",
		metric.WithDescription("Duration of job execution in seconds"),
		metric.WithUnit("s"),
	)
	_ = dErr // noop fallback guaranteed by OTel API contract

	executions, eErr := meter.Int64Counter(
		"jobqueue.job.executions",
		metric.WithDescription("Total number of job executions"),
		metric.WithUnit("{execution}"),
	)
	_ = eErr // noop fallback guaranteed by OTel API contract

	return func(ctx context.Context, r *job.Record, next Handler) error {
		start := time.Now()
		err := next(ctx)
		elapsed := time.Since(start).Seconds()

		attrs := metric.WithAttributes(
			attribute.String("worker", r.WorkerName),
			attribute.String("status", outcome(err)),
		)

		duration.Record(ctx, elapsed, attrs)
		executions.Add(ctx, 1, attrs)

		return err
	}
}

// outcome classifies err for the status attribute.
func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case jobqueue.IsTimeout(err):
		return "timeout"
	case jobqueue.IsCancelled(err):
		return "cancelled"
	default:
		return "error"
	}
}
