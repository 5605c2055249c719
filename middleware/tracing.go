package middleware

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/jobqueue/job"
)

// tracerName is the instrumentation scope name for jobqueue tracing.
const tracerName = "github.com/xraph/jobqueue"

// Tracing returns middleware that wraps job execution in an OpenTelemetry span.
// If no TracerProvider is configured globally, the default noop tracer is used
// and this middleware becomes a pass-through with zero overhead.
//
// Span attributes include: jobqueue.job.id, jobqueue.worker,
// jobqueue.priority, jobqueue.failed_attempts, jobqueue.attempts.
// On error, the span status is set to codes.Error with the error message.
func Tracing() Middleware {
	tracer := otel.Tracer(tracerName)
	return TracingWithTracer(tracer)
}

// TracingWithTracer returns tracing middleware using the provided tracer.
// This variant allows injecting a specific TracerProvider for testing or
// when multiple providers are in use.
func TracingWithTracer(tracer trace.Tracer) Middleware {
	return func(ctx context.Context, r *job.Record, next Handler) error {
		ctx, span := tracer.Start(ctx, "jobqueue.job.execute",
			trace.WithAttributes(
				attribute.String("jobqueue.job.id", r.ID),
				attribute.String("jobqueue.worker", r.WorkerName),
				attribute.Int("jobqueue.priority", r.Priority),
				attribute.Int("jobqueue.failed_attempts", r.MetaData.FailedAttempts),
				attribute.Int("jobqueue.attempts", r.Attempts),
			),
			trace.WithSpanKind(trace.SpanKindInternal),
		)
		defer span.End()

		err := next(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}

		return err
	}
}
