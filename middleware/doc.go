// Package middleware provides composable middleware for job execution.
//
// A [Middleware] is a function that wraps a job handler. Middleware are
// composed into a chain using [Chain] and applied before each job executes.
// They are applied right-to-left: the first middleware in the slice is the
// outermost wrapper.
//
//	// logging → recover → handler
//	chain := middleware.Chain(middleware.Logging(logger), middleware.Recover(logger))
//
// # Built-in Middleware
//
//   - [Logging]: logs worker, job ID, duration, and outcome at each execution
//   - [Recover]: catches panics and converts them to errors
//   - [WithRecord]: exposes the executing record to the handler context
//   - [Tracing]: wraps execution in an OpenTelemetry span
//   - [Metrics]: records per-worker duration and outcome counters
//
// Middleware runs inside the worker's timeout race: when a job times out
// the chain keeps running in the background with a cancelled context while
// the execution has already resolved.
//
// # Writing Custom Middleware
//
//	func MyMiddleware() middleware.Middleware {
//	    return func(ctx context.Context, r *job.Record, next middleware.Handler) error {
//	        // pre-processing
//	        err := next(ctx)
//	        // post-processing
//	        return err
//	    }
//	}
//
// Middleware MUST call next to continue the chain unless intentionally
// short-circuiting (e.g., circuit breaker, rate limiting).
package middleware
