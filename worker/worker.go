// Package worker wraps job handlers with per-worker concurrency accounting,
// lifecycle callbacks, and a timeout race, and provides the registry the
// scheduler dispatches through.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/time/rate"

	"github.com/xraph/jobqueue/job"
)

// DefaultConcurrency is the number of simultaneous executions a worker
// accepts when WithConcurrency is not given.
const DefaultConcurrency = 5

// HandlerFunc is a type-erased job handler that accepts the raw JSON
// payload and the ID of the job being executed.
type HandlerFunc func(ctx context.Context, payload []byte, jobID string) error

// Worker is a named handler with a concurrency ceiling and callbacks.
// It is safe for concurrent use.
type Worker struct {
	name        string
	handler     HandlerFunc
	concurrency int
	limiter     *rate.Limiter
	logger      *slog.Logger

	onStart      func(*job.Record)
	onSuccess    func(*job.Record)
	onFailure    func(*job.Record, error)
	onCompletion func(*job.Record)

	mu             sync.Mutex
	executionCount int
}

// Option configures a Worker.
type Option func(*Worker)

// WithConcurrency sets how many jobs the worker executes at once.
// Values below one are ignored.
func WithConcurrency(n int) Option {
	return func(w *Worker) {
		if n > 0 {
			w.concurrency = n
		}
	}
}

// WithOnStart sets a callback invoked when an execution starts.
func WithOnStart(fn func(*job.Record)) Option {
	return func(w *Worker) { w.onStart = fn }
}

// WithOnSuccess sets a callback invoked after a successful execution.
func WithOnSuccess(fn func(*job.Record)) Option {
	return func(w *Worker) { w.onSuccess = fn }
}

// WithOnFailure sets a callback invoked after a failed execution, with the
// updated record and the failure.
func WithOnFailure(fn func(*job.Record, error)) Option {
	return func(w *Worker) { w.onFailure = fn }
}

// WithOnCompletion sets a callback invoked after every execution,
// successful or not.
func WithOnCompletion(fn func(*job.Record)) Option {
	return func(w *Worker) { w.onCompletion = fn }
}

// WithRateLimit limits how often the handler starts, independent of the
// concurrency ceiling. Waiting for a token counts against the job timeout.
func WithRateLimit(limit rate.Limit, burst int) Option {
	return func(w *Worker) { w.limiter = rate.NewLimiter(limit, burst) }
}

// WithLogger sets the logger used to report callback panics.
func WithLogger(l *slog.Logger) Option {
	return func(w *Worker) { w.logger = l }
}

// New creates a worker whose handler receives the payload decoded into T.
// A payload that does not decode fails the execution without calling fn.
func New[T any](name string, fn func(ctx context.Context, payload T, jobID string) error, opts ...Option) *Worker {
	handler := func(ctx context.Context, payload []byte, jobID string) error {
		var in T
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &in); err != nil {
				return fmt.Errorf("decode payload for worker %q: %w", name, err)
			}
		}
		return fn(ctx, in, jobID)
	}
	return NewRaw(name, handler, opts...)
}

// NewRaw creates a worker whose handler receives the raw JSON payload.
func NewRaw(name string, fn HandlerFunc, opts ...Option) *Worker {
	w := &Worker{
		name:        name,
		handler:     fn,
		concurrency: DefaultConcurrency,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Name returns the worker name.
func (w *Worker) Name() string { return w.name }

// Concurrency returns the worker's concurrency ceiling.
func (w *Worker) Concurrency() int { return w.concurrency }

// ExecutionCount returns the number of executions in flight.
func (w *Worker) ExecutionCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.executionCount
}

// IsBusy reports whether the worker is at its concurrency ceiling.
func (w *Worker) IsBusy() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.executionCount >= w.concurrency
}

// AvailableExecuters returns how many more executions the worker accepts.
func (w *Worker) AvailableExecuters() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	if n := w.concurrency - w.executionCount; n > 0 {
		return n
	}
	return 0
}

// DecreaseExecutionCount releases one execution slot. The scheduler calls
// it once per execution after the outcome has been recorded.
func (w *Worker) DecreaseExecutionCount() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.executionCount > 0 {
		w.executionCount--
	}
}

func (w *Worker) increaseExecutionCount() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.executionCount++
}

// TriggerSuccess invokes the success callback, if any.
func (w *Worker) TriggerSuccess(r *job.Record) {
	if w.onSuccess != nil {
		w.safely("on_success", func() { w.onSuccess(r.Clone()) })
	}
}

// TriggerFailure invokes the failure callback, if any.
func (w *Worker) TriggerFailure(r *job.Record, err error) {
	if w.onFailure != nil {
		w.safely("on_failure", func() { w.onFailure(r.Clone(), err) })
	}
}

// TriggerCompletion invokes the completion callback, if any.
func (w *Worker) TriggerCompletion(r *job.Record) {
	if w.onCompletion != nil {
		w.safely("on_completion", func() { w.onCompletion(r.Clone()) })
	}
}

func (w *Worker) triggerStart(r *job.Record) {
	if w.onStart != nil {
		w.safely("on_start", func() { w.onStart(r.Clone()) })
	}
}

// safely runs a user callback, logging instead of propagating a panic.
func (w *Worker) safely(callback string, fn func()) {
	defer func() {
		if p := recover(); p != nil {
			w.logger.Error("worker callback panicked",
				slog.String("worker", w.name),
				slog.String("callback", callback),
				slog.Any("panic", p),
			)
		}
	}()
	fn()
}
