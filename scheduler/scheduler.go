// Package scheduler owns the run loop of the job queue: it selects
// eligible jobs from the store in priority order, admits them through the
// per-worker and global concurrency ceilings, executes them, records the
// outcome, and emits lifecycle events until no work remains.
package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/jobqueue"
	"github.com/xraph/jobqueue/ext"
	"github.com/xraph/jobqueue/id"
	"github.com/xraph/jobqueue/job"
	"github.com/xraph/jobqueue/middleware"
	"github.com/xraph/jobqueue/observability"
	"github.com/xraph/jobqueue/queue"
	"github.com/xraph/jobqueue/worker"
)

const instrumentationName = "github.com/xraph/jobqueue"

// errShutdown is the cancellation reason for executions still running
// when a Shutdown deadline passes.
var errShutdown = errors.New("scheduler shutting down")

// Scheduler runs jobs from a store on registered workers.
// It is safe for concurrent use.
type Scheduler struct {
	store      job.Store
	logger     *slog.Logger
	extensions *ext.Registry
	workers    *worker.Registry
	limiter    *queue.Limiter
	mw         middleware.Middleware

	mws            []middleware.Middleware
	pending        []ext.Extension
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider

	// execCtx parents every execution; it is cancelled only when a
	// Shutdown deadline passes.
	execCtx    context.Context
	execCancel context.CancelCauseFunc

	mu         sync.Mutex
	settings   settings
	running    bool
	dirty      bool
	loopDone   chan struct{}
	executed   []*job.Record
	executions map[string]*worker.Execution
	active     int
}

// New creates a Scheduler backed by store.
func New(store job.Store, opts ...Option) (*Scheduler, error) {
	if store == nil {
		return nil, jobqueue.ErrNoStore
	}

	s := &Scheduler{
		store:      store,
		logger:     slog.Default(),
		workers:    worker.NewRegistry(),
		settings:   settings{Config: jobqueue.DefaultConfig()},
		executions: make(map[string]*worker.Execution),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.extensions = ext.NewRegistry(s.logger)
	if s.settings.Debug {
		s.extensions.Register(observability.NewLoggingExtension(s.logger))
	}
	for _, e := range s.pending {
		s.extensions.Register(e)
	}
	s.pending = nil

	s.limiter = queue.NewLimiter(s.settings.Concurrency)
	s.mw = middleware.Chain(s.middlewareStack()...)
	s.execCtx, s.execCancel = context.WithCancelCause(context.Background())

	return s, nil
}

// middlewareStack builds recover → tracing → metrics → logging → user
// middleware.
func (s *Scheduler) middlewareStack() []middleware.Middleware {
	tracing := middleware.Tracing()
	if s.tracerProvider != nil {
		tracing = middleware.TracingWithTracer(s.tracerProvider.Tracer(instrumentationName))
	}
	metrics := middleware.Metrics()
	if s.meterProvider != nil {
		metrics = middleware.MetricsWithMeter(s.meterProvider.Meter(instrumentationName))
	}

	stack := []middleware.Middleware{
		middleware.Recover(s.logger),
		tracing,
		metrics,
		middleware.Logging(s.logger),
	}
	return append(stack, s.mws...)
}

// Configure changes runtime settings. Changes take effect on the next
// scheduling decision.
func (s *Scheduler) Configure(opts ...ConfigOption) {
	s.mu.Lock()
	for _, opt := range opts {
		opt(&s.settings)
	}
	concurrency := s.settings.Concurrency
	s.mu.Unlock()

	s.limiter.SetLimit(concurrency)
}

// Extensions returns the extension registry.
func (s *Scheduler) Extensions() *ext.Registry { return s.extensions }

// Store returns the backing store.
func (s *Scheduler) Store() job.Store { return s.store }

// ──────────────────────────────────────────────────
// Workers
// ──────────────────────────────────────────────────

// AddWorker registers w. It fails with ErrDuplicateWorker when the name is
// taken and ErrInvalidWorkerName when it is empty.
func (s *Scheduler) AddWorker(w *worker.Worker) error {
	if err := s.workers.Register(w); err != nil {
		return err
	}
	s.extensions.EmitWorkerAdded(context.Background(), w.Name())
	return nil
}

// RemoveWorker deregisters the named worker. With deleteRelatedJobs the
// worker's jobs are soft deleted. Executions already running finish.
func (s *Scheduler) RemoveWorker(ctx context.Context, name string, deleteRelatedJobs bool) error {
	if !s.workers.Remove(name) {
		return fmt.Errorf("%w: %q", jobqueue.ErrUnknownWorker, name)
	}
	if deleteRelatedJobs {
		if err := s.store.RemoveJobsByWorkerName(ctx, name); err != nil {
			return fmt.Errorf("remove jobs of worker %q: %w", name, err)
		}
	}
	return nil
}

// Workers returns the registered workers in registration order.
func (s *Scheduler) Workers() []*worker.Worker { return s.workers.Workers() }

// Worker returns the named worker.
func (s *Scheduler) Worker(name string) (*worker.Worker, bool) { return s.workers.Get(name) }

// ──────────────────────────────────────────────────
// Jobs
// ──────────────────────────────────────────────────

// AddJob marshals payload to JSON and adds a job for workerName.
// See AddRawJob.
func (s *Scheduler) AddJob(ctx context.Context, workerName string, payload any, opts ...job.Option) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload for worker %q: %w", workerName, err)
	}
	return s.AddRawJob(ctx, workerName, data, opts...)
}

// AddRawJob persists a job with a pre-serialized payload and returns its
// id. It fails with ErrUnknownWorker when workerName is not registered.
// Unless job.WithoutStart is given the run loop is started.
func (s *Scheduler) AddRawJob(ctx context.Context, workerName string, payload []byte, opts ...job.Option) (string, error) {
	if _, ok := s.workers.Get(workerName); !ok {
		return "", fmt.Errorf("%w: %q", jobqueue.ErrUnknownWorker, workerName)
	}
	if len(payload) == 0 {
		payload = []byte("{}")
	}

	o := job.DefaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	r := &job.Record{
		ID:         id.NewJobID(),
		WorkerName: workerName,
		Payload:    append(json.RawMessage(nil), payload...),
		MetaData:   job.MetaData{Errors: []string{}},
		Attempts:   o.Attempts,
		Created:    time.Now().UTC(),
		Timeout:    o.Timeout,
		Priority:   o.Priority,
		Status:     job.StatusIdle,
	}
	if err := s.store.AddJob(ctx, r); err != nil {
		return "", fmt.Errorf("add job for worker %q: %w", workerName, err)
	}
	s.extensions.EmitJobAdded(ctx, r.Clone())

	if o.StartQueue {
		if err := s.Start(ctx); err != nil {
			return r.ID, fmt.Errorf("start queue: %w", err)
		}
	}
	return r.ID, nil
}

// GetJobs returns live jobs in selection order.
func (s *Scheduler) GetJobs(ctx context.Context) ([]*job.Record, error) {
	return s.store.GetJobs(ctx)
}

// GetJobsWithDeleted returns all jobs, including soft-deleted ones.
func (s *Scheduler) GetJobsWithDeleted(ctx context.Context) ([]*job.Record, error) {
	return s.store.GetJobsWithDeleted(ctx)
}

// ──────────────────────────────────────────────────
// Lifecycle
// ──────────────────────────────────────────────────

// IsRunning reports whether the run loop is active.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Start enters the run loop. It is a no-op while running. On the
// transition it clears the executed-jobs accumulator and releases records
// left claimed by an interrupted run.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		// New work may have arrived after the loop's last scan.
		s.dirty = true
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.dirty = true
	s.executed = nil
	s.mu.Unlock()

	if err := s.resetActiveJobs(ctx); err != nil {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		return err
	}

	s.extensions.EmitQueueStarted(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	// A loop that has not yet observed a prior Stop keeps serving.
	if s.running && s.loopDone == nil {
		done := make(chan struct{})
		s.loopDone = done
		go s.run(done)
	}
	return nil
}

// Stop asks the run loop to halt. The loop finishes the executions of the
// current tick before it stops.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	wasRunning := s.running
	s.running = false
	s.mu.Unlock()

	if wasRunning {
		s.extensions.EmitQueueStopped(context.Background())
	}
}

// Shutdown stops the run loop and waits for it to exit. If ctx ends
// first, in-flight executions are cancelled and Shutdown waits for them
// to be recorded before returning ctx's error.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.Stop()

	s.mu.Lock()
	done := s.loopDone
	s.mu.Unlock()
	if done == nil {
		return nil
	}

	select {
	case <-done:
		s.logger.Info("scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		s.logger.Warn("scheduler shutdown timed out, cancelling active jobs")
		s.mu.Lock()
		cancel := s.execCancel
		s.mu.Unlock()
		cancel(errShutdown)
		<-done

		s.mu.Lock()
		s.execCtx, s.execCancel = context.WithCancelCause(context.Background())
		s.mu.Unlock()
		return ctx.Err()
	}
}

// Close calls Shutdown bounded by the configured ShutdownTimeout.
func (s *Scheduler) Close() error {
	s.mu.Lock()
	timeout := s.settings.ShutdownTimeout
	s.mu.Unlock()

	ctx := context.Background()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return s.Shutdown(ctx)
}

// resetActiveJobs releases records left Active by an interrupted run.
// Records with a live execution in this process are left alone.
func (s *Scheduler) resetActiveJobs(ctx context.Context) error {
	marked, err := s.store.GetActiveMarkedJobs(ctx)
	if err != nil {
		return fmt.Errorf("get active jobs: %w", err)
	}
	for _, r := range marked {
		if s.isTracked(r.ID) {
			continue
		}
		r.Active = false
		if err := s.store.UpdateJob(ctx, r); err != nil {
			return fmt.Errorf("reset active job %s: %w", r.ID, err)
		}
	}
	return nil
}
