package ext

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/jobqueue/job"
)

// entry pairs a hook implementation with the extension name captured at
// registration time.
type entry[H any] struct {
	name string
	hook H
}

// Registry holds registered extensions and dispatches lifecycle events
// to them. It type-caches extensions at registration time so emit calls
// iterate only over extensions that implement the relevant hook.
//
// Extensions must be registered before events are emitted; Register is
// not safe to call concurrently with the emitters.
type Registry struct {
	extensions []Extension
	logger     *slog.Logger

	workerAdded   []entry[WorkerAdded]
	jobAdded      []entry[JobAdded]
	jobStarted    []entry[JobStarted]
	jobSucceeded  []entry[JobSucceeded]
	jobFailed     []entry[JobFailed]
	jobCancelled  []entry[JobCancelled]
	jobCompleted  []entry[JobCompleted]
	jobDeleted    []entry[JobDeleted]
	queueStarted  []entry[QueueStarted]
	queueStopped  []entry[QueueStopped]
	queueFinished []entry[QueueFinished]
}

// NewRegistry creates an extension registry with the given logger.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{logger: logger}
}

// Register adds an extension and type-asserts it into all applicable
// hook caches. Extensions are notified in registration order.
func (r *Registry) Register(e Extension) {
	r.extensions = append(r.extensions, e)
	name := e.Name()

	if h, ok := e.(WorkerAdded); ok {
		r.workerAdded = append(r.workerAdded, entry[WorkerAdded]{name, h})
	}
	if h, ok := e.(JobAdded); ok {
		r.jobAdded = append(r.jobAdded, entry[JobAdded]{name, h})
	}
	if h, ok := e.(JobStarted); ok {
		r.jobStarted = append(r.jobStarted, entry[JobStarted]{name, h})
	}
	if h, ok := e.(JobSucceeded); ok {
		r.jobSucceeded = append(r.jobSucceeded, entry[JobSucceeded]{name, h})
	}
	if h, ok := e.(JobFailed); ok {
		r.jobFailed = append(r.jobFailed, entry[JobFailed]{name, h})
	}
	if h, ok := e.(JobCancelled); ok {
		r.jobCancelled = append(r.jobCancelled, entry[JobCancelled]{name, h})
	}
	if h, ok := e.(JobCompleted); ok {
		r.jobCompleted = append(r.jobCompleted, entry[JobCompleted]{name, h})
	}
	if h, ok := e.(JobDeleted); ok {
		r.jobDeleted = append(r.jobDeleted, entry[JobDeleted]{name, h})
	}
	if h, ok := e.(QueueStarted); ok {
		r.queueStarted = append(r.queueStarted, entry[QueueStarted]{name, h})
	}
	if h, ok := e.(QueueStopped); ok {
		r.queueStopped = append(r.queueStopped, entry[QueueStopped]{name, h})
	}
	if h, ok := e.(QueueFinished); ok {
		r.queueFinished = append(r.queueFinished, entry[QueueFinished]{name, h})
	}
}

// Extensions returns all registered extensions.
func (r *Registry) Extensions() []Extension { return r.extensions }

// ──────────────────────────────────────────────────
// Event emitters
// ──────────────────────────────────────────────────

// EmitWorkerAdded notifies all extensions that implement WorkerAdded.
func (r *Registry) EmitWorkerAdded(ctx context.Context, workerName string) {
	emit(r, "OnWorkerAdded", r.workerAdded, func(h WorkerAdded) error {
		return h.OnWorkerAdded(ctx, workerName)
	})
}

// EmitJobAdded notifies all extensions that implement JobAdded.
func (r *Registry) EmitJobAdded(ctx context.Context, rec *job.Record) {
	emit(r, "OnJobAdded", r.jobAdded, func(h JobAdded) error {
		return h.OnJobAdded(ctx, rec)
	})
}

// EmitJobStarted notifies all extensions that implement JobStarted.
func (r *Registry) EmitJobStarted(ctx context.Context, rec *job.Record) {
	emit(r, "OnJobStarted", r.jobStarted, func(h JobStarted) error {
		return h.OnJobStarted(ctx, rec)
	})
}

// EmitJobSucceeded notifies all extensions that implement JobSucceeded.
func (r *Registry) EmitJobSucceeded(ctx context.Context, rec *job.Record, elapsed time.Duration) {
	emit(r, "OnJobSucceeded", r.jobSucceeded, func(h JobSucceeded) error {
		return h.OnJobSucceeded(ctx, rec, elapsed)
	})
}

// EmitJobFailed notifies all extensions that implement JobFailed.
func (r *Registry) EmitJobFailed(ctx context.Context, rec *job.Record, jobErr error) {
	emit(r, "OnJobFailed", r.jobFailed, func(h JobFailed) error {
		return h.OnJobFailed(ctx, rec, jobErr)
	})
}

// EmitJobCancelled notifies all extensions that implement JobCancelled.
func (r *Registry) EmitJobCancelled(ctx context.Context, rec *job.Record) {
	emit(r, "OnJobCancelled", r.jobCancelled, func(h JobCancelled) error {
		return h.OnJobCancelled(ctx, rec)
	})
}

// EmitJobCompleted notifies all extensions that implement JobCompleted.
func (r *Registry) EmitJobCompleted(ctx context.Context, rec *job.Record) {
	emit(r, "OnJobCompleted", r.jobCompleted, func(h JobCompleted) error {
		return h.OnJobCompleted(ctx, rec)
	})
}

// EmitJobDeleted notifies all extensions that implement JobDeleted.
func (r *Registry) EmitJobDeleted(ctx context.Context, rec *job.Record) {
	emit(r, "OnJobDeleted", r.jobDeleted, func(h JobDeleted) error {
		return h.OnJobDeleted(ctx, rec)
	})
}

// EmitQueueStarted notifies all extensions that implement QueueStarted.
func (r *Registry) EmitQueueStarted(ctx context.Context) {
	emit(r, "OnQueueStarted", r.queueStarted, func(h QueueStarted) error {
		return h.OnQueueStarted(ctx)
	})
}

// EmitQueueStopped notifies all extensions that implement QueueStopped.
func (r *Registry) EmitQueueStopped(ctx context.Context) {
	emit(r, "OnQueueStopped", r.queueStopped, func(h QueueStopped) error {
		return h.OnQueueStopped(ctx)
	})
}

// EmitQueueFinished notifies all extensions that implement QueueFinished.
func (r *Registry) EmitQueueFinished(ctx context.Context, executed []*job.Record) {
	emit(r, "OnQueueFinished", r.queueFinished, func(h QueueFinished) error {
		return h.OnQueueFinished(ctx, executed)
	})
}

// emit calls fn for every cached hook. Hook errors and panics are logged
// and never propagated; they must not block the run loop.
func emit[H any](r *Registry, hook string, entries []entry[H], call func(H) error) {
	for _, e := range entries {
		if err := invoke(e.hook, call); err != nil {
			r.logHookError(hook, e.name, err)
		}
	}
}

func invoke[H any](h H, call func(H) error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return call(h)
}

// logHookError logs a warning when a lifecycle hook returns an error.
func (r *Registry) logHookError(hook, extName string, err error) {
	r.logger.Warn("extension hook error",
		slog.String("hook", hook),
		slog.String("extension", extName),
		slog.String("error", err.Error()),
	)
}
