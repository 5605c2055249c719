// Package ext defines the observer surface of the job queue.
// Extensions are notified of lifecycle events (worker registered, job
// added, started, succeeded, failed, ...) and can react to them: logging,
// metrics, event fan-out, UI state.
//
// Each lifecycle hook is a separate interface so extensions opt in only
// to the events they care about.
package ext

import (
	"context"
	"time"

	"github.com/xraph/jobqueue/job"
)

// Extension is the base interface all extensions must implement.
type Extension interface {
	// Name returns a unique human-readable name for the extension.
	Name() string
}

// ──────────────────────────────────────────────────
// Registration hooks
// ──────────────────────────────────────────────────

// WorkerAdded is called after a worker is registered.
type WorkerAdded interface {
	OnWorkerAdded(ctx context.Context, workerName string) error
}

// ──────────────────────────────────────────────────
// Job lifecycle hooks
// ──────────────────────────────────────────────────

// JobAdded is called after a job is persisted.
type JobAdded interface {
	OnJobAdded(ctx context.Context, r *job.Record) error
}

// JobStarted is called when a job is marked processing, before its
// handler runs.
type JobStarted interface {
	OnJobStarted(ctx context.Context, r *job.Record) error
}

// JobSucceeded is called after a job finished successfully.
type JobSucceeded interface {
	OnJobSucceeded(ctx context.Context, r *job.Record, elapsed time.Duration) error
}

// JobFailed is called after every failed execution, terminal or not.
// The record carries the updated metadata and status.
type JobFailed interface {
	OnJobFailed(ctx context.Context, r *job.Record, err error) error
}

// JobCancelled is called when an active job is cancelled through the
// scheduler.
type JobCancelled interface {
	OnJobCancelled(ctx context.Context, r *job.Record) error
}

// JobCompleted is called once per execution after success or failure
// handling.
type JobCompleted interface {
	OnJobCompleted(ctx context.Context, r *job.Record) error
}

// JobDeleted is called after a job is soft or hard removed.
type JobDeleted interface {
	OnJobDeleted(ctx context.Context, r *job.Record) error
}

// ──────────────────────────────────────────────────
// Queue lifecycle hooks
// ──────────────────────────────────────────────────

// QueueStarted is called when the run loop starts.
type QueueStarted interface {
	OnQueueStarted(ctx context.Context) error
}

// QueueStopped is called when Stop is requested.
type QueueStopped interface {
	OnQueueStopped(ctx context.Context) error
}

// QueueFinished is called when the run loop halts, with the records
// executed since it started.
type QueueFinished interface {
	OnQueueFinished(ctx context.Context, executed []*job.Record) error
}
