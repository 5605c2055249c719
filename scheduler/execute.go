package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/jobqueue"
	"github.com/xraph/jobqueue/job"
	"github.com/xraph/jobqueue/worker"
)

// executeJob runs one claimed record to its outcome and persists it.
// Execution errors never leave this function; they are recorded on the
// job and reported through callbacks and events.
func (s *Scheduler) executeJob(ctx context.Context, r *job.Record) {
	raw := r.Clone()

	r.Status = job.StatusProcessing
	s.persist(ctx, r, "mark job processing")
	s.extensions.EmitJobStarted(ctx, r.Clone())

	s.mu.Lock()
	execCtx := s.execCtx
	s.mu.Unlock()

	w, ok := s.workers.Get(r.WorkerName)
	start := time.Now()

	var exec *worker.Execution
	if ok {
		exec = w.Execute(execCtx, r, s.mw)
	}

	// An execution counted as active is always cancellable.
	s.mu.Lock()
	s.active++
	if exec != nil {
		s.executions[r.ID] = exec
	}
	s.mu.Unlock()

	var err error
	if exec == nil {
		err = fmt.Errorf("%w: %q", jobqueue.ErrMissingWorker, r.WorkerName)
	} else {
		<-exec.Done()
		err = exec.Err()
		s.untrack(r.ID)
	}

	if err == nil {
		s.succeed(ctx, w, r, time.Since(start))
	} else {
		s.fail(ctx, w, r, err)
	}

	if w != nil {
		w.DecreaseExecutionCount()
		w.TriggerCompletion(r)
	}
	s.extensions.EmitJobCompleted(ctx, r.Clone())

	s.mu.Lock()
	s.executed = append(s.executed, raw)
	s.active--
	s.mu.Unlock()
}

func (s *Scheduler) succeed(ctx context.Context, w *worker.Worker, r *job.Record, elapsed time.Duration) {
	w.TriggerSuccess(r)

	r.Status = job.StatusFinished
	r.Active = false
	s.persist(ctx, r, "mark job finished")
	if err := s.store.RemoveJob(ctx, r.ID); err != nil {
		s.logger.Error("failed to remove finished job",
			slog.String("job_id", r.ID),
			slog.String("error", err.Error()),
		)
	} else {
		r.IsDeleted = true
	}

	s.extensions.EmitJobSucceeded(ctx, r.Clone(), elapsed)
}

// fail records a failed execution. A cancellation is terminal regardless
// of remaining attempts; other failures re-idle the job until its attempts
// are exhausted.
func (s *Scheduler) fail(ctx context.Context, w *worker.Worker, r *job.Record, cause error) {
	r.MetaData.FailedAttempts++
	r.MetaData.Errors = append(r.MetaData.Errors, cause.Error())

	exhausted := r.MetaData.FailedAttempts >= r.Attempts
	if exhausted {
		now := time.Now().UTC()
		r.Failed = &now
	}

	switch {
	case jobqueue.IsCancelled(cause):
		r.Status = job.StatusCancelled
	case exhausted:
		r.Status = job.StatusFailed
	default:
		r.Status = job.StatusIdle
	}
	r.Active = false

	if w != nil {
		w.TriggerFailure(r, cause)
	}
	s.persist(ctx, r, "record job failure")
	s.extensions.EmitJobFailed(ctx, r.Clone(), cause)
}

func (s *Scheduler) persist(ctx context.Context, r *job.Record, action string) {
	if err := s.store.UpdateJob(ctx, r); err != nil {
		s.logger.Error("failed to "+action,
			slog.String("job_id", r.ID),
			slog.String("worker", r.WorkerName),
			slog.String("error", err.Error()),
		)
	}
}

// ──────────────────────────────────────────────────
// Execution handles
// ──────────────────────────────────────────────────

func (s *Scheduler) untrack(jobID string) {
	s.mu.Lock()
	delete(s.executions, jobID)
	s.mu.Unlock()
}

func (s *Scheduler) isTracked(jobID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.executions[jobID]
	return ok
}

// ActiveCount returns the number of executions in flight.
func (s *Scheduler) ActiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}
