package scheduler

import (
	"context"
	"errors"
	"fmt"

	"github.com/xraph/jobqueue"
	"github.com/xraph/jobqueue/job"
)

// CancelJob cancels the live execution of the job. The execution resolves
// as a failure classified cancelled and the job ends in status cancelled.
// reason may be nil. It fails with ErrJobNotRunning when the job has no
// live execution in this scheduler.
//
// Cancellation is cooperative: the handler's context is cancelled, and a
// handler that ignores it keeps running until it returns on its own.
func (s *Scheduler) CancelJob(jobID string, reason error) error {
	s.mu.Lock()
	exec, ok := s.executions[jobID]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", jobqueue.ErrJobNotRunning, jobID)
	}
	exec.Cancel(reason)
	return nil
}

// CancelActiveJob marks r cancelled and inactive, cancelling its live
// execution first when there is one.
func (s *Scheduler) CancelActiveJob(ctx context.Context, r *job.Record) error {
	if s.isTracked(r.ID) {
		reason := fmt.Errorf("job %s cancelled", r.ID)
		if err := s.CancelJob(r.ID, reason); err != nil && !errors.Is(err, jobqueue.ErrJobNotRunning) {
			return err
		}
	}

	cancelled := r.Clone()
	cancelled.Active = false
	cancelled.Status = job.StatusCancelled
	if err := s.store.UpdateJob(ctx, cancelled); err != nil {
		return fmt.Errorf("cancel job %s: %w", r.ID, err)
	}
	s.extensions.EmitJobCancelled(ctx, cancelled.Clone())
	return nil
}

// CancelAllActiveJobs applies CancelActiveJob to every live job, queued
// ones included. Executing jobs are cancelled first.
func (s *Scheduler) CancelAllActiveJobs(ctx context.Context) error {
	records, err := s.store.GetJobs(ctx)
	if err != nil {
		return fmt.Errorf("list jobs: %w", err)
	}

	var errs []error
	for _, r := range records {
		if err := s.CancelActiveJob(ctx, r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RemoveJob soft deletes r.
func (s *Scheduler) RemoveJob(ctx context.Context, r *job.Record) error {
	if err := s.store.RemoveJob(ctx, r.ID); err != nil {
		return fmt.Errorf("remove job %s: %w", r.ID, err)
	}
	removed := r.Clone()
	removed.IsDeleted = true
	s.extensions.EmitJobDeleted(ctx, removed)
	return nil
}

// RemoveJobPermanent deletes r from the store.
func (s *Scheduler) RemoveJobPermanent(ctx context.Context, r *job.Record) error {
	if err := s.store.RemoveJobPermanently(ctx, r.ID); err != nil {
		return fmt.Errorf("remove job %s permanently: %w", r.ID, err)
	}
	s.extensions.EmitJobDeleted(ctx, r.Clone())
	return nil
}

// RequeueJob clears r's terminal failure and returns it to idle, then
// starts the run loop if it is not running.
//
// The record is written with Active set. It is released, and so becomes
// eligible, by the reset that runs when the loop starts; a job requeued
// while the loop is running waits for the next start.
func (s *Scheduler) RequeueJob(ctx context.Context, r *job.Record) error {
	requeued := r.Clone()
	requeued.Failed = nil
	requeued.Status = job.StatusIdle
	requeued.Active = true
	if err := s.store.UpdateJob(ctx, requeued); err != nil {
		return fmt.Errorf("requeue job %s: %w", r.ID, err)
	}

	if !s.IsRunning() {
		return s.Start(ctx)
	}
	return nil
}
