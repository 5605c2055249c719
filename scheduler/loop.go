package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/xraph/jobqueue"
	"github.com/xraph/jobqueue/job"
)

// run is the single run loop. Ticks never overlap: each tick waits for
// every execution it dispatched before the next one begins.
func (s *Scheduler) run(done chan struct{}) {
	ctx := context.Background()

	for {
		s.mu.Lock()
		if !s.running {
			s.finish(done)
			return
		}
		s.dirty = false
		interval := s.settings.UpdateInterval
		s.mu.Unlock()

		dispatched, err := s.tick(ctx)
		if err != nil {
			s.logger.Error("scheduler tick failed", slog.String("error", err.Error()))
		}

		if !dispatched && err == nil {
			s.mu.Lock()
			if !s.dirty && s.active == 0 {
				s.running = false
				s.finish(done)
				return
			}
			s.mu.Unlock()
		}

		time.Sleep(interval)
	}
}

// finish halts the loop and reports the executed jobs. Called with s.mu
// held; it releases the lock.
func (s *Scheduler) finish(done chan struct{}) {
	executed := s.executed
	s.executed = nil
	onQueueFinish := s.settings.onQueueFinish
	s.loopDone = nil
	s.mu.Unlock()

	defer close(done)

	if onQueueFinish != nil {
		func() {
			defer func() {
				if p := recover(); p != nil {
					s.logger.Error("queue finish callback panicked", slog.Any("panic", p))
				}
			}()
			onQueueFinish(executed)
		}()
	}
	s.extensions.EmitQueueFinished(context.Background(), executed)
}

// tick selects the worker that needs attention, claims a batch for it and
// runs the batch to completion. It reports whether anything was
// dispatched.
func (s *Scheduler) tick(ctx context.Context) (bool, error) {
	next, err := s.store.GetWorkInProgressJob(ctx)
	if errors.Is(err, jobqueue.ErrJobNotFound) {
		next, err = s.store.GetNextJob(ctx)
	}
	if errors.Is(err, jobqueue.ErrJobNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("select next job: %w", err)
	}

	batch, err := s.claim(ctx, next.WorkerName)
	if err != nil {
		return false, err
	}
	if len(batch) == 0 {
		return false, nil
	}

	var g errgroup.Group
	for _, r := range batch {
		g.Go(func() error { return s.dispatch(ctx, r) })
	}
	return true, g.Wait()
}

// claim takes up to AvailableExecuters eligible jobs for the named worker.
// When that worker is unknown, saturated or has nothing eligible, the
// other workers are tried in registration order.
func (s *Scheduler) claim(ctx context.Context, workerName string) ([]*job.Record, error) {
	if w, ok := s.workers.Get(workerName); ok && !w.IsBusy() {
		batch, err := s.store.GetJobsForWorker(ctx, workerName, w.AvailableExecuters())
		if err != nil {
			return nil, fmt.Errorf("claim jobs for worker %q: %w", workerName, err)
		}
		if len(batch) > 0 {
			return batch, nil
		}
	}

	for _, w := range s.workers.Workers() {
		if w.Name() == workerName || w.IsBusy() {
			continue
		}
		batch, err := s.store.GetJobsForWorker(ctx, w.Name(), w.AvailableExecuters())
		if err != nil {
			return nil, fmt.Errorf("claim jobs for worker %q: %w", w.Name(), err)
		}
		if len(batch) > 0 {
			return batch, nil
		}
	}
	return nil, nil
}

// dispatch runs r once a global execution slot is free. A job that is
// never admitted is released for a later tick and the admission error is
// returned; execution outcomes are recorded on the job, not returned.
func (s *Scheduler) dispatch(ctx context.Context, r *job.Record) error {
	if err := s.limiter.Acquire(ctx); err != nil {
		r.Active = false
		if uerr := s.store.UpdateJob(ctx, r); uerr != nil {
			return fmt.Errorf("admit job %s: %w (release: %w)", r.ID, err, uerr)
		}
		return fmt.Errorf("admit job %s: %w", r.ID, err)
	}
	defer s.limiter.Release()

	s.executeJob(ctx, r)
	return nil
}
