package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xraph/jobqueue"
	"github.com/xraph/jobqueue/job"
	"github.com/xraph/jobqueue/middleware"
)

// Execution is the handle of one in-flight job execution. It resolves
// exactly once: with the handler's result, with a *jobqueue.TimeoutError
// when the job's timeout elapses first, or with a *jobqueue.CancelError
// when it is cancelled.
type Execution struct {
	jobID  string
	done   chan struct{}
	err    error
	cancel context.CancelCauseFunc
}

// Done returns a channel that is closed when the execution resolves.
func (e *Execution) Done() <-chan struct{} { return e.done }

// Err returns the outcome. It is only meaningful after Done is closed.
func (e *Execution) Err() error {
	select {
	case <-e.done:
		return e.err
	default:
		return nil
	}
}

// Wait blocks until the execution resolves or ctx ends.
func (e *Execution) Wait(ctx context.Context) error {
	select {
	case <-e.done:
		return e.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Cancel requests cancellation with an optional reason. The handler's
// context is cancelled and the execution resolves with a
// *jobqueue.CancelError if it has not resolved yet.
func (e *Execution) Cancel(reason error) {
	e.cancel(&jobqueue.CancelError{JobID: e.jobID, Reason: reason})
}

// Execute starts running r on the worker and returns immediately. It
// claims one execution slot and invokes the start callback; the caller
// releases the slot with DecreaseExecutionCount once the outcome is
// recorded. mw, when non-nil, wraps the handler.
//
// With a positive r.Timeout the handler races a timer. If the timer wins
// the handler context is cancelled with the timeout as its cause and the
// execution resolves without waiting for the handler to return.
func (w *Worker) Execute(ctx context.Context, r *job.Record, mw middleware.Middleware) *Execution {
	w.increaseExecutionCount()
	w.triggerStart(r)

	runCtx, cancel := context.WithCancelCause(ctx)
	exec := &Execution{
		jobID:  r.ID,
		done:   make(chan struct{}),
		cancel: cancel,
	}

	payload := append([]byte(nil), r.Payload...)
	terminal := func(ctx context.Context) error {
		if w.limiter != nil {
			if err := w.limiter.Wait(ctx); err != nil {
				return err
			}
		}
		return w.handler(ctx, payload, r.ID)
	}

	result := make(chan error, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				result <- &jobqueue.HandlerError{JobID: r.ID, Err: panicError(p)}
			}
		}()
		var err error
		if mw != nil {
			err = mw(runCtx, r.Clone(), terminal)
		} else {
			err = terminal(runCtx)
		}
		result <- err
	}()

	go func() {
		defer close(exec.done)
		defer cancel(nil)

		var timeout <-chan time.Time
		if r.Timeout > 0 {
			timer := time.NewTimer(r.Timeout)
			defer timer.Stop()
			timeout = timer.C
		}

		select {
		case err := <-result:
			exec.err = classify(runCtx, r.ID, err)
		case <-timeout:
			terr := &jobqueue.TimeoutError{JobID: r.ID, Timeout: r.Timeout}
			cancel(terr)
			exec.err = terr
		case <-runCtx.Done():
			exec.err = interruption(runCtx, r.ID)
		}
	}()

	return exec
}

// classify maps a handler result to the execution outcome. A failure that
// coincides with a cancelled context is reported as that cancellation.
func classify(runCtx context.Context, jobID string, err error) error {
	if err == nil {
		return nil
	}
	if runCtx.Err() != nil {
		return interruption(runCtx, jobID)
	}
	var he *jobqueue.HandlerError
	if errors.As(err, &he) {
		return err
	}
	return &jobqueue.HandlerError{JobID: jobID, Err: err}
}

// interruption converts the cause of a cancelled context into a timeout or
// cancellation error.
func interruption(runCtx context.Context, jobID string) error {
	cause := context.Cause(runCtx)
	var (
		terr *jobqueue.TimeoutError
		cerr *jobqueue.CancelError
	)
	switch {
	case errors.As(cause, &terr):
		return terr
	case errors.As(cause, &cerr):
		return cerr
	default:
		return &jobqueue.CancelError{JobID: jobID, Reason: cause}
	}
}

func panicError(p any) error {
	if err, ok := p.(error); ok {
		return fmt.Errorf("panic: %w", err)
	}
	return fmt.Errorf("panic: %v", p)
}
