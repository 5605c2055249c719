package jobqueue

import (
	"errors"
	"fmt"
	"time"
)

var (
	// Store errors.
	ErrNoStore     = errors.New("jobqueue: no store configured")
	ErrStoreClosed = errors.New("jobqueue: store closed")

	// Not found errors.
	ErrJobNotFound = errors.New("jobqueue: job not found")

	// Conflict errors.
	ErrJobAlreadyExists = errors.New("jobqueue: job already exists")

	// Registration and submission errors.
	ErrDuplicateWorker   = errors.New("jobqueue: worker already exists")
	ErrUnknownWorker     = errors.New("jobqueue: unknown worker")
	ErrInvalidWorkerName = errors.New("jobqueue: invalid worker name")

	// Execution errors.
	ErrMissingWorker = errors.New("jobqueue: worker deregistered during execution")
	ErrJobNotRunning = errors.New("jobqueue: job not currently running")
	ErrCancelled     = errors.New("jobqueue: job cancelled")
	ErrTimeout       = errors.New("jobqueue: job timed out")
)

// HandlerError wraps an error returned by a worker handler.
type HandlerError struct {
	JobID string
	Err   error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("job %s: %v", e.JobID, e.Err)
}

func (e *HandlerError) Unwrap() error { return e.Err }

// TimeoutError reports that a handler did not finish within the job's
// timeout. It matches ErrTimeout with errors.Is.
type TimeoutError struct {
	JobID   string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("job %s timed out after %s", e.JobID, e.Timeout)
}

// Is reports whether target is ErrTimeout.
func (e *TimeoutError) Is(target error) bool { return target == ErrTimeout }

// CancelError reports an explicit cancellation. Reason is the optional
// caller-supplied cause. It matches ErrCancelled with errors.Is.
type CancelError struct {
	JobID  string
	Reason error
}

func (e *CancelError) Error() string {
	if e.Reason != nil {
		return fmt.Sprintf("job %s cancelled: %v", e.JobID, e.Reason)
	}
	return fmt.Sprintf("job %s cancelled", e.JobID)
}

// Is reports whether target is ErrCancelled.
func (e *CancelError) Is(target error) bool { return target == ErrCancelled }

func (e *CancelError) Unwrap() error { return e.Reason }

// IsCancelled reports whether err carries a cancellation classification.
func IsCancelled(err error) bool { return errors.Is(err, ErrCancelled) }

// IsTimeout reports whether err carries a timeout classification.
func IsTimeout(err error) bool { return errors.Is(err, ErrTimeout) }
