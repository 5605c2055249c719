package job

import "time"

// Options configures how a job is scheduled when it is added.
type Options struct {
	// Attempts is the number of failed executions allowed before the job
	// is terminally failed. Zero and one both allow a single execution.
	Attempts int

	// Timeout bounds a single execution. Zero disables the timeout.
	Timeout time.Duration

	// Priority determines selection order. Higher values run first.
	Priority int

	// StartQueue starts the run loop after the job is persisted when the
	// loop is not already running.
	StartQueue bool
}

// DefaultOptions returns Options with sensible defaults.
func DefaultOptions() Options {
	return Options{
		StartQueue: true,
	}
}

// Option is a functional option for configuring a new job.
type Option func(*Options)

// WithAttempts sets the number of failed executions allowed.
func WithAttempts(n int) Option {
	return func(o *Options) {
		if n < 0 {
			n = 0
		}
		o.Attempts = n
	}
}

// WithTimeout sets the maximum duration of a single execution. Stores
// persist timeouts in whole milliseconds, so d is rounded up to the next
// millisecond.
func WithTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.Timeout = time.Duration(TimeoutMillis(d)) * time.Millisecond
	}
}

// WithPriority sets the job priority. Higher values are processed first.
func WithPriority(p int) Option {
	return func(o *Options) {
		o.Priority = p
	}
}

// WithoutStart persists the job without starting the run loop.
func WithoutStart() Option {
	return func(o *Options) {
		o.StartQueue = false
	}
}
