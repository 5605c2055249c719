package jobqueue

import "time"

// Config holds configuration for a Scheduler.
type Config struct {
	// Concurrency is the global maximum of simultaneous executions across
	// all workers. Zero or a negative value means unbounded; per-worker
	// limits still apply.
	Concurrency int

	// UpdateInterval is the pause between run loop ticks.
	UpdateInterval time.Duration

	// ShutdownTimeout bounds how long Shutdown waits for in-flight
	// executions before cancelling them.
	ShutdownTimeout time.Duration

	// Debug enables lifecycle logging of every queue event.
	Debug bool
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Concurrency:     -1,
		UpdateInterval:  10 * time.Millisecond,
		ShutdownTimeout: 30 * time.Second,
	}
}
