// Package jobqueue provides a persistent, priority-ordered job queue for Go
// with named workers, bounded per-worker and global concurrency, attempt
// limits, soft and hard deletion, and cooperative cancellation and timeout
// of in-flight work.
//
// jobqueue is a library. Pick a store, register workers as ordinary Go
// functions, and submit jobs:
//
//	s, err := scheduler.New(memory.New(),
//	    scheduler.WithConcurrency(8),
//	)
//
//	_ = s.AddWorker(worker.New("send-email",
//	    func(ctx context.Context, in EmailInput, jobID string) error {
//	        return mailer.Send(ctx, in.To, in.Subject)
//	    },
//	    worker.WithConcurrency(2),
//	))
//
//	jobID, err := s.AddJob(ctx, "send-email", EmailInput{To: "a@b.c"},
//	    job.WithAttempts(3),
//	    job.WithTimeout(30*time.Second),
//	)
//
// # Architecture
//
// The job package defines the record, its status machine, and the store
// contract. Backends live under store/ (memory, bun for SQLite and
// Postgres, redis). The worker package wraps handlers with concurrency
// accounting and timeouts, the queue package provides the global admission
// limiter, and the scheduler package owns the run loop. Lifecycle events
// reach extensions registered through the ext package.
//
// Errors returned at registration and submission time are sentinel values
// defined here. Execution errors are recorded on the job and reported
// through events; they never escape the run loop.
package jobqueue
