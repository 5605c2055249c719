package job

import "context"

// CountOpts controls filtering for job count queries.
type CountOpts struct {
	// Status filters by job status. Empty means all statuses.
	Status Status
	// WithDeleted includes soft-deleted records.
	WithDeleted bool
}

// Store defines the persistence contract for job records. Every list query
// returns records ordered by priority (descending) then creation time
// (ascending). Records with IsDeleted set are only returned by the
// WithDeleted variants.
type Store interface {
	// AddJob persists a new record.
	AddJob(ctx context.Context, r *Record) error

	// GetJob retrieves a record by ID, including soft-deleted records.
	GetJob(ctx context.Context, jobID string) (*Record, error)

	// GetJobs returns every record that is not soft-deleted.
	GetJobs(ctx context.Context) ([]*Record, error)

	// GetJobsWithDeleted returns every record.
	GetJobsWithDeleted(ctx context.Context) ([]*Record, error)

	// GetActiveMarkedJobs returns records with Active set that are not
	// soft-deleted.
	GetActiveMarkedJobs(ctx context.Context) ([]*Record, error)

	// GetNextJob returns the first eligible record without claiming it.
	// It returns ErrJobNotFound when nothing is eligible.
	GetNextJob(ctx context.Context) (*Record, error)

	// GetWorkInProgressJob returns the first record left in processing
	// status without an active claim. It returns ErrJobNotFound when there
	// is none.
	GetWorkInProgressJob(ctx context.Context) (*Record, error)

	// GetJobsForWorker atomically claims up to count eligible records for
	// the named worker by setting Active, and returns them. A record left
	// in processing status by an interrupted run is claimable too.
	GetJobsForWorker(ctx context.Context, workerName string, count int) ([]*Record, error)

	// GetJobsForWorkerWithDeleted behaves like GetJobsForWorker but also
	// claims soft-deleted records.
	GetJobsForWorkerWithDeleted(ctx context.Context, workerName string, count int) ([]*Record, error)

	// UpdateJob persists every mutable field of an existing record.
	UpdateJob(ctx context.Context, r *Record) error

	// RemoveJob soft-deletes a record.
	RemoveJob(ctx context.Context, jobID string) error

	// RemoveJobPermanently deletes a record.
	RemoveJobPermanently(ctx context.Context, jobID string) error

	// RemoveJobsByWorkerName soft-deletes every record of the named worker.
	RemoveJobsByWorkerName(ctx context.Context, workerName string) error

	// DeleteAllJobs deletes every record.
	DeleteAllJobs(ctx context.Context) error

	// CountJobs returns the number of records matching opts.
	CountJobs(ctx context.Context, opts CountOpts) (int64, error)
}
