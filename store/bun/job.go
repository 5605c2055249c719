package bunstore

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/xraph/jobqueue"
	"github.com/xraph/jobqueue/job"
)

// terminalStatuses are never selected for execution.
var terminalStatuses = []string{
	string(job.StatusFinished),
	string(job.StatusFailed),
	string(job.StatusCancelled),
}

// ordered applies the queue ordering: priority DESC, created ASC.
func ordered(q *bun.SelectQuery) *bun.SelectQuery {
	return q.Order("priority DESC", "created ASC", "id ASC")
}

// eligible restricts q to unclaimed, non-terminal records.
func eligible(q *bun.SelectQuery) *bun.SelectQuery {
	return q.
		Where("active = ?", false).
		Where("failed IS NULL").
		Where("status NOT IN (?)", bun.In(terminalStatuses))
}

func live(q *bun.SelectQuery) *bun.SelectQuery {
	return q.Where("is_deleted = ?", false)
}

// AddJob persists a new record.
func (s *Store) AddJob(ctx context.Context, r *job.Record) error {
	m, err := toJobModel(r)
	if err != nil {
		return err
	}
	_, err = s.db.NewInsert().Model(m).Exec(ctx)
	if err != nil {
		if isDuplicateKey(err) {
			return jobqueue.ErrJobAlreadyExists
		}
		return fmt.Errorf("jobqueue/bun: add job: %w", err)
	}
	return nil
}

// GetJob retrieves a record by ID.
func (s *Store) GetJob(ctx context.Context, jobID string) (*job.Record, error) {
	m := new(jobModel)
	err := s.db.NewSelect().Model(m).
		Where("id = ?", jobID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, jobqueue.ErrJobNotFound
		}
		return nil, fmt.Errorf("jobqueue/bun: get job: %w", err)
	}
	return fromJobModel(m)
}

// GetJobs returns every record that is not soft-deleted.
func (s *Store) GetJobs(ctx context.Context) ([]*job.Record, error) {
	var models []jobModel
	err := ordered(live(s.db.NewSelect().Model(&models))).Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("jobqueue/bun: get jobs: %w", err)
	}
	return fromJobModels(models)
}

// GetJobsWithDeleted returns every record.
func (s *Store) GetJobsWithDeleted(ctx context.Context) ([]*job.Record, error) {
	var models []jobModel
	err := ordered(s.db.NewSelect().Model(&models)).Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("jobqueue/bun: get jobs with deleted: %w", err)
	}
	return fromJobModels(models)
}

// GetActiveMarkedJobs returns claimed records that are not soft-deleted.
func (s *Store) GetActiveMarkedJobs(ctx context.Context) ([]*job.Record, error) {
	var models []jobModel
	q := live(s.db.NewSelect().Model(&models)).Where("active = ?", true)
	if err := ordered(q).Scan(ctx); err != nil {
		return nil, fmt.Errorf("jobqueue/bun: get active jobs: %w", err)
	}
	return fromJobModels(models)
}

// GetNextJob returns the first eligible record.
func (s *Store) GetNextJob(ctx context.Context) (*job.Record, error) {
	m := new(jobModel)
	err := ordered(eligible(live(s.db.NewSelect().Model(m)))).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, jobqueue.ErrJobNotFound
		}
		return nil, fmt.Errorf("jobqueue/bun: get next job: %w", err)
	}
	return fromJobModel(m)
}

// GetWorkInProgressJob returns the first unclaimed record left in
// processing status.
func (s *Store) GetWorkInProgressJob(ctx context.Context) (*job.Record, error) {
	m := new(jobModel)
	err := ordered(live(s.db.NewSelect().Model(m))).
		Where("active = ?", false).
		Where("status = ?", string(job.StatusProcessing)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, jobqueue.ErrJobNotFound
		}
		return nil, fmt.Errorf("jobqueue/bun: get work in progress job: %w", err)
	}
	return fromJobModel(m)
}

// GetJobsForWorker claims up to count eligible records for the worker.
// On PostgreSQL rows are locked with FOR UPDATE SKIP LOCKED so concurrent
// claimers never receive the same record.
func (s *Store) GetJobsForWorker(ctx context.Context, workerName string, count int) ([]*job.Record, error) {
	return s.claim(ctx, workerName, count, false)
}

// GetJobsForWorkerWithDeleted claims up to count eligible records for the
// worker, soft-deleted ones included.
func (s *Store) GetJobsForWorkerWithDeleted(ctx context.Context, workerName string, count int) ([]*job.Record, error) {
	return s.claim(ctx, workerName, count, true)
}

func (s *Store) claim(ctx context.Context, workerName string, count int, withDeleted bool) ([]*job.Record, error) {
	if count <= 0 {
		return nil, nil
	}

	var models []jobModel
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		q := eligible(tx.NewSelect().Model(&models)).
			Where("worker_name = ?", workerName)
		if !withDeleted {
			q = live(q)
		}
		q = ordered(q).Limit(count)
		if s.isPostgres() {
			q = q.For("UPDATE SKIP LOCKED")
		}
		if err := q.Scan(ctx); err != nil {
			return err
		}
		if len(models) == 0 {
			return nil
		}

		ids := make([]string, len(models))
		for i := range models {
			ids[i] = models[i].ID
			models[i].Active = true
		}
		_, err := tx.NewUpdate().
			Model((*jobModel)(nil)).
			Set("active = ?", true).
			Where("id IN (?)", bun.In(ids)).
			Exec(ctx)
		return err
	})
	if err != nil && !isNoRows(err) {
		return nil, fmt.Errorf("jobqueue/bun: claim jobs for %q: %w", workerName, err)
	}
	return fromJobModels(models)
}

// UpdateJob persists changes to an existing record.
func (s *Store) UpdateJob(ctx context.Context, r *job.Record) error {
	m, err := toJobModel(r)
	if err != nil {
		return err
	}
	res, err := s.db.NewUpdate().Model(m).WherePK().Exec(ctx)
	if err != nil {
		return fmt.Errorf("jobqueue/bun: update job: %w", err)
	}
	rows, _ := res.RowsAffected() //nolint:errcheck // driver always returns nil
	if rows == 0 {
		return jobqueue.ErrJobNotFound
	}
	return nil
}

// RemoveJob soft-deletes a record.
func (s *Store) RemoveJob(ctx context.Context, jobID string) error {
	res, err := s.db.NewUpdate().
		Model((*jobModel)(nil)).
		Set("is_deleted = ?", true).
		Where("id = ?", jobID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("jobqueue/bun: remove job: %w", err)
	}
	rows, _ := res.RowsAffected() //nolint:errcheck // driver always returns nil
	if rows == 0 {
		return jobqueue.ErrJobNotFound
	}
	return nil
}

// RemoveJobPermanently deletes a record.
func (s *Store) RemoveJobPermanently(ctx context.Context, jobID string) error {
	res, err := s.db.NewDelete().
		TableExpr("jobqueue_jobs").
		Where("id = ?", jobID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("jobqueue/bun: remove job permanently: %w", err)
	}
	rows, _ := res.RowsAffected() //nolint:errcheck // driver always returns nil
	if rows == 0 {
		return jobqueue.ErrJobNotFound
	}
	return nil
}

// RemoveJobsByWorkerName soft-deletes every record of the worker.
func (s *Store) RemoveJobsByWorkerName(ctx context.Context, workerName string) error {
	_, err := s.db.NewUpdate().
		Model((*jobModel)(nil)).
		Set("is_deleted = ?", true).
		Where("worker_name = ?", workerName).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("jobqueue/bun: remove jobs of %q: %w", workerName, err)
	}
	return nil
}

// DeleteAllJobs deletes every record.
func (s *Store) DeleteAllJobs(ctx context.Context) error {
	_, err := s.db.NewDelete().
		TableExpr("jobqueue_jobs").
		Where("1 = 1").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("jobqueue/bun: delete all jobs: %w", err)
	}
	return nil
}

// CountJobs returns the number of records matching the given options.
func (s *Store) CountJobs(ctx context.Context, opts job.CountOpts) (int64, error) {
	q := s.db.NewSelect().Model((*jobModel)(nil))
	if !opts.WithDeleted {
		q = live(q)
	}
	if opts.Status != "" {
		q = q.Where("status = ?", string(opts.Status))
	}
	count, err := q.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("jobqueue/bun: count jobs: %w", err)
	}
	return int64(count), nil
}
