package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/xraph/jobqueue"
	"github.com/xraph/jobqueue/job"
	"github.com/xraph/jobqueue/store"
)

// Ensure Store implements store.Store at compile time.
var _ store.Store = (*Store)(nil)

// Store is a fully in-memory implementation of store.Store.
// Safe for concurrent access. Intended for unit testing and development.
type Store struct {
	mu     sync.RWMutex
	jobs   map[string]*job.Record
	closed bool
}

// New returns a new empty Store.
func New() *Store {
	return &Store{
		jobs: make(map[string]*job.Record),
	}
}

// ──────────────────────────────────────────────────
// Lifecycle
// ──────────────────────────────────────────────────

// Migrate is a no-op for the memory store.
func (m *Store) Migrate(_ context.Context) error { return nil }

// Ping fails with ErrStoreClosed once Close has been called.
func (m *Store) Ping(_ context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return jobqueue.ErrStoreClosed
	}
	return nil
}

// Close marks the store closed. Records stay readable.
func (m *Store) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

// ──────────────────────────────────────────────────
// Job Store
// ──────────────────────────────────────────────────

// AddJob persists a new record.
func (m *Store) AddJob(_ context.Context, r *job.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.jobs[r.ID]; exists {
		return jobqueue.ErrJobAlreadyExists
	}
	m.jobs[r.ID] = r.Clone()
	return nil
}

// GetJob retrieves a record by ID.
func (m *Store) GetJob(_ context.Context, jobID string) (*job.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.jobs[jobID]
	if !ok {
		return nil, jobqueue.ErrJobNotFound
	}
	return r.Clone(), nil
}

// GetJobs returns every record that is not soft-deleted.
func (m *Store) GetJobs(_ context.Context) ([]*job.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.collect(func(r *job.Record) bool { return !r.IsDeleted }, 0), nil
}

// GetJobsWithDeleted returns every record.
func (m *Store) GetJobsWithDeleted(_ context.Context) ([]*job.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.collect(func(*job.Record) bool { return true }, 0), nil
}

// GetActiveMarkedJobs returns claimed records that are not soft-deleted.
func (m *Store) GetActiveMarkedJobs(_ context.Context) ([]*job.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.collect(func(r *job.Record) bool { return r.Active && !r.IsDeleted }, 0), nil
}

// GetNextJob returns the first eligible record.
func (m *Store) GetNextJob(_ context.Context) (*job.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	found := m.collect((*job.Record).Eligible, 1)
	if len(found) == 0 {
		return nil, jobqueue.ErrJobNotFound
	}
	return found[0], nil
}

// GetWorkInProgressJob returns the first unclaimed record left in
// processing status.
func (m *Store) GetWorkInProgressJob(_ context.Context) (*job.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	found := m.collect((*job.Record).WorkInProgress, 1)
	if len(found) == 0 {
		return nil, jobqueue.ErrJobNotFound
	}
	return found[0], nil
}

// GetJobsForWorker claims up to count eligible records for the worker.
func (m *Store) GetJobsForWorker(_ context.Context, workerName string, count int) ([]*job.Record, error) {
	return m.claim(workerName, count, false), nil
}

// GetJobsForWorkerWithDeleted claims up to count eligible records for the
// worker, soft-deleted ones included.
func (m *Store) GetJobsForWorkerWithDeleted(_ context.Context, workerName string, count int) ([]*job.Record, error) {
	return m.claim(workerName, count, true), nil
}

// UpdateJob persists changes to an existing record.
func (m *Store) UpdateJob(_ context.Context, r *job.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.jobs[r.ID]; !ok {
		return jobqueue.ErrJobNotFound
	}
	m.jobs[r.ID] = r.Clone()
	return nil
}

// RemoveJob soft-deletes a record.
func (m *Store) RemoveJob(_ context.Context, jobID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.jobs[jobID]
	if !ok {
		return jobqueue.ErrJobNotFound
	}
	r.IsDeleted = true
	return nil
}

// RemoveJobPermanently deletes a record.
func (m *Store) RemoveJobPermanently(_ context.Context, jobID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.jobs[jobID]; !ok {
		return jobqueue.ErrJobNotFound
	}
	delete(m.jobs, jobID)
	return nil
}

// RemoveJobsByWorkerName soft-deletes every record of the worker.
func (m *Store) RemoveJobsByWorkerName(_ context.Context, workerName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range m.jobs {
		if r.WorkerName == workerName {
			r.IsDeleted = true
		}
	}
	return nil
}

// DeleteAllJobs deletes every record.
func (m *Store) DeleteAllJobs(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.jobs = make(map[string]*job.Record)
	return nil
}

// CountJobs returns the number of records matching the given options.
func (m *Store) CountJobs(_ context.Context, opts job.CountOpts) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var count int64
	for _, r := range m.jobs {
		if r.IsDeleted && !opts.WithDeleted {
			continue
		}
		if opts.Status != "" && r.Status != opts.Status {
			continue
		}
		count++
	}
	return count, nil
}

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

// collect returns ordered copies of the records matching keep, at most
// limit of them when limit is positive. Callers must hold the lock.
func (m *Store) collect(keep func(*job.Record) bool, limit int) []*job.Record {
	matched := m.match(keep)
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	result := make([]*job.Record, len(matched))
	for i, r := range matched {
		result[i] = r.Clone()
	}
	return result
}

// match returns the stored records matching keep in queue order. Callers
// must hold the lock.
func (m *Store) match(keep func(*job.Record) bool) []*job.Record {
	matched := make([]*job.Record, 0, len(m.jobs))
	for _, r := range m.jobs {
		if keep(r) {
			matched = append(matched, r)
		}
	}
	sort.Slice(matched, func(i, k int) bool { return job.Less(matched[i], matched[k]) })
	return matched
}

func (m *Store) claim(workerName string, count int, withDeleted bool) []*job.Record {
	if count <= 0 {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	candidates := m.match(func(r *job.Record) bool {
		if r.WorkerName != workerName {
			return false
		}
		if withDeleted && r.IsDeleted {
			cp := *r
			cp.IsDeleted = false
			return cp.Eligible()
		}
		return r.Eligible()
	})
	if len(candidates) > count {
		candidates = candidates[:count]
	}

	result := make([]*job.Record, len(candidates))
	for i, r := range candidates {
		r.Active = true
		// Return a copy so callers can mutate without racing with the store.
		result[i] = r.Clone()
	}
	return result
}
