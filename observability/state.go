package observability

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/xraph/jobqueue/job"
)

// Snapshot is a point-in-time view of the queue, suitable for dashboards.
type Snapshot struct {
	QueuedCount    int           `json:"queuedCount"`
	ActiveCount    int           `json:"activeCount"`
	FailedCount    int           `json:"failedCount"`
	CompletedCount int           `json:"completedCount"`
	Jobs           []*job.Record `json:"jobs"`
	Completed      []*job.Record `json:"completed"`
}

// Lister is the subset of the store the tracker seeds itself from.
type Lister interface {
	GetJobs(ctx context.Context) ([]*job.Record, error)
	GetJobsWithDeleted(ctx context.Context) ([]*job.Record, error)
}

// StateTracker mirrors lifecycle events into an in-memory view of the
// queue: live jobs keyed by id and the jobs that completed successfully.
// It is safe for concurrent use.
type StateTracker struct {
	mu        sync.RWMutex
	jobs      map[string]*job.Record
	order     []string
	completed []*job.Record
	limit     int
}

// NewStateTracker creates a tracker that keeps at most completedLimit
// completed jobs (oldest dropped first). Zero or less keeps all.
func NewStateTracker(completedLimit int) *StateTracker {
	return &StateTracker{
		jobs:  make(map[string]*job.Record),
		limit: completedLimit,
	}
}

// Name implements ext.Extension.
func (s *StateTracker) Name() string { return "observability-state" }

// Refresh replaces the tracked state with the store's contents. Deleted
// records count as completed.
func (s *StateTracker) Refresh(ctx context.Context, l Lister) error {
	live, err := l.GetJobs(ctx)
	if err != nil {
		return fmt.Errorf("refresh jobs: %w", err)
	}
	all, err := l.GetJobsWithDeleted(ctx)
	if err != nil {
		return fmt.Errorf("refresh deleted jobs: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.jobs = make(map[string]*job.Record, len(live))
	s.order = s.order[:0]
	for _, r := range live {
		s.jobs[r.ID] = r.Clone()
		s.order = append(s.order, r.ID)
	}
	s.completed = s.completed[:0]
	for _, r := range all {
		if r.IsDeleted {
			s.completed = append(s.completed, r.Clone())
		}
	}
	s.trim()
	return nil
}

// Snapshot returns a copy of the tracked state.
func (s *StateTracker) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		Jobs:           make([]*job.Record, 0, len(s.order)),
		Completed:      make([]*job.Record, 0, len(s.completed)),
		CompletedCount: len(s.completed),
	}
	for _, id := range s.order {
		r := s.jobs[id]
		switch r.Status {
		case job.StatusIdle:
			snap.QueuedCount++
		case job.StatusProcessing:
			snap.ActiveCount++
		case job.StatusFailed:
			snap.FailedCount++
		}
		snap.Jobs = append(snap.Jobs, r.Clone())
	}
	for _, r := range s.completed {
		snap.Completed = append(snap.Completed, r.Clone())
	}
	return snap
}

// OnJobAdded implements ext.JobAdded.
func (s *StateTracker) OnJobAdded(_ context.Context, r *job.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[r.ID]; !ok {
		s.order = append(s.order, r.ID)
	}
	s.jobs[r.ID] = r.Clone()
	return nil
}

// OnJobStarted implements ext.JobStarted.
func (s *StateTracker) OnJobStarted(_ context.Context, r *job.Record) error {
	s.replace(r)
	return nil
}

// OnJobFailed implements ext.JobFailed.
func (s *StateTracker) OnJobFailed(_ context.Context, r *job.Record, _ error) error {
	s.replace(r)
	return nil
}

// OnJobCancelled implements ext.JobCancelled.
func (s *StateTracker) OnJobCancelled(_ context.Context, r *job.Record) error {
	s.replace(r)
	return nil
}

// OnJobSucceeded moves the job to the completed list.
func (s *StateTracker) OnJobSucceeded(_ context.Context, r *job.Record, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.remove(r.ID)
	done := r.Clone()
	done.Status = job.StatusFinished
	s.completed = append(s.completed, done)
	s.trim()
	return nil
}

// OnJobDeleted implements ext.JobDeleted.
func (s *StateTracker) OnJobDeleted(_ context.Context, r *job.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.remove(r.ID)
	return nil
}

func (s *StateTracker) replace(r *job.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[r.ID]; !ok {
		s.order = append(s.order, r.ID)
	}
	s.jobs[r.ID] = r.Clone()
}

// remove drops id from the live set. s.mu held.
func (s *StateTracker) remove(id string) {
	if _, ok := s.jobs[id]; !ok {
		return
	}
	delete(s.jobs, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// trim enforces the completed limit. s.mu held.
func (s *StateTracker) trim() {
	if s.limit > 0 && len(s.completed) > s.limit {
		s.completed = append([]*job.Record(nil), s.completed[len(s.completed)-s.limit:]...)
	}
}
