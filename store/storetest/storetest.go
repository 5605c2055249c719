// Package storetest provides a behavioural test suite shared by every
// store backend.
package storetest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/xraph/jobqueue"
	"github.com/xraph/jobqueue/id"
	"github.com/xraph/jobqueue/job"
	"github.com/xraph/jobqueue/store"
)

// Factory returns an empty, migrated store. It is called once per subtest.
type Factory func(t *testing.T) store.Store

// NewRecord returns an idle record for worker with the given priority.
// Created is offset by seq milliseconds so ordering is deterministic.
func NewRecord(worker string, priority, seq int) *job.Record {
	return &job.Record{
		ID:         id.NewJobID(),
		WorkerName: worker,
		Payload:    []byte(`{"test":true}`),
		Created:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(seq) * time.Millisecond),
		Priority:   priority,
		Status:     job.StatusIdle,
	}
}

// Run runs the full suite against stores produced by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	tests := []struct {
		name string
		fn   func(t *testing.T, s store.Store)
	}{
		{"Lifecycle", testLifecycle},
		{"AddAndGet", testAddAndGet},
		{"RoundTripFields", testRoundTripFields},
		{"SubMillisecondTimeout", testSubMillisecondTimeout},
		{"Ordering", testOrdering},
		{"NextJob", testNextJob},
		{"WorkInProgress", testWorkInProgress},
		{"ClaimForWorker", testClaimForWorker},
		{"ClaimWithDeleted", testClaimWithDeleted},
		{"ConcurrentClaim", testConcurrentClaim},
		{"ActiveMarked", testActiveMarked},
		{"SoftDeleteRoundTrip", testSoftDeleteRoundTrip},
		{"RemoveByWorker", testRemoveByWorker},
		{"DeleteAll", testDeleteAll},
		{"Count", testCount},
		{"UpdateMissing", testUpdateMissing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fn(t, newStore(t))
		})
	}
}

func mustAdd(t *testing.T, s store.Store, recs ...*job.Record) {
	t.Helper()
	for _, r := range recs {
		if err := s.AddJob(context.Background(), r); err != nil {
			t.Fatalf("AddJob(%s): %v", r.ID, err)
		}
	}
}

func ids(recs []*job.Record) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.ID
	}
	return out
}

func assertIDs(t *testing.T, got []*job.Record, want ...string) {
	t.Helper()
	g := ids(got)
	if len(g) != len(want) {
		t.Fatalf("got %d records %v, want %d %v", len(g), g, len(want), want)
	}
	for i := range want {
		if g[i] != want[i] {
			t.Fatalf("position %d: got %s, want %s (got %v)", i, g[i], want[i], g)
		}
	}
}

// ──────────────────────────────────────────────────
// Cases
// ──────────────────────────────────────────────────

func testLifecycle(t *testing.T, s store.Store) {
	ctx := context.Background()
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	if err := s.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}

func testSubMillisecondTimeout(t *testing.T, s store.Store) {
	r := NewRecord("w", 0, 0)
	r.Timeout = 500 * time.Microsecond
	mustAdd(t, s, r)

	got, err := s.GetJob(context.Background(), r.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if got.Timeout <= 0 || got.Timeout > time.Millisecond {
		t.Fatalf("Timeout = %v, want in (0, 1ms]", got.Timeout)
	}
}

func testAddAndGet(t *testing.T, s store.Store) {
	ctx := context.Background()
	r := NewRecord("w", 0, 0)
	mustAdd(t, s, r)

	if err := s.AddJob(ctx, r); !errors.Is(err, jobqueue.ErrJobAlreadyExists) {
		t.Fatalf("duplicate AddJob: got %v, want ErrJobAlreadyExists", err)
	}

	got, err := s.GetJob(ctx, r.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if got.WorkerName != "w" {
		t.Errorf("WorkerName = %q, want %q", got.WorkerName, "w")
	}

	if _, err := s.GetJob(ctx, id.NewJobID()); !errors.Is(err, jobqueue.ErrJobNotFound) {
		t.Fatalf("GetJob unknown: got %v, want ErrJobNotFound", err)
	}
}

func testRoundTripFields(t *testing.T, s store.Store) {
	ctx := context.Background()
	failed := time.Date(2024, 2, 3, 4, 5, 6, 0, time.UTC)

	r := NewRecord("w", 3, 0)
	r.Attempts = 4
	r.Timeout = 1500 * time.Millisecond
	r.Payload = []byte(`{"to":"a@b.c"}`)
	mustAdd(t, s, r)

	r.Status = job.StatusFailed
	r.Failed = &failed
	r.MetaData = job.MetaData{Errors: []string{"first", "second"}, FailedAttempts: 2}
	if err := s.UpdateJob(ctx, r); err != nil {
		t.Fatalf("UpdateJob: %v", err)
	}

	got, err := s.GetJob(ctx, r.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if got.Attempts != 4 || got.Priority != 3 || got.Timeout != 1500*time.Millisecond {
		t.Errorf("scheduling fields = %d/%d/%v", got.Attempts, got.Priority, got.Timeout)
	}
	if string(got.Payload) != `{"to":"a@b.c"}` {
		t.Errorf("Payload = %s", got.Payload)
	}
	if got.Status != job.StatusFailed {
		t.Errorf("Status = %q, want %q", got.Status, job.StatusFailed)
	}
	if got.Failed == nil || !got.Failed.Equal(failed) {
		t.Errorf("Failed = %v, want %v", got.Failed, failed)
	}
	if got.MetaData.FailedAttempts != 2 || len(got.MetaData.Errors) != 2 || got.MetaData.Errors[1] != "second" {
		t.Errorf("MetaData = %+v", got.MetaData)
	}
	if !got.Created.Equal(r.Created) {
		t.Errorf("Created = %v, want %v", got.Created, r.Created)
	}
}

func testOrdering(t *testing.T, s store.Store) {
	ctx := context.Background()
	low := NewRecord("w", 1, 0)
	highLate := NewRecord("w", 10, 2)
	highEarly := NewRecord("w", 10, 1)
	mustAdd(t, s, low, highLate, highEarly)

	got, err := s.GetJobs(ctx)
	if err != nil {
		t.Fatalf("GetJobs: %v", err)
	}
	assertIDs(t, got, highEarly.ID, highLate.ID, low.ID)
}

func testNextJob(t *testing.T, s store.Store) {
	ctx := context.Background()
	if _, err := s.GetNextJob(ctx); !errors.Is(err, jobqueue.ErrJobNotFound) {
		t.Fatalf("GetNextJob on empty store: got %v, want ErrJobNotFound", err)
	}

	now := time.Now().UTC()
	failed := NewRecord("w", 100, 0)
	failed.Status = job.StatusFailed
	failed.Failed = &now
	cancelled := NewRecord("w", 90, 0)
	cancelled.Status = job.StatusCancelled
	claimed := NewRecord("w", 80, 0)
	claimed.Active = true
	deleted := NewRecord("w", 70, 0)
	deleted.IsDeleted = true
	want := NewRecord("w", 1, 0)
	mustAdd(t, s, failed, cancelled, claimed, deleted, want)

	got, err := s.GetNextJob(ctx)
	if err != nil {
		t.Fatalf("GetNextJob: %v", err)
	}
	if got.ID != want.ID {
		t.Fatalf("GetNextJob = %s, want %s", got.ID, want.ID)
	}
	if got.Active {
		t.Error("GetNextJob must not claim the record")
	}
}

func testWorkInProgress(t *testing.T, s store.Store) {
	ctx := context.Background()
	if _, err := s.GetWorkInProgressJob(ctx); !errors.Is(err, jobqueue.ErrJobNotFound) {
		t.Fatalf("got %v, want ErrJobNotFound", err)
	}

	running := NewRecord("w", 0, 0)
	running.Status = job.StatusProcessing
	running.Active = true
	interrupted := NewRecord("w", 0, 1)
	interrupted.Status = job.StatusProcessing
	mustAdd(t, s, running, interrupted, NewRecord("w", 5, 2))

	got, err := s.GetWorkInProgressJob(ctx)
	if err != nil {
		t.Fatalf("GetWorkInProgressJob: %v", err)
	}
	if got.ID != interrupted.ID {
		t.Fatalf("got %s, want %s", got.ID, interrupted.ID)
	}
}

func testClaimForWorker(t *testing.T, s store.Store) {
	ctx := context.Background()
	a1 := NewRecord("a", 0, 0)
	a2 := NewRecord("a", 5, 1)
	a3 := NewRecord("a", 0, 2)
	b1 := NewRecord("b", 100, 0)
	mustAdd(t, s, a1, a2, a3, b1)

	got, err := s.GetJobsForWorker(ctx, "a", 2)
	if err != nil {
		t.Fatalf("GetJobsForWorker: %v", err)
	}
	assertIDs(t, got, a2.ID, a1.ID)
	for _, r := range got {
		if !r.Active {
			t.Errorf("claimed record %s not marked active", r.ID)
		}
	}

	stored, err := s.GetJob(ctx, a2.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if !stored.Active {
		t.Error("claim was not persisted")
	}

	rest, err := s.GetJobsForWorker(ctx, "a", 10)
	if err != nil {
		t.Fatalf("GetJobsForWorker: %v", err)
	}
	assertIDs(t, rest, a3.ID)

	none, err := s.GetJobsForWorker(ctx, "a", 0)
	if err != nil {
		t.Fatalf("GetJobsForWorker zero: %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("count 0 claimed %d records", len(none))
	}
}

func testClaimWithDeleted(t *testing.T, s store.Store) {
	ctx := context.Background()
	live := NewRecord("a", 0, 0)
	gone := NewRecord("a", 1, 1)
	mustAdd(t, s, live, gone)
	if err := s.RemoveJob(ctx, gone.ID); err != nil {
		t.Fatalf("RemoveJob: %v", err)
	}

	got, err := s.GetJobsForWorkerWithDeleted(ctx, "a", 10)
	if err != nil {
		t.Fatalf("GetJobsForWorkerWithDeleted: %v", err)
	}
	assertIDs(t, got, gone.ID, live.ID)
}

func testConcurrentClaim(t *testing.T, s store.Store) {
	ctx := context.Background()
	const total = 20
	for i := range total {
		mustAdd(t, s, NewRecord("w", 0, i))
	}

	var (
		mu   sync.Mutex
		seen = make(map[string]int)
		wg   sync.WaitGroup
	)
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				got, err := s.GetJobsForWorker(ctx, "w", 3)
				if err != nil {
					t.Errorf("GetJobsForWorker: %v", err)
					return
				}
				if len(got) == 0 {
					return
				}
				mu.Lock()
				for _, r := range got {
					seen[r.ID]++
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if len(seen) != total {
		t.Fatalf("claimed %d distinct records, want %d", len(seen), total)
	}
	for jobID, n := range seen {
		if n != 1 {
			t.Errorf("record %s claimed %d times", jobID, n)
		}
	}
}

func testActiveMarked(t *testing.T, s store.Store) {
	ctx := context.Background()
	active := NewRecord("w", 0, 0)
	active.Active = true
	deleted := NewRecord("w", 0, 1)
	deleted.Active = true
	deleted.IsDeleted = true
	mustAdd(t, s, active, deleted, NewRecord("w", 0, 2))

	got, err := s.GetActiveMarkedJobs(ctx)
	if err != nil {
		t.Fatalf("GetActiveMarkedJobs: %v", err)
	}
	assertIDs(t, got, active.ID)
}

func testSoftDeleteRoundTrip(t *testing.T, s store.Store) {
	ctx := context.Background()
	r := NewRecord("w", 0, 0)
	mustAdd(t, s, r)

	if err := s.RemoveJob(ctx, r.ID); err != nil {
		t.Fatalf("RemoveJob: %v", err)
	}

	live, err := s.GetJobs(ctx)
	if err != nil {
		t.Fatalf("GetJobs: %v", err)
	}
	if len(live) != 0 {
		t.Fatalf("GetJobs after soft delete returned %v", ids(live))
	}

	all, err := s.GetJobsWithDeleted(ctx)
	if err != nil {
		t.Fatalf("GetJobsWithDeleted: %v", err)
	}
	assertIDs(t, all, r.ID)
	if !all[0].IsDeleted {
		t.Error("expected IsDeleted on soft-deleted record")
	}

	if err := s.RemoveJobPermanently(ctx, r.ID); err != nil {
		t.Fatalf("RemoveJobPermanently: %v", err)
	}
	all, err = s.GetJobsWithDeleted(ctx)
	if err != nil {
		t.Fatalf("GetJobsWithDeleted: %v", err)
	}
	if len(all) != 0 {
		t.Fatalf("record survived permanent removal: %v", ids(all))
	}

	if err := s.RemoveJobPermanently(ctx, r.ID); !errors.Is(err, jobqueue.ErrJobNotFound) {
		t.Fatalf("second RemoveJobPermanently: got %v, want ErrJobNotFound", err)
	}
}

func testRemoveByWorker(t *testing.T, s store.Store) {
	ctx := context.Background()
	a := NewRecord("a", 0, 0)
	b := NewRecord("b", 0, 1)
	mustAdd(t, s, a, b)

	if err := s.RemoveJobsByWorkerName(ctx, "a"); err != nil {
		t.Fatalf("RemoveJobsByWorkerName: %v", err)
	}

	got, err := s.GetJobs(ctx)
	if err != nil {
		t.Fatalf("GetJobs: %v", err)
	}
	assertIDs(t, got, b.ID)

	all, err := s.GetJobsWithDeleted(ctx)
	if err != nil {
		t.Fatalf("GetJobsWithDeleted: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected soft delete, got %d records", len(all))
	}
}

func testDeleteAll(t *testing.T, s store.Store) {
	ctx := context.Background()
	mustAdd(t, s, NewRecord("a", 0, 0), NewRecord("b", 0, 1))

	if err := s.DeleteAllJobs(ctx); err != nil {
		t.Fatalf("DeleteAllJobs: %v", err)
	}
	all, err := s.GetJobsWithDeleted(ctx)
	if err != nil {
		t.Fatalf("GetJobsWithDeleted: %v", err)
	}
	if len(all) != 0 {
		t.Fatalf("DeleteAllJobs left %d records", len(all))
	}
}

func testCount(t *testing.T, s store.Store) {
	ctx := context.Background()
	failed := NewRecord("w", 0, 0)
	failed.Status = job.StatusFailed
	deleted := NewRecord("w", 0, 1)
	deleted.IsDeleted = true
	mustAdd(t, s, failed, deleted, NewRecord("w", 0, 2), NewRecord("w", 0, 3))

	tests := []struct {
		name string
		opts job.CountOpts
		want int64
	}{
		{"all live", job.CountOpts{}, 3},
		{"with deleted", job.CountOpts{WithDeleted: true}, 4},
		{"idle", job.CountOpts{Status: job.StatusIdle}, 2},
		{"failed", job.CountOpts{Status: job.StatusFailed}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.CountJobs(ctx, tt.opts)
			if err != nil {
				t.Fatalf("CountJobs: %v", err)
			}
			if got != tt.want {
				t.Errorf("CountJobs = %d, want %d", got, tt.want)
			}
		})
	}
}

func testUpdateMissing(t *testing.T, s store.Store) {
	err := s.UpdateJob(context.Background(), NewRecord("w", 0, 0))
	if !errors.Is(err, jobqueue.ErrJobNotFound) {
		t.Fatalf("UpdateJob unknown: got %v, want ErrJobNotFound", err)
	}
}
