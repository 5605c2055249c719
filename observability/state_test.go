package observability_test

import (
	"context"
	"testing"
	"time"

	"github.com/xraph/jobqueue/job"
	"github.com/xraph/jobqueue/observability"
	"github.com/xraph/jobqueue/store/memory"
	"github.com/xraph/jobqueue/store/storetest"
)

func TestStateTracker_Lifecycle(t *testing.T) {
	ctx := context.Background()
	s := observability.NewStateTracker(0)

	a := storetest.NewRecord("email", 0, 1)
	b := storetest.NewRecord("email", 0, 2)
	_ = s.OnJobAdded(ctx, a)
	_ = s.OnJobAdded(ctx, b)

	snap := s.Snapshot()
	if snap.QueuedCount != 2 || len(snap.Jobs) != 2 {
		t.Fatalf("after add: %+v", snap)
	}

	started := a.Clone()
	started.Status = job.StatusProcessing
	_ = s.OnJobStarted(ctx, started)

	failed := b.Clone()
	failed.Status = job.StatusFailed
	_ = s.OnJobFailed(ctx, failed, nil)

	snap = s.Snapshot()
	if snap.ActiveCount != 1 || snap.FailedCount != 1 || snap.QueuedCount != 0 {
		t.Fatalf("mid run: %+v", snap)
	}

	_ = s.OnJobSucceeded(ctx, started, time.Millisecond)
	_ = s.OnJobDeleted(ctx, failed)

	snap = s.Snapshot()
	if len(snap.Jobs) != 0 {
		t.Fatalf("live jobs remain: %+v", snap.Jobs)
	}
	if snap.CompletedCount != 1 || snap.Completed[0].ID != a.ID || snap.Completed[0].Status != job.StatusFinished {
		t.Fatalf("completed = %+v", snap.Completed)
	}
}

func TestStateTracker_PreservesInsertionOrder(t *testing.T) {
	ctx := context.Background()
	s := observability.NewStateTracker(0)

	records := []*job.Record{
		storetest.NewRecord("w", 0, 3),
		storetest.NewRecord("w", 10, 1),
		storetest.NewRecord("w", 5, 2),
	}
	for _, r := range records {
		_ = s.OnJobAdded(ctx, r)
	}
	_ = s.OnJobStarted(ctx, records[0])

	snap := s.Snapshot()
	for i, r := range snap.Jobs {
		if r.ID != records[i].ID {
			t.Fatalf("position %d: got %s, want %s", i, r.ID, records[i].ID)
		}
	}
}

func TestStateTracker_CompletedLimit(t *testing.T) {
	ctx := context.Background()
	s := observability.NewStateTracker(2)

	var last []string
	for i := range 4 {
		r := storetest.NewRecord("w", 0, i)
		_ = s.OnJobSucceeded(ctx, r, 0)
		last = append(last, r.ID)
	}

	snap := s.Snapshot()
	if snap.CompletedCount != 2 {
		t.Fatalf("CompletedCount = %d, want 2", snap.CompletedCount)
	}
	if snap.Completed[0].ID != last[2] || snap.Completed[1].ID != last[3] {
		t.Fatal("expected the two most recent completions to be kept")
	}
}

func TestStateTracker_Refresh(t *testing.T) {
	ctx := context.Background()
	st := memory.New()

	live := storetest.NewRecord("w", 0, 1)
	gone := storetest.NewRecord("w", 0, 2)
	for _, r := range []*job.Record{live, gone} {
		if err := st.AddJob(ctx, r); err != nil {
			t.Fatal(err)
		}
	}
	if err := st.RemoveJob(ctx, gone.ID); err != nil {
		t.Fatal(err)
	}

	s := observability.NewStateTracker(0)
	_ = s.OnJobAdded(ctx, storetest.NewRecord("stale", 0, 9))
	if err := s.Refresh(ctx, st); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	snap := s.Snapshot()
	if len(snap.Jobs) != 1 || snap.Jobs[0].ID != live.ID {
		t.Fatalf("jobs = %+v", snap.Jobs)
	}
	if snap.CompletedCount != 1 || snap.Completed[0].ID != gone.ID {
		t.Fatalf("completed = %+v", snap.Completed)
	}
}

func TestStateTracker_SnapshotIsCopy(t *testing.T) {
	ctx := context.Background()
	s := observability.NewStateTracker(0)
	r := storetest.NewRecord("w", 0, 1)
	_ = s.OnJobAdded(ctx, r)

	snap := s.Snapshot()
	snap.Jobs[0].Status = job.StatusFailed

	if s.Snapshot().Jobs[0].Status != job.StatusIdle {
		t.Fatal("snapshot mutation leaked into tracker")
	}
}
