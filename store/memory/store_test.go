package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/xraph/jobqueue"
	"github.com/xraph/jobqueue/job"
	"github.com/xraph/jobqueue/store"
	"github.com/xraph/jobqueue/store/storetest"
)

func TestStore(t *testing.T) {
	storetest.Run(t, func(*testing.T) store.Store { return New() })
}

func TestReturnedRecordsAreCopies(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	r := storetest.NewRecord("w", 0, 0)
	if err := s.AddJob(ctx, r); err != nil {
		t.Fatalf("AddJob: %v", err)
	}

	// Mutating the caller's record must not affect the stored one.
	r.Status = job.StatusFailed

	got, err := s.GetJob(ctx, r.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if got.Status != job.StatusIdle {
		t.Fatalf("stored status changed through caller pointer: %q", got.Status)
	}

	got.Priority = 99
	again, err := s.GetJob(ctx, r.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if again.Priority != 0 {
		t.Fatalf("stored priority changed through returned pointer: %d", again.Priority)
	}
}

func TestRemoveJobUnknown(t *testing.T) {
	t.Parallel()
	s := New()
	if err := s.RemoveJob(context.Background(), "job_missing"); err == nil {
		t.Fatal("expected error removing unknown job")
	}
}

func TestPingAfterClose(t *testing.T) {
	s := New()
	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("Ping before Close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := s.Ping(context.Background()); !errors.Is(err, jobqueue.ErrStoreClosed) {
		t.Fatalf("Ping after Close = %v, want ErrStoreClosed", err)
	}
}
