package scheduler_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/xraph/jobqueue"
	"github.com/xraph/jobqueue/job"
	"github.com/xraph/jobqueue/scheduler"
	"github.com/xraph/jobqueue/store/memory"
	"github.com/xraph/jobqueue/store/storetest"
	"github.com/xraph/jobqueue/worker"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type payload struct {
	Test string `json:"test"`
}

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// harness wires a scheduler to a memory store and collects the executed
// jobs reported each time the run loop finishes.
type harness struct {
	s        *scheduler.Scheduler
	store    *memory.Store
	finished chan []*job.Record
}

func newHarness(t *testing.T, opts ...scheduler.Option) *harness {
	t.Helper()

	h := &harness{
		store:    memory.New(),
		finished: make(chan []*job.Record, 16),
	}
	base := []scheduler.Option{
		scheduler.WithLogger(quietLogger()),
		scheduler.Configured(scheduler.WithOnQueueFinish(func(executed []*job.Record) {
			h.finished <- executed
		})),
	}
	s, err := scheduler.New(h.store, append(base, opts...)...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	h.s = s

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.Shutdown(ctx); err != nil {
			t.Errorf("Shutdown: %v", err)
		}
	})
	return h
}

func (h *harness) addWorker(t *testing.T, w *worker.Worker) {
	t.Helper()
	if err := h.s.AddWorker(w); err != nil {
		t.Fatalf("AddWorker: %v", err)
	}
}

func (h *harness) addJob(t *testing.T, workerName string, p any, opts ...job.Option) string {
	t.Helper()
	jobID, err := h.s.AddJob(context.Background(), workerName, p, opts...)
	if err != nil {
		t.Fatalf("AddJob: %v", err)
	}
	return jobID
}

func (h *harness) start(t *testing.T) {
	t.Helper()
	if err := h.s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
}

// waitFinished blocks until the run loop reports it has halted.
func (h *harness) waitFinished(t *testing.T) []*job.Record {
	t.Helper()
	select {
	case executed := <-h.finished:
		return executed
	case <-time.After(5 * time.Second):
		t.Fatal("run loop did not finish")
		return nil
	}
}

func (h *harness) record(t *testing.T, jobID string) *job.Record {
	t.Helper()
	r, err := h.store.GetJob(context.Background(), jobID)
	if err != nil {
		t.Fatalf("GetJob(%s): %v", jobID, err)
	}
	return r
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(time.Millisecond)
	}
}

func noop(context.Context, payload, string) error { return nil }

// ──────────────────────────────────────────────────
// Registration and submission
// ──────────────────────────────────────────────────

func TestNew_RequiresStore(t *testing.T) {
	if _, err := scheduler.New(nil); !errors.Is(err, jobqueue.ErrNoStore) {
		t.Fatalf("expected ErrNoStore, got %v", err)
	}
}

func TestAddWorker_Duplicate(t *testing.T) {
	h := newHarness(t)
	h.addWorker(t, worker.New("testWorker", noop))

	err := h.s.AddWorker(worker.New("testWorker", noop))
	if !errors.Is(err, jobqueue.ErrDuplicateWorker) {
		t.Fatalf("expected ErrDuplicateWorker, got %v", err)
	}
	if got := len(h.s.Workers()); got != 1 {
		t.Fatalf("Workers = %d, want 1", got)
	}
}

func TestAddWorker_InvalidName(t *testing.T) {
	h := newHarness(t)
	if err := h.s.AddWorker(worker.New("", noop)); !errors.Is(err, jobqueue.ErrInvalidWorkerName) {
		t.Fatalf("expected ErrInvalidWorkerName, got %v", err)
	}
}

func TestAddJob_UnknownWorker(t *testing.T) {
	h := newHarness(t)
	h.addWorker(t, worker.New("testWorker", noop))

	_, err := h.s.AddJob(context.Background(), "wrongWorker", payload{})
	if !errors.Is(err, jobqueue.ErrUnknownWorker) {
		t.Fatalf("expected ErrUnknownWorker, got %v", err)
	}
	if n, _ := h.store.CountJobs(context.Background(), job.CountOpts{WithDeleted: true}); n != 0 {
		t.Fatalf("job persisted despite error: %d records", n)
	}
}

func TestAddJob_PersistsIdleRecord(t *testing.T) {
	h := newHarness(t)
	h.addWorker(t, worker.New("testWorker", noop))

	jobID := h.addJob(t, "testWorker", payload{Test: "1"},
		job.WithAttempts(3), job.WithTimeout(time.Second), job.WithPriority(7), job.WithoutStart())

	if h.s.IsRunning() {
		t.Fatal("WithoutStart must not start the loop")
	}

	r := h.record(t, jobID)
	if r.Status != job.StatusIdle || r.Active || r.Failed != nil || r.IsDeleted {
		t.Fatalf("unexpected initial state: %+v", r)
	}
	if r.Attempts != 3 || r.Timeout != time.Second || r.Priority != 7 {
		t.Fatalf("options not applied: %+v", r)
	}
	if r.MetaData.FailedAttempts != 0 || len(r.MetaData.Errors) != 0 {
		t.Fatalf("unexpected metadata: %+v", r.MetaData)
	}
	if string(r.Payload) != `{"test":"1"}` {
		t.Fatalf("payload = %s", r.Payload)
	}
}

// ──────────────────────────────────────────────────
// Execution
// ──────────────────────────────────────────────────

func TestRunQueue_ExecutesAndSoftRemoves(t *testing.T) {
	h := newHarness(t)

	var got atomic.Value
	h.addWorker(t, worker.New("testWorker", func(_ context.Context, p payload, _ string) error {
		got.Store(p.Test)
		return nil
	}))

	jobID := h.addJob(t, "testWorker", payload{Test: "hello"})
	executed := h.waitFinished(t)

	if got.Load() != "hello" {
		t.Fatalf("handler payload = %v", got.Load())
	}
	if len(executed) != 1 || executed[0].ID != jobID {
		t.Fatalf("executed = %v", executed)
	}

	live, _ := h.s.GetJobs(context.Background())
	if len(live) != 0 {
		t.Fatalf("finished job still live: %+v", live)
	}
	all, _ := h.s.GetJobsWithDeleted(context.Background())
	if len(all) != 1 || !all[0].IsDeleted || all[0].Status != job.StatusFinished {
		t.Fatalf("expected one soft-deleted finished job, got %+v", all)
	}
	if h.s.IsRunning() {
		t.Fatal("loop should halt once no work remains")
	}
}

func TestPriorityOrdering(t *testing.T) {
	h := newHarness(t)

	var (
		mu    sync.Mutex
		order []string
	)
	h.addWorker(t, worker.New("testWorker", func(_ context.Context, p payload, _ string) error {
		mu.Lock()
		order = append(order, p.Test)
		mu.Unlock()
		return nil
	}, worker.WithConcurrency(1)))

	h.addJob(t, "testWorker", payload{Test: "1"}, job.WithoutStart())
	h.addJob(t, "testWorker", payload{Test: "priority_id"}, job.WithPriority(100), job.WithoutStart())
	h.start(t)
	h.waitFinished(t)

	mu.Lock()
	defer mu.Unlock()
	if len(order) != 2 || order[0] != "priority_id" || order[1] != "1" {
		t.Fatalf("order = %v, want [priority_id 1]", order)
	}
}

func TestConcurrencyCeiling(t *testing.T) {
	h := newHarness(t)

	var current, peak, calls atomic.Int32
	h.addWorker(t, worker.New("testWorker", func(context.Context, payload, string) error {
		n := current.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		current.Add(-1)
		calls.Add(1)
		return nil
	}, worker.WithConcurrency(2)))

	for range 5 {
		h.addJob(t, "testWorker", payload{}, job.WithoutStart())
	}
	h.start(t)
	h.waitFinished(t)

	if calls.Load() != 5 {
		t.Fatalf("calls = %d, want 5", calls.Load())
	}
	if p := peak.Load(); p != 2 {
		t.Fatalf("peak concurrency = %d, want 2", p)
	}
}

func TestGlobalConcurrency(t *testing.T) {
	h := newHarness(t, scheduler.Configured(scheduler.WithConcurrency(1)))

	var current, peak atomic.Int32
	h.addWorker(t, worker.New("testWorker", func(context.Context, payload, string) error {
		n := current.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		current.Add(-1)
		return nil
	}, worker.WithConcurrency(4)))

	for range 4 {
		h.addJob(t, "testWorker", payload{}, job.WithoutStart())
	}
	h.start(t)
	h.waitFinished(t)

	if p := peak.Load(); p != 1 {
		t.Fatalf("peak concurrency = %d, want 1 under global ceiling", p)
	}
}

func TestAttemptExhaustion(t *testing.T) {
	h := newHarness(t)

	var calls atomic.Int32
	h.addWorker(t, worker.New("testWorker", func(context.Context, payload, string) error {
		calls.Add(1)
		return errors.New("always fails")
	}, worker.WithConcurrency(1)))

	jobID := h.addJob(t, "testWorker", payload{Test: "1"}, job.WithAttempts(5), job.WithoutStart())
	h.start(t)
	h.waitFinished(t)

	if calls.Load() != 5 {
		t.Fatalf("handler called %d times, want 5", calls.Load())
	}

	r := h.record(t, jobID)
	if r.Status != job.StatusFailed {
		t.Fatalf("status = %s, want failed", r.Status)
	}
	if r.Failed == nil {
		t.Fatal("terminal failure timestamp not set")
	}
	if r.MetaData.FailedAttempts != 5 || len(r.MetaData.Errors) != 5 {
		t.Fatalf("metadata = %+v", r.MetaData)
	}
	if r.Active || r.IsDeleted {
		t.Fatalf("failed job must be inactive and retained: %+v", r)
	}
}

func TestDefaultAttemptsRunsOnce(t *testing.T) {
	h := newHarness(t)

	var calls atomic.Int32
	h.addWorker(t, worker.New("testWorker", func(context.Context, payload, string) error {
		calls.Add(1)
		return errors.New("boom")
	}))

	jobID := h.addJob(t, "testWorker", payload{})
	h.waitFinished(t)

	if calls.Load() != 1 {
		t.Fatalf("calls = %d, want 1", calls.Load())
	}
	if r := h.record(t, jobID); r.Status != job.StatusFailed || r.Failed == nil {
		t.Fatalf("expected terminal failure, got %+v", r)
	}
}

func TestTimeout(t *testing.T) {
	h := newHarness(t)

	var (
		hookCalled atomic.Bool
		failure    = make(chan error, 1)
	)
	h.addWorker(t, worker.New("testWorker", func(ctx context.Context, _ payload, _ string) error {
		select {
		case <-time.After(100 * time.Millisecond):
			return nil
		case <-ctx.Done():
			hookCalled.Store(true)
			return ctx.Err()
		}
	}, worker.WithOnFailure(func(_ *job.Record, err error) { failure <- err })))

	start := time.Now()
	jobID := h.addJob(t, "testWorker", payload{}, job.WithTimeout(5*time.Millisecond))

	var err error
	select {
	case err = <-failure:
	case <-time.After(5 * time.Second):
		t.Fatal("timeout failure not reported")
	}
	if elapsed := time.Since(start); elapsed >= 100*time.Millisecond {
		t.Fatalf("timeout reported after %v, want well under the handler's 100ms", elapsed)
	}
	if !jobqueue.IsTimeout(err) {
		t.Fatalf("expected timeout-classified error, got %v", err)
	}

	h.waitFinished(t)
	waitFor(t, hookCalled.Load)

	if r := h.record(t, jobID); r.Status != job.StatusFailed {
		t.Fatalf("status = %s, want failed", r.Status)
	}
}

func TestCancelJob(t *testing.T) {
	h := newHarness(t)

	var (
		started    = make(chan string, 1)
		failure    = make(chan error, 1)
		failures   atomic.Int32
		completion atomic.Int32
	)
	h.addWorker(t, worker.New("testWorker", func(ctx context.Context, _ payload, jobID string) error {
		started <- jobID
		select {
		case <-time.After(5 * time.Second):
			return nil
		case <-ctx.Done():
			return errors.New("canceled")
		}
	},
		worker.WithOnFailure(func(_ *job.Record, err error) {
			failures.Add(1)
			failure <- err
		}),
		worker.WithOnCompletion(func(*job.Record) { completion.Add(1) }),
	))

	jobID := h.addJob(t, "testWorker", payload{Test: "1"})
	if got := <-started; got != jobID {
		t.Fatalf("started %s, want %s", got, jobID)
	}

	reason := errors.New("canceled")
	if err := h.s.CancelJob(jobID, reason); err != nil {
		t.Fatalf("CancelJob: %v", err)
	}

	err := <-failure
	if !jobqueue.IsCancelled(err) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if !errors.Is(err, reason) {
		t.Fatalf("reason not carried: %v", err)
	}

	h.waitFinished(t)

	if failures.Load() != 1 || completion.Load() != 1 {
		t.Fatalf("failure/completion callbacks = %d/%d, want 1/1", failures.Load(), completion.Load())
	}
	if r := h.record(t, jobID); r.Status != job.StatusCancelled {
		t.Fatalf("status = %s, want cancelled", r.Status)
	}
}

func TestCancelJob_NotRunning(t *testing.T) {
	h := newHarness(t)
	if err := h.s.CancelJob("job_missing", nil); !errors.Is(err, jobqueue.ErrJobNotRunning) {
		t.Fatalf("expected ErrJobNotRunning, got %v", err)
	}
}

func TestCancelActiveJob_Idle(t *testing.T) {
	h := newHarness(t)

	var calls atomic.Int32
	h.addWorker(t, worker.New("testWorker", func(context.Context, payload, string) error {
		calls.Add(1)
		return nil
	}))

	jobID := h.addJob(t, "testWorker", payload{}, job.WithoutStart())
	if err := h.s.CancelActiveJob(context.Background(), h.record(t, jobID)); err != nil {
		t.Fatalf("CancelActiveJob: %v", err)
	}

	h.start(t)
	h.waitFinished(t)

	if calls.Load() != 0 {
		t.Fatal("cancelled job must not run")
	}
	if r := h.record(t, jobID); r.Status != job.StatusCancelled || r.Active {
		t.Fatalf("unexpected record: %+v", r)
	}
}

func TestCancelAllActiveJobs(t *testing.T) {
	h := newHarness(t)

	started := make(chan struct{}, 2)
	h.addWorker(t, worker.New("testWorker", func(ctx context.Context, _ payload, _ string) error {
		started <- struct{}{}
		<-ctx.Done()
		return ctx.Err()
	}, worker.WithConcurrency(2)))

	first := h.addJob(t, "testWorker", payload{}, job.WithoutStart())
	second := h.addJob(t, "testWorker", payload{}, job.WithoutStart())
	h.start(t)
	<-started
	<-started

	if err := h.s.CancelAllActiveJobs(context.Background()); err != nil {
		t.Fatalf("CancelAllActiveJobs: %v", err)
	}
	h.waitFinished(t)

	for _, jobID := range []string{first, second} {
		if r := h.record(t, jobID); r.Status != job.StatusCancelled || r.Active {
			t.Fatalf("job %s: %+v", jobID, r)
		}
	}
}

type cancelCounter struct{ n atomic.Int32 }

func (c *cancelCounter) Name() string { return "cancel-counter" }

func (c *cancelCounter) OnJobCancelled(context.Context, *job.Record) error {
	c.n.Add(1)
	return nil
}

func TestCancelAllActiveJobs_IncludesQueued(t *testing.T) {
	counter := &cancelCounter{}
	h := newHarness(t, scheduler.WithExtension(counter))

	var calls atomic.Int32
	h.addWorker(t, worker.New("testWorker", func(context.Context, payload, string) error {
		calls.Add(1)
		return nil
	}))

	first := h.addJob(t, "testWorker", payload{}, job.WithoutStart())
	second := h.addJob(t, "testWorker", payload{}, job.WithoutStart())

	if err := h.s.CancelAllActiveJobs(context.Background()); err != nil {
		t.Fatalf("CancelAllActiveJobs: %v", err)
	}
	for _, jobID := range []string{first, second} {
		if r := h.record(t, jobID); r.Status != job.StatusCancelled || r.Active {
			t.Fatalf("queued job %s: status=%s active=%v, want cancelled", jobID, r.Status, r.Active)
		}
	}
	if got := counter.n.Load(); got != 2 {
		t.Errorf("OnJobCancelled fired %d times, want 2", got)
	}

	h.start(t)
	h.waitFinished(t)
	if calls.Load() != 0 {
		t.Errorf("cancelled jobs ran %d times", calls.Load())
	}
}

func TestHandlerPanicIsRecorded(t *testing.T) {
	h := newHarness(t)
	h.addWorker(t, worker.New("testWorker", func(context.Context, payload, string) error {
		panic("kaboom")
	}))

	jobID := h.addJob(t, "testWorker", payload{})
	h.waitFinished(t)

	r := h.record(t, jobID)
	if r.Status != job.StatusFailed || len(r.MetaData.Errors) != 1 {
		t.Fatalf("unexpected record after panic: %+v", r)
	}
}

// ──────────────────────────────────────────────────
// Lifecycle
// ──────────────────────────────────────────────────

func TestStart_Idempotent(t *testing.T) {
	h := newHarness(t)

	var calls atomic.Int32
	release := make(chan struct{})
	h.addWorker(t, worker.New("testWorker", func(context.Context, payload, string) error {
		calls.Add(1)
		<-release
		return nil
	}))

	h.addJob(t, "testWorker", payload{}, job.WithoutStart())
	h.start(t)
	h.start(t)
	waitFor(t, func() bool { return calls.Load() == 1 })
	h.start(t)

	close(release)
	h.waitFinished(t)

	if calls.Load() != 1 {
		t.Fatalf("calls = %d, want 1", calls.Load())
	}
	select {
	case <-h.finished:
		t.Fatal("loop finished twice")
	case <-time.After(20 * time.Millisecond):
	}
}

func TestStart_ResetsInterruptedJobs(t *testing.T) {
	h := newHarness(t)

	var calls atomic.Int32
	h.addWorker(t, worker.NewRaw("testWorker", func(context.Context, []byte, string) error {
		calls.Add(1)
		return nil
	}))

	// Left behind by a process that died mid-execution.
	claimed := storetest.NewRecord("testWorker", 0, 1)
	claimed.Active = true
	inProgress := storetest.NewRecord("testWorker", 0, 2)
	inProgress.Active = true
	inProgress.Status = job.StatusProcessing
	for _, r := range []*job.Record{claimed, inProgress} {
		if err := h.store.AddJob(context.Background(), r); err != nil {
			t.Fatal(err)
		}
	}

	h.start(t)
	h.waitFinished(t)

	if calls.Load() != 2 {
		t.Fatalf("calls = %d, want 2", calls.Load())
	}
	for _, r := range []*job.Record{claimed, inProgress} {
		got := h.record(t, r.ID)
		if got.Status != job.StatusFinished || !got.IsDeleted {
			t.Errorf("job %s: status=%s deleted=%v, want finished and deleted", r.ID, got.Status, got.IsDeleted)
		}
	}
	marked, _ := h.store.GetActiveMarkedJobs(context.Background())
	if len(marked) != 0 {
		t.Fatalf("active-marked jobs remain: %+v", marked)
	}
}

func TestStopHaltsLoop(t *testing.T) {
	h := newHarness(t)

	var calls atomic.Int32
	started := make(chan struct{}, 1)
	release := make(chan struct{})
	h.addWorker(t, worker.New("testWorker", func(context.Context, payload, string) error {
		calls.Add(1)
		started <- struct{}{}
		<-release
		return nil
	}, worker.WithConcurrency(1)))

	h.addJob(t, "testWorker", payload{}, job.WithoutStart())
	h.addJob(t, "testWorker", payload{}, job.WithoutStart())
	h.start(t)
	<-started

	h.s.Stop()
	close(release)
	executed := h.waitFinished(t)

	if calls.Load() != 1 || len(executed) != 1 {
		t.Fatalf("calls=%d executed=%d, want 1/1 after stop", calls.Load(), len(executed))
	}
	if h.s.IsRunning() {
		t.Fatal("IsRunning after stop")
	}
}

func TestShutdown_CancelsOnDeadline(t *testing.T) {
	h := newHarness(t)

	started := make(chan struct{})
	h.addWorker(t, worker.New("testWorker", func(ctx context.Context, _ payload, _ string) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}))

	jobID := h.addJob(t, "testWorker", payload{})
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := h.s.Shutdown(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}

	if r := h.record(t, jobID); r.Status != job.StatusCancelled {
		t.Fatalf("status = %s, want cancelled", r.Status)
	}
}

func TestConfigure_KeepsUnspecifiedSettings(t *testing.T) {
	var finished atomic.Int32
	h := newHarness(t)
	h.s.Configure(
		scheduler.WithOnQueueFinish(func([]*job.Record) { finished.Add(1) }),
		scheduler.WithUpdateInterval(time.Millisecond),
	)
	h.s.Configure(scheduler.WithConcurrency(2))

	h.addWorker(t, worker.New("testWorker", noop))
	h.addJob(t, "testWorker", payload{})

	waitFor(t, func() bool { return finished.Load() == 1 })
}

// ──────────────────────────────────────────────────
// Selection
// ──────────────────────────────────────────────────

func TestAlternateWorker(t *testing.T) {
	h := newHarness(t)

	var calls atomic.Int32
	h.addWorker(t, worker.New("testWorker", func(context.Context, payload, string) error {
		calls.Add(1)
		return nil
	}))

	// The most urgent job belongs to a worker nobody registered.
	orphan := storetest.NewRecord("ghost", 100, 1)
	if err := h.store.AddJob(context.Background(), orphan); err != nil {
		t.Fatal(err)
	}
	h.addJob(t, "testWorker", payload{}, job.WithoutStart())

	h.start(t)
	h.waitFinished(t)

	if calls.Load() != 1 {
		t.Fatalf("calls = %d, want 1", calls.Load())
	}
	if r := h.record(t, orphan.ID); r.Status != job.StatusIdle || r.Active {
		t.Fatalf("orphan job touched: %+v", r)
	}
}

func TestRemoveWorker(t *testing.T) {
	h := newHarness(t)
	h.addWorker(t, worker.New("testWorker", noop))

	jobID := h.addJob(t, "testWorker", payload{}, job.WithoutStart())
	if err := h.s.RemoveWorker(context.Background(), "testWorker", true); err != nil {
		t.Fatalf("RemoveWorker: %v", err)
	}

	if len(h.s.Workers()) != 0 {
		t.Fatal("worker still registered")
	}
	if r := h.record(t, jobID); !r.IsDeleted {
		t.Fatal("related job not soft deleted")
	}
	if err := h.s.RemoveWorker(context.Background(), "testWorker", false); !errors.Is(err, jobqueue.ErrUnknownWorker) {
		t.Fatalf("expected ErrUnknownWorker, got %v", err)
	}
}

func TestRemoveJob(t *testing.T) {
	h := newHarness(t)
	h.addWorker(t, worker.New("testWorker", noop))

	soft := h.addJob(t, "testWorker", payload{}, job.WithoutStart())
	hard := h.addJob(t, "testWorker", payload{}, job.WithoutStart())

	if err := h.s.RemoveJob(context.Background(), h.record(t, soft)); err != nil {
		t.Fatalf("RemoveJob: %v", err)
	}
	if err := h.s.RemoveJobPermanent(context.Background(), h.record(t, hard)); err != nil {
		t.Fatalf("RemoveJobPermanent: %v", err)
	}

	live, _ := h.s.GetJobs(context.Background())
	if len(live) != 0 {
		t.Fatalf("live jobs = %d, want 0", len(live))
	}
	all, _ := h.s.GetJobsWithDeleted(context.Background())
	if len(all) != 1 || all[0].ID != soft || !all[0].IsDeleted {
		t.Fatalf("with deleted = %+v, want only the soft-deleted job", all)
	}
}

// ──────────────────────────────────────────────────
// Requeue
// ──────────────────────────────────────────────────

func TestRequeueJob_WhenStopped(t *testing.T) {
	h := newHarness(t)

	var calls atomic.Int32
	h.addWorker(t, worker.New("testWorker", func(context.Context, payload, string) error {
		if calls.Add(1) == 1 {
			return errors.New("first run fails")
		}
		return nil
	}))

	jobID := h.addJob(t, "testWorker", payload{})
	h.waitFinished(t)

	failed := h.record(t, jobID)
	if failed.Status != job.StatusFailed {
		t.Fatalf("status = %s, want failed", failed.Status)
	}

	if err := h.s.RequeueJob(context.Background(), failed); err != nil {
		t.Fatalf("RequeueJob: %v", err)
	}
	h.waitFinished(t)

	if calls.Load() != 2 {
		t.Fatalf("calls = %d, want 2", calls.Load())
	}
	if r := h.record(t, jobID); r.Status != job.StatusFinished || !r.IsDeleted {
		t.Fatalf("requeued job did not finish: %+v", r)
	}
}

// Requeue writes the record claimed. While the loop runs nothing releases
// the claim, so the job waits for the next Start.
func TestRequeueJob_WhileRunningStaysClaimed(t *testing.T) {
	h := newHarness(t)

	var failedRuns atomic.Int32
	h.addWorker(t, worker.New("flaky", func(context.Context, payload, string) error {
		failedRuns.Add(1)
		return errors.New("boom")
	}))

	started := make(chan struct{})
	release := make(chan struct{})
	h.addWorker(t, worker.New("slow", func(context.Context, payload, string) error {
		close(started)
		<-release
		return nil
	}))

	jobID := h.addJob(t, "flaky", payload{})
	h.waitFinished(t)
	failed := h.record(t, jobID)

	h.addJob(t, "slow", payload{})
	<-started

	if err := h.s.RequeueJob(context.Background(), failed); err != nil {
		t.Fatalf("RequeueJob: %v", err)
	}
	close(release)
	h.waitFinished(t)

	r := h.record(t, jobID)
	if failedRuns.Load() != 1 {
		t.Fatalf("flaky ran %d times, want 1", failedRuns.Load())
	}
	if !r.Active || r.Status != job.StatusIdle || r.Failed != nil {
		t.Fatalf("requeued record = %+v, want claimed idle with no failure", r)
	}

	// The next start releases and runs it.
	h.start(t)
	h.waitFinished(t)
	if failedRuns.Load() != 2 {
		t.Fatalf("flaky ran %d times after restart, want 2", failedRuns.Load())
	}
}

func TestClose_UsesShutdownTimeout(t *testing.T) {
	cfg := jobqueue.DefaultConfig()
	cfg.ShutdownTimeout = 10 * time.Millisecond
	h := newHarness(t, scheduler.WithConfig(cfg))

	started := make(chan struct{})
	h.addWorker(t, worker.New("testWorker", func(ctx context.Context, _ payload, _ string) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}))
	h.addJob(t, "testWorker", payload{})
	<-started

	if err := h.s.Close(); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}
