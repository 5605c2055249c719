package natshook_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/xraph/jobqueue/ext"
	"github.com/xraph/jobqueue/job"
	"github.com/xraph/jobqueue/natshook"
	"github.com/xraph/jobqueue/store/storetest"
)

type message struct {
	subject string
	event   natshook.Event
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []message
	err  error
}

func (p *fakePublisher) Publish(subject string, data []byte) error {
	if p.err != nil {
		return p.err
	}
	var ev natshook.Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return err
	}
	p.mu.Lock()
	p.msgs = append(p.msgs, message{subject, ev})
	p.mu.Unlock()
	return nil
}

func TestExtension_Subjects(t *testing.T) {
	pub := &fakePublisher{}
	e := natshook.New(pub)

	reg := ext.NewRegistry(nil)
	reg.Register(e)

	ctx := context.Background()
	r := storetest.NewRecord("email", 4, 1)

	reg.EmitWorkerAdded(ctx, "email")
	reg.EmitJobAdded(ctx, r)
	reg.EmitJobStarted(ctx, r)
	reg.EmitJobSucceeded(ctx, r, 1500*time.Millisecond)
	reg.EmitJobFailed(ctx, r, errors.New("smtp down"))
	reg.EmitJobCancelled(ctx, r)
	reg.EmitJobCompleted(ctx, r)
	reg.EmitJobDeleted(ctx, r)
	reg.EmitQueueStarted(ctx)
	reg.EmitQueueStopped(ctx)
	reg.EmitQueueFinished(ctx, []*job.Record{r})

	want := []string{
		"jobqueue.worker.added",
		"jobqueue.job.added",
		"jobqueue.job.started",
		"jobqueue.job.succeeded",
		"jobqueue.job.failed",
		"jobqueue.job.cancelled",
		"jobqueue.job.completed",
		"jobqueue.job.deleted",
		"jobqueue.queue.started",
		"jobqueue.queue.stopped",
		"jobqueue.queue.finished",
	}
	if len(pub.msgs) != len(want) {
		t.Fatalf("published %d messages, want %d", len(pub.msgs), len(want))
	}
	for i, subject := range want {
		if pub.msgs[i].subject != subject {
			t.Errorf("message %d: subject %q, want %q", i, pub.msgs[i].subject, subject)
		}
		if pub.msgs[i].event.Time.IsZero() {
			t.Errorf("message %d: missing timestamp", i)
		}
	}

	added := pub.msgs[1].event
	if added.JobID != r.ID || added.Worker != "email" || added.Priority != 4 || added.Status != job.StatusIdle {
		t.Errorf("job added event = %+v", added)
	}
	if got := pub.msgs[3].event.ElapsedMS; got != 1500 {
		t.Errorf("elapsed_ms = %d, want 1500", got)
	}
	if got := pub.msgs[4].event.Error; got != "smtp down" {
		t.Errorf("error = %q", got)
	}
	if got := pub.msgs[10].event.Executed; len(got) != 1 || got[0] != r.ID {
		t.Errorf("executed = %v", got)
	}
}

func TestExtension_Prefix(t *testing.T) {
	pub := &fakePublisher{}
	e := natshook.New(pub, natshook.WithPrefix("acme.jobs"))

	if err := e.OnQueueStarted(context.Background()); err != nil {
		t.Fatalf("OnQueueStarted: %v", err)
	}
	if got := pub.msgs[0].subject; got != "acme.jobs.queue.started" {
		t.Errorf("subject = %q", got)
	}
	if got := e.Subject(natshook.EventJobFailed); got != "acme.jobs.job.failed" {
		t.Errorf("Subject = %q", got)
	}
}

func TestExtension_PublishError(t *testing.T) {
	sentinel := errors.New("connection closed")
	e := natshook.New(&fakePublisher{err: sentinel})

	err := e.OnJobAdded(context.Background(), storetest.NewRecord("email", 0, 1))
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected wrapped publish error, got %v", err)
	}
}
