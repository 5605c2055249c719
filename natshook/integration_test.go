//go:build integration

package natshook_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	tcnats "github.com/testcontainers/testcontainers-go/modules/nats"

	"github.com/xraph/jobqueue/natshook"
	"github.com/xraph/jobqueue/store/storetest"
)

func TestExtension_NATS(t *testing.T) {
	ctx := context.Background()

	container, err := tcnats.Run(ctx, "nats:2.10-alpine")
	if err != nil {
		t.Fatalf("start nats container: %v", err)
	}
	t.Cleanup(func() {
		if termErr := container.Terminate(ctx); termErr != nil {
			t.Logf("terminate container: %v", termErr)
		}
	})

	uri, err := container.ConnectionString(ctx)
	if err != nil {
		t.Fatalf("get connection string: %v", err)
	}
	nc, err := natshook.Connect(uri, nil)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(nc.Close)

	msgs := make(chan *nats.Msg, 4)
	sub, err := nc.ChanSubscribe("jobqueue.job.>", msgs)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	t.Cleanup(func() { _ = sub.Unsubscribe() })
	if err := nc.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}

	r := storetest.NewRecord("email", 0, 1)
	if err := natshook.New(nc).OnJobAdded(ctx, r); err != nil {
		t.Fatalf("OnJobAdded: %v", err)
	}

	select {
	case msg := <-msgs:
		if msg.Subject != "jobqueue.job.added" {
			t.Errorf("subject = %q", msg.Subject)
		}
		var ev natshook.Event
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if ev.JobID != r.ID {
			t.Errorf("job id = %q, want %q", ev.JobID, r.ID)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no message received")
	}
}
