package observability_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/xraph/jobqueue/ext"
	"github.com/xraph/jobqueue/job"
	"github.com/xraph/jobqueue/observability"
	"github.com/xraph/jobqueue/store/storetest"
)

func TestLoggingExtension_Events(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	reg := ext.NewRegistry(logger)
	reg.Register(observability.NewLoggingExtension(logger))

	ctx := context.Background()
	r := storetest.NewRecord("email", 3, 1)

	reg.EmitWorkerAdded(ctx, "email")
	reg.EmitJobAdded(ctx, r)
	reg.EmitJobStarted(ctx, r)
	reg.EmitJobSucceeded(ctx, r, time.Millisecond)
	reg.EmitJobFailed(ctx, r, errors.New("smtp down"))
	reg.EmitJobCancelled(ctx, r)
	reg.EmitJobCompleted(ctx, r)
	reg.EmitJobDeleted(ctx, r)
	reg.EmitQueueStarted(ctx)
	reg.EmitQueueStopped(ctx)
	reg.EmitQueueFinished(ctx, []*job.Record{r})

	var entries []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var m map[string]any
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("invalid log line %q: %v", line, err)
		}
		entries = append(entries, m)
	}

	want := []string{
		"worker added", "job added", "job started", "job succeeded",
		"job failed", "job cancelled", "job completed", "job deleted",
		"queue started", "queue stopped", "queue finished",
	}
	if len(entries) != len(want) {
		t.Fatalf("got %d log entries, want %d:\n%s", len(entries), len(want), buf.String())
	}
	for i, msg := range want {
		if entries[i]["msg"] != msg {
			t.Errorf("entry %d: msg %q, want %q", i, entries[i]["msg"], msg)
		}
		if entries[i]["component"] != "jobqueue" {
			t.Errorf("entry %d: missing component attr", i)
		}
	}

	failed := entries[4]
	if failed["level"] != "WARN" || failed["error"] != "smtp down" || failed["job_id"] != r.ID {
		t.Errorf("job failed entry = %v", failed)
	}
	if entries[10]["executed"] != float64(1) {
		t.Errorf("queue finished entry = %v", entries[10])
	}
}
