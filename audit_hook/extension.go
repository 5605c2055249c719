package audithook

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/jobqueue"
	"github.com/xraph/jobqueue/ext"
	"github.com/xraph/jobqueue/job"
)

// Compile-time interface checks.
var (
	_ ext.Extension    = (*Extension)(nil)
	_ ext.WorkerAdded  = (*Extension)(nil)
	_ ext.JobAdded     = (*Extension)(nil)
	_ ext.JobStarted   = (*Extension)(nil)
	_ ext.JobSucceeded = (*Extension)(nil)
	_ ext.JobFailed    = (*Extension)(nil)
	_ ext.JobCancelled = (*Extension)(nil)
	_ ext.JobDeleted   = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
type Recorder interface {
	// Record persists a fully-formed audit event.
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a structured audit record.
type AuditEvent struct {
	// What happened
	Action   string `json:"action"`
	Resource string `json:"resource"`
	Category string `json:"category"`

	// Details
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Severity constants.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Outcome constants.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Extension bridges scheduler lifecycle events to an audit trail backend.
// Each lifecycle hook emits a structured audit event through the [Recorder].
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements ext.Extension.
func (e *Extension) Name() string { return "audit-hook" }

// OnWorkerAdded implements ext.WorkerAdded.
func (e *Extension) OnWorkerAdded(ctx context.Context, name string) error {
	return e.record(ctx, ActionWorkerAdded, SeverityInfo, OutcomeSuccess,
		ResourceWorker, name, CategoryWorker, nil,
	)
}

// ── Job lifecycle hooks ─────────────────────────────

// OnJobAdded implements ext.JobAdded.
func (e *Extension) OnJobAdded(ctx context.Context, r *job.Record) error {
	return e.record(ctx, ActionJobAdded, SeverityInfo, OutcomeSuccess,
		ResourceJob, r.ID, CategoryJob, nil,
		"worker", r.WorkerName,
		"priority", r.Priority,
		"attempts", r.Attempts,
		"timeout_ms", r.Timeout.Milliseconds(),
	)
}

// OnJobStarted implements ext.JobStarted.
func (e *Extension) OnJobStarted(ctx context.Context, r *job.Record) error {
	return e.record(ctx, ActionJobStarted, SeverityInfo, OutcomeSuccess,
		ResourceJob, r.ID, CategoryJob, nil,
		"worker", r.WorkerName,
		"failed_attempts", r.MetaData.FailedAttempts,
	)
}

// OnJobSucceeded implements ext.JobSucceeded.
func (e *Extension) OnJobSucceeded(ctx context.Context, r *job.Record, elapsed time.Duration) error {
	return e.record(ctx, ActionJobSucceeded, SeverityInfo, OutcomeSuccess,
		ResourceJob, r.ID, CategoryJob, nil,
		"worker", r.WorkerName,
		"elapsed_ms", elapsed.Milliseconds(),
	)
}

// OnJobFailed implements ext.JobFailed. A failure that leaves attempts
// is recorded as a retry; a cancellation as a cancelled job.
func (e *Extension) OnJobFailed(ctx context.Context, r *job.Record, jobErr error) error {
	action, severity := ActionJobFailed, SeverityCritical
	switch {
	case jobqueue.IsCancelled(jobErr):
		action, severity = ActionJobCancelled, SeverityWarning
	case r.Status == job.StatusIdle:
		action, severity = ActionJobRetrying, SeverityWarning
	}
	return e.record(ctx, action, severity, OutcomeFailure,
		ResourceJob, r.ID, CategoryJob, jobErr,
		"worker", r.WorkerName,
		"failed_attempts", r.MetaData.FailedAttempts,
		"attempts", r.Attempts,
	)
}

// OnJobCancelled implements ext.JobCancelled.
func (e *Extension) OnJobCancelled(ctx context.Context, r *job.Record) error {
	return e.record(ctx, ActionJobCancelled, SeverityWarning, OutcomeSuccess,
		ResourceJob, r.ID, CategoryJob, nil,
		"worker", r.WorkerName,
	)
}

// OnJobDeleted implements ext.JobDeleted.
func (e *Extension) OnJobDeleted(ctx context.Context, r *job.Record) error {
	return e.record(ctx, ActionJobDeleted, SeverityInfo, OutcomeSuccess,
		ResourceJob, r.ID, CategoryJob, nil,
		"worker", r.WorkerName,
		"status", string(r.Status),
	)
}

// ── Internal helpers ────────────────────────────────

// record builds and sends an audit event if the action is enabled.
// The kvPairs argument is a list of key-value pairs added to Metadata.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			slog.String("action", action),
			slog.String("resource_id", resourceID),
			slog.String("error", recErr.Error()),
		)
	}
	return nil
}
