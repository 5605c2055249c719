// Package audithook is a scheduler extension that bridges lifecycle events
// to an immutable audit trail backend.
//
// Every job and worker lifecycle hook emits a structured audit event
// through the [Recorder] interface. The extension assigns severity levels
// (info for normal operations, warning for retries and cancellations,
// critical for terminal failures) and metadata (worker, priority, attempts,
// elapsed time, errors).
//
//	audithook.New(audithook.RecorderFunc(func(ctx context.Context, evt *audithook.AuditEvent) error {
//	    return trail.Append(ctx, evt.Action, evt.ResourceID, evt.Metadata)
//	}))
//
// # Selective filtering
//
//	audithook.New(recorder,
//	    audithook.WithActions(
//	        audithook.ActionJobFailed,
//	        audithook.ActionJobCancelled,
//	    ),
//	)
package audithook
