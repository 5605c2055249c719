// Package ext defines the extension system of the job queue.
//
// Extensions are notified of lifecycle events and can react to them:
// recording metrics, publishing events to a broker, logging, or mirroring
// queue state for a UI. Each lifecycle hook is a separate interface so
// extensions opt in only to the events they care about.
//
// # Implementing an Extension
//
//	type MyExtension struct{}
//
//	func (e *MyExtension) Name() string { return "my-extension" }
//
//	// Opt in to specific hooks by implementing their interfaces.
//	func (e *MyExtension) OnJobSucceeded(ctx context.Context, r *job.Record, elapsed time.Duration) error {
//	    log.Printf("job %s succeeded in %s", r.ID, elapsed)
//	    return nil
//	}
//
// # Hooks
//
//   - [WorkerAdded]: a worker was registered
//   - [JobAdded]: a job was persisted
//   - [JobStarted]: a job was marked processing
//   - [JobSucceeded]: a job finished successfully
//   - [JobFailed]: an execution failed (terminal or not)
//   - [JobCancelled]: an active job was cancelled
//   - [JobCompleted]: an execution ended, successfully or not
//   - [JobDeleted]: a job was soft or hard removed
//   - [QueueStarted], [QueueStopped], [QueueFinished]: run loop lifecycle
//
// The [Registry] fans out each event to all registered extensions that
// implement the corresponding hook interface. Hook errors are logged and
// never returned to the scheduler.
package ext
