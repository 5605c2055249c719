package audithook

// Audit event actions. Each constant corresponds to one ext lifecycle hook
// and becomes the Action field of the audit event.
const (
	ActionWorkerAdded  = "worker.added"
	ActionJobAdded     = "job.added"
	ActionJobStarted   = "job.started"
	ActionJobSucceeded = "job.succeeded"
	ActionJobRetrying  = "job.retrying"
	ActionJobFailed    = "job.failed"
	ActionJobCancelled = "job.cancelled"
	ActionJobDeleted   = "job.deleted"
)

// Audit event categories group related actions.
const (
	CategoryJob    = "jobqueue.job"
	CategoryWorker = "jobqueue.worker"
)

// Resource types used as the Resource field in audit events.
const (
	ResourceJob    = "job"
	ResourceWorker = "worker"
)

// AllActions returns every action this extension can emit.
func AllActions() []string {
	return []string{
		ActionWorkerAdded,
		ActionJobAdded,
		ActionJobStarted,
		ActionJobSucceeded,
		ActionJobRetrying,
		ActionJobFailed,
		ActionJobCancelled,
		ActionJobDeleted,
	}
}
