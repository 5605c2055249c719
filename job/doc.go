// Package job defines the job record, its status machine, add options,
// and the store contract.
//
// # Record
//
// A [Record] is the persisted unit of work. It carries an opaque JSON
// payload, the name of the worker that runs it, and its scheduling state:
//
//	idle → processing → finished (then soft-deleted)
//	idle → processing → idle (failed attempt, attempts remaining)
//	idle → processing → failed (attempts exhausted)
//	idle → processing → cancelled
//
// A record is eligible for selection when it is not soft-deleted, not
// claimed (Active), has no Failed timestamp, and is neither failed,
// cancelled nor finished. Eligible records are ordered by Priority
// (descending) then Created (ascending).
//
// # Options
//
// [Option] values configure a job when it is added:
//
//	s.AddJob(ctx, "resize", in,
//	    job.WithAttempts(3),
//	    job.WithTimeout(10*time.Second),
//	    job.WithPriority(5),
//	)
//
// # Store
//
// [Store] is implemented by every backend under store/. GetJobsForWorker
// is the claim operation: it must set Active on the records it returns
// atomically with selecting them.
package job
