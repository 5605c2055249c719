package api

import (
	"encoding/json"

	"github.com/xraph/jobqueue/job"
)

// AddJobRequest is the body of POST /v1/jobs.
type AddJobRequest struct {
	Worker    string          `json:"worker"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Attempts  int             `json:"attempts,omitempty"`
	TimeoutMS int64           `json:"timeoutMs,omitempty"`
	Priority  int             `json:"priority,omitempty"`
	// Start defaults to true.
	Start *bool `json:"start,omitempty"`
}

// AddJobResponse is returned by POST /v1/jobs.
type AddJobResponse struct {
	ID string `json:"id"`
}

// JobCountsResponse holds job counts per status. Finished jobs are
// soft-deleted on success, so Finished counts deleted records too.
type JobCountsResponse struct {
	Idle       int64 `json:"idle"`
	Processing int64 `json:"processing"`
	Finished   int64 `json:"finished"`
	Failed     int64 `json:"failed"`
	Cancelled  int64 `json:"cancelled"`
	Live       int64 `json:"live"`
	Deleted    int64 `json:"deleted"`
}

// WorkerInfo describes a registered worker.
type WorkerInfo struct {
	Name           string `json:"name"`
	Concurrency    int    `json:"concurrency"`
	ExecutionCount int    `json:"executionCount"`
	Busy           bool   `json:"busy"`
}

// StatsResponse is returned by GET /v1/stats.
type StatsResponse struct {
	Running          bool              `json:"running"`
	ActiveExecutions int               `json:"activeExecutions"`
	Jobs             JobCountsResponse `json:"jobs"`
	Workers          []WorkerInfo      `json:"workers"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// listJobsFilter is parsed from the query string of GET /v1/jobs.
type listJobsFilter struct {
	Worker  string
	Status  job.Status
	Deleted bool
	Limit   int
	Offset  int
}
