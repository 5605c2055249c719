package api

import (
	"fmt"
	"net/http"

	"github.com/xraph/jobqueue/job"
)

func (a *API) stats(w http.ResponseWriter, r *http.Request) {
	counts, err := a.countJobs(r)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, StatsResponse{
		Running:          a.sched.IsRunning(),
		ActiveExecutions: a.sched.ActiveCount(),
		Jobs:             counts,
		Workers:          a.workerInfo(),
	})
}

func (a *API) listWorkers(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.workerInfo())
}

func (a *API) snapshot(w http.ResponseWriter, _ *http.Request) {
	if a.state == nil {
		writeError(w, http.StatusNotFound, "state tracking is not enabled")
		return
	}
	writeJSON(w, http.StatusOK, a.state.Snapshot())
}

func (a *API) workerInfo() []WorkerInfo {
	workers := a.sched.Workers()
	out := make([]WorkerInfo, len(workers))
	for i, wk := range workers {
		out[i] = WorkerInfo{
			Name:           wk.Name(),
			Concurrency:    wk.Concurrency(),
			ExecutionCount: wk.ExecutionCount(),
			Busy:           wk.IsBusy(),
		}
	}
	return out
}

func (a *API) countJobs(r *http.Request) (JobCountsResponse, error) {
	store := a.sched.Store()
	ctx := r.Context()

	var resp JobCountsResponse
	for _, c := range []struct {
		opts job.CountOpts
		dst  *int64
	}{
		{job.CountOpts{Status: job.StatusIdle}, &resp.Idle},
		{job.CountOpts{Status: job.StatusProcessing}, &resp.Processing},
		{job.CountOpts{Status: job.StatusFinished, WithDeleted: true}, &resp.Finished},
		{job.CountOpts{Status: job.StatusFailed}, &resp.Failed},
		{job.CountOpts{Status: job.StatusCancelled}, &resp.Cancelled},
		{job.CountOpts{}, &resp.Live},
		{job.CountOpts{WithDeleted: true}, &resp.Deleted},
	} {
		n, err := store.CountJobs(ctx, c.opts)
		if err != nil {
			return resp, fmt.Errorf("count jobs: %w", err)
		}
		*c.dst = n
	}
	resp.Deleted -= resp.Live
	return resp, nil
}
