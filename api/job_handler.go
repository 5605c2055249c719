package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/xraph/jobqueue/job"
)

const (
	defaultListLimit = 100
	maxListLimit     = 1000
	maxBodySize      = 1 << 20
)

func (a *API) listJobs(w http.ResponseWriter, r *http.Request) {
	f, err := parseListFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var records []*job.Record
	if f.Deleted {
		records, err = a.sched.GetJobsWithDeleted(r.Context())
	} else {
		records, err = a.sched.GetJobs(r.Context())
	}
	if err != nil {
		writeStoreError(w, err)
		return
	}

	out := make([]*job.Record, 0, len(records))
	for _, rec := range records {
		if f.Worker != "" && rec.WorkerName != f.Worker {
			continue
		}
		if f.Status != "" && rec.Status != f.Status {
			continue
		}
		out = append(out, rec)
	}

	if f.Offset >= len(out) {
		out = out[:0]
	} else {
		out = out[f.Offset:]
	}
	if len(out) > f.Limit {
		out = out[:f.Limit]
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) addJob(w http.ResponseWriter, r *http.Request) {
	var req AddJobRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if req.Attempts < 0 || req.TimeoutMS < 0 {
		writeError(w, http.StatusBadRequest, "attempts and timeoutMs must not be negative")
		return
	}

	opts := []job.Option{
		job.WithAttempts(req.Attempts),
		job.WithTimeout(time.Duration(req.TimeoutMS) * time.Millisecond),
		job.WithPriority(req.Priority),
	}
	if req.Start != nil && !*req.Start {
		opts = append(opts, job.WithoutStart())
	}

	jobID, err := a.sched.AddRawJob(r.Context(), req.Worker, req.Payload, opts...)
	if err != nil && jobID == "" {
		writeStoreError(w, err)
		return
	}
	if err != nil {
		a.logger.Warn("job added but queue failed to start",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
	}
	writeJSON(w, http.StatusCreated, AddJobResponse{ID: jobID})
}

func (a *API) getJob(w http.ResponseWriter, r *http.Request) {
	rec, err := a.sched.Store().GetJob(r.Context(), chi.URLParam(r, "jobId"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (a *API) cancelJob(w http.ResponseWriter, r *http.Request) {
	rec, err := a.sched.Store().GetJob(r.Context(), chi.URLParam(r, "jobId"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if rec.IsDeleted || rec.Status == job.StatusFinished {
		writeError(w, http.StatusConflict, fmt.Sprintf("job %s already finished", rec.ID))
		return
	}
	if err := a.sched.CancelActiveJob(r.Context(), rec); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) requeueJob(w http.ResponseWriter, r *http.Request) {
	rec, err := a.sched.Store().GetJob(r.Context(), chi.URLParam(r, "jobId"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if rec.IsDeleted {
		writeError(w, http.StatusConflict, fmt.Sprintf("job %s is deleted", rec.ID))
		return
	}
	if err := a.sched.RequeueJob(r.Context(), rec); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) deleteJob(w http.ResponseWriter, r *http.Request) {
	rec, err := a.sched.Store().GetJob(r.Context(), chi.URLParam(r, "jobId"))
	if err != nil {
		writeStoreError(w, err)
		return
	}

	permanent, _ := strconv.ParseBool(r.URL.Query().Get("permanent"))
	if permanent {
		err = a.sched.RemoveJobPermanent(r.Context(), rec)
	} else {
		err = a.sched.RemoveJob(r.Context(), rec)
	}
	if err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) jobCounts(w http.ResponseWriter, r *http.Request) {
	counts, err := a.countJobs(r)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, counts)
}

func parseListFilter(r *http.Request) (listJobsFilter, error) {
	q := r.URL.Query()
	f := listJobsFilter{
		Worker: q.Get("worker"),
		Status: job.Status(q.Get("status")),
		Limit:  defaultListLimit,
	}

	switch f.Status {
	case "", job.StatusIdle, job.StatusProcessing, job.StatusFinished, job.StatusFailed, job.StatusCancelled:
	default:
		return f, fmt.Errorf("invalid status %q", f.Status)
	}

	var err error
	if v := q.Get("deleted"); v != "" {
		if f.Deleted, err = strconv.ParseBool(v); err != nil {
			return f, fmt.Errorf("invalid deleted: %w", err)
		}
	}
	if v := q.Get("limit"); v != "" {
		if f.Limit, err = strconv.Atoi(v); err != nil || f.Limit <= 0 {
			return f, fmt.Errorf("invalid limit %q", v)
		}
		f.Limit = min(f.Limit, maxListLimit)
	}
	if v := q.Get("offset"); v != "" {
		if f.Offset, err = strconv.Atoi(v); err != nil || f.Offset < 0 {
			return f, fmt.Errorf("invalid offset %q", v)
		}
	}
	return f, nil
}
