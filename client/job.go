package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/xraph/jobqueue/api"
	"github.com/xraph/jobqueue/job"
)

// AddOption configures an AddJob request.
type AddOption func(*api.AddJobRequest)

// WithAttempts sets how many failures the job tolerates.
func WithAttempts(n int) AddOption {
	return func(r *api.AddJobRequest) { r.Attempts = n }
}

// WithTimeout bounds each execution of the job.
func WithTimeout(d time.Duration) AddOption {
	return func(r *api.AddJobRequest) { r.TimeoutMS = d.Milliseconds() }
}

// WithPriority sets the job priority. Higher runs first.
func WithPriority(p int) AddOption {
	return func(r *api.AddJobRequest) { r.Priority = p }
}

// WithoutStart persists the job without starting the remote run loop.
func WithoutStart() AddOption {
	return func(r *api.AddJobRequest) {
		start := false
		r.Start = &start
	}
}

// AddJob submits a job for workerName and returns its id. payload is
// encoded as JSON; a nil payload becomes an empty object.
func (c *Client) AddJob(ctx context.Context, workerName string, payload any, opts ...AddOption) (string, error) {
	req := api.AddJobRequest{Worker: workerName}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return "", fmt.Errorf("jobqueue/client: marshal payload: %w", err)
		}
		req.Payload = raw
	}
	for _, opt := range opts {
		opt(&req)
	}

	var resp api.AddJobResponse
	if err := c.do(ctx, http.MethodPost, "/jobs", nil, req, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

// GetJob fetches one job by id, deleted or not.
func (c *Client) GetJob(ctx context.Context, jobID string) (*job.Record, error) {
	var rec job.Record
	if err := c.do(ctx, http.MethodGet, "/jobs/"+url.PathEscape(jobID), nil, nil, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListOptions filters ListJobs. Zero values mean no filter and the
// server's default page size.
type ListOptions struct {
	Worker  string
	Status  job.Status
	Deleted bool
	Limit   int
	Offset  int
}

func (o ListOptions) query() url.Values {
	q := url.Values{}
	if o.Worker != "" {
		q.Set("worker", o.Worker)
	}
	if o.Status != "" {
		q.Set("status", string(o.Status))
	}
	if o.Deleted {
		q.Set("deleted", "true")
	}
	if o.Limit > 0 {
		q.Set("limit", strconv.Itoa(o.Limit))
	}
	if o.Offset > 0 {
		q.Set("offset", strconv.Itoa(o.Offset))
	}
	return q
}

// ListJobs returns jobs in selection order.
func (c *Client) ListJobs(ctx context.Context, opts ListOptions) ([]*job.Record, error) {
	var out []*job.Record
	if err := c.do(ctx, http.MethodGet, "/jobs", opts.query(), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// JobCounts returns job counts per status.
func (c *Client) JobCounts(ctx context.Context) (*api.JobCountsResponse, error) {
	var out api.JobCountsResponse
	if err := c.do(ctx, http.MethodGet, "/jobs/counts", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CancelJob cancels a job and its live execution if it has one.
func (c *Client) CancelJob(ctx context.Context, jobID string) error {
	return c.do(ctx, http.MethodPost, "/jobs/"+url.PathEscape(jobID)+"/cancel", nil, nil, nil)
}

// RequeueJob clears a job's failure and returns it to idle.
func (c *Client) RequeueJob(ctx context.Context, jobID string) error {
	return c.do(ctx, http.MethodPost, "/jobs/"+url.PathEscape(jobID)+"/requeue", nil, nil, nil)
}

// RemoveJob soft deletes a job, or deletes it from the store when
// permanent is set.
func (c *Client) RemoveJob(ctx context.Context, jobID string, permanent bool) error {
	var q url.Values
	if permanent {
		q = url.Values{"permanent": {"true"}}
	}
	return c.do(ctx, http.MethodDelete, "/jobs/"+url.PathEscape(jobID), q, nil, nil)
}
