package client

import (
	"context"
	"net/http"

	"github.com/xraph/jobqueue/api"
	"github.com/xraph/jobqueue/observability"
)

// Stats returns the server's run state, job counts and workers.
func (c *Client) Stats(ctx context.Context) (*api.StatsResponse, error) {
	var out api.StatsResponse
	if err := c.do(ctx, http.MethodGet, "/stats", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Workers lists the server's registered workers.
func (c *Client) Workers(ctx context.Context) ([]api.WorkerInfo, error) {
	var out []api.WorkerInfo
	if err := c.do(ctx, http.MethodGet, "/workers", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Snapshot returns the server's tracked queue state. It fails with a 404
// *Error when the server runs without state tracking.
func (c *Client) Snapshot(ctx context.Context) (*observability.Snapshot, error) {
	var out observability.Snapshot
	if err := c.do(ctx, http.MethodGet, "/snapshot", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
