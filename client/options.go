package client

import (
	"log/slog"
	"net/http"

	"github.com/xraph/jobqueue/backoff"
)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithRetry sets how many times a failed GET is retried and the delay
// strategy between retries. maxRetries 0 disables retries.
func WithRetry(maxRetries int, strategy backoff.Strategy) Option {
	return func(c *Client) {
		c.maxRetries = maxRetries
		if strategy != nil {
			c.backoff = strategy
		}
	}
}
