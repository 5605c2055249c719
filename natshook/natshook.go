// Package natshook publishes scheduler lifecycle events to NATS subjects so
// that other processes can observe the queue without polling the store.
//
// Job events go to "<prefix>.job.<event>", queue events to
// "<prefix>.queue.<event>" and worker registrations to
// "<prefix>.worker.added". Every message body is a JSON encoded Event.
//
//	nc, _ := nats.Connect(nats.DefaultURL)
//	s, _ := scheduler.New(store, scheduler.WithExtension(natshook.New(nc)))
package natshook

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/xraph/jobqueue/ext"
	"github.com/xraph/jobqueue/job"
)

// DefaultPrefix is the subject prefix used when none is configured.
const DefaultPrefix = "jobqueue"

// Event types.
const (
	EventWorkerAdded   = "worker.added"
	EventJobAdded      = "job.added"
	EventJobStarted    = "job.started"
	EventJobSucceeded  = "job.succeeded"
	EventJobFailed     = "job.failed"
	EventJobCancelled  = "job.cancelled"
	EventJobCompleted  = "job.completed"
	EventJobDeleted    = "job.deleted"
	EventQueueStarted  = "queue.started"
	EventQueueStopped  = "queue.stopped"
	EventQueueFinished = "queue.finished"
)

// Publisher is the subset of *nats.Conn the extension needs.
type Publisher interface {
	Publish(subject string, data []byte) error
}

var _ Publisher = (*nats.Conn)(nil)

// Event is the message body published for every lifecycle event.
type Event struct {
	Type           string     `json:"type"`
	Time           time.Time  `json:"time"`
	JobID          string     `json:"job_id,omitempty"`
	Worker         string     `json:"worker,omitempty"`
	Status         job.Status `json:"status,omitempty"`
	Priority       int        `json:"priority,omitempty"`
	FailedAttempts int        `json:"failed_attempts,omitempty"`
	Error          string     `json:"error,omitempty"`
	ElapsedMS      int64      `json:"elapsed_ms,omitempty"`
	Executed       []string   `json:"executed,omitempty"`
}

// Compile-time interface checks.
var (
	_ ext.Extension     = (*Extension)(nil)
	_ ext.WorkerAdded   = (*Extension)(nil)
	_ ext.JobAdded      = (*Extension)(nil)
	_ ext.JobStarted    = (*Extension)(nil)
	_ ext.JobSucceeded  = (*Extension)(nil)
	_ ext.JobFailed     = (*Extension)(nil)
	_ ext.JobCancelled  = (*Extension)(nil)
	_ ext.JobCompleted  = (*Extension)(nil)
	_ ext.JobDeleted    = (*Extension)(nil)
	_ ext.QueueStarted  = (*Extension)(nil)
	_ ext.QueueStopped  = (*Extension)(nil)
	_ ext.QueueFinished = (*Extension)(nil)
)

// Extension forwards lifecycle events to a Publisher.
type Extension struct {
	pub    Publisher
	prefix string
	now    func() time.Time
}

// Option configures an Extension.
type Option func(*Extension)

// WithPrefix sets the subject prefix.
func WithPrefix(prefix string) Option {
	return func(e *Extension) {
		if prefix != "" {
			e.prefix = prefix
		}
	}
}

// New creates an Extension publishing through pub.
func New(pub Publisher, opts ...Option) *Extension {
	e := &Extension{
		pub:    pub,
		prefix: DefaultPrefix,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Connect dials the NATS server at url with reconnects enabled and returns
// the connection, which the caller closes.
func Connect(url string, logger *slog.Logger) (*nats.Conn, error) {
	if logger == nil {
		logger = slog.Default()
	}
	nc, err := nats.Connect(url,
		nats.Name("jobqueue"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", slog.String("error", err.Error()))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", slog.String("url", nc.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("jobqueue/natshook: connect %s: %w", url, err)
	}
	return nc, nil
}

// Name implements ext.Extension.
func (e *Extension) Name() string { return "natshook" }

// Subject returns the subject an event type is published on.
func (e *Extension) Subject(eventType string) string {
	return e.prefix + "." + eventType
}

// OnWorkerAdded implements ext.WorkerAdded.
func (e *Extension) OnWorkerAdded(_ context.Context, name string) error {
	return e.publish(Event{Type: EventWorkerAdded, Worker: name})
}

// ── Job lifecycle hooks ─────────────────────────────

// OnJobAdded implements ext.JobAdded.
func (e *Extension) OnJobAdded(_ context.Context, r *job.Record) error {
	return e.publish(e.jobEvent(EventJobAdded, r))
}

// OnJobStarted implements ext.JobStarted.
func (e *Extension) OnJobStarted(_ context.Context, r *job.Record) error {
	return e.publish(e.jobEvent(EventJobStarted, r))
}

// OnJobSucceeded implements ext.JobSucceeded.
func (e *Extension) OnJobSucceeded(_ context.Context, r *job.Record, elapsed time.Duration) error {
	ev := e.jobEvent(EventJobSucceeded, r)
	ev.ElapsedMS = elapsed.Milliseconds()
	return e.publish(ev)
}

// OnJobFailed implements ext.JobFailed.
func (e *Extension) OnJobFailed(_ context.Context, r *job.Record, err error) error {
	ev := e.jobEvent(EventJobFailed, r)
	if err != nil {
		ev.Error = err.Error()
	}
	return e.publish(ev)
}

// OnJobCancelled implements ext.JobCancelled.
func (e *Extension) OnJobCancelled(_ context.Context, r *job.Record) error {
	return e.publish(e.jobEvent(EventJobCancelled, r))
}

// OnJobCompleted implements ext.JobCompleted.
func (e *Extension) OnJobCompleted(_ context.Context, r *job.Record) error {
	return e.publish(e.jobEvent(EventJobCompleted, r))
}

// OnJobDeleted implements ext.JobDeleted.
func (e *Extension) OnJobDeleted(_ context.Context, r *job.Record) error {
	return e.publish(e.jobEvent(EventJobDeleted, r))
}

// ── Queue lifecycle hooks ───────────────────────────

// OnQueueStarted implements ext.QueueStarted.
func (e *Extension) OnQueueStarted(context.Context) error {
	return e.publish(Event{Type: EventQueueStarted})
}

// OnQueueStopped implements ext.QueueStopped.
func (e *Extension) OnQueueStopped(context.Context) error {
	return e.publish(Event{Type: EventQueueStopped})
}

// OnQueueFinished implements ext.QueueFinished.
func (e *Extension) OnQueueFinished(_ context.Context, executed []*job.Record) error {
	ids := make([]string, len(executed))
	for i, r := range executed {
		ids[i] = r.ID
	}
	return e.publish(Event{Type: EventQueueFinished, Executed: ids})
}

func (e *Extension) jobEvent(eventType string, r *job.Record) Event {
	return Event{
		Type:           eventType,
		JobID:          r.ID,
		Worker:         r.WorkerName,
		Status:         r.Status,
		Priority:       r.Priority,
		FailedAttempts: r.MetaData.FailedAttempts,
	}
}

func (e *Extension) publish(ev Event) error {
	ev.Time = e.now().UTC()
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("jobqueue/natshook: marshal %s: %w", ev.Type, err)
	}
	subject := e.Subject(ev.Type)
	if err := e.pub.Publish(subject, data); err != nil {
		return fmt.Errorf("jobqueue/natshook: publish %s: %w", subject, err)
	}
	return nil
}
