package observability

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/xraph/jobqueue"
	"github.com/xraph/jobqueue/ext"
	"github.com/xraph/jobqueue/job"
)

// Compile-time interface checks.
var (
	_ ext.Extension     = (*MetricsExtension)(nil)
	_ ext.WorkerAdded   = (*MetricsExtension)(nil)
	_ ext.JobAdded      = (*MetricsExtension)(nil)
	_ ext.JobStarted    = (*MetricsExtension)(nil)
	_ ext.JobSucceeded  = (*MetricsExtension)(nil)
	_ ext.JobFailed     = (*MetricsExtension)(nil)
	_ ext.JobCancelled  = (*MetricsExtension)(nil)
	_ ext.JobDeleted    = (*MetricsExtension)(nil)
	_ ext.QueueFinished = (*MetricsExtension)(nil)
)

const namespace = "jobqueue"

// MetricsExtension records lifecycle metrics with the Prometheus client.
// Register it as an extension to track add rates, success and failure
// counts per worker, run durations, and the number of in-flight jobs.
type MetricsExtension struct {
	WorkersAdded  prometheus.Counter
	JobsAdded     *prometheus.CounterVec
	JobsStarted   *prometheus.CounterVec
	JobsSucceeded *prometheus.CounterVec
	JobsFailed    *prometheus.CounterVec
	JobsCancelled *prometheus.CounterVec
	JobsDeleted   *prometheus.CounterVec
	JobsRunning   *prometheus.GaugeVec
	JobDuration   *prometheus.HistogramVec
	QueueRuns     prometheus.Counter
}

// NewMetricsExtension creates a MetricsExtension whose collectors are
// registered with reg. A nil reg uses prometheus.DefaultRegisterer.
func NewMetricsExtension(reg prometheus.Registerer) *MetricsExtension {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	byWorker := []string{"worker"}
	return &MetricsExtension{
		WorkersAdded: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "workers_added_total",
			Help: "Workers registered with the scheduler.",
		}),
		JobsAdded: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "jobs_added_total",
			Help: "Jobs persisted for execution.",
		}, byWorker),
		JobsStarted: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "jobs_started_total",
			Help: "Job executions started.",
		}, byWorker),
		JobsSucceeded: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "jobs_succeeded_total",
			Help: "Job executions that finished successfully.",
		}, byWorker),
		JobsFailed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "jobs_failed_total",
			Help: "Failed job executions, by outcome and whether the failure was terminal.",
		}, []string{"worker", "outcome", "terminal"}),
		JobsCancelled: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "jobs_cancelled_total",
			Help: "Jobs cancelled through the scheduler.",
		}, byWorker),
		JobsDeleted: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "jobs_deleted_total",
			Help: "Jobs removed from the queue.",
		}, byWorker),
		JobsRunning: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "jobs_running",
			Help: "Job executions currently in flight.",
		}, byWorker),
		JobDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "job_duration_seconds",
			Help:    "Duration of successful job executions.",
			Buckets: prometheus.DefBuckets,
		}, byWorker),
		QueueRuns: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "queue_runs_total",
			Help: "Run loop completions.",
		}),
	}
}

// Name implements ext.Extension.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnWorkerAdded implements ext.WorkerAdded.
func (m *MetricsExtension) OnWorkerAdded(context.Context, string) error {
	m.WorkersAdded.Inc()
	return nil
}

// ── Job lifecycle hooks ─────────────────────────────

// OnJobAdded implements ext.JobAdded.
func (m *MetricsExtension) OnJobAdded(_ context.Context, r *job.Record) error {
	m.JobsAdded.WithLabelValues(r.WorkerName).Inc()
	return nil
}

// OnJobStarted implements ext.JobStarted.
func (m *MetricsExtension) OnJobStarted(_ context.Context, r *job.Record) error {
	m.JobsStarted.WithLabelValues(r.WorkerName).Inc()
	m.JobsRunning.WithLabelValues(r.WorkerName).Inc()
	return nil
}

// OnJobSucceeded implements ext.JobSucceeded.
func (m *MetricsExtension) OnJobSucceeded(_ context.Context, r *job.Record, elapsed time.Duration) error {
	m.JobsSucceeded.WithLabelValues(r.WorkerName).Inc()
	m.JobsRunning.WithLabelValues(r.WorkerName).Dec()
	m.JobDuration.WithLabelValues(r.WorkerName).Observe(elapsed.Seconds())
	return nil
}

// OnJobFailed implements ext.JobFailed.
func (m *MetricsExtension) OnJobFailed(_ context.Context, r *job.Record, err error) error {
	terminal := "false"
	if r.Failed != nil || r.Status.IsTerminal() {
		terminal = "true"
	}
	m.JobsFailed.WithLabelValues(r.WorkerName, outcome(err), terminal).Inc()
	m.JobsRunning.WithLabelValues(r.WorkerName).Dec()
	return nil
}

// OnJobCancelled implements ext.JobCancelled.
func (m *MetricsExtension) OnJobCancelled(_ context.Context, r *job.Record) error {
	m.JobsCancelled.WithLabelValues(r.WorkerName).Inc()
	return nil
}

// OnJobDeleted implements ext.JobDeleted.
func (m *MetricsExtension) OnJobDeleted(_ context.Context, r *job.Record) error {
	m.JobsDeleted.WithLabelValues(r.WorkerName).Inc()
	return nil
}

// ── Queue lifecycle hooks ───────────────────────────

// OnQueueFinished implements ext.QueueFinished.
func (m *MetricsExtension) OnQueueFinished(context.Context, []*job.Record) error {
	m.QueueRuns.Inc()
	return nil
}

func outcome(err error) string {
	switch {
	case jobqueue.IsTimeout(err):
		return "timeout"
	case jobqueue.IsCancelled(err):
		return "cancelled"
	default:
		return "error"
	}
}
