package observability

import (
	"context"
	"log/slog"
	"time"

	"github.com/xraph/jobqueue/ext"
	"github.com/xraph/jobqueue/job"
)

var (
	_ ext.WorkerAdded   = (*LoggingExtension)(nil)
	_ ext.JobFailed     = (*LoggingExtension)(nil)
	_ ext.QueueFinished = (*LoggingExtension)(nil)
)

// LoggingExtension logs every lifecycle event. The scheduler registers it
// when debug mode is enabled.
type LoggingExtension struct {
	logger *slog.Logger
}

// NewLoggingExtension creates a LoggingExtension. A nil logger uses
// slog.Default().
func NewLoggingExtension(logger *slog.Logger) *LoggingExtension {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingExtension{logger: logger.With(slog.String("component", "jobqueue"))}
}

// Name implements ext.Extension.
func (l *LoggingExtension) Name() string { return "observability-logging" }

func (l *LoggingExtension) OnWorkerAdded(_ context.Context, name string) error {
	l.logger.Info("worker added", slog.String("worker", name))
	return nil
}

func (l *LoggingExtension) OnJobAdded(_ context.Context, r *job.Record) error {
	l.logger.Info("job added", recordAttrs(r)...)
	return nil
}

func (l *LoggingExtension) OnJobStarted(_ context.Context, r *job.Record) error {
	l.logger.Info("job started", recordAttrs(r)...)
	return nil
}

func (l *LoggingExtension) OnJobSucceeded(_ context.Context, r *job.Record, elapsed time.Duration) error {
	l.logger.Info("job succeeded", append(recordAttrs(r), slog.Duration("elapsed", elapsed))...)
	return nil
}

func (l *LoggingExtension) OnJobFailed(_ context.Context, r *job.Record, err error) error {
	l.logger.Warn("job failed", append(recordAttrs(r), slog.String("error", err.Error()))...)
	return nil
}

func (l *LoggingExtension) OnJobCancelled(_ context.Context, r *job.Record) error {
	l.logger.Info("job cancelled", recordAttrs(r)...)
	return nil
}

func (l *LoggingExtension) OnJobCompleted(_ context.Context, r *job.Record) error {
	l.logger.Info("job completed", recordAttrs(r)...)
	return nil
}

func (l *LoggingExtension) OnJobDeleted(_ context.Context, r *job.Record) error {
	l.logger.Info("job deleted", recordAttrs(r)...)
	return nil
}

func (l *LoggingExtension) OnQueueStarted(context.Context) error {
	l.logger.Info("queue started")
	return nil
}

func (l *LoggingExtension) OnQueueStopped(context.Context) error {
	l.logger.Info("queue stopped")
	return nil
}

func (l *LoggingExtension) OnQueueFinished(_ context.Context, executed []*job.Record) error {
	l.logger.Info("queue finished", slog.Int("executed", len(executed)))
	return nil
}

func recordAttrs(r *job.Record) []any {
	return []any{
		slog.String("job_id", r.ID),
		slog.String("worker", r.WorkerName),
		slog.String("status", string(r.Status)),
		slog.Int("priority", r.Priority),
		slog.Int("failed_attempts", r.MetaData.FailedAttempts),
	}
}
