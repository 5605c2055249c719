package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/xraph/jobqueue/job"
)

// Logging returns middleware that logs job start and completion.
func Logging(logger *slog.Logger) Middleware {
	return func(ctx context.Context, r *job.Record, next Handler) error {
		logger.Info("job started",
			slog.String("worker", r.WorkerName),
			slog.String("job_id", r.ID),
			slog.Int("priority", r.Priority),
			slog.Int("failed_attempts", r.MetaData.FailedAttempts),
		)

		start := time.Now()
		err := next(ctx)
		elapsed := time.Since(start)

		if err != nil {
			logger.Error("job failed",
				slog.String("worker", r.WorkerName),
				slog.String("job_id", r.ID),
				slog.Duration("elapsed", elapsed),
				slog.String("error", err.Error()),
			)
		} else {
			logger.Info("job completed",
				slog.String("worker", r.WorkerName),
				slog.String("job_id", r.ID),
				slog.Duration("elapsed", elapsed),
			)
		}

		return err
	}
}
