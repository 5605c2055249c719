package middleware

import (
	"context"

	"github.com/xraph/jobqueue/job"
)

type recordKey struct{}

// WithRecord returns middleware that stores a snapshot of the executing
// record in the handler context. Handlers retrieve it with RecordFromContext.
func WithRecord() Middleware {
	return func(ctx context.Context, r *job.Record, next Handler) error {
		return next(context.WithValue(ctx, recordKey{}, r.Clone()))
	}
}

// RecordFromContext returns the record stored by WithRecord.
func RecordFromContext(ctx context.Context) (*job.Record, bool) {
	r, ok := ctx.Value(recordKey{}).(*job.Record)
	return r, ok
}
