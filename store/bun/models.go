package bunstore

import (
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/xraph/jobqueue/job"
)

// ── Job model ─────────────────────────────────────────────────────

type jobModel struct {
	bun.BaseModel `bun:"table:jobqueue_jobs"`

	ID         string     `bun:"id,pk"`
	WorkerName string     `bun:"worker_name,notnull"`
	Active     bool       `bun:"active,notnull"`
	Payload    string     `bun:"payload,notnull"`
	MetaData   string     `bun:"meta_data,notnull"`
	Attempts   int        `bun:"attempts,notnull"`
	Created    time.Time  `bun:"created,notnull"`
	Failed     *time.Time `bun:"failed"`
	Timeout    int64      `bun:"timeout,notnull"` // milliseconds
	Priority   int        `bun:"priority,notnull"`
	IsDeleted  bool       `bun:"is_deleted,notnull"`
	Status     string     `bun:"status,notnull"`
}

func toJobModel(r *job.Record) (*jobModel, error) {
	meta, err := job.EncodeMetaData(r.MetaData)
	if err != nil {
		return nil, fmt.Errorf("jobqueue/bun: encode metadata: %w", err)
	}

	payload := string(r.Payload)
	if payload == "" {
		payload = "{}"
	}

	var failed *time.Time
	if r.Failed != nil {
		f := r.Failed.UTC()
		failed = &f
	}

	return &jobModel{
		ID:         r.ID,
		WorkerName: r.WorkerName,
		Active:     r.Active,
		Payload:    payload,
		MetaData:   meta,
		Attempts:   r.Attempts,
		Created:    r.Created.UTC(),
		Failed:     failed,
		Timeout:    job.TimeoutMillis(r.Timeout),
		Priority:   r.Priority,
		IsDeleted:  r.IsDeleted,
		Status:     string(r.Status),
	}, nil
}

func fromJobModel(m *jobModel) (*job.Record, error) {
	meta, err := job.DecodeMetaData(m.MetaData)
	if err != nil {
		return nil, fmt.Errorf("jobqueue/bun: decode metadata of %q: %w", m.ID, err)
	}

	r := &job.Record{
		ID:         m.ID,
		WorkerName: m.WorkerName,
		Active:     m.Active,
		Payload:    []byte(m.Payload),
		MetaData:   meta,
		Attempts:   m.Attempts,
		Created:    m.Created.UTC(),
		Timeout:    time.Duration(m.Timeout) * time.Millisecond,
		Priority:   m.Priority,
		IsDeleted:  m.IsDeleted,
		Status:     job.Status(m.Status),
	}
	if m.Failed != nil {
		f := m.Failed.UTC()
		r.Failed = &f
	}
	return r, nil
}

func fromJobModels(models []jobModel) ([]*job.Record, error) {
	recs := make([]*job.Record, 0, len(models))
	for i := range models {
		r, err := fromJobModel(&models[i])
		if err != nil {
			return nil, err
		}
		recs = append(recs, r)
	}
	return recs, nil
}
