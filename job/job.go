package job

import (
	"encoding/json"
	"time"
)

// Status represents the lifecycle state of a job.
type Status string

const (
	// StatusIdle means the job is waiting to be picked up by a worker.
	StatusIdle Status = "idle"
	// StatusProcessing means a worker is currently executing the job.
	StatusProcessing Status = "processing"
	// StatusFinished means the job completed successfully.
	StatusFinished Status = "finished"
	// StatusFailed means the job exhausted its attempts.
	StatusFailed Status = "failed"
	// StatusCancelled means the job was explicitly cancelled.
	StatusCancelled Status = "cancelled"
)

// IsTerminal reports whether no further automatic transitions happen
// from s.
func (s Status) IsTerminal() bool {
	return s == StatusFinished || s == StatusFailed || s == StatusCancelled
}

// MetaData is the failure bookkeeping carried by every record.
type MetaData struct {
	Errors         []string `json:"errors"`
	FailedAttempts int      `json:"failedAttempts"`
}

// Record is the persisted unit of work and its scheduling state.
type Record struct {
	ID         string          `json:"id"`
	WorkerName string          `json:"workerName"`
	Active     bool            `json:"active"`
	Payload    json.RawMessage `json:"payload"`
	MetaData   MetaData        `json:"metaData"`
	Attempts   int             `json:"attempts"`
	Created    time.Time       `json:"created"`
	Failed     *time.Time      `json:"failed,omitempty"`
	Timeout    time.Duration   `json:"timeout"`
	Priority   int             `json:"priority"`
	IsDeleted  bool            `json:"isDeleted"`
	Status     Status          `json:"status"`
}

// Clone returns a deep copy so callers can mutate it without racing with
// the original owner.
func (r *Record) Clone() *Record {
	cp := *r
	if r.Payload != nil {
		cp.Payload = append(json.RawMessage(nil), r.Payload...)
	}
	if r.MetaData.Errors != nil {
		cp.MetaData.Errors = append([]string(nil), r.MetaData.Errors...)
	}
	if r.Failed != nil {
		f := *r.Failed
		cp.Failed = &f
	}
	return &cp
}

// Eligible reports whether the record may be selected for execution:
// not deleted, not claimed, not terminally failed or cancelled.
func (r *Record) Eligible() bool {
	return !r.IsDeleted &&
		!r.Active &&
		r.Failed == nil &&
		r.Status != StatusFailed &&
		r.Status != StatusCancelled &&
		r.Status != StatusFinished
}

// WorkInProgress reports whether the record was being processed and is no
// longer claimed, which is what an interrupted run leaves behind.
func (r *Record) WorkInProgress() bool {
	return !r.IsDeleted && !r.Active && r.Status == StatusProcessing
}

// Less orders records by priority (descending) then creation time
// (ascending), with the id as a final tiebreak for stable output.
func Less(a, b *Record) bool {
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	if !a.Created.Equal(b.Created) {
		return a.Created.Before(b.Created)
	}
	return a.ID < b.ID
}

// TimeoutMillis converts a timeout to the whole milliseconds stores
// persist, rounding up so a positive timeout never becomes 0 (disabled).
// Negative values become 0.
func TimeoutMillis(d time.Duration) int64 {
	if d <= 0 {
		return 0
	}
	return int64((d + time.Millisecond - 1) / time.Millisecond)
}

// EncodeMetaData renders m as the JSON text stored by SQL and key-value
// backends.
func EncodeMetaData(m MetaData) (string, error) {
	if m.Errors == nil {
		m.Errors = []string{}
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// DecodeMetaData parses the JSON text form of MetaData. An empty string
// decodes to the zero value.
func DecodeMetaData(s string) (MetaData, error) {
	var m MetaData
	if s == "" {
		return m, nil
	}
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return MetaData{}, err
	}
	return m, nil
}
