package job_test

import (
	"sort"
	"testing"
	"time"

	"github.com/xraph/jobqueue/job"
)

func TestRecord_Eligible(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name string
		rec  job.Record
		want bool
	}{
		{"idle", job.Record{Status: job.StatusIdle}, true},
		{"interrupted processing", job.Record{Status: job.StatusProcessing}, true},
		{"claimed", job.Record{Status: job.StatusIdle, Active: true}, false},
		{"deleted", job.Record{Status: job.StatusIdle, IsDeleted: true}, false},
		{"failed stamp", job.Record{Status: job.StatusIdle, Failed: &now}, false},
		{"failed", job.Record{Status: job.StatusFailed}, false},
		{"cancelled", job.Record{Status: job.StatusCancelled}, false},
		{"finished", job.Record{Status: job.StatusFinished}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.rec.Eligible(); got != tt.want {
				t.Errorf("Eligible() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRecord_WorkInProgress(t *testing.T) {
	r := job.Record{Status: job.StatusProcessing}
	if !r.WorkInProgress() {
		t.Error("expected unclaimed processing record to be work in progress")
	}
	r.Active = true
	if r.WorkInProgress() {
		t.Error("claimed record must not be work in progress")
	}
}

func TestLess_Ordering(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	recs := []*job.Record{
		{ID: "a", Priority: 0, Created: base},
		{ID: "b", Priority: 10, Created: base.Add(2 * time.Second)},
		{ID: "c", Priority: 10, Created: base.Add(time.Second)},
		{ID: "d", Priority: -1, Created: base.Add(-time.Hour)},
	}

	sort.Slice(recs, func(i, j int) bool { return job.Less(recs[i], recs[j]) })

	want := []string{"c", "b", "a", "d"}
	for i, id := range want {
		if recs[i].ID != id {
			t.Errorf("position %d: got %q, want %q", i, recs[i].ID, id)
		}
	}
}

func TestRecord_Clone(t *testing.T) {
	now := time.Now()
	orig := &job.Record{
		ID:       "job_1",
		Payload:  []byte(`{"a":1}`),
		MetaData: job.MetaData{Errors: []string{"boom"}, FailedAttempts: 1},
		Failed:   &now,
	}

	cp := orig.Clone()
	cp.Payload[0] = '['
	cp.MetaData.Errors[0] = "changed"
	*cp.Failed = now.Add(time.Hour)

	if orig.Payload[0] != '{' {
		t.Error("payload shared between clone and original")
	}
	if orig.MetaData.Errors[0] != "boom" {
		t.Error("errors shared between clone and original")
	}
	if !orig.Failed.Equal(now) {
		t.Error("failed timestamp shared between clone and original")
	}
}

func TestMetaData_EncodeDecode(t *testing.T) {
	s, err := job.EncodeMetaData(job.MetaData{})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if s != `{"errors":[],"failedAttempts":0}` {
		t.Errorf("encoded = %s", s)
	}

	m, err := job.DecodeMetaData(`{"errors":["x","y"],"failedAttempts":2}`)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if m.FailedAttempts != 2 || len(m.Errors) != 2 {
		t.Errorf("decoded = %+v", m)
	}

	if _, err := job.DecodeMetaData("not json"); err == nil {
		t.Error("expected error for invalid metadata")
	}
}

func TestOptions(t *testing.T) {
	o := job.DefaultOptions()
	if !o.StartQueue {
		t.Error("expected StartQueue by default")
	}

	for _, opt := range []job.Option{
		job.WithAttempts(5),
		job.WithTimeout(-time.Second),
		job.WithPriority(7),
		job.WithoutStart(),
	} {
		opt(&o)
	}

	if o.Attempts != 5 {
		t.Errorf("Attempts = %d, want 5", o.Attempts)
	}
	if o.Timeout != 0 {
		t.Errorf("Timeout = %v, want 0 for negative input", o.Timeout)
	}
	if o.Priority != 7 {
		t.Errorf("Priority = %d, want 7", o.Priority)
	}
	if o.StartQueue {
		t.Error("expected StartQueue to be false")
	}
}

func TestTimeoutMillis(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want int64
	}{
		{-time.Second, 0},
		{0, 0},
		{time.Nanosecond, 1},
		{500 * time.Microsecond, 1},
		{time.Millisecond, 1},
		{1500 * time.Microsecond, 2},
		{2 * time.Second, 2000},
	}
	for _, tt := range tests {
		if got := job.TimeoutMillis(tt.in); got != tt.want {
			t.Errorf("TimeoutMillis(%v) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestWithTimeout_RoundsUp(t *testing.T) {
	o := job.DefaultOptions()
	job.WithTimeout(200 * time.Microsecond)(&o)
	if o.Timeout != time.Millisecond {
		t.Errorf("Timeout = %v, want 1ms", o.Timeout)
	}
}
