package backoff_test

import (
	"testing"
	"time"

	"github.com/xraph/jobqueue/backoff"
)

func TestConstant(t *testing.T) {
	c := backoff.NewConstant(250 * time.Millisecond)
	for retry := 1; retry <= 5; retry++ {
		if got := c.Delay(retry); got != 250*time.Millisecond {
			t.Errorf("Delay(%d) = %v, want 250ms", retry, got)
		}
	}
}

func TestExponential(t *testing.T) {
	e := backoff.NewExponential(100*time.Millisecond, time.Second)

	tests := []struct {
		retry int
		want  time.Duration
	}{
		{0, 100 * time.Millisecond},
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{4, 800 * time.Millisecond},
		{5, time.Second},
		{50, time.Second},
	}
	for _, tt := range tests {
		if got := e.Delay(tt.retry); got != tt.want {
			t.Errorf("Delay(%d) = %v, want %v", tt.retry, got, tt.want)
		}
	}
}

func TestExponential_JitterBounded(t *testing.T) {
	e := &backoff.Exponential{Initial: 100 * time.Millisecond, Max: 400 * time.Millisecond, Jitter: true}
	for i := 0; i < 200; i++ {
		got := e.Delay(3)
		if got < 0 || got > 400*time.Millisecond {
			t.Fatalf("Delay(3) = %v, outside [0, 400ms]", got)
		}
	}
}

func TestDefault(t *testing.T) {
	d := backoff.Default()
	if got := d.Delay(100); got > 5*time.Second {
		t.Errorf("Delay(100) = %v, want <= 5s", got)
	}
}
