package queue

import (
	"container/list"
	"context"
	"sync"
)

// Limiter is a FIFO counting gate with an adjustable ceiling.
// It is safe for concurrent use.
type Limiter struct {
	mu      sync.Mutex
	limit   int
	active  int
	waiters list.List // of chan struct{}
}

// NewLimiter creates a Limiter admitting at most limit concurrent holders.
// A limit of zero or less means unbounded.
func NewLimiter(limit int) *Limiter {
	return &Limiter{limit: limit}
}

// Acquire blocks until a slot is available or ctx ends. Waiters are
// admitted in arrival order. On success the caller must call Release.
func (l *Limiter) Acquire(ctx context.Context) error {
	l.mu.Lock()
	if l.waiters.Len() == 0 && l.available() {
		l.active++
		l.mu.Unlock()
		return nil
	}

	ready := make(chan struct{})
	elem := l.waiters.PushBack(ready)
	l.mu.Unlock()

	select {
	case <-ready:
		return nil
	case <-ctx.Done():
		l.mu.Lock()
		select {
		case <-ready:
			// Granted concurrently with the cancellation; hand it on.
			l.active--
			l.grant()
		default:
			l.waiters.Remove(elem)
		}
		l.mu.Unlock()
		return ctx.Err()
	}
}

// TryAcquire takes a slot without blocking. It fails when the limiter is
// full or other callers are already waiting.
func (l *Limiter) TryAcquire() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.waiters.Len() == 0 && l.available() {
		l.active++
		return true
	}
	return false
}

// Release frees a slot and admits the oldest waiter, if any.
func (l *Limiter) Release() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.active > 0 {
		l.active--
	}
	l.grant()
}

// SetLimit changes the ceiling. Waiters that now fit are admitted.
func (l *Limiter) SetLimit(limit int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.limit = limit
	l.grant()
}

// Limit returns the current ceiling.
func (l *Limiter) Limit() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.limit
}

// Active returns the number of slots currently held.
func (l *Limiter) Active() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.active
}

// Waiting returns the number of callers blocked in Acquire.
func (l *Limiter) Waiting() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.waiters.Len()
}

func (l *Limiter) available() bool {
	return l.limit <= 0 || l.active < l.limit
}

// grant admits waiters from the front while slots are free. l.mu held.
func (l *Limiter) grant() {
	for l.waiters.Len() > 0 && l.available() {
		front := l.waiters.Front()
		l.waiters.Remove(front)
		l.active++
		close(front.Value.(chan struct{}))
	}
}
