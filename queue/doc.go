// Package queue provides the global execution limiter that gates how many
// jobs run at once across all workers.
//
// A [Limiter] admits callers up to a ceiling. Callers over the ceiling
// wait in arrival order; every [Limiter.Release] hands the freed slot to
// the oldest waiter, so admission is FIFO and no waiter is starved by a
// later arrival.
//
//	l := queue.NewLimiter(10)
//	if err := l.Acquire(ctx); err != nil {
//	    return err
//	}
//	defer l.Release()
//	// execute the job
//
// A ceiling of zero or less disables the limit. The ceiling can be changed
// at runtime with [Limiter.SetLimit]; raising it admits waiters
// immediately, lowering it takes effect as running executions release.
package queue
