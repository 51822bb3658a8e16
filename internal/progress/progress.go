// Package progress tracks per-job sample consumption so the master's
// Prometheus gauges can report how much of a job's work has been handed
// out.
package progress

import (
	"sync"
	"time"
)

// Tracker counts samples used against a known total for one job, and
// times how long the job has been in flight.
type Tracker struct {
	mu     sync.Mutex
	used   int64
	total  int64
	timing timing
}

// NewTracker returns a tracker for a job whose total sample count is
// total (the sum of every task's TaskSampler.TotalSamples()). The clock
// starts immediately.
func NewTracker(total int64) *Tracker {
	return &Tracker{total: total, timing: newTiming()}
}

// Advance records n more samples as consumed, marking the job complete
// once every sample has been used.
func (t *Tracker) Advance(n int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.used += n
	if t.used >= t.total {
		t.timing.complete()
	}
}

// Snapshot reports samples used and the job's total.
func (t *Tracker) Snapshot() (used, total int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.used, t.total
}

// Elapsed reports how long the job has been running, or its total
// runtime once every sample has been used.
func (t *Tracker) Elapsed() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.timing.duration()
}

// Done reports whether every sample has been consumed.
func (t *Tracker) Done() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.total > 0 && t.used >= t.total
}
