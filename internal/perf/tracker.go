// Package perf maintains rolling performance statistics for CLI sessions.
package perf

import (
	"sync"
	"time"
)

// windowSize bounds the rolling-average window to the most recent samples.
const windowSize = 100

// Metrics is a point-in-time copy of the tracker state. Durations are
// reported in milliseconds for JSON consumers.
type Metrics struct {
	LastDurationMillis    int64  `json:"last_duration_ms"`
	AverageDurationMillis int64  `json:"average_duration_ms"`
	SuccessCount          uint64 `json:"success_count"`
	ErrorCount            uint64 `json:"error_count"`
	SampleCount           int    `json:"sample_count"`
}

// Tracker records duration and outcome of completed sessions. Durations are
// kept in a FIFO window of windowSize entries; success/error counters are
// unbounded and never reset by window eviction.
//
// Samples are written only by session finalization, but snapshots may be
// requested from HTTP handlers concurrently, so access is guarded.
type Tracker struct {
	mu        sync.Mutex
	durations []time.Duration
	average   time.Duration
	last      time.Duration
	successes uint64
	errors    uint64
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{}
}

// Record appends a session sample, evicting the oldest duration once the
// window is full, and recomputes the rolling average.
func (t *Tracker) Record(duration time.Duration, succeeded bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.durations) >= windowSize {
		t.durations = t.durations[1:]
	}
	t.durations = append(t.durations, duration)
	t.last = duration

	var total time.Duration
	for _, d := range t.durations {
		total += d
	}
	t.average = total / time.Duration(len(t.durations))

	if succeeded {
		t.successes++
	} else {
		t.errors++
	}
}

// Snapshot returns a copy of the current metrics, never a live reference.
func (t *Tracker) Snapshot() Metrics {
	t.mu.Lock()
	defer t.mu.Unlock()

	return Metrics{
		LastDurationMillis:    t.last.Milliseconds(),
		AverageDurationMillis: t.average.Milliseconds(),
		SuccessCount:          t.successes,
		ErrorCount:            t.errors,
		SampleCount:           len(t.durations),
	}
}
