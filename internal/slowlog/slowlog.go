// Package slowlog keeps a bounded in-memory record of slow operations.
package slowlog

import (
	"sync"
	"time"
)

type Entry struct {
	Operation string        `json:"operation"`
	Kind      string        `json:"kind"`
	RecordID  int64         `json:"record_id,omitempty"`
	Duration  time.Duration `json:"duration_ns"`
	At        time.Time     `json:"at"`
	Err       string        `json:"error,omitempty"`
}

// Recorder is a fixed-size ring buffer. Operations faster than the
// threshold are ignored. The zero value is not usable; call New.
type Recorder struct {
	threshold time.Duration

	mu      sync.Mutex
	entries []Entry
	next    int
	full    bool
}

func New(threshold time.Duration, capacity int) *Recorder {
	if capacity <= 0 {
		capacity = 100
	}
	return &Recorder{threshold: threshold, entries: make([]Entry, capacity)}
}

// Observe records e if its duration reaches the threshold. It reports
// whether the entry was kept. A nil Recorder ignores everything.
func (r *Recorder) Observe(e Entry) bool {
	if r == nil || e.Duration < r.threshold {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[r.next] = e
	r.next = (r.next + 1) % len(r.entries)
	if r.next == 0 {
		r.full = true
	}
	return true
}

// Snapshot returns the kept entries, oldest first.
func (r *Recorder) Snapshot() []Entry {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.full {
		return append([]Entry(nil), r.entries[:r.next]...)
	}
	out := make([]Entry, 0, len(r.entries))
	out = append(out, r.entries[r.next:]...)
	return append(out, r.entries[:r.next]...)
}

func (r *Recorder) Threshold() time.Duration {
	if r == nil {
		return 0
	}
	return r.threshold
}
