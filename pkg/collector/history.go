package collector

import (
	"sync"
	"time"

	"github.com/voluzi/waitsampler/pkg/waitevent"
)

// WaitSample is one timestamped observation of a waiting worker.
// Immutable once written; a sample is only ever replaced when the
// ring wraps over its slot.
type WaitSample struct {
	Pid       int32
	WaitEvent waitevent.Info
	QueryID   uint64
	TS        time.Time
}

// History is the fixed-capacity ring of recent wait samples. The
// probe is the only writer; readers snapshot under the read lock.
// The write cursor only grows, so slot i holds sample index%cap and
// the ring silently overwrites the oldest sample once full.
type History struct {
	mu    sync.RWMutex
	items []WaitSample
	index uint64
}

func NewHistory(capacity int) *History {
	if capacity < 1 {
		capacity = 1
	}
	return &History{
		items: make([]WaitSample, capacity),
	}
}

// appendLocked stores a sample at the cursor position. The caller
// must hold the write lock; the probe holds it across the whole
// registry scan so readers see scans atomically.
func (h *History) appendLocked(sample WaitSample) {
	h.items[h.index%uint64(len(h.items))] = sample
	h.index++
}

// Cap returns the fixed ring capacity.
func (h *History) Cap() int {
	return len(h.items)
}

// Len returns the number of valid samples currently retained.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.lenLocked()
}

func (h *History) lenLocked() int {
	if h.index < uint64(len(h.items)) {
		return int(h.index)
	}
	return len(h.items)
}

// Index returns the monotonic write cursor.
func (h *History) Index() uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.index
}

// Restore re-appends dumped samples in order. The cursor restarts
// from zero at process start, so only the samples carry over.
func (h *History) Restore(samples []WaitSample) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, sample := range samples {
		h.appendLocked(sample)
	}
}

// Snapshot returns the valid samples ordered oldest to newest plus
// the write cursor, taken consistently under the read lock.
func (h *History) Snapshot() ([]WaitSample, uint64) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	n := h.lenLocked()
	out := make([]WaitSample, 0, n)
	capacity := uint64(len(h.items))
	start := h.index - uint64(n)
	for i := uint64(0); i < uint64(n); i++ {
		out = append(out, h.items[(start+i)%capacity])
	}
	return out, h.index
}
