package collector

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/voluzi/waitsampler/pkg/waitevent"
)

// Fixed usage-eviction policy parameters. Decaying every usage score
// before each eviction pass biases the store toward recently and
// frequently observed waits without per-access bookkeeping; evicting
// a batch amortizes the sort over many future insertions.
const (
	usageInit           = 1.0
	usageIncrease       = 1.0
	usageDecreaseFactor = 0.99
	deallocPercent      = 5
	deallocMinNum       = 10
)

// Key is the fingerprint a profile entry aggregates over. Pid is 0
// when per-pid profiling is off, QueryID is 0 when untracked.
type Key struct {
	Pid       int32          `json:"pid"`
	WaitEvent waitevent.Info `json:"wait_event"`
	QueryID   uint64         `json:"query_id"`
}

// Entry aggregates observations of one key. Counter only grows;
// Usage grows on observation and decays on eviction passes.
type Entry struct {
	Key     Key     `json:"key"`
	Counter int64   `json:"counter"`
	Usage   float64 `json:"usage"`
}

// Profile is the bounded wait-event frequency store. The probe is
// the sole writer; readers snapshot under the read lock. The entry
// count never exceeds max after a completed insertion: the upsert
// path evicts under the same lock before inserting.
type Profile struct {
	mu        sync.RWMutex
	entries   map[Key]*Entry
	max       int
	evictions atomic.Uint64
}

func NewProfile(maxEntries int) *Profile {
	if maxEntries < 1 {
		maxEntries = 1
	}
	return &Profile{
		entries: make(map[Key]*Entry, maxEntries),
		max:     maxEntries,
	}
}

// observeLocked upserts one observation. Caller holds the write lock.
func (p *Profile) observeLocked(key Key) {
	if entry, ok := p.entries[key]; ok {
		entry.Counter++
		entry.Usage += usageIncrease
		return
	}

	for len(p.entries) >= p.max {
		p.evictLocked()
	}

	p.entries[key] = &Entry{
		Key:     key,
		Counter: 1,
		Usage:   usageInit,
	}
}

// evictLocked decays every usage score and removes the least-used
// entries: max(deallocMinNum, n*deallocPercent/100), capped at n.
// Caller holds the write lock.
func (p *Profile) evictLocked() {
	victims := make([]*Entry, 0, len(p.entries))
	for _, entry := range p.entries {
		entry.Usage *= usageDecreaseFactor
		victims = append(victims, entry)
	}

	sort.Slice(victims, func(i, j int) bool {
		return victims[i].Usage < victims[j].Usage
	})

	nvictims := len(victims) * deallocPercent / 100
	if nvictims < deallocMinNum {
		nvictims = deallocMinNum
	}
	if nvictims > len(victims) {
		nvictims = len(victims)
	}

	for _, entry := range victims[:nvictims] {
		delete(p.entries, entry.Key)
	}
	p.evictions.Add(1)
}

// Len returns the current entry count.
func (p *Profile) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.entries)
}

// Max returns the configured entry bound.
func (p *Profile) Max() int {
	return p.max
}

// Evictions returns how many eviction passes have run.
func (p *Profile) Evictions() uint64 {
	return p.evictions.Load()
}

// Snapshot copies all entries out under the read lock. Order is
// unspecified.
func (p *Profile) Snapshot() []Entry {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]Entry, 0, len(p.entries))
	for _, entry := range p.entries {
		out = append(out, *entry)
	}
	return out
}

// Reset removes every entry.
func (p *Profile) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entries = make(map[Key]*Entry, p.max)
}

// restoreLocked reinstates a dumped entry, evicting first if the
// current bound requires it. Caller holds the write lock.
func (p *Profile) restoreLocked(entry Entry) {
	for len(p.entries) >= p.max {
		p.evictLocked()
	}
	e := entry
	p.entries[e.Key] = &e
}

// Restore loads dumped entries, honoring the bound throughout.
func (p *Profile) Restore(entries []Entry) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, entry := range entries {
		p.restoreLocked(entry)
	}
}
