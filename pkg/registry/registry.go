package registry

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/voluzi/waitsampler/pkg/waitevent"
)

// ErrFull is returned by Attach when every slot is occupied.
var ErrFull = fmt.Errorf("worker registry is full")

// Table is a fixed-capacity slot table of running workers. Workers
// publish their pid, current wait event and current query id through
// atomic word writes; the sampler reads slots by index without any
// table-wide lock. Reads are therefore best-effort: a slot freed by
// Detach keeps its last pid visible until the slot is reused, so a
// sample taken in that window is attributed to the exited worker.
// That imprecision is part of the accuracy contract and must not be
// "fixed" by clearing the pid or locking the scan.
type Table struct {
	slots    []slot
	queryIDs []atomic.Uint64
	queries  *QueryCache
}

type slot struct {
	used atomic.Bool
	pid  atomic.Int32
	wait atomic.Uint32
}

// New creates a table with n slots and a query-text cache with the
// given retention.
func New(n int, queryTTL time.Duration) *Table {
	if n < 1 {
		n = 1
	}
	return &Table{
		slots:    make([]slot, n),
		queryIDs: make([]atomic.Uint64, n),
		queries:  NewQueryCache(queryTTL),
	}
}

// Len returns the slot count. Slots are addressed 0..Len()-1.
func (t *Table) Len() int {
	return len(t.slots)
}

// Pid returns the pid word of slot i. Zero means the slot was never
// occupied; non-zero may be stale (see Table doc).
func (t *Table) Pid(i int) int32 {
	return t.slots[i].pid.Load()
}

// WaitEvent returns the wait event word of slot i. Zero means the
// occupant is not currently waiting.
func (t *Table) WaitEvent(i int) waitevent.Info {
	return waitevent.Info(t.slots[i].wait.Load())
}

// QueryID returns the query id word of slot i, 0 when untracked.
func (t *Table) QueryID(i int) uint64 {
	return t.queryIDs[i].Load()
}

// Queries exposes the query-text cache fed by the trace feed.
func (t *Table) Queries() *QueryCache {
	return t.queries
}

// SlotOf resolves the occupied slot currently claiming pid, or -1.
func (t *Table) SlotOf(pid int32) int {
	for i := range t.slots {
		if t.slots[i].used.Load() && t.slots[i].pid.Load() == pid {
			return i
		}
	}
	return -1
}

// SetQueryID publishes the query id for slot i.
func (t *Table) SetQueryID(i int, id uint64) {
	if i < 0 || i >= len(t.queryIDs) {
		return
	}
	t.queryIDs[i].Store(id)
}

// Attach claims a free slot for a worker with the given pid.
func (t *Table) Attach(pid int32) (*Worker, error) {
	for i := range t.slots {
		if t.slots[i].used.CompareAndSwap(false, true) {
			t.queryIDs[i].Store(0)
			t.slots[i].wait.Store(0)
			t.slots[i].pid.Store(pid)
			return &Worker{table: t, slot: i, pid: pid}, nil
		}
	}
	return nil, ErrFull
}

// Worker is a handle on a claimed slot, used by the worker itself to
// publish its state.
type Worker struct {
	table *Table
	slot  int
	pid   int32
}

// Slot returns the worker's slot index.
func (w *Worker) Slot() int {
	return w.slot
}

// Pid returns the pid the slot was claimed with.
func (w *Worker) Pid() int32 {
	return w.pid
}

// SetWait publishes the wait event the worker is about to block on.
func (w *Worker) SetWait(info waitevent.Info) {
	w.table.slots[w.slot].wait.Store(uint32(info))
}

// ClearWait marks the worker as running (not waiting).
func (w *Worker) ClearWait() {
	w.table.slots[w.slot].wait.Store(0)
}

// SetQueryID publishes the query the worker is executing, 0 to clear.
func (w *Worker) SetQueryID(id uint64) {
	w.table.queryIDs[w.slot].Store(id)
}

// Detach frees the slot. The wait and query words are cleared so the
// sampler stops seeing a wait, but the pid word intentionally keeps
// its value until the slot is reused.
func (w *Worker) Detach() {
	w.table.slots[w.slot].wait.Store(0)
	w.table.queryIDs[w.slot].Store(0)
	w.table.slots[w.slot].used.Store(false)
}
