package collector

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voluzi/waitsampler/pkg/waitevent"
)

func sample(pid int32) WaitSample {
	return WaitSample{
		Pid:       pid,
		WaitEvent: waitevent.Make(waitevent.ClassLock, 1),
		TS:        time.Now(),
	}
}

func TestHistoryWrap(t *testing.T) {
	h := NewHistory(3)

	for pid := int32(1); pid <= 5; pid++ {
		h.mu.Lock()
		h.appendLocked(sample(pid))
		h.mu.Unlock()
	}

	// After S1..S5 on a 3-slot ring, the physical layout is
	// [S4, S5, S3] and the logical order S3, S4, S5.
	assert.Equal(t, int32(4), h.items[0].Pid)
	assert.Equal(t, int32(5), h.items[1].Pid)
	assert.Equal(t, int32(3), h.items[2].Pid)

	samples, index := h.Snapshot()
	require.Len(t, samples, 3)
	assert.Equal(t, uint64(5), index)
	assert.Equal(t, int32(3), samples[0].Pid)
	assert.Equal(t, int32(4), samples[1].Pid)
	assert.Equal(t, int32(5), samples[2].Pid)

	// Most recent sample sits at (index-1) mod capacity.
	assert.Equal(t, int32(5), h.items[(index-1)%uint64(h.Cap())].Pid)
}

func TestHistoryLenBeforeWrap(t *testing.T) {
	h := NewHistory(5)

	for pid := int32(1); pid <= 3; pid++ {
		h.mu.Lock()
		h.appendLocked(sample(pid))
		h.mu.Unlock()
	}

	assert.Equal(t, 3, h.Len())
	samples, index := h.Snapshot()
	assert.Equal(t, uint64(3), index)
	require.Len(t, samples, 3)
	assert.Equal(t, int32(1), samples[0].Pid)
	assert.Equal(t, int32(3), samples[2].Pid)
}

func TestHistoryNeverExceedsCapacity(t *testing.T) {
	h := NewHistory(4)

	for pid := int32(1); pid <= 100; pid++ {
		h.mu.Lock()
		h.appendLocked(sample(pid))
		h.mu.Unlock()
		assert.LessOrEqual(t, h.Len(), 4)
	}

	assert.Equal(t, uint64(100), h.Index())
	assert.Equal(t, 4, h.Len())
}

func TestHistoryMinimumCapacity(t *testing.T) {
	h := NewHistory(0)
	assert.Equal(t, 1, h.Cap())
}
