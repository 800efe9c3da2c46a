package collector

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voluzi/waitsampler/pkg/registry"
	"github.com/voluzi/waitsampler/pkg/waitevent"
)

func TestProbeSkipRules(t *testing.T) {
	table := registry.New(4, time.Minute)

	waiting, err := table.Attach(100)
	require.NoError(t, err)
	waiting.SetWait(waitevent.Make(waitevent.ClassLock, 1))

	running, err := table.Attach(200)
	require.NoError(t, err)
	running.ClearWait() // occupied but not waiting

	c := New(table, WithHistoryEntries(10))
	c.Probe(true, true)

	samples, _ := c.History().Snapshot()
	require.Len(t, samples, 1)
	assert.Equal(t, int32(100), samples[0].Pid)
	assert.Equal(t, 1, c.Profile().Len())
}

func TestProbeNoFlagsIsNoop(t *testing.T) {
	table := registry.New(2, time.Minute)
	w, err := table.Attach(1)
	require.NoError(t, err)
	w.SetWait(waitevent.Make(waitevent.ClassIO, 2))

	c := New(table)
	c.Probe(false, false)

	assert.Equal(t, uint64(0), c.History().Index())
	assert.Equal(t, 0, c.Profile().Len())
	assert.Equal(t, uint64(0), c.stats.HistoryProbes.Load())
	assert.Equal(t, uint64(0), c.stats.ProfileProbes.Load())
}

func TestProbeProfilePidOff(t *testing.T) {
	table := registry.New(4, time.Minute)
	info := waitevent.Make(waitevent.ClassLWLock, 9)

	for _, pid := range []int32{100, 200} {
		w, err := table.Attach(pid)
		require.NoError(t, err)
		w.SetWait(info)
	}

	c := New(table, WithProfilePid(false))
	c.Probe(false, true)

	// Different pids with the same wait event collapse onto one
	// entry keyed by the don't-care pid 0.
	entries := c.Profile().Snapshot()
	require.Len(t, entries, 1)
	assert.Equal(t, int32(0), entries[0].Key.Pid)
	assert.Equal(t, int64(2), entries[0].Counter)
}

func TestProbeProfileQueriesOff(t *testing.T) {
	table := registry.New(2, time.Minute)
	w, err := table.Attach(10)
	require.NoError(t, err)
	w.SetWait(waitevent.Make(waitevent.ClassClient, 1))
	w.SetQueryID(777)

	c := New(table, WithProfileQueries(false), WithHistoryEntries(10))
	c.Probe(true, true)

	samples, _ := c.History().Snapshot()
	require.Len(t, samples, 1)
	assert.Equal(t, uint64(0), samples[0].QueryID)

	entries := c.Profile().Snapshot()
	require.Len(t, entries, 1)
	assert.Equal(t, uint64(0), entries[0].Key.QueryID)
}

func TestDueTargetsSchedule(t *testing.T) {
	opts := &Options{
		HistoryPeriod: 1000 * time.Millisecond,
		ProfilePeriod: 2000 * time.Millisecond,
	}

	// Simulated ticks at t=1000, 2000, 3000 with both timestamps
	// starting at t=0 and resetting when they fire.
	tests := []struct {
		HistoryDiff   time.Duration
		ProfileDiff   time.Duration
		ExpectHistory bool
		ExpectProfile bool
	}{
		{1000 * time.Millisecond, 1000 * time.Millisecond, true, false},
		{1000 * time.Millisecond, 2000 * time.Millisecond, true, true},
		{1000 * time.Millisecond, 1000 * time.Millisecond, true, false},
	}

	for i, test := range tests {
		history, profile := dueTargets(opts, test.HistoryDiff, test.ProfileDiff)
		assert.Equal(t, test.ExpectHistory, history, "tick %d", i+1)
		assert.Equal(t, test.ExpectProfile, profile, "tick %d", i+1)
	}
}

func TestSleepTimeout(t *testing.T) {
	both := &Options{HistoryPeriod: time.Second, ProfilePeriod: 3 * time.Second}
	assert.Equal(t, time.Second, sleepTimeout(both, 0, 0))
	assert.Equal(t, 400*time.Millisecond, sleepTimeout(both, 600*time.Millisecond, time.Second))

	historyOnly := &Options{HistoryPeriod: time.Second}
	assert.Equal(t, 250*time.Millisecond, sleepTimeout(historyOnly, 750*time.Millisecond, 0))

	profileOnly := &Options{ProfilePeriod: 2 * time.Second}
	assert.Equal(t, 2*time.Second, sleepTimeout(profileOnly, 0, 0))

	// Overdue targets never produce a negative timeout.
	assert.Equal(t, time.Duration(0), sleepTimeout(historyOnly, 5*time.Second, 0))

	disabled := &Options{}
	assert.Equal(t, time.Duration(-1), sleepTimeout(disabled, 0, 0))
}

func TestRunSamplesAndStops(t *testing.T) {
	table := registry.New(2, time.Minute)
	w, err := table.Attach(42)
	require.NoError(t, err)
	w.SetWait(waitevent.Make(waitevent.ClassIPC, 5))

	c := New(table,
		WithHistoryPeriod(5*time.Millisecond),
		WithProfilePeriod(5*time.Millisecond),
		WithHistoryEntries(100),
	)

	done := make(chan error, 1)
	go func() {
		done <- c.Run(context.Background())
	}()

	assert.Eventually(t, func() bool {
		return c.History().Len() > 0 && c.Profile().Len() > 0
	}, 2*time.Second, 5*time.Millisecond)

	c.Stop()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("collector did not drain after Stop")
	}
}

func TestRunContextCancel(t *testing.T) {
	table := registry.New(1, time.Minute)
	c := New(table) // history disabled by default, profile 10ms

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- c.Run(ctx)
	}()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("collector did not exit on cancellation")
	}
}

func TestReloadKeepsCapacities(t *testing.T) {
	table := registry.New(1, time.Minute)
	c := New(table, WithHistoryEntries(10), WithMaxProfileEntries(500))

	c.Reload(&Options{
		HistoryPeriod:     time.Second,
		ProfilePeriod:     0,
		HistoryEntries:    99999,
		MaxProfileEntries: 7,
		ProfilePid:        false,
	})

	opts := c.Options()
	assert.Equal(t, time.Second, opts.HistoryPeriod)
	assert.Equal(t, time.Duration(0), opts.ProfilePeriod)
	assert.False(t, opts.ProfilePid)
	// Store capacities are construction-time settings.
	assert.Equal(t, 10, opts.HistoryEntries)
	assert.Equal(t, 500, opts.MaxProfileEntries)
	assert.Equal(t, 10, c.History().Cap())
}

func TestHistoryCapacityFromBytes(t *testing.T) {
	assert.Equal(t, 100, HistoryCapacity(100*SampleFootprint))
	assert.Equal(t, 1, HistoryCapacity(1))
}
