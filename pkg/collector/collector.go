package collector

import (
	"context"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/voluzi/waitsampler/pkg/registry"
)

// Collector owns the wait history ring and the waits profile, and
// runs the single background loop that samples the worker registry
// on two independent periods. External readers reach the stores
// through History() and Profile(); the probe is the only writer.
type Collector struct {
	reg     *registry.Table
	history *History
	profile *Profile

	opts          atomic.Pointer[Options]
	wake          chan struct{}
	shutdown      atomic.Bool
	reloadPending atomic.Bool

	stats Stats

	// now is swappable for tests driving the tick math directly.
	now func() time.Time
}

// Stats are the collector's self-observation counters.
type Stats struct {
	Ticks          atomic.Uint64
	HistoryProbes  atomic.Uint64
	ProfileProbes  atomic.Uint64
	HistorySamples atomic.Uint64
	ProfileSamples atomic.Uint64
}

func New(reg *registry.Table, opts ...Option) *Collector {
	options := defaultOptions()
	for _, opt := range opts {
		opt(options)
	}

	c := &Collector{
		reg:     reg,
		history: NewHistory(options.HistoryEntries),
		profile: NewProfile(options.MaxProfileEntries),
		wake:    make(chan struct{}, 1),
		now:     time.Now,
	}
	c.opts.Store(options)
	return c
}

// History returns the ring for read-side consumers.
func (c *Collector) History() *History {
	return c.history
}

// Profile returns the profile store for read-side consumers.
func (c *Collector) Profile() *Profile {
	return c.profile
}

// Registry returns the sampled worker table.
func (c *Collector) Registry() *registry.Table {
	return c.reg
}

// Options returns the current configuration snapshot.
func (c *Collector) Options() *Options {
	return c.opts.Load()
}

// StatsSnapshot returns current counter values.
func (c *Collector) StatsSnapshot() map[string]uint64 {
	return map[string]uint64{
		"ticks":           c.stats.Ticks.Load(),
		"history_probes":  c.stats.HistoryProbes.Load(),
		"profile_probes":  c.stats.ProfileProbes.Load(),
		"history_samples": c.stats.HistorySamples.Load(),
		"profile_samples": c.stats.ProfileSamples.Load(),
		"evictions":       c.profile.Evictions(),
	}
}

// Wake forces the loop to re-check its flags immediately.
func (c *Collector) Wake() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// Stop requests a graceful drain; the loop finishes any probe in
// progress and exits.
func (c *Collector) Stop() {
	c.shutdown.Store(true)
	c.Wake()
}

// Reload swaps the configuration snapshot. Periods and profile key
// toggles take effect on the next tick; store capacities are fixed
// at construction and changed values are ignored with a warning.
func (c *Collector) Reload(options *Options) {
	current := c.opts.Load()
	if options.HistoryEntries != current.HistoryEntries {
		log.Warnf("history ring capacity cannot be changed at runtime (%d -> %d ignored)",
			current.HistoryEntries, options.HistoryEntries)
		options.HistoryEntries = current.HistoryEntries
	}
	if options.MaxProfileEntries != current.MaxProfileEntries {
		log.Warnf("max profile entries cannot be changed at runtime (%d -> %d ignored)",
			current.MaxProfileEntries, options.MaxProfileEntries)
		options.MaxProfileEntries = current.MaxProfileEntries
	}
	c.opts.Store(options)
	c.reloadPending.Store(true)
	c.Wake()
}

// dueTargets computes which targets fire given the elapsed diffs.
func dueTargets(opts *Options, historyDiff, profileDiff time.Duration) (writeHistory, writeProfile bool) {
	writeHistory = opts.HistoryPeriod > 0 && historyDiff >= opts.HistoryPeriod
	writeProfile = opts.ProfilePeriod > 0 && profileDiff >= opts.ProfilePeriod
	return
}

// sleepTimeout computes how long to block before the next due sample:
// the minimum remaining time over enabled targets, or -1 to wait
// indefinitely for a wake when both targets are disabled.
func sleepTimeout(opts *Options, historyDiff, profileDiff time.Duration) time.Duration {
	historyTimeout := remaining(opts.HistoryPeriod, historyDiff)
	profileTimeout := remaining(opts.ProfilePeriod, profileDiff)

	switch {
	case opts.ProfilePeriod > 0 && opts.HistoryPeriod == 0:
		return profileTimeout
	case opts.HistoryPeriod > 0 && opts.ProfilePeriod == 0:
		return historyTimeout
	case opts.HistoryPeriod > 0 && opts.ProfilePeriod > 0:
		if historyTimeout < profileTimeout {
			return historyTimeout
		}
		return profileTimeout
	}
	return -1
}

func remaining(period, diff time.Duration) time.Duration {
	if period >= diff {
		return period - diff
	}
	return 0
}

// Run executes the scheduler loop until Stop is called or ctx is
// cancelled. Cancellation is the unrecoverable-termination path: the
// loop exits immediately without draining and returns ctx.Err(). A
// graceful Stop returns nil.
func (c *Collector) Run(ctx context.Context) error {
	log.Info("wait sampling collector started")

	now := c.now()
	historyTS, profileTS := now, now

	timer := time.NewTimer(0)
	if !timer.Stop() {
		<-timer.C
	}

	for {
		// Clear any already-pending wakeup.
		select {
		case <-c.wake:
		default:
		}

		if c.reloadPending.CompareAndSwap(true, false) {
			log.Info("collector configuration reloaded")
		}

		if c.shutdown.Load() {
			break
		}

		c.stats.Ticks.Add(1)

		opts := c.opts.Load()
		now = c.now()
		historyDiff := now.Sub(historyTS)
		profileDiff := now.Sub(profileTS)

		writeHistory, writeProfile := dueTargets(opts, historyDiff, profileDiff)
		if writeHistory || writeProfile {
			c.Probe(writeHistory, writeProfile)

			if writeHistory {
				historyTS = now
				historyDiff = 0
			}
			if writeProfile {
				profileTS = now
				profileDiff = 0
			}
		}

		timeout := sleepTimeout(opts, historyDiff, profileDiff)
		if timeout < 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-c.wake:
			}
			continue
		}

		timer.Reset(timeout)
		select {
		case <-ctx.Done():
			if !timer.Stop() {
				<-timer.C
			}
			return ctx.Err()
		case <-c.wake:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
		case <-timer.C:
		}
	}

	log.Info("wait sampling collector shutting down")
	return nil
}
