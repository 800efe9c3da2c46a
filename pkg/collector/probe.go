package collector

// Probe performs one pass over the worker registry, appending to the
// history ring and upserting into the profile as requested. Each
// requested store's write lock is held across the whole scan, profile
// first, so readers observe a probe as a single step; any reader that
// takes both locks must follow the same order.
//
// The registry is scanned by index without a registry-wide lock. A
// slot can be vacated concurrently, and a freed slot may still carry
// its previous occupant's pid, so a sample can be attributed to a
// worker that already exited. That stale read is accepted sampling
// noise, not an error.
func (c *Collector) Probe(writeHistory, writeProfile bool) {
	if !writeHistory && !writeProfile {
		return
	}

	opts := c.opts.Load()

	if writeProfile {
		c.profile.mu.Lock()
		c.stats.ProfileProbes.Add(1)
	}
	if writeHistory {
		c.history.mu.Lock()
		c.stats.HistoryProbes.Add(1)
	}

	for i := 0; i < c.reg.Len(); i++ {
		pid := c.reg.Pid(i)
		wait := c.reg.WaitEvent(i)

		var queryID uint64
		if opts.ProfileQueries {
			queryID = c.reg.QueryID(i)
		}

		// A zero pid marks a never-used slot. Non-zero does not
		// prove the occupant is still alive; see above.
		if pid == 0 {
			continue
		}

		// Only active waits are recorded. A worker burning CPU with
		// no wait is invisible to this sampler.
		if !wait.Waiting() {
			continue
		}

		if writeHistory {
			c.history.appendLocked(WaitSample{
				Pid:       pid,
				WaitEvent: wait,
				QueryID:   queryID,
				TS:        c.now(),
			})
			c.stats.HistorySamples.Add(1)
		}

		if writeProfile {
			key := Key{WaitEvent: wait, QueryID: queryID}
			if opts.ProfilePid {
				key.Pid = pid
			}
			c.profile.observeLocked(key)
			c.stats.ProfileSamples.Add(1)
		}
	}

	if writeHistory {
		c.history.mu.Unlock()
	}
	if writeProfile {
		c.profile.mu.Unlock()
	}
}
