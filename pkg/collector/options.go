package collector

import (
	"time"

	"github.com/c2h5oh/datasize"
)

const (
	// SampleFootprint is the accounted per-sample size used to turn a
	// history byte budget into a ring capacity.
	SampleFootprint = 40

	DefaultHistoryEntries    = 5000
	DefaultMaxProfileEntries = 5000
	DefaultProfilePeriod     = 10 * time.Millisecond
)

// Options is the collector's configuration snapshot. The scheduler
// loop reads one snapshot per tick; Reload replaces the whole snapshot
// atomically. HistoryEntries is consumed once at construction (the
// ring is never resized).
type Options struct {
	// HistoryPeriod is the wait history sampling period. 0 disables
	// history populating.
	HistoryPeriod time.Duration

	// ProfilePeriod is the waits profile sampling period. 0 disables
	// profiling.
	ProfilePeriod time.Duration

	// HistoryEntries is the ring capacity.
	HistoryEntries int

	// MaxProfileEntries bounds the profile store.
	MaxProfileEntries int

	// ProfilePid keys profile entries per worker pid. When false,
	// samples from different workers collapse onto one entry.
	ProfilePid bool

	// ProfileQueries includes the query id in samples and profile
	// keys. When false the query id is recorded as 0.
	ProfileQueries bool
}

func defaultOptions() *Options {
	return &Options{
		HistoryPeriod:     0,
		ProfilePeriod:     DefaultProfilePeriod,
		HistoryEntries:    DefaultHistoryEntries,
		MaxProfileEntries: DefaultMaxProfileEntries,
		ProfilePid:        true,
		ProfileQueries:    true,
	}
}

// HistoryCapacity converts a history byte budget into a ring entry
// count, never less than 1.
func HistoryCapacity(size datasize.ByteSize) int {
	entries := int(size.Bytes()) / SampleFootprint
	if entries < 1 {
		entries = 1
	}
	return entries
}

type Option func(*Options)

// WithOptions replaces the whole snapshot, used when the settings
// come pre-assembled from the config layer.
func WithOptions(o *Options) Option {
	return func(opts *Options) {
		*opts = *o
	}
}

func WithHistoryPeriod(d time.Duration) Option {
	return func(opts *Options) {
		opts.HistoryPeriod = d
	}
}

func WithProfilePeriod(d time.Duration) Option {
	return func(opts *Options) {
		opts.ProfilePeriod = d
	}
}

func WithHistoryEntries(n int) Option {
	return func(opts *Options) {
		opts.HistoryEntries = n
	}
}

func WithMaxProfileEntries(n int) Option {
	return func(opts *Options) {
		opts.MaxProfileEntries = n
	}
}

func WithProfilePid(v bool) Option {
	return func(opts *Options) {
		opts.ProfilePid = v
	}
}

func WithProfileQueries(v bool) Option {
	return func(opts *Options) {
		opts.ProfileQueries = v
	}
}
