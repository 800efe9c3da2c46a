package config

import (
	"bytes"
	"os"
	"strconv"
	"time"

	"emperror.dev/errors"
	"github.com/BurntSushi/toml"
	"github.com/RaveNoX/go-jsonmerge"
	"github.com/c2h5oh/datasize"

	"github.com/voluzi/waitsampler/pkg/collector"
)

// Duration is a TOML-friendly duration: it accepts Go duration
// strings ("500ms", "1h30m") and bare integers meaning milliseconds.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	s := string(text)
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		d.Duration = time.Duration(ms) * time.Millisecond
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return errors.WrapIff(err, "invalid duration %q", s)
	}
	d.Duration = parsed
	return nil
}

type Config struct {
	Collector CollectorConfig `toml:"collector"`
	Server    ServerConfig    `toml:"server"`
	Tracer    TracerConfig    `toml:"tracer"`
	Dump      DumpConfig      `toml:"dump"`
	Registry  RegistryConfig  `toml:"registry"`
}

type CollectorConfig struct {
	// HistoryPeriod of 0 disables history sampling.
	HistoryPeriod Duration `toml:"history_period"`
	// ProfilePeriod of 0 disables profiling.
	ProfilePeriod Duration `toml:"profile_period"`
	// HistorySize is a byte budget for the ring ("512KB", "1MB");
	// when set it overrides HistoryEntries.
	HistorySize string `toml:"history_size"`
	// HistoryEntries is the ring capacity in samples.
	HistoryEntries int `toml:"history_entries"`
	// MaxProfileEntries bounds the profile store, minimum 100.
	MaxProfileEntries int  `toml:"max_profile_entries"`
	ProfilePid        bool `toml:"profile_pid"`
	ProfileQueries    bool `toml:"profile_queries"`
}

type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

type TracerConfig struct {
	// Store is the fifo or file the query trace feed follows; empty
	// disables the tracer.
	Store      string `toml:"store"`
	CreateFifo bool   `toml:"create_fifo"`
}

type DumpConfig struct {
	// Path of the shutdown snapshot; empty disables persistence.
	Path string `toml:"path"`
}

type RegistryConfig struct {
	// Slots is the worker table capacity.
	Slots int `toml:"slots"`
	// QueryTTL bounds query-text cache retention.
	QueryTTL Duration `toml:"query_ttl"`
}

func Default() *Config {
	return &Config{
		Collector: CollectorConfig{
			HistoryPeriod:     Duration{0},
			ProfilePeriod:     Duration{collector.DefaultProfilePeriod},
			HistoryEntries:    collector.DefaultHistoryEntries,
			MaxProfileEntries: collector.DefaultMaxProfileEntries,
			ProfilePid:        true,
			ProfileQueries:    true,
		},
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8000,
		},
		Registry: RegistryConfig{
			Slots:    128,
			QueryTTL: Duration{24 * time.Hour},
		},
	}
}

// Load reads the TOML config at path and, when overridePath is set,
// merges the override tree over the base before decoding. Either
// path may be empty; an empty base path yields the defaults.
func Load(path, overridePath string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, cfg.Validate()
	}

	base, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapIf(err, "failed to read config file")
	}

	merged := string(base)
	if overridePath != "" {
		override, err := os.ReadFile(overridePath)
		if err != nil {
			return nil, errors.WrapIf(err, "failed to read override file")
		}
		merged, err = mergeToml(string(base), string(override))
		if err != nil {
			return nil, err
		}
	}

	if _, err := toml.Decode(merged, cfg); err != nil {
		return nil, errors.WrapIf(err, "failed to decode config")
	}
	return cfg, cfg.Validate()
}

// mergeToml overlays the patch document onto the base document and
// re-encodes the merged tree.
func mergeToml(base, patch string) (string, error) {
	var baseTree, patchTree interface{}
	if _, err := toml.Decode(base, &baseTree); err != nil {
		return "", errors.WrapIf(err, "failed to decode base config")
	}
	if _, err := toml.Decode(patch, &patchTree); err != nil {
		return "", errors.WrapIf(err, "failed to decode override config")
	}

	merged, info := jsonmerge.Merge(baseTree, patchTree)
	if len(info.Errors) > 0 {
		return "", errors.WrapIf(info.Errors[0], "failed to merge configs")
	}

	buf := new(bytes.Buffer)
	if err := toml.NewEncoder(buf).Encode(merged); err != nil {
		return "", errors.WrapIf(err, "failed to encode merged config")
	}
	return buf.String(), nil
}

func (c *Config) Validate() error {
	if c.Collector.HistoryPeriod.Duration < 0 {
		return errors.New("collector.history_period must not be negative")
	}
	if c.Collector.ProfilePeriod.Duration < 0 {
		return errors.New("collector.profile_period must not be negative")
	}
	if c.Collector.MaxProfileEntries < 100 {
		return errors.Errorf("collector.max_profile_entries must be at least 100, got %d",
			c.Collector.MaxProfileEntries)
	}
	if c.Collector.HistorySize != "" {
		var size datasize.ByteSize
		if err := size.UnmarshalText([]byte(c.Collector.HistorySize)); err != nil {
			return errors.WrapIff(err, "invalid collector.history_size %q", c.Collector.HistorySize)
		}
	} else if c.Collector.HistoryEntries < 1 {
		return errors.New("collector.history_entries must be at least 1")
	}
	if c.Registry.Slots < 1 {
		return errors.New("registry.slots must be at least 1")
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return errors.Errorf("server.port out of range: %d", c.Server.Port)
	}
	return nil
}

// historyCapacity resolves the ring capacity from the byte budget
// when one is configured, the entry count otherwise.
func (c *Config) historyCapacity() int {
	if c.Collector.HistorySize != "" {
		var size datasize.ByteSize
		if err := size.UnmarshalText([]byte(c.Collector.HistorySize)); err == nil {
			return collector.HistoryCapacity(size)
		}
	}
	return c.Collector.HistoryEntries
}

// CollectorOptions maps the config onto a collector Options snapshot.
func (c *Config) CollectorOptions() *collector.Options {
	return &collector.Options{
		HistoryPeriod:     c.Collector.HistoryPeriod.Duration,
		ProfilePeriod:     c.Collector.ProfilePeriod.Duration,
		HistoryEntries:    c.historyCapacity(),
		MaxProfileEntries: c.Collector.MaxProfileEntries,
		ProfilePid:        c.Collector.ProfilePid,
		ProfileQueries:    c.Collector.ProfileQueries,
	}
}
