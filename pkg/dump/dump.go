package dump

import (
	"os"
	"path/filepath"
	"time"

	"emperror.dev/errors"
	"github.com/goccy/go-json"
	"github.com/klauspost/pgzip"

	"github.com/voluzi/waitsampler/pkg/collector"
)

// Snapshot is the on-disk form of the collector's stores: a
// best-effort carry-over of profile and history across restarts.
type Snapshot struct {
	SavedAt      time.Time              `json:"saved_at"`
	HistoryIndex uint64                 `json:"history_index"`
	History      []collector.WaitSample `json:"history"`
	Profile      []collector.Entry      `json:"profile"`
}

// Save writes a compressed snapshot of the collector's stores to
// path, going through a temp file so a crash mid-write never leaves
// a truncated dump behind.
func Save(path string, c *collector.Collector) error {
	history, index := c.History().Snapshot()
	snapshot := Snapshot{
		SavedAt:      time.Now(),
		HistoryIndex: index,
		History:      history,
		Profile:      c.Profile().Snapshot(),
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".waitsampler-dump-*")
	if err != nil {
		return errors.WrapIf(err, "failed to create dump file")
	}
	defer os.Remove(tmp.Name())

	gz, err := pgzip.NewWriterLevel(tmp, pgzip.BestSpeed)
	if err != nil {
		tmp.Close()
		return errors.WrapIf(err, "pgzip writer failed")
	}

	if err := json.NewEncoder(gz).Encode(snapshot); err != nil {
		gz.Close()
		tmp.Close()
		return errors.WrapIf(err, "failed to encode dump")
	}
	if err := gz.Close(); err != nil {
		tmp.Close()
		return errors.WrapIf(err, "failed to flush dump")
	}
	if err := tmp.Close(); err != nil {
		return errors.WrapIf(err, "failed to close dump file")
	}

	return errors.WrapIf(os.Rename(tmp.Name(), path), "failed to move dump into place")
}

// Load restores a snapshot into the collector's stores. The profile
// restore honors the current entry bound by evicting as needed, so a
// dump taken under a larger bound never overfills the store.
func Load(path string, c *collector.Collector) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.WrapIf(err, "failed to open dump file")
	}
	defer f.Close()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.WrapIf(err, "failed to read dump header")
	}
	defer gz.Close()

	var snapshot Snapshot
	if err := json.NewDecoder(gz).Decode(&snapshot); err != nil {
		return errors.WrapIf(err, "failed to decode dump")
	}

	c.History().Restore(snapshot.History)
	c.Profile().Restore(snapshot.Profile)
	return nil
}
