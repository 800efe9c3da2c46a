package server

import (
	"net/http"
	"time"

	"github.com/goccy/go-json"
	log "github.com/sirupsen/logrus"

	"github.com/voluzi/waitsampler/pkg/collector"
)

// waitJSON is the wire form of one wait observation.
type waitJSON struct {
	Pid        int32     `json:"pid"`
	WaitEvent  uint32    `json:"wait_event"`
	EventClass string    `json:"event_class"`
	EventID    uint32    `json:"event_id"`
	QueryID    uint64    `json:"query_id,omitempty"`
	Query      string    `json:"query,omitempty"`
	TS         time.Time `json:"ts,omitempty"`
}

type historyJSON struct {
	Index   uint64     `json:"index"`
	Samples []waitJSON `json:"samples"`
}

type profileEntryJSON struct {
	waitJSON
	Counter int64   `json:"counter"`
	Usage   float64 `json:"usage"`
}

type workerJSON struct {
	Slot      int    `json:"slot"`
	Pid       int32  `json:"pid"`
	Waiting   bool   `json:"waiting"`
	WaitEvent string `json:"wait_event,omitempty"`
	Process   any    `json:"process,omitempty"`
	Error     string `json:"error,omitempty"`
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Errorf("error encoding response: %v", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

func (s *Server) sampleJSON(sample collector.WaitSample) waitJSON {
	out := waitJSON{
		Pid:        sample.Pid,
		WaitEvent:  uint32(sample.WaitEvent),
		EventClass: sample.WaitEvent.Class().String(),
		EventID:    sample.WaitEvent.Event(),
		QueryID:    sample.QueryID,
		TS:         sample.TS,
	}
	if text, ok := s.collector.Registry().Queries().Text(sample.QueryID); ok {
		out.Query = text
	}
	return out
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// current takes one ad-hoc registry pass with the probe's skip rules
// and a single shared timestamp; it touches neither store.
func (s *Server) current(w http.ResponseWriter, r *http.Request) {
	reg := s.collector.Registry()
	ts := time.Now()

	out := make([]waitJSON, 0)
	for i := 0; i < reg.Len(); i++ {
		pid := reg.Pid(i)
		wait := reg.WaitEvent(i)
		if pid == 0 || !wait.Waiting() {
			continue
		}
		out = append(out, s.sampleJSON(collector.WaitSample{
			Pid:       pid,
			WaitEvent: wait,
			QueryID:   reg.QueryID(i),
			TS:        ts,
		}))
	}

	log.WithField("waits", len(out)).Debug("retrieved current waits")
	s.writeJSON(w, out)
}

func (s *Server) history(w http.ResponseWriter, r *http.Request) {
	samples, index := s.collector.History().Snapshot()

	out := historyJSON{
		Index:   index,
		Samples: make([]waitJSON, 0, len(samples)),
	}
	for _, sample := range samples {
		out.Samples = append(out.Samples, s.sampleJSON(sample))
	}

	log.WithField("samples", len(out.Samples)).Debug("retrieved history")
	s.writeJSON(w, out)
}

func (s *Server) profile(w http.ResponseWriter, r *http.Request) {
	entries := s.collector.Profile().Snapshot()

	out := make([]profileEntryJSON, 0, len(entries))
	for _, entry := range entries {
		sample := collector.WaitSample{
			Pid:       entry.Key.Pid,
			WaitEvent: entry.Key.WaitEvent,
			QueryID:   entry.Key.QueryID,
		}
		out = append(out, profileEntryJSON{
			waitJSON: s.sampleJSON(sample),
			Counter:  entry.Counter,
			Usage:    entry.Usage,
		})
	}

	log.WithField("entries", len(out)).Debug("retrieved profile")
	s.writeJSON(w, out)
}

func (s *Server) resetProfile(w http.ResponseWriter, r *http.Request) {
	s.collector.Profile().Reset()
	log.Info("profile reset")
	w.WriteHeader(http.StatusOK)
}

func (s *Server) workers(w http.ResponseWriter, r *http.Request) {
	reg := s.collector.Registry()

	out := make([]workerJSON, 0)
	for i := 0; i < reg.Len(); i++ {
		pid := reg.Pid(i)
		if pid == 0 {
			continue
		}

		worker := workerJSON{
			Slot:    i,
			Pid:     pid,
			Waiting: reg.WaitEvent(i).Waiting(),
		}
		if worker.Waiting {
			worker.WaitEvent = reg.WaitEvent(i).String()
		}

		if stats, err := lookupProcess(pid); err != nil {
			worker.Error = err.Error()
		} else {
			worker.Process = stats
		}
		out = append(out, worker)
	}

	s.writeJSON(w, out)
}
