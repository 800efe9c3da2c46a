package server

import (
	"net/http"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	log "github.com/sirupsen/logrus"
	"google.golang.org/protobuf/proto"
)

// metrics exposes the collector's self-observation counters in the
// Prometheus text format.
func (s *Server) metrics(w http.ResponseWriter, r *http.Request) {
	stats := s.collector.StatsSnapshot()

	families := []*dto.MetricFamily{
		counter("waitsampler_ticks_total",
			"Scheduler loop iterations.", float64(stats["ticks"])),
		counter("waitsampler_history_probes_total",
			"Probe passes that wrote history.", float64(stats["history_probes"])),
		counter("waitsampler_profile_probes_total",
			"Probe passes that wrote the profile.", float64(stats["profile_probes"])),
		counter("waitsampler_history_samples_total",
			"Samples appended to the history ring.", float64(stats["history_samples"])),
		counter("waitsampler_profile_samples_total",
			"Observations recorded into the profile.", float64(stats["profile_samples"])),
		counter("waitsampler_profile_evictions_total",
			"Profile eviction passes.", float64(stats["evictions"])),
		gauge("waitsampler_profile_entries",
			"Current profile entry count.", float64(s.collector.Profile().Len())),
		gauge("waitsampler_history_index",
			"History ring write cursor.", float64(s.collector.History().Index())),
	}

	format := expfmt.NewFormat(expfmt.TypeTextPlain)
	w.Header().Set("Content-Type", string(format))
	enc := expfmt.NewEncoder(w, format)
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			log.Errorf("error encoding metrics: %v", err)
			return
		}
	}
}

func counter(name, help string, value float64) *dto.MetricFamily {
	return &dto.MetricFamily{
		Name: proto.String(name),
		Help: proto.String(help),
		Type: dto.MetricType_COUNTER.Enum(),
		Metric: []*dto.Metric{
			{Counter: &dto.Counter{Value: proto.Float64(value)}},
		},
	}
}

func gauge(name, help string, value float64) *dto.MetricFamily {
	return &dto.MetricFamily{
		Name: proto.String(name),
		Help: proto.String(help),
		Type: dto.MetricType_GAUGE.Enum(),
		Metric: []*dto.Metric{
			{Gauge: &dto.Gauge{Value: proto.Float64(value)}},
		},
	}
}
