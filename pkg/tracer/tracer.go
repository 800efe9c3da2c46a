package tracer

import (
	"context"
	"strings"
	"syscall"

	"github.com/goccy/go-json"

	"github.com/containerd/fifo"
	"github.com/nxadm/tail"

	"github.com/voluzi/waitsampler/pkg/registry"
)

// QueryTracer follows a fifo (or plain file) of JSON-lines traces
// emitted by external worker processes to report the query they are
// executing. It is the feed that keeps the registry's query ids and
// query texts current; without it only in-process workers have query
// attribution.
type QueryTracer struct {
	tail   *tail.Tail
	Traces chan *Trace
}

type Trace struct {
	Operation string `json:"operation"` // "query_start" or "query_end"
	Pid       int32  `json:"pid"`
	Query     string `json:"query,omitempty"`
	Err       error  `json:"-"`
}

const (
	QueryStart = "query_start"
	QueryEnd   = "query_end"
)

func NewQueryTracer(path string, createFifo bool) (*QueryTracer, error) {
	if createFifo {
		f, err := fifo.OpenFifo(context.Background(), path, syscall.O_CREAT|syscall.O_RDONLY|syscall.O_NONBLOCK, 0655)
		if err != nil {
			return nil, err
		}
		if err := f.Close(); err != nil {
			return nil, err
		}
	}

	t, err := tail.TailFile(path, tail.Config{
		ReOpen: true,
		Pipe:   createFifo,
		Follow: true,
		Logger: tail.DiscardingLogger,
	})
	if err != nil {
		return nil, err
	}

	return &QueryTracer{
		tail:   t,
		Traces: make(chan *Trace),
	}, nil
}

func (t *QueryTracer) Stop() error {
	return t.tail.Stop()
}

func (t *QueryTracer) Start() {
	for line := range t.tail.Lines {
		if line.Err != nil {
			t.Traces <- &Trace{Err: line.Err}
			continue
		}

		if strings.TrimSpace(line.Text) != "" {
			trace := Trace{}
			if err := json.Unmarshal([]byte(line.Text), &trace); err != nil {
				t.Traces <- &Trace{Err: err}
			} else {
				t.Traces <- &trace
			}
		}
	}
}

// ApplyTo publishes the trace to the worker's registry slot. Returns
// false when the pid resolves to no occupied slot (the worker exited
// or never attached), which callers treat as noise.
func (tr *Trace) ApplyTo(table *registry.Table) bool {
	slot := table.SlotOf(tr.Pid)
	if slot < 0 {
		return false
	}

	switch tr.Operation {
	case QueryStart:
		table.SetQueryID(slot, table.Queries().Record(tr.Query))
	case QueryEnd:
		table.SetQueryID(slot, 0)
	default:
		return false
	}
	return true
}
