package cmd

import (
	"context"
	"math/rand"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/voluzi/waitsampler/pkg/registry"
	"github.com/voluzi/waitsampler/pkg/waitevent"
)

var demoQueries = []string{
	"SELECT * FROM orders WHERE status = 'pending'",
	"UPDATE inventory SET count = count - 1 WHERE sku = $1",
	"INSERT INTO audit_log (actor, action) VALUES ($1, $2)",
	"SELECT count(*) FROM sessions WHERE expires_at < now()",
}

var demoClasses = []waitevent.Class{
	waitevent.ClassLWLock,
	waitevent.ClassLock,
	waitevent.ClassClient,
	waitevent.ClassIPC,
	waitevent.ClassIO,
}

// startDemoWorkers attaches n synthetic workers that cycle through
// random waits and queries, so a fresh install has something to show.
func startDemoWorkers(ctx context.Context, table *registry.Table, n int) {
	for i := 0; i < n; i++ {
		worker, err := table.Attach(int32(100000 + i))
		if err != nil {
			log.Warnf("could not attach demo worker: %v", err)
			return
		}

		go func(w *registry.Worker) {
			defer w.Detach()
			for {
				w.SetQueryID(table.Queries().Record(demoQueries[rand.Intn(len(demoQueries))]))
				w.SetWait(waitevent.Make(demoClasses[rand.Intn(len(demoClasses))], uint32(rand.Intn(8))+1))

				select {
				case <-ctx.Done():
					return
				case <-time.After(time.Duration(rand.Intn(40)+5) * time.Millisecond):
				}

				w.ClearWait()
				w.SetQueryID(0)

				select {
				case <-ctx.Done():
					return
				case <-time.After(time.Duration(rand.Intn(20)+5) * time.Millisecond):
				}
			}
		}(worker)
	}
	log.WithField("workers", n).Info("started demo workload")
}
