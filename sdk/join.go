package sdk

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"go.dedis.ch/duet"
	"golang.org/x/sync/errgroup"
)

var promParticipants = prometheus.NewGauge(prometheus.GaugeOpts{
	Name: "duet_sdk_participants_running",
	Help: "number of participants currently running",
})

func init() {
	duet.PromCollectors = append(duet.PromCollectors, promParticipants)
}

// Task is a unit of work of a session, usually the role of a participant.
type Task func(ctx context.Context) error

// Join runs the tasks concurrently and waits for all of them to return. It
// returns the first error, in which case the context of the other tasks is
// canceled.
func Join(ctx context.Context, tasks ...Task) error {
	g, ctx := errgroup.WithContext(ctx)

	for _, task := range tasks {
		task := task

		g.Go(func() error {
			promParticipants.Inc()
			defer promParticipants.Dec()

			return task(ctx)
		})
	}

	return g.Wait()
}
