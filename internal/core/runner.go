package core

import (
	"context"
	"time"

	"github.com/yanun0323/logs"

	"frontrun/internal/bus"
	"frontrun/internal/obs"
	"frontrun/internal/wal"
)

// Runner is the live event loop: it drains the market data queue into the
// pipeline, optionally capturing every event to the WAL first.
type Runner struct {
	queue   *bus.Queue
	pipe    *Pipeline
	capture *wal.Writer
	metrics *obs.Metrics

	seenDrops uint64
}

// NewRunner wires the loop. capture may be nil to disable WAL recording.
func NewRunner(queue *bus.Queue, pipe *Pipeline, capture *wal.Writer, metrics *obs.Metrics) *Runner {
	return &Runner{
		queue:   queue,
		pipe:    pipe,
		capture: capture,
		metrics: metrics,
	}
}

// Run blocks until the context is done or the queue closes.
func (r *Runner) Run(ctx context.Context) {
	r.queue.Run(ctx, func(e bus.Event) {
		start := time.Now()

		if r.capture != nil {
			if err := r.capture.TryAppend(e.Header, e.Payload); err != nil {
				logs.Warnf("wal capture dropped event seq %d: %v", e.Header.Seq, err)
			}
		}

		if err := r.pipe.Step(ctx, e, start.UTC().UnixNano()); err != nil {
			logs.Errorf("pipeline step failed on %s seq %d: %v", e.Header.Type, e.Header.Seq, err)
		}

		r.metrics.ObserveTick(time.Since(start))
		if d := r.queue.Dropped(); d > r.seenDrops {
			r.metrics.AddQueueDrops(d - r.seenDrops)
			r.seenDrops = d
		}
	})
}
