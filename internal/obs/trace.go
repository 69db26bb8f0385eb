package obs

import (
	"sync/atomic"
	"time"
)

// TraceGenerator issues the IDs that tie one feed message to every event,
// order and log line derived from it.
type TraceGenerator struct {
	next atomic.Uint64
}

// NewTraceGenerator seeds the sequence. A zero seed starts from the current
// time so IDs stay unique across restarts; replay paths pass a fixed seed.
func NewTraceGenerator(seed uint64) *TraceGenerator {
	g := &TraceGenerator{}
	if seed == 0 {
		seed = uint64(time.Now().UTC().UnixNano())
	}
	g.next.Store(seed)
	return g
}

// Next returns the next trace ID.
func (g *TraceGenerator) Next() uint64 {
	return g.next.Add(1)
}
