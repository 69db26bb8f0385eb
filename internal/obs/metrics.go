package obs

import (
	"sync/atomic"
	"time"

	"frontrun/internal/schema"
)

const (
	maxEventType  = int(schema.EventRiskDecision)
	maxRiskReason = int(schema.RiskReasonEmergency)
)

// Metrics collects lightweight counters and latency stats for the pipeline.
type Metrics struct {
	eventCounts      [maxEventType + 1]uint64
	riskReasonCounts [maxRiskReason + 1]uint64
	staleDrops       uint64
	queueDrops       uint64
	malformedDrops   uint64

	tickLatency         LatencyStats
	signalToFillLatency LatencyStats
}

// LatencyStats aggregates duration samples in nanoseconds.
type LatencyStats struct {
	count uint64
	sum   uint64
	min   uint64
	max   uint64
}

// LatencySnapshot is a point-in-time view of latency stats.
type LatencySnapshot struct {
	Count uint64
	Min   time.Duration
	Max   time.Duration
	Avg   time.Duration
}

// Snapshot captures the current metrics values.
type Snapshot struct {
	EventCounts         map[schema.EventType]uint64
	RiskReasonCounts    map[schema.RiskReason]uint64
	StaleDrops          uint64
	QueueDrops          uint64
	MalformedDrops      uint64
	TickLatency         LatencySnapshot
	SignalToFillLatency LatencySnapshot
}

// NewMetrics allocates a metrics container.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// ObserveEvent counts one event by type.
func (m *Metrics) ObserveEvent(header schema.EventHeader) {
	if m == nil {
		return
	}
	idx := int(header.Type)
	if idx >= 0 && idx < len(m.eventCounts) {
		atomic.AddUint64(&m.eventCounts[idx], 1)
	}
}

// IncRiskReason counts a rejected entry by reason.
func (m *Metrics) IncRiskReason(reason schema.RiskReason) {
	if m == nil {
		return
	}
	idx := int(reason)
	if idx >= 0 && idx < len(m.riskReasonCounts) {
		atomic.AddUint64(&m.riskReasonCounts[idx], 1)
	}
}

// IncStaleDrop records a depth update dropped by the book seq gate.
func (m *Metrics) IncStaleDrop() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.staleDrops, 1)
}

// AddQueueDrops records events evicted by a DropOldest queue.
func (m *Metrics) AddQueueDrops(n uint64) {
	if m == nil || n == 0 {
		return
	}
	atomic.AddUint64(&m.queueDrops, n)
}

// IncMalformedDrop records an unparseable feed message.
func (m *Metrics) IncMalformedDrop() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.malformedDrops, 1)
}

// ObserveTick measures one tick-processing latency.
func (m *Metrics) ObserveTick(d time.Duration) {
	if m == nil {
		return
	}
	m.tickLatency.Observe(d)
}

// ObserveSignalToFill measures signal-to-fill latency.
func (m *Metrics) ObserveSignalToFill(d time.Duration) {
	if m == nil {
		return
	}
	m.signalToFillLatency.Observe(d)
}

// Snapshot returns a copy of the current metrics values.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	eventCounts := make(map[schema.EventType]uint64)
	for i := range m.eventCounts {
		if v := atomic.LoadUint64(&m.eventCounts[i]); v > 0 {
			eventCounts[schema.EventType(i)] = v
		}
	}
	riskCounts := make(map[schema.RiskReason]uint64)
	for i := range m.riskReasonCounts {
		if v := atomic.LoadUint64(&m.riskReasonCounts[i]); v > 0 {
			riskCounts[schema.RiskReason(i)] = v
		}
	}
	return Snapshot{
		EventCounts:         eventCounts,
		RiskReasonCounts:    riskCounts,
		StaleDrops:          atomic.LoadUint64(&m.staleDrops),
		QueueDrops:          atomic.LoadUint64(&m.queueDrops),
		MalformedDrops:      atomic.LoadUint64(&m.malformedDrops),
		TickLatency:         m.tickLatency.Snapshot(),
		SignalToFillLatency: m.signalToFillLatency.Snapshot(),
	}
}

// Observe records a duration sample.
func (l *LatencyStats) Observe(d time.Duration) {
	if d < 0 {
		return
	}
	nanos := uint64(d)
	atomic.AddUint64(&l.count, 1)
	atomic.AddUint64(&l.sum, nanos)

	for {
		min := atomic.LoadUint64(&l.min)
		if min != 0 && nanos >= min {
			break
		}
		if atomic.CompareAndSwapUint64(&l.min, min, nanos) {
			break
		}
	}

	for {
		max := atomic.LoadUint64(&l.max)
		if nanos <= max {
			break
		}
		if atomic.CompareAndSwapUint64(&l.max, max, nanos) {
			break
		}
	}
}

// Snapshot returns the aggregated latency stats.
func (l *LatencyStats) Snapshot() LatencySnapshot {
	count := atomic.LoadUint64(&l.count)
	if count == 0 {
		return LatencySnapshot{}
	}
	sum := atomic.LoadUint64(&l.sum)
	min := atomic.LoadUint64(&l.min)
	max := atomic.LoadUint64(&l.max)
	return LatencySnapshot{
		Count: count,
		Min:   time.Duration(min),
		Max:   time.Duration(max),
		Avg:   time.Duration(sum / count),
	}
}
