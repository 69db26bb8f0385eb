package signal

import (
	"math"

	"frontrun/internal/schema"
)

// FlowAnalyzer watches the last M aggressive trades and votes with the
// dominant taker side. Recent trades weigh more: trade i back in time
// carries weight decay^i.
type FlowAnalyzer struct {
	trades    []flowTrade
	head      int
	count     int
	decay     float64
	threshold float64
}

type flowTrade struct {
	side schema.OrderSide
	qty  schema.Quantity
}

// NewFlowAnalyzer builds an analyzer over the last maxTrades trades.
func NewFlowAnalyzer(maxTrades int, decay, threshold float64) *FlowAnalyzer {
	if maxTrades <= 0 {
		maxTrades = 1
	}
	return &FlowAnalyzer{
		trades:    make([]flowTrade, maxTrades),
		decay:     decay,
		threshold: threshold,
	}
}

// Kind implements Detector.
func (f *FlowAnalyzer) Kind() Kind { return KindFlow }

// OnTrade records an aggressive trade. Trades without a known aggressor are
// ignored.
func (f *FlowAnalyzer) OnTrade(t schema.Trade) {
	if t.Aggressor != schema.OrderSideBuy && t.Aggressor != schema.OrderSideSell {
		return
	}
	if t.Qty <= 0 {
		return
	}
	f.trades[f.head] = flowTrade{side: t.Aggressor, qty: t.Qty}
	f.head = (f.head + 1) % len(f.trades)
	if f.count < len(f.trades) {
		f.count++
	}
}

// Evaluate implements Detector over the recorded trades.
func (f *FlowAnalyzer) Evaluate() (Component, bool) {
	if f.count == 0 {
		return Component{}, false
	}

	var buy, sell float64
	weight := 1.0
	// walk from the most recent trade backwards
	idx := f.head - 1
	for i := 0; i < f.count; i++ {
		if idx < 0 {
			idx = len(f.trades) - 1
		}
		t := f.trades[idx]
		w := weight * float64(t.qty)
		if t.side == schema.OrderSideBuy {
			buy += w
		} else {
			sell += w
		}
		weight *= f.decay
		idx--
	}

	total := buy + sell
	if total <= 0 {
		return Component{}, false
	}
	ratio := (buy - sell) / total
	if math.Abs(ratio) < f.threshold {
		return Component{}, false
	}

	dir := schema.OrderSideBuy
	if ratio < 0 {
		dir = schema.OrderSideSell
	}
	fillFraction := float64(f.count) / float64(len(f.trades))
	conf := 0.3*fillFraction + 0.7*math.Abs(ratio)
	if conf > 1 {
		conf = 1
	}
	return Component{Kind: KindFlow, Direction: dir, Confidence: conf}, true
}
