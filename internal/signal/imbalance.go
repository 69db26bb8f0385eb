package signal

import (
	"math"

	"frontrun/internal/schema"
)

// minStdDev suppresses signals from a flat window where the z-score is
// numerically meaningless.
const minStdDev = 1e-9

// ImbalanceDetector watches the bid/ask depth ratio over the top levels and
// votes when the current ratio deviates from its rolling mean by at least
// Threshold standard deviations. It stays silent until the window is full.
type ImbalanceDetector struct {
	window    *Rolling
	threshold float64
	topN      int
	lastZ     float64
	hasZ      bool
}

// NewImbalanceDetector builds a detector with a W-sample window.
func NewImbalanceDetector(windowSize, topN int, threshold float64) *ImbalanceDetector {
	return &ImbalanceDetector{
		window:    NewRolling(windowSize),
		threshold: threshold,
		topN:      topN,
	}
}

// Kind implements Detector.
func (d *ImbalanceDetector) Kind() Kind { return KindImbalance }

// TopN returns the number of levels summed per side.
func (d *ImbalanceDetector) TopN() int { return d.topN }

// Observe pushes the current tick's depth ratio. A tick with no ask depth
// carries no ratio and is skipped.
func (d *ImbalanceDetector) Observe(bidQty, askQty schema.Quantity) {
	d.hasZ = false
	if askQty <= 0 || bidQty < 0 {
		return
	}
	x := float64(bidQty) / float64(askQty)
	d.window.Push(x)
	if !d.window.Full() {
		return
	}
	std := d.window.StdDev()
	if std < minStdDev {
		return
	}
	d.lastZ = (x - d.window.Mean()) / std
	d.hasZ = true
}

// Evaluate implements Detector for the most recent Observe.
func (d *ImbalanceDetector) Evaluate() (Component, bool) {
	if !d.hasZ {
		return Component{}, false
	}
	var dir schema.OrderSide
	switch {
	case d.lastZ >= d.threshold:
		dir = schema.OrderSideBuy
	case d.lastZ <= -d.threshold:
		dir = schema.OrderSideSell
	default:
		return Component{}, false
	}
	conf := math.Abs(d.lastZ) / d.threshold
	if conf > 1 {
		conf = 1
	}
	return Component{Kind: KindImbalance, Direction: dir, Confidence: conf}, true
}
