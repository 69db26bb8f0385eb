package signal

import "frontrun/internal/schema"

// Aggregator combines detector votes into one composite signal per tick.
// Detectors that disagree suppress each other; there is no arbitration.
type Aggregator struct {
	detectors     []Detector
	minConfirming int
}

// NewAggregator wires the registered detectors. The detector count bounds
// the confirmation term of the composite confidence.
func NewAggregator(minConfirming int, detectors ...Detector) *Aggregator {
	if minConfirming <= 0 {
		minConfirming = 1
	}
	return &Aggregator{detectors: detectors, minConfirming: minConfirming}
}

// MaxConfirmations returns the registered detector count.
func (a *Aggregator) MaxConfirmations() int { return len(a.detectors) }

// Evaluate collects detector votes for the current tick. It emits a
// composite only when at least minConfirming detectors agree on one
// direction and no detector votes the other way.
func (a *Aggregator) Evaluate(seq uint64, ts int64) (Composite, bool) {
	var (
		buys, sells int
		primary     float64
		hasPrimary  bool
		components  []Component
	)

	for _, d := range a.detectors {
		c, ok := d.Evaluate()
		if !ok {
			continue
		}
		switch c.Direction {
		case schema.OrderSideBuy:
			buys++
		case schema.OrderSideSell:
			sells++
		default:
			continue
		}
		components = append(components, c)
	}

	if buys > 0 && sells > 0 {
		return Composite{}, false
	}

	dir := schema.OrderSideBuy
	count := buys
	if sells > 0 {
		dir = schema.OrderSideSell
		count = sells
	}
	if count < a.minConfirming {
		return Composite{}, false
	}

	var secondarySum float64
	var secondaryCount int
	for _, c := range components {
		if c.Kind == KindImbalance && !hasPrimary {
			primary = c.Confidence
			hasPrimary = true
			continue
		}
		secondarySum += c.Confidence
		secondaryCount++
	}

	var avgSecondary float64
	if secondaryCount > 0 {
		avgSecondary = secondarySum / float64(secondaryCount)
	}

	confirmTerm := float64(count) / float64(len(a.detectors))
	confidence := 0.4*primary + 0.3*confirmTerm + 0.3*avgSecondary

	return Composite{
		Direction:       dir,
		Confidence:      confidence,
		ConfirmingCount: count,
		Seq:             seq,
		Ts:              ts,
	}, true
}
