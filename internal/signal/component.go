package signal

import "frontrun/internal/schema"

// Kind identifies which detector produced a component.
type Kind uint8

const (
	KindImbalance Kind = iota + 1
	KindFlow
)

func (k Kind) String() string {
	switch k {
	case KindImbalance:
		return "Imbalance"
	case KindFlow:
		return "Flow"
	default:
		return "Unknown"
	}
}

// Component is one detector's directional vote for the current tick.
// Confidence is dimensionless in [0, 1].
type Component struct {
	Kind       Kind
	Direction  schema.OrderSide
	Confidence float64
}

// Detector produces at most one component per tick.
type Detector interface {
	Kind() Kind
	Evaluate() (Component, bool)
}

// Composite is the aggregated signal emitted when enough detectors agree.
type Composite struct {
	Direction       schema.OrderSide
	Confidence      float64
	ConfirmingCount int
	Seq             uint64
	Ts              int64
}
