package risk

import (
	"fmt"
	"time"

	"frontrun/internal/schema"
)

// Limits is the static breaker configuration. Monetary fields are scaled
// ints in the quote currency of the traded symbol.
type Limits struct {
	MaxPositionNotional schema.Notional
	MaxTotalExposure    schema.Notional
	MaxDailyLoss        schema.Notional
	MaxDrawdownBps      int64
	MaxTradesPerHour    int
	MaxTradesPerDay     int
	LatencyHalt         time.Duration
	DisconnectHalt      time.Duration
}

// Validate checks if the limits are usable.
func (l Limits) Validate() error {
	if l.MaxPositionNotional <= 0 {
		return fmt.Errorf("invalid risk limits: MaxPositionNotional must be > 0")
	}
	if l.MaxTotalExposure < l.MaxPositionNotional {
		return fmt.Errorf("invalid risk limits: MaxTotalExposure below MaxPositionNotional")
	}
	if l.MaxDailyLoss <= 0 {
		return fmt.Errorf("invalid risk limits: MaxDailyLoss must be > 0")
	}
	if l.MaxDrawdownBps <= 0 || l.MaxDrawdownBps > 10000 {
		return fmt.Errorf("invalid risk limits: MaxDrawdownBps out of range")
	}
	if l.MaxTradesPerHour <= 0 || l.MaxTradesPerDay <= 0 {
		return fmt.Errorf("invalid risk limits: trade caps must be > 0")
	}
	if l.MaxTradesPerDay < l.MaxTradesPerHour {
		return fmt.Errorf("invalid risk limits: MaxTradesPerDay below MaxTradesPerHour")
	}
	if l.LatencyHalt <= 0 {
		return fmt.Errorf("invalid risk limits: LatencyHalt must be > 0")
	}
	if l.DisconnectHalt <= 0 {
		return fmt.Errorf("invalid risk limits: DisconnectHalt must be > 0")
	}
	return nil
}

// Violation reports which cap an entry would break. It is advisory, not a
// breaker trip.
type Violation struct {
	Code   schema.RiskReason
	Detail string
}

func (v *Violation) Error() string {
	return fmt.Sprintf("risk violation %s: %s", v.Code, v.Detail)
}
