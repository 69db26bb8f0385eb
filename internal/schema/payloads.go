package schema

// OrderSide describes a book side or order direction.
type OrderSide uint16

const (
	OrderSideUnknown OrderSide = iota
	OrderSideBuy
	OrderSideSell
)

// Opposite returns the opposing side.
func (s OrderSide) Opposite() OrderSide {
	switch s {
	case OrderSideBuy:
		return OrderSideSell
	case OrderSideSell:
		return OrderSideBuy
	default:
		return OrderSideUnknown
	}
}

func (s OrderSide) String() string {
	switch s {
	case OrderSideBuy:
		return "Buy"
	case OrderSideSell:
		return "Sell"
	default:
		return "Unknown"
	}
}

// DepthUpdate is the payload for EventDepthUpdate. Qty == 0 removes the level.
type DepthUpdate struct {
	SymbolID uint32
	Side     OrderSide
	Flags    uint16
	Price    Price
	Qty      Quantity
	BookSeq  uint64
}

// Trade is the payload for EventTrade. Aggressor is the taker side.
type Trade struct {
	SymbolID  uint32
	Aggressor OrderSide
	Flags     uint16
	TradeID   uint64
	Price     Price
	Qty       Quantity
}

// BookLevel is a single (price, quantity) pair inside a snapshot.
type BookLevel struct {
	Price Price
	Qty   Quantity
}

// BookSnapshot is the payload for EventBookSnapshot. It atomically replaces
// the full level set of both sides on apply.
type BookSnapshot struct {
	SymbolID uint32
	BookSeq  uint64
	Bids     []BookLevel
	Asks     []BookLevel
}

// OrderType describes order type.
type OrderType uint16

const (
	OrderTypeUnknown OrderType = iota
	OrderTypeLimit
	OrderTypeMarket
)

// OrderIntent is the payload for EventOrderIntent. OrderID is derived from the
// originating signal so duplicate submissions are rejectable.
type OrderIntent struct {
	OrderID    uint64
	SignalSeq  uint64
	SymbolID   uint32
	Side       OrderSide
	Type       OrderType
	Flags      uint16
	Price      Price
	Qty        Quantity
	Notional   Notional
	ReduceOnly bool
}

// OrderAckStatus describes the outcome of an order acknowledgment.
type OrderAckStatus uint16

const (
	OrderAckStatusUnknown OrderAckStatus = iota
	OrderAckStatusAcked
	OrderAckStatusRejected
	OrderAckStatusCanceled
	OrderAckStatusPartFilled
	OrderAckStatusFilled
)

func (s OrderAckStatus) String() string {
	switch s {
	case OrderAckStatusAcked:
		return "Acked"
	case OrderAckStatusRejected:
		return "Rejected"
	case OrderAckStatusCanceled:
		return "Canceled"
	case OrderAckStatusPartFilled:
		return "PartFilled"
	case OrderAckStatusFilled:
		return "Filled"
	default:
		return "Unknown"
	}
}

// OrderAckReason describes the reason for an order acknowledgment.
type OrderAckReason uint16

const (
	OrderAckReasonNone OrderAckReason = iota
	OrderAckReasonVenueReject
	OrderAckReasonRiskReject
	OrderAckReasonRateLimit
	OrderAckReasonDuplicate
	OrderAckReasonInvalidPrice
	OrderAckReasonInvalidQty
)

func (r OrderAckReason) String() string {
	switch r {
	case OrderAckReasonNone:
		return "None"
	case OrderAckReasonVenueReject:
		return "VenueReject"
	case OrderAckReasonRiskReject:
		return "RiskReject"
	case OrderAckReasonRateLimit:
		return "RateLimit"
	case OrderAckReasonDuplicate:
		return "Duplicate"
	case OrderAckReasonInvalidPrice:
		return "InvalidPrice"
	case OrderAckReasonInvalidQty:
		return "InvalidQty"
	default:
		return "Unknown"
	}
}

// OrderAck is the payload for EventOrderAck. Fee is the venue-charged
// commission on the acked quantity; zero when the venue reports fees
// elsewhere.
type OrderAck struct {
	OrderID   uint64
	SymbolID  uint32
	Status    OrderAckStatus
	Reason    OrderAckReason
	Flags     uint16
	Reserved  uint16
	Price     Price
	Qty       Quantity
	LeavesQty Quantity
	Fee       Fee
}

// Fill is the payload for EventFill.
type Fill struct {
	OrderID  uint64
	SymbolID uint32
	Side     OrderSide
	Flags    uint16
	Price    Price
	Qty      Quantity
	Fee      Fee
}

// RiskAction is the outcome of a risk decision.
type RiskAction uint16

const (
	RiskActionUnknown RiskAction = iota
	RiskActionAllow
	RiskActionDeny
)

// RiskReason is a coarse reason code for risk decisions and halts.
type RiskReason uint16

const (
	RiskReasonNone RiskReason = iota
	RiskReasonPositionLimit
	RiskReasonExposureLimit
	RiskReasonDailyLossLimit
	RiskReasonDrawdownLimit
	RiskReasonTradeFrequency
	RiskReasonLatency
	RiskReasonDisconnect
	RiskReasonHalted
	RiskReasonEmergency
)

func (r RiskReason) String() string {
	switch r {
	case RiskReasonNone:
		return "None"
	case RiskReasonPositionLimit:
		return "PositionLimit"
	case RiskReasonExposureLimit:
		return "ExposureLimit"
	case RiskReasonDailyLossLimit:
		return "DailyLossLimit"
	case RiskReasonDrawdownLimit:
		return "DrawdownLimit"
	case RiskReasonTradeFrequency:
		return "TradeFrequency"
	case RiskReasonLatency:
		return "Latency"
	case RiskReasonDisconnect:
		return "Disconnect"
	case RiskReasonHalted:
		return "Halted"
	case RiskReasonEmergency:
		return "Emergency"
	default:
		return "Unknown"
	}
}

// RiskDecision is the payload for EventRiskDecision.
type RiskDecision struct {
	OrderID     uint64
	SymbolID    uint32
	Action      RiskAction
	Reason      RiskReason
	Flags       uint16
	Reserved    uint16
	ProposedQty Quantity
	Notional    Notional
	Exposure    Notional
}
