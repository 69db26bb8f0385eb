package exec

import (
	"context"
	"errors"
	"fmt"
	"time"

	"frontrun/internal/position"
	"frontrun/internal/retry"
	"frontrun/internal/risk"
	"frontrun/internal/schema"
	"frontrun/internal/signal"
)

var (
	ErrEntriesHalted   = errors.New("exec entries halted")
	ErrDuplicateSignal = errors.New("exec duplicate signal")
	ErrOutcomeUnknown  = errors.New("exec order outcome unknown")
	ErrNoLiquidity     = errors.New("exec no price for sizing")
	ErrVenueRejected   = errors.New("exec venue rejected order")
)

const (
	defaultSubmitTimeout = 5 * time.Second

	minMultiplierMilli = 500
	maxMultiplierMilli = 2000
)

// Config controls sizing and exits. Multipliers are in thousandths.
type Config struct {
	BaseNotional       schema.Notional
	TakeProfitBps      int64
	StopLossBps        int64
	MaxHold            time.Duration
	SubmitTimeout      time.Duration
	QtyScale           schema.Scale
	MinMultiplierMilli int64
	MaxMultiplierMilli int64
}

func (c Config) withDefaults() Config {
	if c.SubmitTimeout == 0 {
		c.SubmitTimeout = defaultSubmitTimeout
	}
	if c.MinMultiplierMilli == 0 {
		c.MinMultiplierMilli = minMultiplierMilli
	}
	if c.MaxMultiplierMilli == 0 {
		c.MaxMultiplierMilli = maxMultiplierMilli
	}
	return c
}

// Validate checks if the configuration is usable.
func (c Config) Validate() error {
	if c.BaseNotional <= 0 {
		return fmt.Errorf("invalid exec config: BaseNotional must be > 0")
	}
	if c.TakeProfitBps <= 0 || c.StopLossBps <= 0 {
		return fmt.Errorf("invalid exec config: exit thresholds must be > 0")
	}
	if c.MaxHold <= 0 {
		return fmt.Errorf("invalid exec config: MaxHold must be > 0")
	}
	if c.SubmitTimeout < 0 {
		return fmt.Errorf("invalid exec config: SubmitTimeout must be >= 0")
	}
	if c.MinMultiplierMilli < 0 || (c.MaxMultiplierMilli != 0 && c.MaxMultiplierMilli < c.MinMultiplierMilli) {
		return fmt.Errorf("invalid exec config: size multiplier bounds out of order")
	}
	return nil
}

// ExitReason tags why a position was closed.
type ExitReason uint8

const (
	ExitNone ExitReason = iota
	ExitStopLoss
	ExitTakeProfit
	ExitMaxHold
	ExitEmergency
)

func (r ExitReason) String() string {
	switch r {
	case ExitStopLoss:
		return "StopLoss"
	case ExitTakeProfit:
		return "TakeProfit"
	case ExitMaxHold:
		return "MaxHold"
	case ExitEmergency:
		return "Emergency"
	default:
		return "None"
	}
}

// ClosedTrade reports one settled round trip.
type ClosedTrade struct {
	Position position.Position
	Reason   ExitReason
}

// Engine turns composite signals into orders and manages position exits.
// It is single-writer: the trading loop owns it.
type Engine struct {
	cfg      Config
	gateway  Gateway
	breaker  *risk.Manager
	tracker  *position.Tracker
	state    *StateMachine
	scaleDiv int64

	submitted map[uint64]struct{}
	closing   map[uint64]ExitReason
	unknown   map[uint64]schema.OrderIntent

	rejections uint64
}

// NewEngine wires the execution engine.
func NewEngine(cfg Config, gw Gateway, breaker *risk.Manager, tracker *position.Tracker) (*Engine, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	div := int64(1)
	for i := schema.Scale(0); i < cfg.QtyScale; i++ {
		div *= 10
	}
	return &Engine{
		cfg:       cfg,
		gateway:   gw,
		breaker:   breaker,
		tracker:   tracker,
		state:     NewStateMachine(),
		scaleDiv:  div,
		submitted: make(map[uint64]struct{}),
		closing:   make(map[uint64]ExitReason),
		unknown:   make(map[uint64]schema.OrderIntent),
	}, nil
}

// Orders returns the underlying order state machine.
func (e *Engine) Orders() *StateMachine { return e.state }

// Rejections returns how many entries risk checks turned away.
func (e *Engine) Rejections() uint64 { return e.rejections }

// SizeMultiplierMilli maps confidence to a position size multiplier in
// thousandths: 0 confidence halves the base, full confidence doubles it.
func SizeMultiplierMilli(confidence float64) int64 {
	return sizeMultiplierMilli(confidence, minMultiplierMilli, maxMultiplierMilli)
}

func sizeMultiplierMilli(confidence float64, lo, hi int64) int64 {
	m := lo + int64(confidence*float64(hi-lo)+0.5)
	if m < lo {
		m = lo
	}
	if m > hi {
		m = hi
	}
	return m
}

// OrderIDFor derives the deterministic order ID for a signal. One signal
// maps to one order ID, which makes duplicate submissions detectable.
func OrderIDFor(symbolID uint32, signalSeq uint64) uint64 {
	return uint64(symbolID)<<40 | (signalSeq & (1<<40 - 1))
}

// HandleSignal sizes and submits one entry for a composite signal.
// Submission is at-most-once per signal; a timed-out submit escalates to
// reconciliation instead of being retried.
func (e *Engine) HandleSignal(ctx context.Context, sig signal.Composite, symbolID uint32, mark schema.Price, now int64) (schema.RiskDecision, error) {
	decision := schema.RiskDecision{
		SymbolID: symbolID,
		Action:   schema.RiskActionDeny,
	}

	if mark <= 0 {
		return decision, ErrNoLiquidity
	}
	if !e.breaker.EntryAllowed() {
		// the denial carries the reason that tripped the breaker, not the
		// generic halted code
		decision.Reason = e.breaker.HaltReason()
		if decision.Reason == schema.RiskReasonNone {
			decision.Reason = schema.RiskReasonHalted
		}
		if e.breaker.State() == risk.StateEmergencyClosing {
			decision.Reason = schema.RiskReasonEmergency
		}
		e.rejections++
		return decision, ErrEntriesHalted
	}

	notional := schema.Notional(int64(e.cfg.BaseNotional) * sizeMultiplierMilli(sig.Confidence, e.cfg.MinMultiplierMilli, e.cfg.MaxMultiplierMilli) / 1000)
	exposure := e.tracker.Exposure()
	decision.Notional = notional
	decision.Exposure = exposure

	if v := e.breaker.CanOpen(notional, exposure); v != nil {
		decision.Reason = v.Code
		e.rejections++
		return decision, v
	}

	orderID := OrderIDFor(symbolID, sig.Seq)
	decision.OrderID = orderID
	if _, dup := e.submitted[orderID]; dup {
		decision.Reason = schema.RiskReasonNone
		return decision, ErrDuplicateSignal
	}
	e.submitted[orderID] = struct{}{}

	qty := schema.Quantity(int64(notional) * e.scaleDiv / int64(mark))
	if qty <= 0 {
		return decision, ErrNoLiquidity
	}
	decision.ProposedQty = qty

	intent := schema.OrderIntent{
		OrderID:   orderID,
		SignalSeq: sig.Seq,
		SymbolID:  symbolID,
		Side:      sig.Direction,
		Type:      schema.OrderTypeMarket,
		Price:     mark,
		Qty:       qty,
		Notional:  notional,
	}
	if _, err := e.state.ApplyIntent(intent); err != nil {
		return decision, err
	}

	ack, err := e.submit(ctx, intent)
	if err != nil {
		return decision, err
	}
	if ack.Status == schema.OrderAckStatusRejected {
		e.rejections++
		decision.Reason = schema.RiskReasonNone
		return decision, fmt.Errorf("%w: %s", ErrVenueRejected, ack.Reason)
	}

	fillPrice := ack.Price
	if fillPrice <= 0 {
		fillPrice = mark
	}
	fillQty := ack.Qty
	if fillQty <= 0 {
		fillQty = qty
	}
	if err := e.tracker.Open(position.Position{
		ID:         orderID,
		SymbolID:   symbolID,
		Side:       sig.Direction,
		EntryPrice: fillPrice,
		Qty:        fillQty,
		Fees:       ack.Fee,
		EntryTs:    now,
	}); err != nil {
		return decision, err
	}

	if sig.Ts > 0 && now > sig.Ts {
		e.breaker.RecordLatency(time.Duration(now - sig.Ts))
	}

	decision.Action = schema.RiskActionAllow
	return decision, nil
}

func (e *Engine) submit(ctx context.Context, intent schema.OrderIntent) (schema.OrderAck, error) {
	subCtx := ctx
	if e.cfg.SubmitTimeout > 0 {
		var cancel context.CancelFunc
		subCtx, cancel = context.WithTimeout(ctx, e.cfg.SubmitTimeout)
		defer cancel()
	}

	ack, err := e.gateway.Submit(subCtx, intent)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			// outcome unknown: the venue may have the order. Reconcile,
			// never resend.
			e.unknown[intent.OrderID] = intent
			return schema.OrderAck{}, fmt.Errorf("%w: order %d", ErrOutcomeUnknown, intent.OrderID)
		}
		return schema.OrderAck{}, err
	}
	if _, err := e.state.ApplyAck(ack); err != nil {
		return ack, err
	}
	return ack, nil
}

// EvalExits checks every open position against the exit rules. Stop-loss
// wins over take-profit, which wins over max-hold; each position gets at
// most one close intent. Exits run in every breaker state.
func (e *Engine) EvalExits(ctx context.Context, symbolID uint32, mark schema.Price, now int64) ([]ClosedTrade, error) {
	if e.breaker.State() == risk.StateEmergencyClosing {
		return e.CloseAll(ctx, symbolID, mark, now)
	}
	if mark <= 0 {
		return nil, nil
	}

	var closed []ClosedTrade
	for _, p := range e.tracker.OpenPositions() {
		if p.SymbolID != symbolID {
			continue
		}
		if _, inFlight := e.closing[p.ID]; inFlight {
			continue
		}
		reason := e.exitReason(p, mark, now)
		if reason == ExitNone {
			continue
		}
		trade, err := e.closePosition(ctx, p, reason, mark, now)
		if err != nil {
			return closed, err
		}
		closed = append(closed, trade)
	}
	return closed, nil
}

// CloseAll submits a close for every open position on the symbol.
func (e *Engine) CloseAll(ctx context.Context, symbolID uint32, mark schema.Price, now int64) ([]ClosedTrade, error) {
	if mark <= 0 {
		return nil, nil
	}
	var closed []ClosedTrade
	for _, p := range e.tracker.OpenPositions() {
		if p.SymbolID != symbolID {
			continue
		}
		if _, inFlight := e.closing[p.ID]; inFlight {
			continue
		}
		trade, err := e.closePosition(ctx, p, ExitEmergency, mark, now)
		if err != nil {
			return closed, err
		}
		closed = append(closed, trade)
	}
	return closed, nil
}

func (e *Engine) exitReason(p position.Position, mark schema.Price, now int64) ExitReason {
	moveBps := int64(mark-p.EntryPrice) * 10000 / int64(p.EntryPrice)
	if p.Side == schema.OrderSideSell {
		moveBps = -moveBps
	}
	switch {
	case moveBps <= -e.cfg.StopLossBps:
		return ExitStopLoss
	case moveBps >= e.cfg.TakeProfitBps:
		return ExitTakeProfit
	case e.cfg.MaxHold > 0 && now-p.EntryTs >= int64(e.cfg.MaxHold):
		return ExitMaxHold
	default:
		return ExitNone
	}
}

func (e *Engine) closePosition(ctx context.Context, p position.Position, reason ExitReason, mark schema.Price, now int64) (ClosedTrade, error) {
	e.closing[p.ID] = reason

	intent := schema.OrderIntent{
		OrderID:    p.ID | 1<<63,
		SymbolID:   p.SymbolID,
		Side:       p.Side.Opposite(),
		Type:       schema.OrderTypeMarket,
		Price:      mark,
		Qty:        p.Qty,
		ReduceOnly: true,
	}
	if _, err := e.state.ApplyIntent(intent); err != nil {
		delete(e.closing, p.ID)
		return ClosedTrade{}, err
	}

	ack, err := e.submit(ctx, intent)
	if err != nil {
		// a close with unknown outcome stays marked closing so it is
		// reconciled, not resubmitted
		if errors.Is(err, ErrOutcomeUnknown) {
			return ClosedTrade{}, err
		}
		delete(e.closing, p.ID)
		return ClosedTrade{}, err
	}

	exitPrice := ack.Price
	if exitPrice <= 0 {
		exitPrice = mark
	}
	settled, err := e.tracker.Close(p.ID, exitPrice, ack.Fee, now)
	if err != nil {
		delete(e.closing, p.ID)
		return ClosedTrade{}, err
	}
	delete(e.closing, p.ID)

	e.breaker.RecordTrade(settled.RealizedPnL, now)
	e.breaker.ObserveDrawdown(e.tracker.DrawdownBps())

	return ClosedTrade{Position: settled, Reason: reason}, nil
}

// Account queries the gateway with bounded retries. Reads are safe to
// retry; submits never are.
func (e *Engine) Account(ctx context.Context, policy retry.Backoff, attempts int) (AccountInfo, error) {
	if attempts <= 0 {
		attempts = 3
	}
	var lastErr error
	for i := 0; i < attempts; i++ {
		info, err := e.gateway.Account(ctx)
		if err == nil {
			return info, nil
		}
		lastErr = err
		if i == attempts-1 {
			break
		}
		t := time.NewTimer(policy.Next())
		select {
		case <-ctx.Done():
			t.Stop()
			return AccountInfo{}, ctx.Err()
		case <-t.C:
		}
	}
	return AccountInfo{}, fmt.Errorf("account query failed after %d attempts: %w", attempts, lastErr)
}

// UnknownOrders returns intents whose submit outcome is unresolved.
func (e *Engine) UnknownOrders() []schema.OrderIntent {
	out := make([]schema.OrderIntent, 0, len(e.unknown))
	for _, intent := range e.unknown {
		out = append(out, intent)
	}
	return out
}

// Reconcile resolves an unknown order against the venue's reported ack.
func (e *Engine) Reconcile(orderID uint64, ack schema.OrderAck) error {
	if _, ok := e.unknown[orderID]; !ok {
		return ErrUnknownOrder
	}
	if _, err := e.state.ApplyAck(ack); err != nil {
		return err
	}
	delete(e.unknown, orderID)
	return nil
}
