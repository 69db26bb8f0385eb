package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"frontrun/internal/book"
	"frontrun/internal/bus"
	"frontrun/internal/codec"
	"frontrun/internal/exec"
	"frontrun/internal/obs"
	"frontrun/internal/ops"
	"frontrun/internal/risk"
	"frontrun/internal/schema"
	"frontrun/internal/signal"
)

// ErrMalformedPayload reports an event whose payload failed to decode.
var ErrMalformedPayload = errors.New("core malformed event payload")

// Pipeline drives one symbol's strategy: book and flow state, the detector
// set, and the execution engine. It is single-writer; one goroutine owns it.
type Pipeline struct {
	books    *book.MarketState
	imb      *signal.ImbalanceDetector
	flow     *signal.FlowAnalyzer
	agg      *signal.Aggregator
	engine   *exec.Engine
	metrics  *obs.Metrics
	symbolID uint32
	sigSeq   uint64
}

// NewPipeline wires the detectors from the strategy options. books is shared
// with whoever else needs mark prices, such as a fill simulator.
func NewPipeline(strategy ops.Strategy, symbolID uint32, books *book.MarketState, engine *exec.Engine, metrics *obs.Metrics) *Pipeline {
	if books == nil {
		books = book.NewMarketState()
	}
	imb := signal.NewImbalanceDetector(strategy.LookbackWindow, strategy.ImbalanceTopLevels, strategy.ImbalanceThreshold)
	flow := signal.NewFlowAnalyzer(strategy.FlowWindowTrades, strategy.DecayFactor, strategy.FlowThreshold)
	return &Pipeline{
		books:    books,
		imb:      imb,
		flow:     flow,
		agg:      signal.NewAggregator(strategy.MinConfirming, imb, flow),
		engine:   engine,
		metrics:  metrics,
		symbolID: symbolID,
	}
}

// Books exposes the market state for mark price readers.
func (p *Pipeline) Books() *book.MarketState { return p.books }

// Engine exposes the execution engine for reconciliation and reports.
func (p *Pipeline) Engine() *exec.Engine { return p.engine }

// Apply folds one market data event into book and flow state. Stale depth
// updates are counted and swallowed; they are expected during snapshot
// overlap. Order flow events in a replay stream are counted and skipped.
func (p *Pipeline) Apply(e bus.Event) error {
	p.metrics.ObserveEvent(e.Header)

	switch e.Header.Type {
	case schema.EventDepthUpdate:
		du, ok := codec.DecodeDepthUpdate(e.Payload)
		if !ok {
			p.metrics.IncMalformedDrop()
			return fmt.Errorf("%w: depth update", ErrMalformedPayload)
		}
		if err := p.books.Book(du.SymbolID).ApplyDepth(du); err != nil {
			if errors.Is(err, book.ErrStaleUpdate) {
				p.metrics.IncStaleDrop()
				return nil
			}
			return err
		}
	case schema.EventBookSnapshot:
		snap, ok := codec.DecodeBookSnapshot(e.Payload)
		if !ok {
			p.metrics.IncMalformedDrop()
			return fmt.Errorf("%w: book snapshot", ErrMalformedPayload)
		}
		p.books.Book(snap.SymbolID).ApplySnapshot(snap)
	case schema.EventTrade:
		t, ok := codec.DecodeTrade(e.Payload)
		if !ok {
			p.metrics.IncMalformedDrop()
			return fmt.Errorf("%w: trade", ErrMalformedPayload)
		}
		if t.SymbolID == p.symbolID {
			p.flow.OnTrade(t)
		}
	}
	return nil
}

// Evaluate samples the book imbalance and collects detector votes for the
// current tick. The composite carries a fresh signal sequence.
func (p *Pipeline) Evaluate(ts int64) (signal.Composite, bool) {
	bid, ask := p.books.Book(p.symbolID).Imbalance(p.imb.TopN())
	p.imb.Observe(bid, ask)
	p.sigSeq++
	return p.agg.Evaluate(p.sigSeq, ts)
}

// Mark returns the current mid price of the traded symbol.
func (p *Pipeline) Mark() (schema.Price, bool) {
	return p.books.Book(p.symbolID).MidPrice()
}

// SubmitSignal hands one composite signal to execution at the current mark.
// Risk rejections are recorded, not escalated.
func (p *Pipeline) SubmitSignal(ctx context.Context, sig signal.Composite, now int64) (schema.RiskDecision, error) {
	mark, _ := p.Mark()
	decision, err := p.engine.HandleSignal(ctx, sig, p.symbolID, mark, now)
	if decision.Action == schema.RiskActionDeny && decision.Reason != schema.RiskReasonNone {
		p.metrics.IncRiskReason(decision.Reason)
	}
	if err == nil && decision.Action == schema.RiskActionAllow && now > sig.Ts {
		p.metrics.ObserveSignalToFill(time.Duration(now - sig.Ts))
	}
	p.metrics.ObserveEvent(schema.EventHeader{Type: schema.EventRiskDecision})
	return decision, err
}

// EvalExits runs the exit rules for all open positions at the current mark.
func (p *Pipeline) EvalExits(ctx context.Context, now int64) ([]exec.ClosedTrade, error) {
	mark, ok := p.Mark()
	if !ok {
		return nil, nil
	}
	return p.engine.EvalExits(ctx, p.symbolID, mark, now)
}

// Step processes one event end to end: state update, signal evaluation,
// entry submission and exit checks. Entry rejections are non-fatal.
func (p *Pipeline) Step(ctx context.Context, e bus.Event, now int64) error {
	if err := p.Apply(e); err != nil {
		return err
	}
	if sig, ok := p.Evaluate(e.Header.TsEvent); ok {
		if _, err := p.SubmitSignal(ctx, sig, now); err != nil && !recoverableEntryErr(err) {
			return err
		}
	}
	if _, err := p.EvalExits(ctx, now); err != nil {
		return err
	}
	return nil
}

// recoverableEntryErr reports whether a failed entry should only skip the
// trade. Breaker halts, duplicate signals and risk caps fall in; transport
// and invariant errors do not.
func recoverableEntryErr(err error) bool {
	var v *risk.Violation
	if errors.As(err, &v) {
		return true
	}
	return errors.Is(err, exec.ErrEntriesHalted) ||
		errors.Is(err, exec.ErrDuplicateSignal) ||
		errors.Is(err, exec.ErrNoLiquidity) ||
		errors.Is(err, exec.ErrVenueRejected)
}
