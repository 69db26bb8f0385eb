package backtest

import (
	"context"
	"errors"
	"fmt"

	"frontrun/internal/book"
	"frontrun/internal/bus"
	"frontrun/internal/core"
	"frontrun/internal/exec"
	"frontrun/internal/obs"
	"frontrun/internal/ops"
	"frontrun/internal/position"
	"frontrun/internal/risk"
	"frontrun/internal/schema"
	"frontrun/internal/signal"
	"frontrun/internal/wal"
)

// Config bundles everything one backtest run needs.
type Config struct {
	Strategy       ops.Strategy
	Exec           exec.Config
	Risk           risk.Limits
	Sim            ops.Simulation
	StartingEquity schema.Notional
	SymbolID       uint32
}

// Validate checks if the configuration is usable.
func (c Config) Validate() error {
	if c.SymbolID == 0 {
		return fmt.Errorf("invalid backtest config: SymbolID is zero")
	}
	if c.StartingEquity <= 0 {
		return fmt.Errorf("invalid backtest config: StartingEquity must be > 0")
	}
	return nil
}

// pendingEntry is a composite signal waiting out the simulated latency.
// The fill samples the book as of the due instant, never the signal instant.
type pendingEntry struct {
	sig signal.Composite
	due int64
}

// Engine replays ordered market events through the same pipeline the live
// trader runs, with the simulator standing in for the venue. Time is event
// time only; the engine never reads a wall clock.
type Engine struct {
	cfg     Config
	pipe    *core.Pipeline
	gateway *SimGateway
	tracker *position.Tracker
	breaker *risk.Manager
	metrics *obs.Metrics

	pending []pendingEntry
	trades  []TradeRecord
	curve   []EquityPoint
	firstTs int64
	lastTs  int64
}

// NewEngine wires a fresh pipeline, tracker and simulator for one run.
func NewEngine(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	breaker, err := risk.NewManager(cfg.Risk, 0)
	if err != nil {
		return nil, err
	}
	tracker := position.NewTracker(cfg.StartingEquity, cfg.Exec.QtyScale)
	books := book.NewMarketState()
	gateway := NewSimGateway(books, cfg.Sim, cfg.Exec.QtyScale)

	engine, err := exec.NewEngine(cfg.Exec, gateway, breaker, tracker)
	if err != nil {
		return nil, err
	}

	metrics := obs.NewMetrics()
	return &Engine{
		cfg:     cfg,
		pipe:    core.NewPipeline(cfg.Strategy, cfg.SymbolID, books, engine, metrics),
		gateway: gateway,
		tracker: tracker,
		breaker: breaker,
		metrics: metrics,
	}, nil
}

// Run replays an ordered event slice and summarizes the outcome.
func (e *Engine) Run(ctx context.Context, events []bus.Event) (Result, error) {
	for i := range events {
		if err := e.step(ctx, events[i]); err != nil {
			return Result{}, err
		}
	}
	return e.finish()
}

// RunWAL replays every market data record under dir, unpaced.
func (e *Engine) RunWAL(ctx context.Context, dir, filePrefix string) (Result, error) {
	playback, err := wal.NewPlayback(wal.PlaybackConfig{
		Dir:        dir,
		FilePrefix: filePrefix,
		Types: []schema.EventType{
			schema.EventDepthUpdate,
			schema.EventTrade,
			schema.EventBookSnapshot,
		},
	})
	if err != nil {
		return Result{}, err
	}

	err = playback.Run(ctx, func(header schema.EventHeader, payload []byte) error {
		return e.step(ctx, bus.Event{Header: header, Payload: payload})
	})
	if err != nil {
		return Result{}, err
	}
	return e.finish()
}

func (e *Engine) step(ctx context.Context, ev bus.Event) error {
	ts := ev.Header.TsEvent
	if e.firstTs == 0 {
		e.firstTs = ts
		e.curve = append(e.curve, EquityPoint{Ts: ts, Equity: int64(e.tracker.Equity())})
	}
	if ts > e.lastTs {
		e.lastTs = ts
	}

	if err := e.flushDue(ctx, ts); err != nil {
		return err
	}

	if err := e.pipe.Apply(ev); err != nil {
		// malformed records are counted and skipped like on the live path
		if errors.Is(err, core.ErrMalformedPayload) {
			return nil
		}
		return err
	}

	if sig, ok := e.pipe.Evaluate(ts); ok {
		e.pending = append(e.pending, pendingEntry{sig: sig, due: ts + int64(e.cfg.Sim.Latency)})
	}

	closed, err := e.pipe.EvalExits(ctx, ts)
	if err != nil {
		return err
	}
	e.record(closed)
	return nil
}

// flushDue submits every pending signal whose latency has elapsed. The book
// holds the state as of the last event before the due instant, which is
// exactly what a fill at that instant would have seen.
func (e *Engine) flushDue(ctx context.Context, now int64) error {
	kept := e.pending[:0]
	for _, p := range e.pending {
		if p.due > now {
			kept = append(kept, p)
			continue
		}
		if _, err := e.pipe.SubmitSignal(ctx, p.sig, p.due); err != nil && !recoverable(err) {
			return err
		}
	}
	e.pending = kept
	return nil
}

func recoverable(err error) bool {
	var v *risk.Violation
	if errors.As(err, &v) {
		return true
	}
	return errors.Is(err, exec.ErrEntriesHalted) ||
		errors.Is(err, exec.ErrDuplicateSignal) ||
		errors.Is(err, exec.ErrNoLiquidity) ||
		errors.Is(err, exec.ErrVenueRejected)
}

func (e *Engine) record(closed []exec.ClosedTrade) {
	for _, c := range closed {
		e.trades = append(e.trades, newTradeRecord(c))
		e.curve = append(e.curve, EquityPoint{Ts: c.Position.ExitTs, Equity: int64(e.tracker.Equity())})
	}
}

// finish drops signals still inside the latency window past the end of the
// data and assembles the result. Positions still open stay out of realized
// equity.
func (e *Engine) finish() (Result, error) {
	e.pending = nil
	return newResult(e.cfg, e.firstTs, e.lastTs, e.curve, e.trades, e.tracker, e.metrics), nil
}
