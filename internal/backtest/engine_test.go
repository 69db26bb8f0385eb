package backtest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"frontrun/internal/bus"
	"frontrun/internal/codec"
	"frontrun/internal/exec"
	"frontrun/internal/ops"
	"frontrun/internal/risk"
	"frontrun/internal/schema"
	"frontrun/internal/wal"
)

const testSymbolID = 1

func testConfig() Config {
	return Config{
		Strategy: ops.Strategy{
			ImbalanceThreshold: 0.5,
			LookbackWindow:     2,
			ImbalanceTopLevels: 5,
			FlowWindowTrades:   20,
			DecayFactor:        0.95,
			FlowThreshold:      0.5,
			MinConfirming:      2,
		},
		Exec: exec.Config{
			BaseNotional:  1000,
			TakeProfitBps: 10,
			StopLossBps:   5,
			MaxHold:       5 * time.Second,
			QtyScale:      2,
		},
		Risk: risk.Limits{
			MaxPositionNotional: 5000,
			MaxTotalExposure:    10000,
			MaxDailyLoss:        500,
			MaxDrawdownBps:      1000,
			MaxTradesPerHour:    30,
			MaxTradesPerDay:     200,
			LatencyHalt:         500 * time.Millisecond,
			DisconnectHalt:      10 * time.Second,
		},
		Sim: ops.Simulation{
			SlippageAlphaBps:   2,
			SlippageBeta:       0.5,
			CommissionBps:      100,
			Latency:            time.Millisecond,
			LiquidityTopLevels: 5,
		},
		StartingEquity: 100000,
		SymbolID:       testSymbolID,
	}
}

func snapshotEvent(seq uint64, ts int64, bids, asks []schema.BookLevel) bus.Event {
	return bus.Event{
		Header: schema.NewHeader(schema.EventBookSnapshot, 1, seq, ts, ts),
		Payload: codec.EncodeBookSnapshot(nil, schema.BookSnapshot{
			SymbolID: testSymbolID,
			BookSeq:  seq,
			Bids:     bids,
			Asks:     asks,
		}),
	}
}

func depthEvent(seq, bookSeq uint64, ts int64, side schema.OrderSide, price schema.Price, qty schema.Quantity) bus.Event {
	return bus.Event{
		Header: schema.NewHeader(schema.EventDepthUpdate, 1, seq, ts, ts),
		Payload: codec.EncodeDepthUpdate(nil, schema.DepthUpdate{
			SymbolID: testSymbolID,
			Side:     side,
			Price:    price,
			Qty:      qty,
			BookSeq:  bookSeq,
		}),
	}
}

func tradeEvent(seq uint64, ts int64, aggressor schema.OrderSide, price schema.Price, qty schema.Quantity) bus.Event {
	return bus.Event{
		Header: schema.NewHeader(schema.EventTrade, 1, seq, ts, ts),
		Payload: codec.EncodeTrade(nil, schema.Trade{
			SymbolID:  testSymbolID,
			Aggressor: aggressor,
			TradeID:   seq,
			Price:     price,
			Qty:       qty,
		}),
	}
}

// scenarioEvents builds a stream where the bid depth triples, both detectors
// confirm a buy, and the mid then drops through the stop.
func scenarioEvents() []bus.Event {
	base := int64(1_000_000_000_000)
	step := int64(2 * time.Millisecond)
	return []bus.Event{
		snapshotEvent(1, base,
			[]schema.BookLevel{{Price: 10000, Qty: 100}},
			[]schema.BookLevel{{Price: 10010, Qty: 100}}),
		tradeEvent(2, base+step, schema.OrderSideBuy, 10005, 10),
		tradeEvent(3, base+2*step, schema.OrderSideBuy, 10005, 10),
		tradeEvent(4, base+3*step, schema.OrderSideBuy, 10005, 10),
		depthEvent(5, 2, base+4*step, schema.OrderSideBuy, 10000, 300),
		depthEvent(6, 3, base+5*step, schema.OrderSideBuy, 9950, 300),
		depthEvent(7, 4, base+6*step, schema.OrderSideBuy, 10000, 0),
	}
}

func TestFillPriceImpact(t *testing.T) {
	// impact = 2bps * sqrt(10/50); delta = 1_000_000 * 0.0002 * 0.44721...
	buy := FillPrice(1_000_000, schema.OrderSideBuy, 10, 50, 2, 0.5)
	assert.Equal(t, schema.Price(1_000_089), buy)

	sell := FillPrice(1_000_000, schema.OrderSideSell, 10, 50, 2, 0.5)
	assert.Equal(t, schema.Price(999_911), sell)

	// sells never cross zero
	tiny := FillPrice(1, schema.OrderSideSell, 1000, 1, 10000, 1)
	assert.Equal(t, schema.Price(1), tiny)
}

func TestRunEntryLatencyAndStopLoss(t *testing.T) {
	engine, err := NewEngine(testConfig())
	require.NoError(t, err)

	res, err := engine.Run(context.Background(), scenarioEvents())
	require.NoError(t, err)

	require.Len(t, res.Trades, 2)
	for _, tr := range res.Trades {
		assert.Equal(t, "StopLoss", tr.Reason)
		assert.Equal(t, "Buy", tr.Side)
		// one tick of impact on the entry: mid 10005 fills at 10006
		assert.Equal(t, int64(10006), tr.EntryPrice)
		assert.Equal(t, int64(9980), tr.ExitPrice)
		assert.Positive(t, tr.Fees)
		assert.Negative(t, tr.RealizedPnL)
		// the fill is sampled one latency period after the signal
		assert.Greater(t, tr.EntryTs, res.StartTs)
	}

	assert.Negative(t, res.Summary.TotalReturn)
	assert.Equal(t, 2, res.Summary.TradeCount)
	assert.Equal(t, 2, res.Summary.LossCount)
	assert.Equal(t, float64(0), res.Summary.WinRate)
	assert.Positive(t, res.Summary.MaxDrawdown)
	require.GreaterOrEqual(t, len(res.EquityCurve), 3)
	assert.Equal(t, res.StartingEquity, res.EquityCurve[0].Equity)
	assert.Equal(t, res.FinalEquity, res.EquityCurve[len(res.EquityCurve)-1].Equity)
}

func TestRunIsDeterministic(t *testing.T) {
	run := func() []byte {
		engine, err := NewEngine(testConfig())
		require.NoError(t, err)
		res, err := engine.Run(context.Background(), scenarioEvents())
		require.NoError(t, err)
		report, err := res.Report()
		require.NoError(t, err)
		return report
	}
	assert.Equal(t, run(), run(), "identical events and config must serialize identically")
}

func TestSignalPastEndOfDataNeverFills(t *testing.T) {
	events := scenarioEvents()[:5] // ends right at the signal event
	engine, err := NewEngine(testConfig())
	require.NoError(t, err)

	res, err := engine.Run(context.Background(), events)
	require.NoError(t, err)
	assert.Empty(t, res.Trades)
	assert.Equal(t, res.StartingEquity, res.FinalEquity)
}

func TestRunWALMatchesInMemoryRun(t *testing.T) {
	events := scenarioEvents()

	dir := t.TempDir()
	w, err := wal.NewWriter(wal.DefaultConfig(dir))
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, w.Start(ctx))
	for _, e := range events {
		require.NoError(t, w.Append(ctx, e.Header, e.Payload))
	}
	require.NoError(t, w.Close())

	mem, err := NewEngine(testConfig())
	require.NoError(t, err)
	memRes, err := mem.Run(ctx, events)
	require.NoError(t, err)

	replay, err := NewEngine(testConfig())
	require.NoError(t, err)
	walRes, err := replay.RunWAL(ctx, dir, "events")
	require.NoError(t, err)

	memReport, err := memRes.Report()
	require.NoError(t, err)
	walReport, err := walRes.Report()
	require.NoError(t, err)
	assert.Equal(t, memReport, walReport)
}
