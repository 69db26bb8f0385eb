package core

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"frontrun/internal/bus"
	"frontrun/internal/codec"
	"frontrun/internal/exec"
	"frontrun/internal/obs"
	"frontrun/internal/ops"
	"frontrun/internal/position"
	"frontrun/internal/risk"
	"frontrun/internal/schema"
)

const testSymbolID = 1

type stubGateway struct {
	submits []schema.OrderIntent
}

func (g *stubGateway) Submit(_ context.Context, intent schema.OrderIntent) (schema.OrderAck, error) {
	g.submits = append(g.submits, intent)
	return schema.OrderAck{
		OrderID:  intent.OrderID,
		SymbolID: intent.SymbolID,
		Status:   schema.OrderAckStatusFilled,
		Price:    intent.Price,
		Qty:      intent.Qty,
	}, nil
}

func (g *stubGateway) Cancel(context.Context, uint64) error { return nil }

func (g *stubGateway) Account(context.Context) (exec.AccountInfo, error) {
	return exec.AccountInfo{}, nil
}

func newTestPipeline(t *testing.T) (*Pipeline, *stubGateway, *position.Tracker, *obs.Metrics) {
	t.Helper()
	limits := risk.Limits{
		MaxPositionNotional: 5000,
		MaxTotalExposure:    10000,
		MaxDailyLoss:        500,
		MaxDrawdownBps:      1000,
		MaxTradesPerHour:    30,
		MaxTradesPerDay:     200,
		LatencyHalt:         500 * time.Millisecond,
		DisconnectHalt:      10 * time.Second,
	}
	breaker, err := risk.NewManager(limits, 0)
	require.NoError(t, err)

	tracker := position.NewTracker(100000, 2)
	gw := &stubGateway{}
	engine, err := exec.NewEngine(exec.Config{
		BaseNotional:  1000,
		TakeProfitBps: 10,
		StopLossBps:   5,
		MaxHold:       5 * time.Second,
		QtyScale:      2,
	}, gw, breaker, tracker)
	require.NoError(t, err)

	metrics := obs.NewMetrics()
	strategy := ops.Strategy{
		ImbalanceThreshold: 0.5,
		LookbackWindow:     2,
		ImbalanceTopLevels: 5,
		FlowWindowTrades:   20,
		DecayFactor:        0.95,
		FlowThreshold:      0.5,
		MinConfirming:      2,
	}
	return NewPipeline(strategy, testSymbolID, nil, engine, metrics), gw, tracker, metrics
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

func TestPipelineEntryAndStopLoss(t *testing.T) {
	pipe, gw, tracker, _ := newTestPipeline(t)
	ctx := context.Background()
	ts := int64(1000)

	events := []bus.Event{
		snapshotEvent(1, ts, []schema.BookLevel{{Price: 10000, Qty: 100}}, []schema.BookLevel{{Price: 10010, Qty: 100}}),
		tradeEvent(2, ts+1, schema.OrderSideBuy, 10005, 10),
		tradeEvent(3, ts+2, schema.OrderSideBuy, 10005, 10),
		tradeEvent(4, ts+3, schema.OrderSideBuy, 10005, 10),
	}
	for _, e := range events {
		require.NoError(t, pipe.Step(ctx, e, e.Header.TsEvent))
	}
	assert.Equal(t, 0, tracker.OpenCount(), "no entry before the imbalance window fills with a deviation")

	// bid depth triples: the imbalance z-score breaches and flow confirms
	e := depthEvent(5, 2, ts+4, schema.OrderSideBuy, 10000, 300)
	require.NoError(t, pipe.Step(ctx, e, ts+4))
	require.Equal(t, 1, tracker.OpenCount())
	require.Len(t, gw.submits, 1)
	assert.Equal(t, schema.OrderSideBuy, gw.submits[0].Side)
	assert.Equal(t, schema.Price(10005), gw.submits[0].Price)

	open := tracker.OpenPositions()[0]
	assert.Equal(t, schema.Price(10005), open.EntryPrice)

	// deeper bid keeps the vote; a second position opens
	require.NoError(t, pipe.Step(ctx, depthEvent(6, 3, ts+5, schema.OrderSideBuy, 9950, 300), ts+5))
	require.Equal(t, 2, tracker.OpenCount())

	// best bid vanishes, mid drops 25 bps below entry: both stop out
	require.NoError(t, pipe.Step(ctx, depthEvent(7, 4, ts+6, schema.OrderSideBuy, 10000, 0), ts+6))
	assert.Equal(t, 0, tracker.OpenCount())
	closed := tracker.Closed()
	require.Len(t, closed, 2)
	for _, p := range closed {
		assert.Equal(t, schema.Price(9980), p.ExitPrice)
		assert.Negative(t, int64(p.RealizedPnL))
	}
}

func TestPipelineCountsStaleAndMalformed(t *testing.T) {
	pipe, _, _, metrics := newTestPipeline(t)
	ctx := context.Background()

	require.NoError(t, pipe.Step(ctx, depthEvent(1, 10, 1000, schema.OrderSideBuy, 10000, 100), 1000))

	// replayed book seq is behind: dropped, counted, not an error
	require.NoError(t, pipe.Step(ctx, depthEvent(2, 9, 1001, schema.OrderSideBuy, 10000, 50), 1001))

	bad := bus.Event{
		Header:  schema.NewHeader(schema.EventTrade, 1, 3, 1002, 1002),
		Payload: []byte{0x01, 0x02},
	}
	err := pipe.Apply(bad)
	assert.ErrorIs(t, err, ErrMalformedPayload)

	snap := metrics.Snapshot()
	assert.Equal(t, uint64(1), snap.StaleDrops)
	assert.Equal(t, uint64(1), snap.MalformedDrops)

	lv := pipe.Books().Book(testSymbolID).Levels(schema.OrderSideBuy, 1)
	require.Len(t, lv, 1)
	assert.Equal(t, schema.Quantity(100), lv[0].Qty, "stale update must not overwrite the level")
}

func TestPipelineIgnoresOrderFlowEvents(t *testing.T) {
	pipe, gw, _, _ := newTestPipeline(t)

	ack := bus.Event{
		Header:  schema.NewHeader(schema.EventOrderAck, 1, 1, 1000, 1000),
		Payload: codec.EncodeOrderAck(nil, schema.OrderAck{OrderID: 7}),
	}
	require.NoError(t, pipe.Apply(ack))
	assert.Empty(t, gw.submits)
}
