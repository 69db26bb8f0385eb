package book

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"frontrun/internal/schema"
)

func depth(side schema.OrderSide, price, qty int64, seq uint64) schema.DepthUpdate {
	return schema.DepthUpdate{
		SymbolID: 1,
		Side:     side,
		Price:    schema.Price(price),
		Qty:      schema.Quantity(qty),
		BookSeq:  seq,
	}
}

func TestApplyDepthUpsertAndRemove(t *testing.T) {
	b := New(1)

	require.NoError(t, b.ApplyDepth(depth(schema.OrderSideBuy, 100, 5, 1)))
	require.NoError(t, b.ApplyDepth(depth(schema.OrderSideBuy, 101, 3, 2)))
	require.NoError(t, b.ApplyDepth(depth(schema.OrderSideSell, 102, 7, 3)))

	best, ok := b.BestBid()
	require.True(t, ok)
	assert.Equal(t, schema.Price(101), best.Price)

	// replace qty at an existing level
	require.NoError(t, b.ApplyDepth(depth(schema.OrderSideBuy, 101, 9, 4)))
	best, _ = b.BestBid()
	assert.Equal(t, schema.Quantity(9), best.Qty)

	// zero qty removes the level entirely
	require.NoError(t, b.ApplyDepth(depth(schema.OrderSideBuy, 101, 0, 5)))
	best, ok = b.BestBid()
	require.True(t, ok)
	assert.Equal(t, schema.Price(100), best.Price)

	bids, asks := b.LevelCount()
	assert.Equal(t, 1, bids)
	assert.Equal(t, 1, asks)
}

func TestStaleUpdatesDropped(t *testing.T) {
	b := New(1)

	require.NoError(t, b.ApplyDepth(depth(schema.OrderSideBuy, 100, 5, 10)))

	err := b.ApplyDepth(depth(schema.OrderSideBuy, 99, 5, 10))
	assert.ErrorIs(t, err, ErrStaleUpdate)
	err = b.ApplyDepth(depth(schema.OrderSideBuy, 99, 5, 7))
	assert.ErrorIs(t, err, ErrStaleUpdate)
	assert.Equal(t, uint64(2), b.StaleDropped())

	best, _ := b.BestBid()
	assert.Equal(t, schema.Price(100), best.Price)
}

func TestNegativeValuesRejected(t *testing.T) {
	b := New(1)

	assert.ErrorIs(t, b.ApplyDepth(depth(schema.OrderSideBuy, -1, 5, 1)), ErrNegativeValue)
	assert.ErrorIs(t, b.ApplyDepth(depth(schema.OrderSideBuy, 100, -5, 1)), ErrNegativeValue)
	assert.Equal(t, uint64(0), b.LastSeq())
}

func TestSnapshotReplacesAndResetsGate(t *testing.T) {
	b := New(1)
	require.NoError(t, b.ApplyDepth(depth(schema.OrderSideBuy, 100, 5, 50)))

	b.ApplySnapshot(schema.BookSnapshot{
		SymbolID: 1,
		BookSeq:  10,
		Bids: []schema.BookLevel{
			{Price: 200, Qty: 1},
			{Price: 199, Qty: 2},
		},
		Asks: []schema.BookLevel{
			{Price: 201, Qty: 3},
		},
	})

	best, _ := b.BestBid()
	assert.Equal(t, schema.Price(200), best.Price)
	assert.Equal(t, uint64(10), b.LastSeq())

	// gate now follows the snapshot seq, so 11 applies even though 50 was seen
	require.NoError(t, b.ApplyDepth(depth(schema.OrderSideBuy, 198, 4, 11)))
	assert.Equal(t, schema.Quantity(7), b.Depth(schema.OrderSideBuy, 10))
}

func TestDepthAndImbalance(t *testing.T) {
	b := New(1)
	seq := uint64(0)
	add := func(side schema.OrderSide, price, qty int64) {
		seq++
		require.NoError(t, b.ApplyDepth(depth(side, price, qty, seq)))
	}

	add(schema.OrderSideBuy, 100, 5)
	add(schema.OrderSideBuy, 99, 10)
	add(schema.OrderSideBuy, 98, 20)
	add(schema.OrderSideSell, 101, 2)
	add(schema.OrderSideSell, 102, 4)

	assert.Equal(t, schema.Quantity(15), b.Depth(schema.OrderSideBuy, 2))
	assert.Equal(t, schema.Quantity(35), b.Depth(schema.OrderSideBuy, 10))

	bidQty, askQty := b.Imbalance(2)
	assert.Equal(t, schema.Quantity(15), bidQty)
	assert.Equal(t, schema.Quantity(6), askQty)

	mid, ok := b.MidPrice()
	require.True(t, ok)
	assert.Equal(t, schema.Price(100), mid)

	levels := b.Levels(schema.OrderSideSell, 1)
	require.Len(t, levels, 1)
	assert.Equal(t, schema.Price(101), levels[0].Price)
}

func TestMarketStateLazyBooks(t *testing.T) {
	ms := NewMarketState()
	b1 := ms.Book(7)
	b2 := ms.Book(7)
	assert.Same(t, b1, b2)
	assert.Equal(t, uint32(7), b1.SymbolID())
}
