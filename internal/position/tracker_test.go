package position

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"frontrun/internal/schema"
)

func TestOpenCloseRealizedPnL(t *testing.T) {
	tr := NewTracker(10000, 0)

	require.NoError(t, tr.Open(Position{
		ID:         1,
		SymbolID:   1,
		Side:       schema.OrderSideBuy,
		EntryPrice: 100,
		Qty:        5,
		Fees:       2,
		EntryTs:    10,
	}))
	assert.Equal(t, 1, tr.OpenCount())
	assert.Equal(t, schema.Notional(500), tr.Exposure())

	p, err := tr.Close(1, 110, 3, 20)
	require.NoError(t, err)

	// (110-100)*5 - (2+3) fees
	assert.Equal(t, schema.Notional(45), p.RealizedPnL)
	assert.Equal(t, schema.Fee(5), p.Fees)
	assert.Equal(t, StatusClosed, p.Status)
	assert.Equal(t, 0, tr.OpenCount())
	assert.Equal(t, schema.Notional(45), tr.Realized())
	assert.Equal(t, schema.Notional(10045), tr.Equity())
}

func TestShortSidePnLIsSigned(t *testing.T) {
	tr := NewTracker(1000, 0)

	require.NoError(t, tr.Open(Position{
		ID: 1, SymbolID: 1, Side: schema.OrderSideSell, EntryPrice: 100, Qty: 3,
	}))
	p, err := tr.Close(1, 110, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, schema.Notional(-30), p.RealizedPnL)
}

func TestScaledPnLIsExact(t *testing.T) {
	// price/qty/notional at scale 8
	tr := NewTracker(1_000_000_000_000, 8)

	require.NoError(t, tr.Open(Position{
		ID:         1,
		SymbolID:   1,
		Side:       schema.OrderSideBuy,
		EntryPrice: 100_00000000,
		Qty:        50000000, // 0.5
	}))
	assert.Equal(t, schema.Notional(50_00000000), tr.Exposure())

	p, err := tr.Close(1, 100_10000000, 0, 0)
	require.NoError(t, err)
	// 0.1 * 0.5 = 0.05
	assert.Equal(t, schema.Notional(5000000), p.RealizedPnL)
}

func TestCloseErrors(t *testing.T) {
	tr := NewTracker(1000, 0)

	_, err := tr.Close(9, 100, 0, 0)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, tr.Open(Position{ID: 2, Side: schema.OrderSideBuy, EntryPrice: 10, Qty: 1}))
	_, err = tr.Close(2, 11, 0, 0)
	require.NoError(t, err)
	_, err = tr.Close(2, 11, 0, 0)
	assert.ErrorIs(t, err, ErrAlreadyClosed)

	err = tr.Open(Position{ID: 3, Side: schema.OrderSideBuy, EntryPrice: 0, Qty: 1})
	assert.Error(t, err)
}

func TestDuplicateOpenRejected(t *testing.T) {
	tr := NewTracker(1000, 0)
	require.NoError(t, tr.Open(Position{ID: 1, Side: schema.OrderSideBuy, EntryPrice: 10, Qty: 1}))
	assert.ErrorIs(t, tr.Open(Position{ID: 1, Side: schema.OrderSideBuy, EntryPrice: 10, Qty: 1}), ErrDuplicateID)
}

func TestUnrealizedPnLMarksOpenPositions(t *testing.T) {
	tr := NewTracker(1000, 0)
	require.NoError(t, tr.Open(Position{ID: 1, SymbolID: 1, Side: schema.OrderSideBuy, EntryPrice: 100, Qty: 2}))
	require.NoError(t, tr.Open(Position{ID: 2, SymbolID: 1, Side: schema.OrderSideSell, EntryPrice: 100, Qty: 1}))
	require.NoError(t, tr.Open(Position{ID: 3, SymbolID: 2, Side: schema.OrderSideBuy, EntryPrice: 50, Qty: 1}))

	// long: +2*5, short: -1*5; symbol 2 excluded
	assert.Equal(t, schema.Notional(5), tr.UnrealizedPnL(1, 105))
}

func TestPeakEquityAndDrawdown(t *testing.T) {
	tr := NewTracker(10000, 0)

	open := func(id uint64) {
		require.NoError(t, tr.Open(Position{ID: id, Side: schema.OrderSideBuy, EntryPrice: 100, Qty: 10}))
	}

	open(1)
	_, err := tr.Close(1, 150, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, schema.Notional(10500), tr.PeakEquity())
	assert.Equal(t, int64(0), tr.DrawdownBps())

	open(2)
	_, err = tr.Close(2, 79, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, schema.Notional(10290), tr.Equity())
	assert.Equal(t, schema.Notional(10500), tr.PeakEquity())
	// (10500-10290)/10500 = 2%
	assert.Equal(t, int64(200), tr.DrawdownBps())
}

func TestClosedArchiveIsCopied(t *testing.T) {
	tr := NewTracker(1000, 0)
	require.NoError(t, tr.Open(Position{ID: 1, Side: schema.OrderSideBuy, EntryPrice: 10, Qty: 1}))
	_, err := tr.Close(1, 12, 0, 0)
	require.NoError(t, err)

	archive := tr.Closed()
	require.Len(t, archive, 1)
	archive[0].RealizedPnL = 999
	assert.Equal(t, schema.Notional(2), tr.Closed()[0].RealizedPnL)
}
