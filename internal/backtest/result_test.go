package backtest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSummarizeStats(t *testing.T) {
	hour := int64(time.Hour)
	start := int64(1_000_000_000_000)
	curve := []EquityPoint{
		{Ts: start, Equity: 100000},
		{Ts: start + hour/2, Equity: 100010},
		{Ts: start + hour, Equity: 100005},
		{Ts: start + 3*hour/2, Equity: 100025},
		{Ts: start + 2*hour, Equity: 100020},
	}
	trades := []TradeRecord{
		{RealizedPnL: 10, Fees: 2, ExitTs: start + hour/2},
		{RealizedPnL: -5, Fees: 2, ExitTs: start + hour},
		{RealizedPnL: 20, Fees: 2, ExitTs: start + 3*hour/2},
		{RealizedPnL: -5, Fees: 2, ExitTs: start + 2*hour},
	}

	s := summarize(100000, start, start+2*hour, curve, trades)

	assert.Equal(t, 4, s.TradeCount)
	assert.Equal(t, 2, s.WinCount)
	assert.Equal(t, 2, s.LossCount)
	assert.Equal(t, int64(20), s.TotalReturn)
	assert.InDelta(t, 0.02, s.ReturnPct, 1e-9)
	assert.Equal(t, 0.5, s.WinRate)
	assert.Equal(t, 3.0, s.ProfitFactor)
	assert.Equal(t, int64(15), s.AvgWin)
	assert.Equal(t, int64(-5), s.AvgLoss)
	assert.Equal(t, int64(20), s.LargestWin)
	assert.Equal(t, int64(-5), s.LargestLoss)
	assert.Equal(t, int64(8), s.TotalFees)
	assert.Equal(t, int64(5), s.MaxDrawdown)
	// the first 5-point drawdown sets the percentage against its own peak
	assert.InDelta(t, 100*5.0/100010, s.MaxDrawdownPct, 1e-9)
	assert.InDelta(t, 2.0, s.TradesPerHour, 1e-9)
	assert.Positive(t, s.Sharpe, "net positive run")
	assert.Positive(t, s.Sortino)
	assert.Positive(t, s.Calmar)
}

func TestSummarizeEmptyRun(t *testing.T) {
	s := summarize(100000, 0, 0, nil, nil)
	assert.Zero(t, s.TradeCount)
	assert.Zero(t, s.TotalReturn)
	assert.Zero(t, s.Sharpe)
	assert.Zero(t, s.ProfitFactor)
	assert.Zero(t, s.TradesPerHour)
}

func TestReportExcludesRunIdentity(t *testing.T) {
	res := Result{RunID: "a", Summary: Summary{TradeCount: 1}}
	other := Result{RunID: "b", Summary: Summary{TradeCount: 1}}

	ra, err := res.Report()
	assert.NoError(t, err)
	rb, err := other.Report()
	assert.NoError(t, err)
	assert.Equal(t, ra, rb)
}
