package backtest

import (
	"math"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"

	"frontrun/internal/exec"
	"frontrun/internal/obs"
	"frontrun/internal/position"
)

// EquityPoint is one sample of the realized equity curve.
type EquityPoint struct {
	Ts     int64 `json:"ts"`
	Equity int64 `json:"equity"`
}

// TradeRecord is one settled round trip in report form.
type TradeRecord struct {
	OrderID     uint64 `json:"order_id"`
	SymbolID    uint32 `json:"symbol_id"`
	Side        string `json:"side"`
	EntryPrice  int64  `json:"entry_price"`
	ExitPrice   int64  `json:"exit_price"`
	Qty         int64  `json:"qty"`
	Fees        int64  `json:"fees"`
	RealizedPnL int64  `json:"realized_pnl"`
	EntryTs     int64  `json:"entry_ts"`
	ExitTs      int64  `json:"exit_ts"`
	Reason      string `json:"reason"`
}

func newTradeRecord(c exec.ClosedTrade) TradeRecord {
	p := c.Position
	return TradeRecord{
		OrderID:     p.ID,
		SymbolID:    p.SymbolID,
		Side:        p.Side.String(),
		EntryPrice:  int64(p.EntryPrice),
		ExitPrice:   int64(p.ExitPrice),
		Qty:         int64(p.Qty),
		Fees:        int64(p.Fees),
		RealizedPnL: int64(p.RealizedPnL),
		EntryTs:     p.EntryTs,
		ExitTs:      p.ExitTs,
		Reason:      c.Reason.String(),
	}
}

// Summary holds the run statistics, computed once from the equity curve and
// trade list. Monetary values stay scaled ints; ratios are dimensionless.
type Summary struct {
	TradeCount     int     `json:"trade_count"`
	WinCount       int     `json:"win_count"`
	LossCount      int     `json:"loss_count"`
	TotalReturn    int64   `json:"total_return"`
	ReturnPct      float64 `json:"return_pct"`
	Sharpe         float64 `json:"sharpe"`
	Sortino        float64 `json:"sortino"`
	WinRate        float64 `json:"win_rate"`
	ProfitFactor   float64 `json:"profit_factor"`
	MaxDrawdown    int64   `json:"max_drawdown"`
	MaxDrawdownPct float64 `json:"max_drawdown_pct"`
	Calmar         float64 `json:"calmar"`
	TradesPerHour  float64 `json:"trades_per_hour"`
	AvgWin         int64   `json:"avg_win"`
	AvgLoss        int64   `json:"avg_loss"`
	LargestWin     int64   `json:"largest_win"`
	LargestLoss    int64   `json:"largest_loss"`
	TotalFees      int64   `json:"total_fees"`
	StaleDrops     uint64  `json:"stale_drops"`
	MalformedDrops uint64  `json:"malformed_drops"`
}

// Result is the full outcome of one backtest run.
type Result struct {
	RunID          string        `json:"run_id"`
	Config         Config        `json:"config"`
	StartTs        int64         `json:"start_ts"`
	EndTs          int64         `json:"end_ts"`
	StartingEquity int64         `json:"starting_equity"`
	FinalEquity    int64         `json:"final_equity"`
	EquityCurve    []EquityPoint `json:"equity_curve"`
	Trades         []TradeRecord `json:"trades"`
	Summary        Summary       `json:"summary"`
}

// Report serializes everything except the run identity. Identical events and
// config produce byte-identical reports across runs.
func (r Result) Report() ([]byte, error) {
	c := r
	c.RunID = ""
	return sonic.Marshal(c)
}

func newResult(cfg Config, firstTs, lastTs int64, curve []EquityPoint, trades []TradeRecord, tracker *position.Tracker, metrics *obs.Metrics) Result {
	snap := metrics.Snapshot()
	summary := summarize(int64(cfg.StartingEquity), firstTs, lastTs, curve, trades)
	summary.StaleDrops = snap.StaleDrops
	summary.MalformedDrops = snap.MalformedDrops

	return Result{
		RunID:          uuid.NewString(),
		Config:         cfg,
		StartTs:        firstTs,
		EndTs:          lastTs,
		StartingEquity: int64(cfg.StartingEquity),
		FinalEquity:    int64(tracker.Equity()),
		EquityCurve:    curve,
		Trades:         trades,
		Summary:        summary,
	}
}

func summarize(startEquity, firstTs, lastTs int64, curve []EquityPoint, trades []TradeRecord) Summary {
	s := Summary{TradeCount: len(trades)}
	if len(curve) > 0 {
		s.TotalReturn = curve[len(curve)-1].Equity - startEquity
	}
	if startEquity > 0 {
		s.ReturnPct = float64(s.TotalReturn) / float64(startEquity) * 100
	}

	var grossWin, grossLoss int64
	for _, t := range trades {
		s.TotalFees += t.Fees
		switch {
		case t.RealizedPnL > 0:
			s.WinCount++
			grossWin += t.RealizedPnL
			if t.RealizedPnL > s.LargestWin {
				s.LargestWin = t.RealizedPnL
			}
		case t.RealizedPnL < 0:
			s.LossCount++
			grossLoss += -t.RealizedPnL
			if t.RealizedPnL < s.LargestLoss {
				s.LargestLoss = t.RealizedPnL
			}
		}
	}
	if s.TradeCount > 0 {
		s.WinRate = float64(s.WinCount) / float64(s.TradeCount)
	}
	if s.WinCount > 0 {
		s.AvgWin = grossWin / int64(s.WinCount)
	}
	if s.LossCount > 0 {
		s.AvgLoss = -grossLoss / int64(s.LossCount)
	}
	if grossLoss > 0 {
		s.ProfitFactor = float64(grossWin) / float64(grossLoss)
	}

	s.Sharpe, s.Sortino = riskAdjusted(trades, startEquity)
	s.MaxDrawdown, s.MaxDrawdownPct = maxDrawdown(curve)
	if s.MaxDrawdownPct > 0 {
		s.Calmar = s.ReturnPct / s.MaxDrawdownPct
	}

	if span := lastTs - firstTs; span > 0 && s.TradeCount > 0 {
		hours := float64(span) / float64(3600*1e9)
		s.TradesPerHour = float64(s.TradeCount) / hours
	}
	return s
}

// riskAdjusted computes Sharpe and Sortino over per-trade returns relative
// to starting equity. No annualization; the numbers compare runs over the
// same data, nothing else.
func riskAdjusted(trades []TradeRecord, startEquity int64) (sharpe, sortino float64) {
	if len(trades) < 2 || startEquity <= 0 {
		return 0, 0
	}

	base := float64(startEquity)
	var sum float64
	returns := make([]float64, len(trades))
	for i, t := range trades {
		returns[i] = float64(t.RealizedPnL) / base
		sum += returns[i]
	}
	mean := sum / float64(len(returns))

	var variance, downside float64
	for _, r := range returns {
		d := r - mean
		variance += d * d
		if r < 0 {
			downside += r * r
		}
	}
	variance /= float64(len(returns))
	downside /= float64(len(returns))

	if std := math.Sqrt(variance); std > 0 {
		sharpe = mean / std
	}
	if dstd := math.Sqrt(downside); dstd > 0 {
		sortino = mean / dstd
	}
	return sharpe, sortino
}

func maxDrawdown(curve []EquityPoint) (int64, float64) {
	var peak, maxDD int64
	var maxDDPct float64
	for _, p := range curve {
		if p.Equity > peak {
			peak = p.Equity
		}
		if dd := peak - p.Equity; dd > maxDD {
			maxDD = dd
			if peak > 0 {
				maxDDPct = float64(dd) / float64(peak) * 100
			}
		}
	}
	return maxDD, maxDDPct
}
