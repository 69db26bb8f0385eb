package ops

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"gopkg.in/yaml.v3"

	"frontrun/internal/exec"
	"frontrun/internal/feed"
	"frontrun/internal/risk"
	"frontrun/internal/schema"
	"frontrun/internal/wal"
)

// FileConfig mirrors the config file layout. YAML or JSON, by extension.
type FileConfig struct {
	Registry RegistryConfig `json:"registry" yaml:"registry"`
	Strategy StrategyConfig `json:"strategy" yaml:"strategy"`
	Exec     ExecConfig     `json:"exec" yaml:"exec"`
	Risk     RiskConfig     `json:"risk" yaml:"risk"`
	Feed     FeedConfig     `json:"feed" yaml:"feed"`
	WAL      WALConfig      `json:"wal" yaml:"wal"`
	Backtest BacktestConfig `json:"backtest" yaml:"backtest"`
}

// RegistryConfig defines venue and symbol mappings.
type RegistryConfig struct {
	Venues  []VenueConfig  `json:"venues" yaml:"venues"`
	Symbols []SymbolConfig `json:"symbols" yaml:"symbols"`
}

// VenueConfig describes a venue entry.
type VenueConfig struct {
	Name string `json:"name" yaml:"name"`
}

// SymbolConfig describes a symbol entry.
type SymbolConfig struct {
	Name  string           `json:"name" yaml:"name"`
	Venue string           `json:"venue" yaml:"venue"`
	Scale schema.ScaleSpec `json:"scale" yaml:"scale"`
}

// StrategyConfig holds the detector and aggregator options.
type StrategyConfig struct {
	ImbalanceThreshold   float64 `json:"imbalance_threshold" yaml:"imbalance_threshold"`
	LookbackWindow       int     `json:"lookback_window" yaml:"lookback_window"`
	ImbalanceTopLevels   int     `json:"imbalance_top_levels" yaml:"imbalance_top_levels"`
	FlowWindowTrades     int     `json:"flow_window_trades" yaml:"flow_window_trades"`
	DecayFactor          float64 `json:"decay_factor" yaml:"decay_factor"`
	FlowThreshold        float64 `json:"flow_threshold" yaml:"flow_threshold"`
	MinConfirmingSignals int     `json:"min_confirming_signals" yaml:"min_confirming_signals"`
}

// ExecConfig holds sizing and exit options.
type ExecConfig struct {
	BaseNotional      int64   `json:"base_notional" yaml:"base_notional"`
	MinSizeMultiplier float64 `json:"min_size_multiplier" yaml:"min_size_multiplier"`
	MaxSizeMultiplier float64 `json:"max_size_multiplier" yaml:"max_size_multiplier"`
	TakeProfitBps     int64   `json:"take_profit_bps" yaml:"take_profit_bps"`
	StopLossBps       int64   `json:"stop_loss_bps" yaml:"stop_loss_bps"`
	MaxHoldTimeMs     int64   `json:"max_hold_time_ms" yaml:"max_hold_time_ms"`
	SubmitTimeoutMs   int64   `json:"submit_timeout_ms" yaml:"submit_timeout_ms"`
}

// RiskConfig holds the breaker limits.
type RiskConfig struct {
	StartingEquity       int64   `json:"starting_equity" yaml:"starting_equity"`
	MaxPositionSize      int64   `json:"max_position_size" yaml:"max_position_size"`
	MaxPortfolioExposure int64   `json:"max_portfolio_exposure" yaml:"max_portfolio_exposure"`
	MaxDailyLoss         int64   `json:"max_daily_loss" yaml:"max_daily_loss"`
	MaxDrawdownPct       float64 `json:"max_drawdown_pct" yaml:"max_drawdown_pct"`
	MaxTradesPerHour     int     `json:"max_trades_per_hour" yaml:"max_trades_per_hour"`
	MaxTradesPerDay      int     `json:"max_trades_per_day" yaml:"max_trades_per_day"`
	LatencyHaltMs        int64   `json:"latency_halt_ms" yaml:"latency_halt_ms"`
	DisconnectHaltS      int64   `json:"disconnect_halt_s" yaml:"disconnect_halt_s"`
}

// FeedConfig selects the live market data subscription.
type FeedConfig struct {
	URL           string `json:"url" yaml:"url"`
	Symbol        string `json:"symbol" yaml:"symbol"`
	SnapshotDepth int    `json:"snapshot_depth" yaml:"snapshot_depth"`
}

// WALConfig controls event capture.
type WALConfig struct {
	Enabled         bool   `json:"enabled" yaml:"enabled"`
	Dir             string `json:"dir" yaml:"dir"`
	SegmentMaxBytes int64  `json:"segment_max_bytes" yaml:"segment_max_bytes"`
	QueueSize       int    `json:"queue_size" yaml:"queue_size"`
	FilePrefix      string `json:"file_prefix" yaml:"file_prefix"`
}

// BacktestConfig holds the fill simulator options.
type BacktestConfig struct {
	SlippageAlphaBps   int64   `json:"slippage_alpha" yaml:"slippage_alpha"`
	SlippageBeta       float64 `json:"slippage_beta" yaml:"slippage_beta"`
	CommissionBps      int64   `json:"commission_bps" yaml:"commission_bps"`
	LatencyMs          int64   `json:"latency_ms" yaml:"latency_ms"`
	LiquidityTopLevels int     `json:"liquidity_top_levels" yaml:"liquidity_top_levels"`
}

// Strategy is the resolved detector configuration.
type Strategy struct {
	ImbalanceThreshold float64
	LookbackWindow     int
	ImbalanceTopLevels int
	FlowWindowTrades   int
	DecayFactor        float64
	FlowThreshold      float64
	MinConfirming      int
}

// Simulation is the resolved fill simulator configuration.
type Simulation struct {
	SlippageAlphaBps   int64
	SlippageBeta       float64
	CommissionBps      int64
	Latency            time.Duration
	LiquidityTopLevels int
}

// Loaded is the resolved configuration ready for use.
type Loaded struct {
	Registry       *schema.Registry
	Strategy       Strategy
	Exec           exec.Config
	Risk           risk.Limits
	StartingEquity schema.Notional
	Feed           feed.Config
	WAL            wal.Config
	WALEnabled     bool
	Backtest       Simulation
}

// Load reads a config file, applies defaults and validates everything.
// Any error here is fatal before a single connection is opened.
func Load(path string) (Loaded, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Loaded{}, err
	}
	var cfg FileConfig
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &cfg)
	case ".json":
		err = sonic.Unmarshal(data, &cfg)
	default:
		return Loaded{}, fmt.Errorf("unsupported config extension: %s", ext)
	}
	if err != nil {
		return Loaded{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return Resolve(cfg)
}

// Resolve applies defaults to a parsed file config and validates it.
func Resolve(cfg FileConfig) (Loaded, error) {
	registry, err := buildRegistry(cfg.Registry)
	if err != nil {
		return Loaded{}, err
	}

	strategy, err := resolveStrategy(cfg.Strategy)
	if err != nil {
		return Loaded{}, err
	}

	feedCfg, symbol, err := resolveFeed(cfg.Feed, registry)
	if err != nil {
		return Loaded{}, err
	}

	execCfg, err := resolveExec(cfg.Exec, symbol.Scale.QuantityScale)
	if err != nil {
		return Loaded{}, err
	}

	limits, equity, err := resolveRisk(cfg.Risk)
	if err != nil {
		return Loaded{}, err
	}

	walCfg := resolveWAL(cfg.WAL)
	if cfg.WAL.Enabled {
		if err := walCfg.Validate(); err != nil {
			return Loaded{}, err
		}
	}

	sim, err := resolveBacktest(cfg.Backtest)
	if err != nil {
		return Loaded{}, err
	}

	return Loaded{
		Registry:       registry,
		Strategy:       strategy,
		Exec:           execCfg,
		Risk:           limits,
		StartingEquity: equity,
		Feed:           feedCfg,
		WAL:            walCfg,
		WALEnabled:     cfg.WAL.Enabled,
		Backtest:       sim,
	}, nil
}

func buildRegistry(cfg RegistryConfig) (*schema.Registry, error) {
	reg := schema.NewRegistry()
	for _, venue := range cfg.Venues {
		if _, err := reg.AddVenue(venue.Name); err != nil {
			return nil, err
		}
	}
	for _, sym := range cfg.Symbols {
		venueID, ok := reg.VenueIDByName(sym.Venue)
		if !ok {
			return nil, fmt.Errorf("venue not found: %s", sym.Venue)
		}
		if err := validateScale(sym.Scale); err != nil {
			return nil, fmt.Errorf("invalid scale for %s: %w", sym.Name, err)
		}
		if _, err := reg.AddSymbol(sym.Name, venueID, sym.Scale); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

func validateScale(scale schema.ScaleSpec) error {
	if scale.PriceScale < 0 || scale.QuantityScale < 0 || scale.NotionalScale < 0 || scale.FeeScale < 0 {
		return fmt.Errorf("scale must be >= 0")
	}
	return nil
}

func resolveStrategy(cfg StrategyConfig) (Strategy, error) {
	s := Strategy{
		ImbalanceThreshold: cfg.ImbalanceThreshold,
		LookbackWindow:     cfg.LookbackWindow,
		ImbalanceTopLevels: cfg.ImbalanceTopLevels,
		FlowWindowTrades:   cfg.FlowWindowTrades,
		DecayFactor:        cfg.DecayFactor,
		FlowThreshold:      cfg.FlowThreshold,
		MinConfirming:      cfg.MinConfirmingSignals,
	}
	if s.ImbalanceThreshold == 0 {
		s.ImbalanceThreshold = 3.0
	}
	if s.LookbackWindow == 0 {
		s.LookbackWindow = 100
	}
	if s.ImbalanceTopLevels == 0 {
		s.ImbalanceTopLevels = 5
	}
	if s.FlowWindowTrades == 0 {
		s.FlowWindowTrades = 20
	}
	if s.DecayFactor == 0 {
		s.DecayFactor = 0.95
	}
	if s.FlowThreshold == 0 {
		s.FlowThreshold = 0.6
	}
	if s.MinConfirming == 0 {
		s.MinConfirming = 2
	}

	if s.ImbalanceThreshold <= 0 {
		return Strategy{}, fmt.Errorf("imbalance_threshold must be > 0")
	}
	if s.LookbackWindow < 2 {
		return Strategy{}, fmt.Errorf("lookback_window must be >= 2")
	}
	if s.ImbalanceTopLevels <= 0 || s.FlowWindowTrades <= 0 {
		return Strategy{}, fmt.Errorf("window sizes must be > 0")
	}
	if s.DecayFactor <= 0 || s.DecayFactor > 1 {
		return Strategy{}, fmt.Errorf("decay_factor must be in (0, 1]")
	}
	if s.FlowThreshold <= 0 || s.FlowThreshold > 1 {
		return Strategy{}, fmt.Errorf("flow_threshold must be in (0, 1]")
	}
	if s.MinConfirming < 1 {
		return Strategy{}, fmt.Errorf("min_confirming_signals must be >= 1")
	}
	return s, nil
}

func resolveExec(cfg ExecConfig, qtyScale schema.Scale) (exec.Config, error) {
	out := exec.Config{
		BaseNotional:       schema.Notional(cfg.BaseNotional),
		TakeProfitBps:      cfg.TakeProfitBps,
		StopLossBps:        cfg.StopLossBps,
		MaxHold:            time.Duration(cfg.MaxHoldTimeMs) * time.Millisecond,
		SubmitTimeout:      time.Duration(cfg.SubmitTimeoutMs) * time.Millisecond,
		QtyScale:           qtyScale,
		MinMultiplierMilli: int64(cfg.MinSizeMultiplier*1000 + 0.5),
		MaxMultiplierMilli: int64(cfg.MaxSizeMultiplier*1000 + 0.5),
	}
	if out.BaseNotional == 0 {
		out.BaseNotional = 1000
	}
	if out.TakeProfitBps == 0 {
		out.TakeProfitBps = 10
	}
	if out.StopLossBps == 0 {
		out.StopLossBps = 5
	}
	if out.MaxHold == 0 {
		out.MaxHold = 5000 * time.Millisecond
	}
	if out.MinMultiplierMilli == 0 {
		out.MinMultiplierMilli = 500
	}
	if out.MaxMultiplierMilli == 0 {
		out.MaxMultiplierMilli = 2000
	}
	if err := out.Validate(); err != nil {
		return exec.Config{}, err
	}
	return out, nil
}

func resolveRisk(cfg RiskConfig) (risk.Limits, schema.Notional, error) {
	limits := risk.Limits{
		MaxPositionNotional: schema.Notional(cfg.MaxPositionSize),
		MaxTotalExposure:    schema.Notional(cfg.MaxPortfolioExposure),
		MaxDailyLoss:        schema.Notional(cfg.MaxDailyLoss),
		MaxDrawdownBps:      int64(cfg.MaxDrawdownPct*100 + 0.5),
		MaxTradesPerHour:    cfg.MaxTradesPerHour,
		MaxTradesPerDay:     cfg.MaxTradesPerDay,
		LatencyHalt:         time.Duration(cfg.LatencyHaltMs) * time.Millisecond,
		DisconnectHalt:      time.Duration(cfg.DisconnectHaltS) * time.Second,
	}
	if limits.MaxPositionNotional == 0 {
		limits.MaxPositionNotional = 5000
	}
	if limits.MaxTotalExposure == 0 {
		limits.MaxTotalExposure = 10000
	}
	if limits.MaxDailyLoss == 0 {
		limits.MaxDailyLoss = 500
	}
	if limits.MaxDrawdownBps == 0 {
		limits.MaxDrawdownBps = 1000
	}
	if limits.MaxTradesPerHour == 0 {
		limits.MaxTradesPerHour = 30
	}
	if limits.MaxTradesPerDay == 0 {
		limits.MaxTradesPerDay = 200
	}
	if limits.LatencyHalt == 0 {
		limits.LatencyHalt = 500 * time.Millisecond
	}
	if limits.DisconnectHalt == 0 {
		limits.DisconnectHalt = 10 * time.Second
	}
	if err := limits.Validate(); err != nil {
		return risk.Limits{}, 0, err
	}

	equity := schema.Notional(cfg.StartingEquity)
	if equity == 0 {
		equity = 10000
	}
	if equity < 0 {
		return risk.Limits{}, 0, fmt.Errorf("starting_equity must be >= 0")
	}
	return limits, equity, nil
}

func resolveFeed(cfg FeedConfig, reg *schema.Registry) (feed.Config, schema.Symbol, error) {
	if cfg.Symbol == "" {
		return feed.Config{}, schema.Symbol{}, fmt.Errorf("feed symbol is empty")
	}
	symbolID, ok := reg.SymbolIDByName(cfg.Symbol)
	if !ok {
		return feed.Config{}, schema.Symbol{}, fmt.Errorf("feed symbol not found: %s", cfg.Symbol)
	}
	symbol, _ := reg.Symbol(symbolID)
	out := feed.Config{
		URL:           cfg.URL,
		Symbol:        symbol.Name,
		SymbolID:      uint32(symbolID),
		Scale:         symbol.Scale,
		SnapshotDepth: cfg.SnapshotDepth,
	}
	return out, symbol, nil
}

func resolveWAL(cfg WALConfig) wal.Config {
	dir := cfg.Dir
	if dir == "" {
		dir = "data/wal"
	}
	out := wal.DefaultConfig(dir)
	if cfg.SegmentMaxBytes > 0 {
		out.SegmentMaxBytes = cfg.SegmentMaxBytes
	}
	if cfg.QueueSize > 0 {
		out.QueueSize = cfg.QueueSize
	}
	if cfg.FilePrefix != "" {
		out.FilePrefix = cfg.FilePrefix
	}
	return out
}

func resolveBacktest(cfg BacktestConfig) (Simulation, error) {
	sim := Simulation{
		SlippageAlphaBps:   cfg.SlippageAlphaBps,
		SlippageBeta:       cfg.SlippageBeta,
		CommissionBps:      cfg.CommissionBps,
		Latency:            time.Duration(cfg.LatencyMs) * time.Millisecond,
		LiquidityTopLevels: cfg.LiquidityTopLevels,
	}
	if sim.SlippageAlphaBps == 0 {
		sim.SlippageAlphaBps = 2
	}
	if sim.SlippageBeta == 0 {
		sim.SlippageBeta = 0.5
	}
	if sim.CommissionBps == 0 {
		sim.CommissionBps = 4
	}
	if sim.Latency == 0 {
		sim.Latency = 100 * time.Millisecond
	}
	if sim.LiquidityTopLevels == 0 {
		sim.LiquidityTopLevels = 5
	}

	if sim.SlippageAlphaBps < 0 || sim.CommissionBps < 0 {
		return Simulation{}, fmt.Errorf("slippage_alpha and commission_bps must be >= 0")
	}
	if sim.SlippageBeta <= 0 || sim.SlippageBeta > 1 {
		return Simulation{}, fmt.Errorf("slippage_beta must be in (0, 1]")
	}
	if sim.Latency < 0 {
		return Simulation{}, fmt.Errorf("latency_ms must be >= 0")
	}
	return sim, nil
}
