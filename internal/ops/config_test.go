package ops

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testYAML = `
registry:
  venues:
    - name: binance
  symbols:
    - name: BTCUSDT
      venue: binance
      scale:
        price_scale: 2
        quantity_scale: 4
        notional_scale: 2
        fee_scale: 2
strategy:
  imbalance_threshold: 2.5
  lookback_window: 50
risk:
  max_daily_loss: 750
  max_drawdown_pct: 5
feed:
  symbol: BTCUSDT
wal:
  enabled: true
  dir: /tmp/wal-test
backtest:
  commission_bps: 6
`

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadYAML(t *testing.T) {
	loaded, err := Load(writeConfig(t, "config.yaml", testYAML))
	require.NoError(t, err)

	id, ok := loaded.Registry.SymbolIDByName("BTCUSDT")
	require.True(t, ok)
	assert.Equal(t, uint32(id), loaded.Feed.SymbolID)

	// explicit values survive
	assert.Equal(t, 2.5, loaded.Strategy.ImbalanceThreshold)
	assert.Equal(t, 50, loaded.Strategy.LookbackWindow)
	assert.Equal(t, int64(750), int64(loaded.Risk.MaxDailyLoss))
	assert.Equal(t, int64(500), loaded.Risk.MaxDrawdownBps)
	assert.Equal(t, int64(6), loaded.Backtest.CommissionBps)
	assert.True(t, loaded.WALEnabled)
	assert.Equal(t, "/tmp/wal-test", loaded.WAL.Dir)

	// unset values fall back to defaults
	assert.Equal(t, 20, loaded.Strategy.FlowWindowTrades)
	assert.Equal(t, 0.95, loaded.Strategy.DecayFactor)
	assert.Equal(t, 2, loaded.Strategy.MinConfirming)
	assert.Equal(t, int64(1000), int64(loaded.Exec.BaseNotional))
	assert.Equal(t, int64(10), loaded.Exec.TakeProfitBps)
	assert.Equal(t, 5*time.Second, loaded.Exec.MaxHold)
	assert.Equal(t, int64(500), loaded.Exec.MinMultiplierMilli)
	assert.Equal(t, int64(2000), loaded.Exec.MaxMultiplierMilli)
	assert.Equal(t, 30, loaded.Risk.MaxTradesPerHour)
	assert.Equal(t, 10*time.Second, loaded.Risk.DisconnectHalt)
	assert.Equal(t, int64(10000), int64(loaded.StartingEquity))
	assert.Equal(t, int64(2), loaded.Backtest.SlippageAlphaBps)
	assert.Equal(t, 0.5, loaded.Backtest.SlippageBeta)

	// exec quantity scale comes from the traded symbol
	assert.Equal(t, int32(4), int32(loaded.Exec.QtyScale))
}

func TestLoadJSON(t *testing.T) {
	content := `{
		"registry": {
			"venues": [{"name": "binance"}],
			"symbols": [{"name": "ETHUSDT", "venue": "binance", "scale": {"priceScale": 2, "quantityScale": 3}}]
		},
		"feed": {"symbol": "ETHUSDT", "snapshot_depth": 10}
	}`
	loaded, err := Load(writeConfig(t, "config.json", content))
	require.NoError(t, err)
	assert.Equal(t, "ETHUSDT", loaded.Feed.Symbol)
	assert.Equal(t, 10, loaded.Feed.SnapshotDepth)
}

func TestLoadRejectsUnknownExtension(t *testing.T) {
	_, err := Load(writeConfig(t, "config.toml", "x = 1"))
	assert.Error(t, err)
}

func TestResolveRejectsBadValues(t *testing.T) {
	base := func() FileConfig {
		return FileConfig{
			Registry: RegistryConfig{
				Venues:  []VenueConfig{{Name: "binance"}},
				Symbols: []SymbolConfig{{Name: "BTCUSDT", Venue: "binance"}},
			},
			Feed: FeedConfig{Symbol: "BTCUSDT"},
		}
	}

	cfg := base()
	cfg.Feed.Symbol = "DOGEUSDT"
	_, err := Resolve(cfg)
	assert.Error(t, err, "unknown feed symbol")

	cfg = base()
	cfg.Strategy.DecayFactor = 1.5
	_, err = Resolve(cfg)
	assert.Error(t, err, "decay out of range")

	cfg = base()
	cfg.Risk.MaxDrawdownPct = 150
	_, err = Resolve(cfg)
	assert.Error(t, err, "drawdown above 100%")

	cfg = base()
	cfg.Exec.StopLossBps = -1
	_, err = Resolve(cfg)
	assert.Error(t, err, "negative stop loss")

	cfg = base()
	cfg.Registry.Symbols[0].Venue = "okx"
	_, err = Resolve(cfg)
	assert.Error(t, err, "unknown venue")
}
