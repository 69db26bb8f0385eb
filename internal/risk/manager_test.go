package risk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"frontrun/internal/schema"
)

func testLimits() Limits {
	return Limits{
		MaxPositionNotional: 5000,
		MaxTotalExposure:    10000,
		MaxDailyLoss:        500,
		MaxDrawdownBps:      1000,
		MaxTradesPerHour:    30,
		MaxTradesPerDay:     200,
		LatencyHalt:         500 * time.Millisecond,
		DisconnectHalt:      10 * time.Second,
	}
}

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(testLimits(), 0)
	require.NoError(t, err)
	return m
}

func TestLimitsValidate(t *testing.T) {
	require.NoError(t, testLimits().Validate())

	bad := testLimits()
	bad.MaxTotalExposure = 100
	assert.Error(t, bad.Validate())

	bad = testLimits()
	bad.MaxDrawdownBps = 20000
	assert.Error(t, bad.Validate())

	bad = testLimits()
	bad.DisconnectHalt = 0
	assert.Error(t, bad.Validate())
}

func TestCanOpenCaps(t *testing.T) {
	m := newTestManager(t)

	assert.Nil(t, m.CanOpen(5000, 0))

	v := m.CanOpen(5001, 0)
	require.NotNil(t, v)
	assert.Equal(t, schema.RiskReasonPositionLimit, v.Code)

	v = m.CanOpen(4000, 7000)
	require.NotNil(t, v)
	assert.Equal(t, schema.RiskReasonExposureLimit, v.Code)
	assert.Contains(t, v.Error(), "ExposureLimit")

	// caps stay advisory: checking never trips the breaker
	assert.Equal(t, StateNormal, m.State())
}

func TestDailyLossHalts(t *testing.T) {
	m := newTestManager(t)
	now := int64(1_000_000)

	m.RecordTrade(-499, now)
	assert.Equal(t, StateNormal, m.State())
	assert.True(t, m.EntryAllowed())

	m.RecordTrade(-1, now+1)
	assert.Equal(t, StateHalted, m.State())
	assert.Equal(t, schema.RiskReasonDailyLossLimit, m.HaltReason())
	assert.False(t, m.EntryAllowed())
	assert.Equal(t, schema.Notional(-500), m.DailyPnL())

	// entry caps still answer while halted
	assert.Nil(t, m.CanOpen(1000, 0))
}

func TestDailyCountersRollAtUTCDay(t *testing.T) {
	m := newTestManager(t)
	day := int64(24 * time.Hour)

	m.RecordTrade(-600, 1000)
	require.Equal(t, StateHalted, m.State())

	m.RecordTrade(0, day+1000)
	assert.Equal(t, StateNormal, m.State())
	assert.Equal(t, schema.Notional(0), m.DailyPnL())
}

func TestHourlyTradeFrequencyHalts(t *testing.T) {
	m := newTestManager(t)
	now := int64(1_000_000_000)

	for i := 0; i < 29; i++ {
		m.RecordTrade(0, now+int64(i))
	}
	assert.Equal(t, StateNormal, m.State())

	m.RecordTrade(0, now+29)
	assert.Equal(t, StateHalted, m.State())
	assert.Equal(t, schema.RiskReasonTradeFrequency, m.HaltReason())
}

func TestHourlyWindowIsTrailing(t *testing.T) {
	m := newTestManager(t)
	base := int64(1_000_000_000)

	for i := 0; i < 29; i++ {
		m.RecordTrade(0, base+int64(i))
	}
	// two hours later the old trades have left the window
	later := base + 2*int64(time.Hour)
	m.RecordTrade(0, later)
	assert.Equal(t, StateNormal, m.State())
}

func TestLatencyTrailingAverageHalts(t *testing.T) {
	m := newTestManager(t)

	for i := 0; i < latencyWindow; i++ {
		m.RecordLatency(100 * time.Millisecond)
	}
	assert.Equal(t, StateNormal, m.State())

	// drive the trailing average past 500ms
	for i := 0; i < latencyWindow; i++ {
		m.RecordLatency(2 * time.Second)
	}
	assert.Equal(t, StateHalted, m.State())
	assert.Equal(t, schema.RiskReasonLatency, m.HaltReason())
}

func TestDrawdownHalts(t *testing.T) {
	m := newTestManager(t)

	m.ObserveDrawdown(999)
	assert.Equal(t, StateNormal, m.State())
	m.ObserveDrawdown(1000)
	assert.Equal(t, StateHalted, m.State())
	assert.Equal(t, schema.RiskReasonDrawdownLimit, m.HaltReason())
}

func TestDisconnectHaltAndRecovery(t *testing.T) {
	m := newTestManager(t)

	m.ObserveDisconnect(9 * time.Second)
	assert.Equal(t, StateNormal, m.State())

	m.ObserveDisconnect(10 * time.Second)
	assert.Equal(t, StateHalted, m.State())
	assert.Equal(t, schema.RiskReasonDisconnect, m.HaltReason())

	m.ClearDisconnect()
	assert.Equal(t, StateNormal, m.State())
}

func TestDisconnectEscalatesToEmergency(t *testing.T) {
	m := newTestManager(t)

	m.ObserveDisconnect(30 * time.Second)
	assert.Equal(t, StateEmergencyClosing, m.State())

	// emergency close is terminal for everything except a manual reset
	m.ClearDisconnect()
	assert.Equal(t, StateEmergencyClosing, m.State())
	m.ObserveDrawdown(0)
	assert.Equal(t, StateEmergencyClosing, m.State())

	m.ManualReset()
	assert.Equal(t, StateNormal, m.State())
	assert.Equal(t, schema.RiskReasonNone, m.HaltReason())
}
