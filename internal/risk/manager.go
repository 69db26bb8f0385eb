package risk

import (
	"fmt"
	"sync"
	"time"

	"frontrun/internal/schema"
)

// State is the breaker state.
type State uint8

const (
	StateNormal State = iota
	StateHalted
	StateEmergencyClosing
)

func (s State) String() string {
	switch s {
	case StateNormal:
		return "Normal"
	case StateHalted:
		return "Halted"
	case StateEmergencyClosing:
		return "EmergencyClosing"
	default:
		return "Unknown"
	}
}

// latencyWindow is the number of recent signal-to-fill samples averaged for
// the latency breaker.
const latencyWindow = 16

// emergencyDisconnectFactor escalates a disconnect halt to emergency close
// once the gap reaches this multiple of the halt threshold.
const emergencyDisconnectFactor = 3

// Manager is the breaker. All transitions go through one mutex; the trading
// loop is the single writer and observers only read.
type Manager struct {
	mu     sync.Mutex
	limits Limits

	state      State
	haltReason schema.RiskReason

	dayStart    int64
	dailyPnL    schema.Notional
	tradesToday int
	tradeTimes  []int64

	latencies  [latencyWindow]time.Duration
	latencyIdx int
	latencyCnt int
}

// NewManager creates a breaker in the Normal state. now anchors the UTC
// trading day.
func NewManager(limits Limits, now int64) (*Manager, error) {
	if err := limits.Validate(); err != nil {
		return nil, err
	}
	return &Manager{
		limits:   limits,
		dayStart: utcDayStart(now),
	}, nil
}

// Limits returns the configured caps.
func (m *Manager) Limits() Limits {
	return m.limits
}

// State returns the current breaker state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// HaltReason returns why the breaker tripped, RiskReasonNone when Normal.
func (m *Manager) HaltReason() schema.RiskReason {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.haltReason
}

// EntryAllowed reports whether new positions may be opened. Exits are
// always allowed; only ManualReset leaves EmergencyClosing.
func (m *Manager) EntryAllowed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state == StateNormal
}

// CanOpen checks the proposed entry against per-position and portfolio
// caps. It runs regardless of breaker state and never trips the breaker.
func (m *Manager) CanOpen(proposed, currentExposure schema.Notional) *Violation {
	if proposed > m.limits.MaxPositionNotional {
		return &Violation{
			Code: schema.RiskReasonPositionLimit,
			Detail: fmt.Sprintf("proposed %d exceeds position cap %d",
				proposed, m.limits.MaxPositionNotional),
		}
	}
	if currentExposure+proposed > m.limits.MaxTotalExposure {
		return &Violation{
			Code: schema.RiskReasonExposureLimit,
			Detail: fmt.Sprintf("exposure %d + proposed %d exceeds cap %d",
				currentExposure, proposed, m.limits.MaxTotalExposure),
		}
	}
	return nil
}

// RecordTrade books a realized round trip at now (unix nanos) and trips the
// breaker on daily loss or trade frequency.
func (m *Manager) RecordTrade(pnl schema.Notional, now int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.rollDay(now)
	m.dailyPnL += pnl
	m.tradesToday++
	m.tradeTimes = append(m.tradeTimes, now)
	m.pruneHour(now)

	if m.state != StateNormal {
		return
	}
	switch {
	case m.dailyPnL <= -m.limits.MaxDailyLoss:
		m.halt(schema.RiskReasonDailyLossLimit)
	case len(m.tradeTimes) >= m.limits.MaxTradesPerHour:
		m.halt(schema.RiskReasonTradeFrequency)
	case m.tradesToday >= m.limits.MaxTradesPerDay:
		m.halt(schema.RiskReasonTradeFrequency)
	}
}

// ObserveDrawdown trips the breaker when peak-to-equity drawdown reaches
// the cap.
func (m *Manager) ObserveDrawdown(drawdownBps int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateNormal {
		return
	}
	if drawdownBps >= m.limits.MaxDrawdownBps {
		m.halt(schema.RiskReasonDrawdownLimit)
	}
}

// RecordLatency feeds one signal-to-fill latency sample. The breaker trips
// when the trailing average reaches the halt threshold.
func (m *Manager) RecordLatency(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.latencies[m.latencyIdx] = d
	m.latencyIdx = (m.latencyIdx + 1) % latencyWindow
	if m.latencyCnt < latencyWindow {
		m.latencyCnt++
	}

	if m.state != StateNormal {
		return
	}
	var sum time.Duration
	for i := 0; i < m.latencyCnt; i++ {
		sum += m.latencies[i]
	}
	if sum/time.Duration(m.latencyCnt) >= m.limits.LatencyHalt {
		m.halt(schema.RiskReasonLatency)
	}
}

// ObserveDisconnect feeds the current feed gap duration. At the halt
// threshold entries stop; past the escalation multiple the breaker goes to
// EmergencyClosing and stays there until ManualReset.
func (m *Manager) ObserveDisconnect(gap time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if gap >= m.limits.DisconnectHalt*emergencyDisconnectFactor {
		if m.state != StateEmergencyClosing {
			m.state = StateEmergencyClosing
			m.haltReason = schema.RiskReasonDisconnect
		}
		return
	}
	if gap >= m.limits.DisconnectHalt && m.state == StateNormal {
		m.halt(schema.RiskReasonDisconnect)
	}
}

// ClearDisconnect lifts a disconnect halt after the feed recovers.
// Emergency close does not clear.
func (m *Manager) ClearDisconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateHalted && m.haltReason == schema.RiskReasonDisconnect {
		m.state = StateNormal
		m.haltReason = schema.RiskReasonNone
	}
}

// ManualReset forces the breaker back to Normal. This is the only way out
// of EmergencyClosing.
func (m *Manager) ManualReset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = StateNormal
	m.haltReason = schema.RiskReasonNone
}

// DailyPnL returns the realized PnL booked since the UTC day start.
func (m *Manager) DailyPnL() schema.Notional {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dailyPnL
}

func (m *Manager) halt(reason schema.RiskReason) {
	m.state = StateHalted
	m.haltReason = reason
}

func (m *Manager) rollDay(now int64) {
	day := utcDayStart(now)
	if day == m.dayStart {
		return
	}
	m.dayStart = day
	m.dailyPnL = 0
	m.tradesToday = 0
	if m.state == StateHalted {
		switch m.haltReason {
		case schema.RiskReasonDailyLossLimit, schema.RiskReasonTradeFrequency:
			m.state = StateNormal
			m.haltReason = schema.RiskReasonNone
		}
	}
}

func (m *Manager) pruneHour(now int64) {
	cutoff := now - int64(time.Hour)
	idx := 0
	for idx < len(m.tradeTimes) && m.tradeTimes[idx] <= cutoff {
		idx++
	}
	if idx > 0 {
		m.tradeTimes = m.tradeTimes[idx:]
	}
}

func utcDayStart(now int64) int64 {
	const day = int64(24 * time.Hour)
	if now < 0 {
		return 0
	}
	return now - now%day
}
