package feed

import (
	"context"
	"time"

	"github.com/yanun0323/logs"

	"frontrun/internal/retry"
)

// Breaker is the slice of the risk manager the feed health loop needs.
type Breaker interface {
	ObserveDisconnect(gap time.Duration)
	ClearDisconnect()
}

// Monitor reports feed silence to the breaker and drives reconnect
// attempts on a data-driven backoff schedule.
type Monitor struct {
	feed      *Binance
	breaker   Breaker
	reconnect func(ctx context.Context) error

	interval time.Duration
	silence  time.Duration
	backoff  retry.Backoff
}

// NewMonitor builds a health loop for one feed. reconnect re-establishes
// the subscriptions; it may be nil when the transport reconnects itself.
func NewMonitor(f *Binance, breaker Breaker, silence time.Duration, reconnect func(ctx context.Context) error) *Monitor {
	return &Monitor{
		feed:      f,
		breaker:   breaker,
		reconnect: reconnect,
		interval:  silence / 4,
		silence:   silence,
		backoff:   retry.Backoff{Base: time.Second, Max: 30 * time.Second, Factor: 2},
	}
}

// Run blocks until the context is done.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	var nextAttempt time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			gap := m.feed.DisconnectedFor(now.UTC().UnixNano())
			if gap < m.silence {
				m.breaker.ClearDisconnect()
				m.backoff.Reset()
				nextAttempt = time.Time{}
				continue
			}

			m.breaker.ObserveDisconnect(gap)
			if m.reconnect == nil {
				continue
			}
			if !nextAttempt.IsZero() && now.Before(nextAttempt) {
				continue
			}
			if err := m.reconnect(ctx); err != nil {
				delay := m.backoff.Next()
				nextAttempt = now.Add(delay)
				logs.Warnf("feed reconnect failed, next attempt in %s: %v", delay, err)
				continue
			}
			logs.Info("feed reconnected")
			m.backoff.Reset()
			nextAttempt = time.Time{}
		}
	}
}
