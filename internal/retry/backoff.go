package retry

import "time"

// Backoff is a bounded exponential retry policy. The delay schedule is pure
// data, so retry behavior is testable without waiting.
type Backoff struct {
	Base    time.Duration
	Max     time.Duration
	Factor  float64
	Attempt int
}

// Next returns the delay for the current attempt and advances the counter.
func (b *Backoff) Next() time.Duration {
	d := b.delay()
	b.Attempt++
	return d
}

// Peek returns the delay for the current attempt without advancing.
func (b *Backoff) Peek() time.Duration {
	return b.delay()
}

// Reset rewinds the schedule after a success.
func (b *Backoff) Reset() {
	b.Attempt = 0
}

func (b *Backoff) delay() time.Duration {
	base := b.Base
	if base <= 0 {
		base = 100 * time.Millisecond
	}
	factor := b.Factor
	if factor < 1 {
		factor = 2
	}
	d := float64(base)
	for i := 0; i < b.Attempt; i++ {
		d *= factor
		if b.Max > 0 && d >= float64(b.Max) {
			return b.Max
		}
	}
	if b.Max > 0 && d > float64(b.Max) {
		return b.Max
	}
	return time.Duration(d)
}
