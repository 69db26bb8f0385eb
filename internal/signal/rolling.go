package signal

import "math"

// Rolling is a fixed-capacity sample window with Welford-style incremental
// mean/variance. Evicted samples are downdated against the running mean, so
// there is no sum-of-squares term to drift over a long session.
type Rolling struct {
	buf   []float64
	head  int
	count int
	mean  float64
	m2    float64
}

// NewRolling allocates a window holding up to capacity samples.
func NewRolling(capacity int) *Rolling {
	if capacity <= 0 {
		capacity = 1
	}
	return &Rolling{buf: make([]float64, capacity)}
}

// Push adds a sample, evicting the oldest when full.
func (r *Rolling) Push(x float64) {
	if r.count == len(r.buf) {
		r.remove(r.buf[r.head])
	}
	r.buf[r.head] = x
	r.head = (r.head + 1) % len(r.buf)
	r.add(x)
}

func (r *Rolling) add(x float64) {
	r.count++
	delta := x - r.mean
	r.mean += delta / float64(r.count)
	r.m2 += delta * (x - r.mean)
}

func (r *Rolling) remove(x float64) {
	if r.count == 1 {
		r.count, r.mean, r.m2 = 0, 0, 0
		return
	}
	n := float64(r.count)
	next := (n*r.mean - x) / (n - 1)
	r.m2 -= (x - r.mean) * (x - next)
	r.mean = next
	r.count--
}

// Len returns the number of samples held.
func (r *Rolling) Len() int { return r.count }

// Full reports whether the window holds capacity samples.
func (r *Rolling) Full() bool { return r.count == len(r.buf) }

// Mean returns the window mean, 0 when empty.
func (r *Rolling) Mean() float64 {
	if r.count == 0 {
		return 0
	}
	return r.mean
}

// Variance returns the population variance, 0 when empty.
func (r *Rolling) Variance() float64 {
	if r.count == 0 {
		return 0
	}
	v := r.m2 / float64(r.count)
	if v < 0 {
		return 0
	}
	return v
}

// StdDev returns the population standard deviation.
func (r *Rolling) StdDev() float64 {
	return math.Sqrt(r.Variance())
}
