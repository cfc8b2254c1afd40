package humanize

import (
	"fmt"
	"math"
	"sync/atomic"
)

const (
	// MinVariance is the floor applied on every write. A zero standard
	// deviation is undefined for the delay distribution.
	MinVariance = 1e-10

	DefaultVariance    = 0.005 // 5 ms
	DefaultMaxVariance = 0.100 // top of the normalized control range
)

// Variance is the standard deviation, in seconds, of the random note delay.
// It is written by the control surface and read by the audio thread, so the
// value lives in an atomic word and never behind a lock.
type Variance struct {
	bits atomic.Uint64
	max  float64
}

// NewVariance creates the parameter with an initial value and the upper end
// of its normalized range. A non-positive max falls back to DefaultMaxVariance.
func NewVariance(seconds, max float64) *Variance {
	if !(max > 0) {
		max = DefaultMaxVariance
	}
	v := &Variance{max: max}
	v.Set(seconds)
	return v
}

// Get returns the current standard deviation in seconds
func (v *Variance) Get() float64 {
	return math.Float64frombits(v.bits.Load())
}

// Set stores seconds, floored to MinVariance. NaN is treated as zero and
// +Inf as Max.
func (v *Variance) Set(seconds float64) {
	if math.IsInf(seconds, 1) {
		seconds = v.max
	}
	v.bits.Store(math.Float64bits(floor(seconds)))
}

// Add atomically shifts the value by delta seconds. The result stays above
// MinVariance and does not go past Max, or past the current value when that
// is already above Max. Returns the stored value.
func (v *Variance) Add(delta float64) float64 {
	for {
		old := v.bits.Load()
		cur := math.Float64frombits(old)
		next := floor(math.Min(cur+delta, math.Max(v.max, cur)))
		if v.bits.CompareAndSwap(old, math.Float64bits(next)) {
			return next
		}
	}
}

// Max is the variance that maps to a normalized value of 1
func (v *Variance) Max() float64 {
	return v.max
}

// Normalized returns the value mapped onto [0,1]
func (v *Variance) Normalized() float64 {
	n := v.Get() / v.max
	if n > 1 {
		return 1
	}
	return n
}

// SetNormalized maps n in [0,1] onto [0, Max] (then floored)
func (v *Variance) SetNormalized(n float64) {
	switch {
	case n < 0 || math.IsNaN(n):
		n = 0
	case n > 1:
		n = 1
	}
	v.Set(n * v.max)
}

// Name is the parameter label shown by hosts
func (v *Variance) Name() string {
	return "Variance"
}

// Text renders the value for display, e.g. "5.00 ms"
func (v *Variance) Text() string {
	return fmt.Sprintf("%.2f ms", v.Get()*1000)
}

func floor(seconds float64) float64 {
	if math.IsNaN(seconds) || seconds < MinVariance {
		return MinVariance
	}
	return seconds
}
