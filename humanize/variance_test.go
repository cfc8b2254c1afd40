package humanize

import (
	"math"
	"sync"
	"testing"
)

func TestVarianceFloor(t *testing.T) {
	v := NewVariance(DefaultVariance, 0)
	for _, in := range []float64{0, -5, math.NaN(), math.Inf(-1)} {
		v.Set(in)
		if got := v.Get(); !(got > 0) {
			t.Fatalf("Set(%v): Get() = %v, want > 0", in, got)
		}
	}
	v.Set(0.002)
	if got := v.Get(); got != 0.002 {
		t.Fatalf("Get() = %v, want 0.002", got)
	}
}

func TestVarianceNormalizedRange(t *testing.T) {
	v := NewVariance(DefaultVariance, 0.1)

	if got := v.Normalized(); math.Abs(got-0.05) > 1e-12 {
		t.Fatalf("default normalized = %v, want 0.05", got)
	}
	v.SetNormalized(0.5)
	if got := v.Get(); math.Abs(got-0.05) > 1e-12 {
		t.Fatalf("SetNormalized(0.5) -> %v seconds, want 0.05", got)
	}
	v.SetNormalized(3)
	if got := v.Get(); got != 0.1 {
		t.Fatalf("SetNormalized(3) -> %v, want max 0.1", got)
	}
	v.SetNormalized(-1)
	if got := v.Get(); got != MinVariance {
		t.Fatalf("SetNormalized(-1) -> %v, want floor", got)
	}
}

func TestVarianceAddClamps(t *testing.T) {
	v := NewVariance(0.005, 0.01)
	if got := v.Add(0.001); math.Abs(got-0.006) > 1e-12 {
		t.Fatalf("Add(+1ms) = %v", got)
	}
	if got := v.Add(1); got != 0.01 {
		t.Fatalf("Add past max = %v, want 0.01", got)
	}
	if got := v.Add(-1); got != MinVariance {
		t.Fatalf("Add below zero = %v, want floor", got)
	}
}

func TestVarianceText(t *testing.T) {
	v := NewVariance(DefaultVariance, 0)
	if got := v.Text(); got != "5.00 ms" {
		t.Fatalf("Text() = %q", got)
	}
	v.Set(0.01234)
	if got := v.Text(); got != "12.34 ms" {
		t.Fatalf("Text() = %q", got)
	}
}

func TestVarianceConcurrentAccess(t *testing.T) {
	v := NewVariance(DefaultVariance, 0)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			v.Set(float64(i%10) / 1000)
			v.Add(0.0001)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			if got := v.Get(); !(got > 0) {
				t.Errorf("observed non-positive variance %v", got)
				return
			}
		}
	}()
	wg.Wait()
}

func TestVarianceInfinityMapsToMax(t *testing.T) {
	v := NewVariance(math.Inf(1), 0.1)
	if got := v.Get(); got != 0.1 {
		t.Fatalf("NewVariance(+Inf) = %v, want max 0.1", got)
	}
	v.Set(0.002)
	v.Set(math.Inf(1))
	if got := v.Get(); got != 0.1 {
		t.Fatalf("Set(+Inf) = %v, want max 0.1", got)
	}
}

func TestVarianceAddNeverMovesAgainstDelta(t *testing.T) {
	v := NewVariance(0.5, 0.1)
	if got := v.Add(0.001); got < 0.5 {
		t.Fatalf("Add(+1ms) above max lowered the value to %v", got)
	}
	if got := v.Add(0.001); math.Abs(got-0.502) > 1e-12 {
		t.Fatalf("second Add(+1ms) = %v, want 0.502", got)
	}
	if got := v.Add(-0.001); math.Abs(got-0.501) > 1e-12 {
		t.Fatalf("Add(-1ms) = %v, want 0.501", got)
	}
}
