package main

import (
	"math"
	"math/rand/v2"
	"testing"

	"go-sloth/humanize"
)

func TestDrawDelaysMatchesHalfNormal(t *testing.T) {
	const sigma = 0.005
	seen := 0
	st := drawDelays(humanize.NewSampler(rand.New(rand.NewPCG(1, 2))), sigma, 10000, func(float64) { seen++ })

	if seen != 10000 || st.Count != 10000 {
		t.Fatalf("expected 10000 draws, saw %d", seen)
	}
	if st.Negative != 0 {
		t.Fatalf("%d negative draws", st.Negative)
	}
	if want := sigma * math.Sqrt(2/math.Pi); math.Abs(st.Mean-want) > 0.03*want {
		t.Fatalf("mean %.6f, want about %.6f", st.Mean, want)
	}
	if want := sigma * math.Sqrt(1-2/math.Pi); math.Abs(st.Std-want) > 0.05*want {
		t.Fatalf("std %.6f, want about %.6f", st.Std, want)
	}
	if st.WithinSigma < 0.66 || st.WithinSigma > 0.705 {
		t.Fatalf("within one sigma %.3f, want about 0.683", st.WithinSigma)
	}
}

func TestDrawDelaysEmpty(t *testing.T) {
	st := drawDelays(humanize.NewSampler(nil), 0.005, 0, nil)
	if st.Mean != 0 || st.WithinSigma != 0 {
		t.Fatalf("unexpected stats for zero draws: %+v", st)
	}
}
