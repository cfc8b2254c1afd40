package main

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/urfave/cli"

	"go-sloth/humanize"
	"go-sloth/theme"
	"go-sloth/widgets"
)

type delayStats struct {
	Count       int
	Mean        float64
	Std         float64
	Max         float64
	WithinSigma float64 // fraction of draws <= sigma
	Negative    int
}

// drawDelays samples n half-normal delays and summarises them. Each draw
// is also handed to add when it is non-nil.
func drawDelays(s *humanize.Sampler, sigma float64, n int, add func(float64)) delayStats {
	var sum, sumSq float64
	st := delayStats{Count: n}
	within := 0
	for i := 0; i < n; i++ {
		d := s.Draw(sigma)
		if d < 0 {
			st.Negative++
		}
		if d <= sigma {
			within++
		}
		if d > st.Max {
			st.Max = d
		}
		sum += d
		sumSq += d * d
		if add != nil {
			add(d)
		}
	}
	if n > 0 {
		st.Mean = sum / float64(n)
		st.Std = math.Sqrt(math.Max(sumSq/float64(n)-st.Mean*st.Mean, 0))
		st.WithinSigma = float64(within) / float64(n)
	}
	return st
}

func stats(c *cli.Context) error {
	if statsCount <= 0 {
		return errors.New("count must be positive")
	}
	v := humanize.NewVariance(varianceMs/1000, 0)
	sigma := v.Get()

	var rng *rand.Rand
	if seed != 0 {
		rng = rand.New(rand.NewPCG(seed, seed))
	}
	hist := widgets.NewHistogram(60, 4*sigma)
	st := drawDelays(humanize.NewSampler(rng), sigma, statsCount, hist.Add)

	fmt.Printf("variance      %s\n", v.Text())
	fmt.Printf("draws         %d\n", st.Count)
	fmt.Printf("mean          %.3f ms (half-normal expects %.3f ms)\n", st.Mean*1000, sigma*math.Sqrt(2/math.Pi)*1000)
	fmt.Printf("std           %.3f ms (expects %.3f ms)\n", st.Std*1000, sigma*math.Sqrt(1-2/math.Pi)*1000)
	fmt.Printf("max           %.3f ms\n", st.Max*1000)
	fmt.Printf("within 1σ     %.1f%% (expects 68.3%%)\n", st.WithinSigma*100)
	if st.Negative > 0 {
		return fmt.Errorf("%d negative delays drawn", st.Negative)
	}

	if statsHeight > 0 {
		fmt.Println()
		fmt.Println(hist.View(theme.New(theme.DefaultPalette()), statsHeight, sigma))
	}
	return nil
}
