package humanize

import "math/rand/v2"

// Option configures a Scheduler
type Option func(*Scheduler)

// WithSeed makes the delay draws reproducible
func WithSeed(seed uint64) Option {
	return func(s *Scheduler) {
		s.sampler = NewSampler(rand.New(rand.NewPCG(seed, seed^0x9E3779B97F4A7C15)))
	}
}

// WithRNG sets the random source used for delay draws
func WithRNG(rng *rand.Rand) Option {
	return func(s *Scheduler) {
		if rng != nil {
			s.sampler = NewSampler(rng)
		}
	}
}

// WithMaxPending caps the number of notes held at once. When the cap is
// reached further note-ons go straight to the immediate batch. Zero means
// unbounded.
func WithMaxPending(n int) Option {
	return func(s *Scheduler) {
		if n < 0 {
			n = 0
		}
		s.maxPending = n
	}
}

// WithAnyChannel delays note-ons on every channel (0x90-0x9F) instead of
// only status byte 0x90.
func WithAnyChannel(on bool) Option {
	return func(s *Scheduler) {
		s.anyChannel = on
	}
}

// WithDelayObserver is called on the processing goroutine with every delay
// drawn, in seconds. It must not block.
func WithDelayObserver(fn func(seconds float64)) Option {
	return func(s *Scheduler) {
		s.observe = fn
	}
}

// WithCapacity preallocates room for n pending notes and n immediate events
func WithCapacity(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.capacity = n
		}
	}
}
