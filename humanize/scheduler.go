package humanize

import (
	"math"
	"math/rand/v2"
	"sync/atomic"

	"go-sloth/midi"
)

// releaseEpsilon absorbs rounding from summing many per-sample steps. It is
// far below one sample period at any audio rate.
const releaseEpsilon = 1e-9

const defaultCapacity = 256

// Sampler draws half-normal delays: |N(0, sigma)|
type Sampler struct {
	rng *rand.Rand
}

// NewSampler wraps rng; a nil rng gets a randomly seeded PCG source
func NewSampler(rng *rand.Rand) *Sampler {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Sampler{rng: rng}
}

// Draw returns one delay in seconds. sigma must be positive; Variance
// guarantees that for the scheduler.
func (s *Sampler) Draw(sigma float64) float64 {
	return math.Abs(s.rng.NormFloat64() * sigma)
}

// Ready is a delayed event whose time has come. Frame is the sample index
// inside the current block where it became due (0 for Advance and Flush).
type Ready struct {
	Event midi.Event
	Frame int
}

type pending struct {
	event     midi.Event
	remaining float64 // seconds
	start     int     // arrival frame in the block it was classified in
}

// Stats is a snapshot of the scheduler counters.
// Released+Pending+Discarded == Delayed and Delayed+Passed+Overflowed == Submitted,
// where Discarded only counts notes dropped by Reset.
type Stats struct {
	Submitted  uint64
	Delayed    uint64
	Passed     uint64
	Overflowed uint64
	Released   uint64
	Discarded  uint64
	Pending    int
}

// Scheduler holds delayed note-ons and releases them when their random
// delay has elapsed. All methods except Stats must be called from the one
// processing goroutine.
type Scheduler struct {
	variance   *Variance
	sampler    *Sampler
	maxPending int
	anyChannel bool
	observe    func(float64)
	capacity   int

	pending   []pending
	immediate []midi.Event
	spare     []midi.Event
	ready     []Ready

	submitted  atomic.Uint64
	delayed    atomic.Uint64
	passed     atomic.Uint64
	overflowed atomic.Uint64
	released   atomic.Uint64
	discarded  atomic.Uint64
	npending   atomic.Int64
}

// NewScheduler creates a scheduler reading its spread from variance
func NewScheduler(variance *Variance, opts ...Option) *Scheduler {
	s := &Scheduler{
		variance: variance,
		capacity: defaultCapacity,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.sampler == nil {
		s.sampler = NewSampler(nil)
	}
	s.pending = make([]pending, 0, s.capacity)
	s.immediate = make([]midi.Event, 0, s.capacity)
	s.spare = make([]midi.Event, 0, s.capacity)
	s.ready = make([]Ready, 0, s.capacity)
	return s
}

// Delays reports whether ev is a note start that gets a random delay.
// Only status byte 0x90 qualifies unless WithAnyChannel is set.
func (s *Scheduler) Delays(ev midi.Event) bool {
	if s.anyChannel {
		return ev.Kind() == midi.NoteOn
	}
	return ev.Status == midi.NoteOn
}

// Classify routes one incoming event: note starts are held for a random
// delay, everything else joins the immediate batch unchanged.
func (s *Scheduler) Classify(ev midi.Event) {
	s.submitted.Add(1)

	if !s.Delays(ev) {
		s.immediate = append(s.immediate, ev)
		s.passed.Add(1)
		return
	}
	if s.maxPending > 0 && len(s.pending) >= s.maxPending {
		s.immediate = append(s.immediate, ev)
		s.overflowed.Add(1)
		return
	}

	d := s.sampler.Draw(s.variance.Get())
	start := ev.Offset
	if start < 0 {
		start = 0
	}
	s.pending = append(s.pending, pending{event: ev, remaining: d, start: start})
	s.delayed.Add(1)
	s.npending.Store(int64(len(s.pending)))
	if s.observe != nil {
		s.observe(d)
	}
}

// Advance counts every pending note down by elapsed seconds and returns the
// ones that are due. The returned slice is reused by the next Advance,
// AdvanceBlock or Flush.
func (s *Scheduler) Advance(elapsed float64) []Ready {
	s.ready = s.ready[:0]
	for i := 0; i < len(s.pending); {
		p := &s.pending[i]
		p.start = 0
		p.remaining -= elapsed
		if p.remaining <= releaseEpsilon {
			s.ready = append(s.ready, Ready{Event: p.event})
			s.remove(i)
			continue
		}
		i++
	}
	s.afterRelease()
	return s.ready
}

// AdvanceBlock is equivalent to calling Advance(1/sampleRate) once per
// sample of a block of frames, without the per-sample loop. Each released
// note carries the frame where its countdown crossed zero. Notes classified
// in this block start counting at their arrival offset.
func (s *Scheduler) AdvanceBlock(frames int, sampleRate float64) []Ready {
	s.ready = s.ready[:0]
	if frames <= 0 || !(sampleRate > 0) {
		return s.ready
	}
	dt := 1 / sampleRate

	for i := 0; i < len(s.pending); {
		p := &s.pending[i]
		start := p.start
		if start > frames {
			start = frames
		}
		p.start = 0

		// per-sample steps needed; the first step always happens
		steps := frames - start
		need := 1
		if p.remaining > releaseEpsilon {
			q := math.Ceil((p.remaining - releaseEpsilon) / dt)
			if !(q <= float64(steps)) {
				p.remaining -= float64(steps) * dt
				i++
				continue
			}
			need = max(int(q), 1)
		}
		if need <= steps {
			s.ready = append(s.ready, Ready{Event: p.event, Frame: start + need - 1})
			s.remove(i)
			continue
		}
		p.remaining -= float64(steps) * dt
		i++
	}
	s.afterRelease()
	return s.ready
}

// Flush releases every pending note now, at frame 0
func (s *Scheduler) Flush() []Ready {
	s.ready = s.ready[:0]
	for _, p := range s.pending {
		s.ready = append(s.ready, Ready{Event: p.event})
	}
	s.pending = s.pending[:0]
	s.afterRelease()
	return s.ready
}

// Reset drops every pending note and any undrained pass-through events
// without releasing them. Counters other than Discarded are kept.
func (s *Scheduler) Reset() {
	if n := len(s.pending); n > 0 {
		s.discarded.Add(uint64(n))
	}
	s.pending = s.pending[:0]
	s.immediate = s.immediate[:0]
	s.ready = s.ready[:0]
	s.npending.Store(0)
}

// DrainImmediate returns the pass-through events gathered since the last
// drain and clears the batch. The slice stays valid until the next drain.
func (s *Scheduler) DrainImmediate() []midi.Event {
	out := s.immediate
	s.immediate = s.spare[:0]
	s.spare = out
	return out
}

// Pending is the number of notes still waiting
func (s *Scheduler) Pending() int {
	return len(s.pending)
}

// Stats is safe to call from any goroutine
func (s *Scheduler) Stats() Stats {
	return Stats{
		Submitted:  s.submitted.Load(),
		Delayed:    s.delayed.Load(),
		Passed:     s.passed.Load(),
		Overflowed: s.overflowed.Load(),
		Released:   s.released.Load(),
		Discarded:  s.discarded.Load(),
		Pending:    int(s.npending.Load()),
	}
}

// remove swaps i with the last entry; the pending set is unordered
func (s *Scheduler) remove(i int) {
	last := len(s.pending) - 1
	s.pending[i] = s.pending[last]
	s.pending = s.pending[:last]
}

func (s *Scheduler) afterRelease() {
	if n := len(s.ready); n > 0 {
		s.released.Add(uint64(n))
	}
	s.npending.Store(int64(len(s.pending)))
}
