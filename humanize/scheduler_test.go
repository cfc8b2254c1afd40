package humanize

import (
	"math"
	"math/rand/v2"
	"testing"

	"go-sloth/midi"
)

const sr = 48000.0

func noteOn(note uint8, offset int) midi.Event {
	return midi.Event{Status: midi.NoteOn, Data1: note, Data2: 100, Offset: offset}
}

func noteOff(note uint8, offset int) midi.Event {
	return midi.Event{Status: midi.NoteOff, Data1: note, Offset: offset}
}

// newRecordingScheduler returns a scheduler and a pointer to the delays it draws
func newRecordingScheduler(t *testing.T, variance float64, opts ...Option) (*Scheduler, *[]float64) {
	t.Helper()
	var drawn []float64
	opts = append(opts, WithDelayObserver(func(d float64) { drawn = append(drawn, d) }))
	return NewScheduler(NewVariance(variance, 0), opts...), &drawn
}

func TestClassifyNoteOnGoesPending(t *testing.T) {
	s, _ := newRecordingScheduler(t, DefaultVariance, WithSeed(1))
	s.Classify(noteOn(60, 0))

	if got := s.Pending(); got != 1 {
		t.Fatalf("expected 1 pending, got %d", got)
	}
	if got := len(s.DrainImmediate()); got != 0 {
		t.Fatalf("expected no immediate events, got %d", got)
	}
}

func TestClassifyOtherStatusesPassThrough(t *testing.T) {
	statuses := []uint8{
		midi.NoteOff, midi.NoteOff | 3, midi.NoteOn | 1, midi.NoteOn | 15,
		midi.CC, midi.ProgramChange, midi.PitchBend, 0xF8, 0xFE, 0x00,
	}
	for _, st := range statuses {
		s := NewScheduler(NewVariance(DefaultVariance, 0), WithSeed(1))
		ev := midi.Event{Status: st, Data1: 1, Data2: 2, Offset: 7}
		s.Classify(ev)

		if s.Pending() != 0 {
			t.Fatalf("status %d: expected nothing pending, got %d", st, s.Pending())
		}
		imm := s.DrainImmediate()
		if len(imm) != 1 || imm[0] != ev {
			t.Fatalf("status %d: expected event passed unchanged, got %v", st, imm)
		}
	}
}

func TestAnyChannelDelaysEveryNoteOn(t *testing.T) {
	s := NewScheduler(NewVariance(DefaultVariance, 0), WithSeed(1), WithAnyChannel(true))
	for ch := uint8(0); ch < 16; ch++ {
		s.Classify(midi.Event{Status: midi.NoteOn | ch, Data1: 60, Data2: 90})
	}
	s.Classify(noteOff(60, 0))

	if s.Pending() != 16 {
		t.Fatalf("expected 16 pending note-ons, got %d", s.Pending())
	}
	if got := len(s.DrainImmediate()); got != 1 {
		t.Fatalf("expected the note-off to pass through, got %d immediate", got)
	}
}

func TestNoteOffPassesInSameBlock(t *testing.T) {
	rec := &Recorder{}
	s := NewScheduler(NewVariance(DefaultVariance, 0), WithSeed(1))
	p := NewProcessor(s.variance, s, rec)
	p.SetSampleRate(sr)

	p.Process(Block{Frames: 64, Events: []midi.Event{noteOff(64, 12)}})

	if len(rec.Batches) != 1 {
		t.Fatalf("expected one dispatched batch, got %d", len(rec.Batches))
	}
	imm := rec.Batches[0].Immediate
	if len(imm) != 1 || imm[0].Status != midi.NoteOff || imm[0].Offset != 12 {
		t.Fatalf("unexpected immediate batch: %v", imm)
	}
	if s.Pending() != 0 {
		t.Fatalf("note-off must not be held, pending=%d", s.Pending())
	}
}

func TestAdvancePerSampleReleasesOnce(t *testing.T) {
	for seed := uint64(1); seed <= 20; seed++ {
		s, drawn := newRecordingScheduler(t, 0.005, WithSeed(seed))
		s.Classify(noteOn(60, 0))
		d := (*drawn)[0]

		releasedAt := 0
		for k := 1; k <= int(sr); k++ {
			ready := s.Advance(1 / sr)
			if len(ready) == 0 {
				continue
			}
			if releasedAt != 0 {
				t.Fatalf("seed %d: released twice (k=%d and k=%d)", seed, releasedAt, k)
			}
			if len(ready) != 1 || ready[0].Event.Data1 != 60 {
				t.Fatalf("seed %d: unexpected release %v", seed, ready)
			}
			releasedAt = k
		}
		if releasedAt == 0 {
			t.Fatalf("seed %d: never released (delay %.6fs)", seed, d)
		}
		if diff := math.Abs(float64(releasedAt)/sr - d); diff > 1/sr+1e-9 {
			t.Fatalf("seed %d: released at k=%d (%.6fs), drawn delay %.6fs", seed, releasedAt, float64(releasedAt)/sr, d)
		}
		if s.Pending() != 0 {
			t.Fatalf("seed %d: still pending after release", seed)
		}
	}
}

func TestAdvanceReleasesWhenElapsedCoversDelay(t *testing.T) {
	s, drawn := newRecordingScheduler(t, 0.02, WithSeed(3))
	s.Classify(noteOn(60, 0))
	d := (*drawn)[0]

	released := 0
	for i := 0; i < 3; i++ {
		released += len(s.Advance(d / 3))
	}
	if released != 1 {
		t.Fatalf("expected exactly one release after covering %.6fs, got %d", d, released)
	}
	if got := len(s.Advance(1)); got != 0 {
		t.Fatalf("released again after the fact: %d", got)
	}
}

func TestMinimumVarianceReleasesOnNextAdvance(t *testing.T) {
	s := NewScheduler(NewVariance(0, 0), WithSeed(9))
	s.Classify(noteOn(60, 0))

	if got := len(s.Advance(1 / sr)); got != 1 {
		t.Fatalf("expected release on first advance, got %d", got)
	}
}

func TestAdvanceBlockMatchesPerSample(t *testing.T) {
	const block = 64
	for seed := uint64(1); seed <= 50; seed++ {
		perSample := NewScheduler(NewVariance(0.005, 0), WithSeed(seed))
		blocked := NewScheduler(NewVariance(0.005, 0), WithSeed(seed))
		perSample.Classify(noteOn(60, 0))
		blocked.Classify(noteOn(60, 0))

		want := -1
		for k := 0; k < int(sr) && want < 0; k++ {
			if len(perSample.Advance(1/sr)) == 1 {
				want = k
			}
		}

		got := -1
		for b := 0; b < int(sr)/block && got < 0; b++ {
			if ready := blocked.AdvanceBlock(block, sr); len(ready) == 1 {
				got = b*block + ready[0].Frame
			}
		}

		if want < 0 || got < 0 {
			t.Fatalf("seed %d: missing release (per-sample %d, block %d)", seed, want, got)
		}
		if diff := got - want; diff < -1 || diff > 1 {
			t.Fatalf("seed %d: block release at sample %d, per-sample at %d", seed, got, want)
		}
	}
}

func TestAdvanceBlockCountsFromArrivalOffset(t *testing.T) {
	s, drawn := newRecordingScheduler(t, 0.0001, WithSeed(5))
	s.Classify(noteOn(60, 40))
	d := (*drawn)[0]

	wantFrame := 40 + int(math.Ceil(d*sr)) - 1
	got := -1
	for b := 0; b < 100 && got < 0; b++ {
		if ready := s.AdvanceBlock(64, sr); len(ready) == 1 {
			got = b*64 + ready[0].Frame
		}
	}
	if diff := got - wantFrame; diff < -1 || diff > 1 {
		t.Fatalf("released at sample %d, expected about %d (delay %.6fs)", got, wantFrame, d)
	}
}

func TestConservation(t *testing.T) {
	rng := rand.New(rand.NewPCG(11, 12))
	s := NewScheduler(NewVariance(0.01, 0), WithSeed(4), WithMaxPending(8))

	var submitted, released, drained int
	for block := 0; block < 2000; block++ {
		for n := rng.IntN(4); n > 0; n-- {
			status := midi.NoteOn
			if rng.IntN(3) == 0 {
				status = midi.NoteOff
			}
			s.Classify(midi.Event{Status: status, Data1: uint8(rng.IntN(128)), Offset: rng.IntN(64)})
			submitted++
		}
		released += len(s.AdvanceBlock(64, sr))
		drained += len(s.DrainImmediate())

		if released+s.Pending()+drained != submitted {
			t.Fatalf("block %d: released %d + pending %d + drained %d != submitted %d",
				block, released, s.Pending(), drained, submitted)
		}
	}
	released += len(s.Flush())
	if released+drained != submitted || s.Pending() != 0 {
		t.Fatalf("after flush: released %d + drained %d != submitted %d (pending %d)",
			released, drained, submitted, s.Pending())
	}

	st := s.Stats()
	if st.Submitted != uint64(submitted) || st.Released != uint64(released) {
		t.Fatalf("stats out of step: %+v (submitted %d, released %d)", st, submitted, released)
	}
	if st.Delayed+st.Passed+st.Overflowed != st.Submitted {
		t.Fatalf("stats do not add up: %+v", st)
	}
}

func TestMaxPendingForcesImmediateRelease(t *testing.T) {
	s := NewScheduler(NewVariance(1, 0), WithSeed(2), WithMaxPending(2))
	s.Classify(noteOn(60, 0))
	s.Classify(noteOn(62, 0))
	s.Classify(noteOn(64, 0))

	if s.Pending() != 2 {
		t.Fatalf("expected 2 pending, got %d", s.Pending())
	}
	imm := s.DrainImmediate()
	if len(imm) != 1 || imm[0].Data1 != 64 {
		t.Fatalf("expected overflowing note 64 to pass through, got %v", imm)
	}
	if got := s.Stats().Overflowed; got != 1 {
		t.Fatalf("expected 1 overflow, got %d", got)
	}
}

func TestDrainImmediateClears(t *testing.T) {
	s := NewScheduler(NewVariance(DefaultVariance, 0))
	s.Classify(noteOff(1, 0))
	s.Classify(noteOff(2, 0))

	first := s.DrainImmediate()
	if len(first) != 2 || first[0].Data1 != 1 || first[1].Data1 != 2 {
		t.Fatalf("expected arrival order [1 2], got %v", first)
	}
	if got := len(s.DrainImmediate()); got != 0 {
		t.Fatalf("second drain should be empty, got %d", got)
	}
}

func TestSamplerHalfNormal(t *testing.T) {
	const (
		n     = 10000
		sigma = 0.005
	)
	smp := NewSampler(rand.New(rand.NewPCG(42, 43)))

	var sum float64
	within := 0
	for i := 0; i < n; i++ {
		d := smp.Draw(sigma)
		if d < 0 {
			t.Fatalf("negative draw %v", d)
		}
		sum += d
		if d <= sigma {
			within++
		}
	}

	mean := sum / n
	wantMean := sigma * math.Sqrt(2/math.Pi)
	if math.Abs(mean-wantMean) > 0.03*wantMean {
		t.Fatalf("mean %.6f, expected about %.6f", mean, wantMean)
	}
	frac := float64(within) / n
	if frac < 0.66 || frac > 0.705 {
		t.Fatalf("%.3f of draws within one sigma, expected about 0.683", frac)
	}
}

func TestResetDiscardsWithoutReleasing(t *testing.T) {
	s := NewScheduler(NewVariance(1, 0), WithSeed(6))
	s.Classify(noteOn(60, 0))
	s.Classify(noteOn(62, 0))
	s.Classify(noteOff(60, 0))

	s.Reset()
	if s.Pending() != 0 {
		t.Fatalf("expected nothing pending after reset, got %d", s.Pending())
	}
	if got := len(s.DrainImmediate()); got != 0 {
		t.Fatalf("expected immediate batch cleared, got %d", got)
	}
	if got := len(s.Flush()); got != 0 {
		t.Fatalf("flush after reset released %d", got)
	}
	st := s.Stats()
	if st.Discarded != 2 || st.Released != 0 {
		t.Fatalf("unexpected stats after reset: %+v", st)
	}
	if st.Released+uint64(st.Pending)+st.Discarded != st.Delayed {
		t.Fatalf("stats do not add up: %+v", st)
	}
}

func TestHugeVarianceStaysPendingInBothAdvances(t *testing.T) {
	for _, sigma := range []float64{1e15, 1e300} {
		perBlock := NewScheduler(NewVariance(sigma, 0), WithSeed(8))
		perSample := NewScheduler(NewVariance(sigma, 0), WithSeed(8))
		perBlock.Classify(noteOn(60, 0))
		perSample.Classify(noteOn(60, 0))

		for block := 0; block < 10; block++ {
			if got := len(perBlock.AdvanceBlock(64, sr)); got != 0 {
				t.Fatalf("sigma %g: block %d released %d notes", sigma, block, got)
			}
			for i := 0; i < 64; i++ {
				if got := len(perSample.Advance(1 / sr)); got != 0 {
					t.Fatalf("sigma %g: per-sample advance released %d notes", sigma, got)
				}
			}
		}
		if perBlock.Pending() != 1 || perSample.Pending() != 1 {
			t.Fatalf("sigma %g: pending %d / %d, want 1 / 1", sigma, perBlock.Pending(), perSample.Pending())
		}
	}
}
