// Package host runs the humanize processor against a wall-clock block clock,
// standing in for a plugin host: MIDI comes in from a port, is processed in
// fixed blocks and goes back out through another port.
package host

import (
	"context"
	"runtime"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"

	"go-sloth/debug"
	"go-sloth/humanize"
	"go-sloth/midi"
)

// Sender transmits one MIDI message (midi.DeviceManager implements it)
type Sender interface {
	Send(msg gomidi.Message) error
}

// Options configures an Engine
type Options struct {
	SampleRate float64
	BlockSize  int
	MaxPending int
	AnyChannel bool
	Seed       uint64 // 0 = random
}

const (
	outQueueSize   = 1024
	delayQueueSize = 512
	uiFPS          = 30
)

type outEvent struct {
	msg     midi.Event
	due     time.Time
	delayed bool
}

// Stats is a snapshot for the UI
type Stats struct {
	humanize.Stats
	Sent        uint64
	SendErrors  uint64
	OutDropped  uint64
	BlocksRun   uint64
	LateBlocks  uint64
	SampleClock int64
}

// Engine drives a Processor from a ticker. The clock loop owns the
// scheduler; the output loop does all port I/O.
type Engine struct {
	variance *humanize.Variance
	sched    *humanize.Scheduler
	proc     *humanize.Processor

	sampleRate float64
	blockSize  int
	period     time.Duration

	inputs <-chan midi.Timed
	sender Sender

	// clock loop state
	started   time.Time
	prevTick  time.Time
	processed int64
	events    []midi.Event
	scratch   []outEvent

	// notify loop state
	lateLogged uint64

	out    chan outEvent
	delays chan float64

	sent       atomic.Uint64
	sendErrors atomic.Uint64
	outDropped atomic.Uint64
	blocks     atomic.Uint64
	late       atomic.Uint64
	lateFrames atomic.Int64
	stopping   atomic.Bool
	clock      atomic.Int64

	// UpdateChan is signalled at UI frame rate while running
	UpdateChan chan struct{}
}

// New builds the scheduler and processor around variance
func New(variance *humanize.Variance, inputs <-chan midi.Timed, sender Sender, opts Options) *Engine {
	if opts.SampleRate <= 0 {
		opts.SampleRate = humanize.DefaultSampleRate
	}
	if opts.BlockSize <= 0 {
		opts.BlockSize = 64
	}

	e := &Engine{
		variance:   variance,
		sampleRate: opts.SampleRate,
		blockSize:  opts.BlockSize,
		period:     time.Duration(float64(opts.BlockSize) / opts.SampleRate * float64(time.Second)),
		inputs:     inputs,
		sender:     sender,
		events:     make([]midi.Event, 0, 256),
		scratch:    make([]outEvent, 0, 256),
		out:        make(chan outEvent, outQueueSize),
		delays:     make(chan float64, delayQueueSize),
		UpdateChan: make(chan struct{}, 1),
	}

	schedOpts := []humanize.Option{
		humanize.WithMaxPending(opts.MaxPending),
		humanize.WithAnyChannel(opts.AnyChannel),
		humanize.WithDelayObserver(e.observeDelay),
	}
	if opts.Seed != 0 {
		schedOpts = append(schedOpts, humanize.WithSeed(opts.Seed))
	}
	e.sched = humanize.NewScheduler(variance, schedOpts...)
	e.proc = humanize.NewProcessor(variance, e.sched, humanize.DispatcherFunc(e.dispatch))
	e.proc.SetSampleRate(opts.SampleRate)
	return e
}

// Variance is the control-surface handle
func (e *Engine) Variance() *humanize.Variance {
	return e.variance
}

// Delays streams drawn delays (seconds) for display; values are dropped
// when nobody reads.
func (e *Engine) Delays() <-chan float64 {
	return e.delays
}

// Period is the wall-clock length of one block
func (e *Engine) Period() time.Duration {
	return e.period
}

// Stats is safe to call from any goroutine
func (e *Engine) Stats() Stats {
	return Stats{
		Stats:       e.sched.Stats(),
		Sent:        e.sent.Load(),
		SendErrors:  e.sendErrors.Load(),
		OutDropped:  e.outDropped.Load(),
		BlocksRun:   e.blocks.Load(),
		LateBlocks:  e.late.Load(),
		SampleClock: e.clock.Load(),
	}
}

// Run blocks until ctx is cancelled. Pending notes are flushed on the way out.
func (e *Engine) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		e.clockLoop(ctx)
	}()
	go func() {
		defer wg.Done()
		e.outputLoop()
	}()
	go func() {
		defer wg.Done()
		e.notifyLoop(ctx)
	}()
	wg.Wait()
}

func (e *Engine) clockLoop(ctx context.Context) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	ticker := time.NewTicker(e.period)
	defer ticker.Stop()

	e.Start(time.Now())
	for {
		select {
		case <-ctx.Done():
			e.stopping.Store(true)
			e.Stop(time.Now())
			close(e.out)
			return
		case now := <-ticker.C:
			e.Step(now)
		}
	}
}

// Start resets the sample clock to now and drops anything left pending from
// an earlier run. Run calls it; tests drive Start and Step directly.
func (e *Engine) Start(now time.Time) {
	e.proc.Reset()
	e.started = now
	e.prevTick = now
	e.processed = 0
}

// Step processes everything between the previous step and now as one block.
// The block length follows the wall clock so a late tick does not slow
// the delay countdown.
func (e *Engine) Step(now time.Time) {
	target := int64(now.Sub(e.started).Seconds() * e.sampleRate)
	frames := int(target - e.processed)
	if frames <= 0 {
		return
	}
	if frames > 2*e.blockSize {
		e.late.Add(1)
		e.lateFrames.Store(int64(frames))
	}

	blockStart := e.prevTick
	e.events = e.events[:0]
	for drained := false; !drained; {
		select {
		case t := <-e.inputs:
			ev := t.Event
			ev.Offset = e.offsetOf(t.At, blockStart, frames)
			e.events = append(e.events, ev)
		default:
			drained = true
		}
	}

	e.proc.Process(humanize.Block{Frames: frames, Events: e.events})

	e.processed = target
	e.prevTick = now
	e.blocks.Add(1)
	e.clock.Store(e.processed)
}

// Stop releases all pending notes so none are stranded
func (e *Engine) Stop(now time.Time) {
	e.prevTick = now
	e.proc.Flush()
}

func (e *Engine) offsetOf(at, blockStart time.Time, frames int) int {
	off := int(at.Sub(blockStart).Seconds() * e.sampleRate)
	if off < 0 {
		return 0
	}
	if off >= frames {
		return frames - 1
	}
	return off
}

// dispatch runs on the clock loop: order the block by frame and queue it
// for the output loop, stamped with the wall-clock time it is due.
// Output runs one block behind the input so offsets can be honoured.
func (e *Engine) dispatch(out humanize.Output) {
	e.scratch = e.scratch[:0]
	for _, ev := range out.Immediate {
		e.scratch = append(e.scratch, outEvent{msg: ev, due: e.due(ev.Offset)})
	}
	for _, r := range out.Ready {
		e.scratch = append(e.scratch, outEvent{msg: r.Event, due: e.due(r.Frame), delayed: true})
	}
	slices.SortStableFunc(e.scratch, func(a, b outEvent) int {
		return a.due.Compare(b.due)
	})

	for _, ev := range e.scratch {
		select {
		case e.out <- ev:
		default:
			e.outDropped.Add(1)
		}
	}
}

func (e *Engine) due(frame int) time.Time {
	return e.prevTick.Add(e.period + time.Duration(float64(frame)/e.sampleRate*float64(time.Second)))
}

func (e *Engine) observeDelay(seconds float64) {
	select {
	case e.delays <- seconds:
	default:
	}
}

// outputLoop sends queued events when they are due; after the clock loop
// closes the queue the remainder goes out immediately.
func (e *Engine) outputLoop() {
	timer := time.NewTimer(time.Hour)
	timer.Stop()

	for ev := range e.out {
		if wait := time.Until(ev.due); wait > 0 && !e.stopping.Load() {
			timer.Reset(wait)
			<-timer.C
		}
		e.send(ev)
	}
}

func (e *Engine) send(ev outEvent) {
	if e.sender == nil {
		return
	}
	if err := e.sender.Send(ev.msg.Message()); err != nil {
		e.sendErrors.Add(1)
		debug.LogEvery(50, "send", "status=%d: %v", ev.msg.Status, err)
		return
	}
	e.sent.Add(1)
	if ev.delayed {
		debug.LogEvery(100, "send", "delayed note %d", ev.msg.Data1)
	}
}

func (e *Engine) notifyLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Second / uiFPS)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.reportLate()
			select {
			case e.UpdateChan <- struct{}{}:
			default:
			}
		}
	}
}

// reportLate logs the late blocks counted by the clock loop since the last
// report. It runs on the notify loop so the clock loop never touches the log.
func (e *Engine) reportLate() {
	n := e.late.Load()
	if n == e.lateLogged {
		return
	}
	debug.Log("engine", "%d late blocks (last %d frames, total %d)", n-e.lateLogged, e.lateFrames.Load(), n)
	e.lateLogged = n
}
