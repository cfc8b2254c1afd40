package humanize

import "go-sloth/midi"

// DefaultSampleRate is used until the host reports one
const DefaultSampleRate = 44100.0

// Output is what one processing block hands to the dispatcher. Immediate
// events keep their arrival Offset; Ready events carry the release Frame.
// Both slices are owned by the scheduler and only valid during Dispatch.
type Output struct {
	Immediate []midi.Event
	Ready     []Ready
}

// Len is the total number of events in the batch
func (o Output) Len() int {
	return len(o.Immediate) + len(o.Ready)
}

// Dispatcher transmits a block's events to the host or an output port.
// It is called on the processing goroutine and must not block.
type Dispatcher interface {
	Dispatch(out Output)
}

// DispatcherFunc adapts a function to Dispatcher
type DispatcherFunc func(out Output)

func (f DispatcherFunc) Dispatch(out Output) { f(out) }

// Block is one invocation of the processing callback
type Block struct {
	Frames int // 0 = len(Input[0])
	Input  [][]float32
	Output [][]float32
	Events []midi.Event
}

// Processor runs the per-block cycle: copy audio through, classify the
// block's events in arrival order, advance the pending notes by the block
// length and dispatch whatever is due.
type Processor struct {
	params     *Variance
	sched      *Scheduler
	out        Dispatcher
	sampleRate float64
}

// NewProcessor wires a scheduler to a dispatcher. A nil dispatcher drops output.
func NewProcessor(params *Variance, sched *Scheduler, out Dispatcher) *Processor {
	if out == nil {
		out = DispatcherFunc(func(Output) {})
	}
	return &Processor{
		params:     params,
		sched:      sched,
		out:        out,
		sampleRate: DefaultSampleRate,
	}
}

// SetSampleRate is called by the host before processing starts
func (p *Processor) SetSampleRate(rate float64) {
	if rate > 0 {
		p.sampleRate = rate
	}
}

func (p *Processor) SampleRate() float64 { return p.sampleRate }

func (p *Processor) Params() *Variance { return p.params }

func (p *Processor) Scheduler() *Scheduler { return p.sched }

// Process handles one block
func (p *Processor) Process(b Block) {
	frames := b.Frames
	if frames == 0 && len(b.Input) > 0 {
		frames = len(b.Input[0])
	}

	passThrough(b.Input, b.Output)

	for _, ev := range b.Events {
		p.sched.Classify(ev)
	}

	ready := p.sched.AdvanceBlock(frames, p.sampleRate)
	immediate := p.sched.DrainImmediate()
	if len(ready) > 0 || len(immediate) > 0 {
		p.out.Dispatch(Output{Immediate: immediate, Ready: ready})
	}
}

// Flush dispatches every pending note immediately (host shutdown)
func (p *Processor) Flush() {
	ready := p.sched.Flush()
	immediate := p.sched.DrainImmediate()
	if len(ready) > 0 || len(immediate) > 0 {
		p.out.Dispatch(Output{Immediate: immediate, Ready: ready})
	}
}

// Reset discards pending notes without sending them (host restart)
func (p *Processor) Reset() {
	p.sched.Reset()
}

func passThrough(in, out [][]float32) {
	n := len(in)
	if len(out) < n {
		n = len(out)
	}
	for ch := 0; ch < n; ch++ {
		copy(out[ch], in[ch])
	}
}

// Recorder is a Dispatcher that keeps copies of everything dispatched
type Recorder struct {
	Batches []Output
}

func (r *Recorder) Dispatch(out Output) {
	r.Batches = append(r.Batches, Output{
		Immediate: append([]midi.Event(nil), out.Immediate...),
		Ready:     append([]Ready(nil), out.Ready...),
	})
}

// Immediate returns all recorded pass-through events in order
func (r *Recorder) Immediate() []midi.Event {
	var evs []midi.Event
	for _, b := range r.Batches {
		evs = append(evs, b.Immediate...)
	}
	return evs
}

// Ready returns all recorded released notes in order
func (r *Recorder) Ready() []Ready {
	var evs []Ready
	for _, b := range r.Batches {
		evs = append(evs, b.Ready...)
	}
	return evs
}
