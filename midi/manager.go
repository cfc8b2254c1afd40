package midi

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // Register MIDI driver

	"go-sloth/debug"
)

var (
	// ErrTimeout is returned when the MIDI backend does not answer a port scan.
	ErrTimeout = errors.New("midi: port scan timed out")
	// ErrNoOutput is returned by Send while no output port is connected.
	ErrNoOutput = errors.New("midi: no output port connected")
)

// scanTimeout bounds a port enumeration (CoreMIDI can hang)
const scanTimeout = 3 * time.Second

// Timed is an incoming event stamped with its wall-clock arrival time
type Timed struct {
	Event
	At time.Time
}

// DeviceEvent is emitted when the watched ports connect/disconnect
type DeviceEvent struct {
	Type DeviceEventType
	Dir  Direction
	Name string
}

type DeviceEventType int

const (
	DeviceConnected DeviceEventType = iota
	DeviceDisconnected
)

type Direction int

const (
	DirIn Direction = iota
	DirOut
)

func (d Direction) String() string {
	if d == DirOut {
		return "out"
	}
	return "in"
}

// DeviceManager keeps one input and one output port connected by name and
// handles hot-plug. Incoming messages are forwarded to Inputs().
type DeviceManager struct {
	inWant  string
	outWant string

	mu      sync.RWMutex
	inName  string
	stopIn  func()
	outName string
	send    func(gomidi.Message) error

	inputs   chan Timed
	events   chan DeviceEvent
	dropped  atomic.Uint64
	pollRate time.Duration
}

// NewDeviceManager creates a manager for the given port names. Names match
// case-insensitively as substrings; an empty name leaves that side unconnected.
func NewDeviceManager(inName, outName string) *DeviceManager {
	return &DeviceManager{
		inWant:   inName,
		outWant:  outName,
		inputs:   make(chan Timed, 256),
		events:   make(chan DeviceEvent, 16),
		pollRate: time.Second,
	}
}

// Inputs returns the channel of incoming events
func (dm *DeviceManager) Inputs() <-chan Timed {
	return dm.inputs
}

// Events returns a channel of device connect/disconnect events
func (dm *DeviceManager) Events() <-chan DeviceEvent {
	return dm.events
}

// Dropped is the number of incoming messages lost because Inputs() was full
func (dm *DeviceManager) Dropped() uint64 {
	return dm.dropped.Load()
}

// Connected returns the names of the currently open ports ("" if none)
func (dm *DeviceManager) Connected() (in, out string) {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	return dm.inName, dm.outName
}

// Send writes a message to the output port
func (dm *DeviceManager) Send(msg gomidi.Message) error {
	dm.mu.RLock()
	send := dm.send
	dm.mu.RUnlock()
	if send == nil {
		return ErrNoOutput
	}
	return send(msg)
}

// Run starts the polling loop (blocking - run in goroutine)
func (dm *DeviceManager) Run(ctx context.Context) {
	ticker := time.NewTicker(dm.pollRate)
	defer ticker.Stop()

	dm.scan()

	for {
		select {
		case <-ctx.Done():
			dm.closeAll()
			close(dm.events)
			return
		case <-ticker.C:
			dm.scan()
		}
	}
}

func (dm *DeviceManager) scan() {
	ins, outs, err := scanPorts(scanTimeout)
	if err != nil {
		debug.Log("midi", "scan: %v", err)
		return
	}

	if dm.inWant != "" {
		dm.scanIn(ins)
	}
	if dm.outWant != "" {
		dm.scanOut(outs)
	}
}

func (dm *DeviceManager) scanIn(ins []drivers.In) {
	dm.mu.RLock()
	current := dm.inName
	dm.mu.RUnlock()

	if current != "" {
		for _, p := range ins {
			if p.String() == current {
				return
			}
		}
		dm.mu.Lock()
		if dm.stopIn != nil {
			dm.stopIn()
			dm.stopIn = nil
		}
		dm.inName = ""
		dm.mu.Unlock()
		dm.emit(DeviceEvent{Type: DeviceDisconnected, Dir: DirIn, Name: current})
		return
	}

	for _, p := range ins {
		if !MatchPort(p.String(), dm.inWant) {
			continue
		}
		stop, err := gomidi.ListenTo(p, dm.receive)
		if err != nil {
			debug.Log("midi", "listen %q: %v", p.String(), err)
			continue
		}
		dm.mu.Lock()
		dm.inName = p.String()
		dm.stopIn = stop
		dm.mu.Unlock()
		dm.emit(DeviceEvent{Type: DeviceConnected, Dir: DirIn, Name: p.String()})
		return
	}
}

func (dm *DeviceManager) scanOut(outs []drivers.Out) {
	dm.mu.RLock()
	current := dm.outName
	dm.mu.RUnlock()

	if current != "" {
		for _, p := range outs {
			if p.String() == current {
				return
			}
		}
		dm.mu.Lock()
		dm.send = nil
		dm.outName = ""
		dm.mu.Unlock()
		dm.emit(DeviceEvent{Type: DeviceDisconnected, Dir: DirOut, Name: current})
		return
	}

	for _, p := range outs {
		if !MatchPort(p.String(), dm.outWant) {
			continue
		}
		send, err := gomidi.SendTo(p)
		if err != nil {
			debug.Log("midi", "open output %q: %v", p.String(), err)
			continue
		}
		dm.mu.Lock()
		dm.outName = p.String()
		dm.send = send
		dm.mu.Unlock()
		dm.emit(DeviceEvent{Type: DeviceConnected, Dir: DirOut, Name: p.String()})
		return
	}
}

// receive runs on the driver's callback goroutine; it must not block
func (dm *DeviceManager) receive(msg gomidi.Message, timestampms int32) {
	ev, ok := FromMessage(msg)
	if !ok {
		return
	}
	select {
	case dm.inputs <- Timed{Event: ev, At: time.Now()}:
	default:
		dm.dropped.Add(1)
	}
}

func (dm *DeviceManager) emit(ev DeviceEvent) {
	debug.Log("midi", "%s %s: %s", ev.Dir, eventVerb(ev.Type), ev.Name)
	select {
	case dm.events <- ev:
	default:
	}
}

func (dm *DeviceManager) closeAll() {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	if dm.stopIn != nil {
		dm.stopIn()
		dm.stopIn = nil
	}
	dm.inName = ""
	dm.send = nil
	dm.outName = ""
}

func eventVerb(t DeviceEventType) string {
	if t == DeviceConnected {
		return "connected"
	}
	return "disconnected"
}

// MatchPort reports whether a port name matches the wanted name
// (case-insensitive substring). An empty want never matches.
func MatchPort(name, want string) bool {
	want = strings.TrimSpace(want)
	if want == "" {
		return false
	}
	return strings.Contains(strings.ToLower(name), strings.ToLower(want))
}

// PortNames lists the names of all MIDI input and output ports
func PortNames() (ins, outs []string, err error) {
	inPorts, outPorts, err := scanPorts(scanTimeout)
	if err != nil {
		return nil, nil, err
	}
	for _, p := range inPorts {
		ins = append(ins, p.String())
	}
	for _, p := range outPorts {
		outs = append(outs, p.String())
	}
	return ins, outs, nil
}

// FindOut returns the first output port matching name
func FindOut(name string) (drivers.Out, error) {
	_, outs, err := scanPorts(scanTimeout)
	if err != nil {
		return nil, err
	}
	for _, p := range outs {
		if MatchPort(p.String(), name) {
			return p, nil
		}
	}
	return nil, fmt.Errorf("midi: no output port matching %q", name)
}

// FindIn returns the first input port matching name
func FindIn(name string) (drivers.In, error) {
	ins, _, err := scanPorts(scanTimeout)
	if err != nil {
		return nil, err
	}
	for _, p := range ins {
		if MatchPort(p.String(), name) {
			return p, nil
		}
	}
	return nil, fmt.Errorf("midi: no input port matching %q", name)
}

func scanPorts(timeout time.Duration) ([]drivers.In, []drivers.Out, error) {
	type portsResult struct {
		inPorts  []drivers.In
		outPorts []drivers.Out
	}

	ch := make(chan portsResult, 1)
	go func() {
		ch <- portsResult{inPorts: gomidi.GetInPorts(), outPorts: gomidi.GetOutPorts()}
	}()

	select {
	case r := <-ch:
		return r.inPorts, r.outPorts, nil
	case <-time.After(timeout):
		// User needs to run: sudo killall coreaudiod midiserver
		return nil, nil, ErrTimeout
	}
}
