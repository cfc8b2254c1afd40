package midi

import (
	"fmt"

	gomidi "gitlab.com/gomidi/midi/v2"
)

// MIDI status bytes (channel 0 for channel voice messages)
const (
	NoteOff         uint8 = 0x80
	NoteOn          uint8 = 0x90
	PolyPressure    uint8 = 0xA0
	CC              uint8 = 0xB0
	ProgramChange   uint8 = 0xC0
	ChannelPressure uint8 = 0xD0
	PitchBend       uint8 = 0xE0
)

// Event is one channel or system-common/realtime MIDI message observed in a
// block. Offset is the sample position inside the block where it arrived.
type Event struct {
	Status uint8
	Data1  uint8
	Data2  uint8
	Offset int
}

// Kind returns the status with the channel nibble stripped.
func (e Event) Kind() uint8 {
	if e.Status >= 0xF0 {
		return e.Status
	}
	return e.Status & 0xF0
}

// Channel returns the channel nibble (0-15) of a channel voice message.
func (e Event) Channel() uint8 {
	return e.Status & 0x0F
}

// Len is the number of bytes the message occupies on the wire.
func (e Event) Len() int {
	return messageLen(e.Status)
}

// Message converts the event into a gomidi message for sending.
func (e Event) Message() gomidi.Message {
	switch e.Len() {
	case 1:
		return gomidi.Message{e.Status}
	case 2:
		return gomidi.Message{e.Status, e.Data1}
	default:
		return gomidi.Message{e.Status, e.Data1, e.Data2}
	}
}

func (e Event) String() string {
	return fmt.Sprintf("status=%d data=[%d %d] offset=%d", e.Status, e.Data1, e.Data2, e.Offset)
}

// FromMessage converts a received gomidi message. SysEx and anything that is
// not a complete short message returns ok=false.
func FromMessage(msg gomidi.Message) (Event, bool) {
	b := []byte(msg)
	if len(b) == 0 || b[0] < 0x80 || b[0] == 0xF0 || b[0] == 0xF7 {
		return Event{}, false
	}
	n := messageLen(b[0])
	if len(b) < n {
		return Event{}, false
	}
	e := Event{Status: b[0]}
	if n > 1 {
		e.Data1 = b[1]
	}
	if n > 2 {
		e.Data2 = b[2]
	}
	return e, true
}

func messageLen(status uint8) int {
	switch {
	case status < 0xF0:
		switch status & 0xF0 {
		case ProgramChange, ChannelPressure:
			return 2
		}
		return 3
	case status == 0xF1 || status == 0xF3: // MTC quarter frame, song select
		return 2
	case status == 0xF2: // song position
		return 3
	default:
		return 1
	}
}
