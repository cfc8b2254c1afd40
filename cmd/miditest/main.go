package main

import (
	"fmt"
	"math"
	"os"
	"os/signal"
	"strconv"
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"go-sloth/midi"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		return
	}

	switch os.Args[1] {
	case "list":
		listPorts()
	case "send":
		if len(os.Args) < 3 {
			usage()
			return
		}
		sendPattern(os.Args[2], argInt(3, 120), argInt(4, 32))
	case "monitor":
		if len(os.Args) < 3 {
			usage()
			return
		}
		monitor(os.Args[2], float64(argInt(3, 120)))
	default:
		usage()
	}
}

func usage() {
	fmt.Println("MIDI Test Scripts")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  list                       - List all MIDI ports")
	fmt.Println("  send <port> [bpm] [count]  - Send a metronomic 16th-note pattern on channel 1")
	fmt.Println("  monitor <port> [bpm]       - Print note-on timing against the 16th-note grid")
}

func argInt(i, def int) int {
	if len(os.Args) <= i {
		return def
	}
	n, err := strconv.Atoi(os.Args[i])
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func listPorts() {
	fmt.Println("(waiting up to 3 seconds...)")
	ins, outs, err := midi.PortNames()
	if err != nil {
		fmt.Println("\nTIMEOUT! CoreMIDI is hung.")
		fmt.Println("Fix: sudo killall coreaudiod midiserver")
		return
	}
	fmt.Println("=== MIDI Input Ports ===")
	for i, name := range ins {
		fmt.Printf("  %d: %s\n", i, name)
	}
	fmt.Println("\n=== MIDI Output Ports ===")
	for i, name := range outs {
		fmt.Printf("  %d: %s\n", i, name)
	}
}

func sixteenth(bpm float64) time.Duration {
	return time.Duration(60 / bpm / 4 * float64(time.Second))
}

// sendPattern plays a steady hi-hat so the humanized copy can be compared
// against a perfect grid.
func sendPattern(port string, bpm, count int) {
	out, err := midi.FindOut(port)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	send, err := gomidi.SendTo(out)
	if err != nil {
		fmt.Printf("Error opening port: %v\n", err)
		return
	}
	fmt.Printf("Sending %d notes at %d BPM to %s\n", count, bpm, out.String())

	step := sixteenth(float64(bpm))
	ticker := time.NewTicker(step)
	defer ticker.Stop()

	const note = 42 // closed hi-hat
	for i := 0; i < count; i++ {
		velocity := uint8(80)
		if i%4 == 0 {
			velocity = 110
		}
		send(gomidi.NoteOn(0, note, velocity))
		time.Sleep(step / 2)
		send(gomidi.NoteOff(0, note))
		<-ticker.C
	}
	fmt.Println("Done!")
}

// monitor prints how far each incoming note-on lands from the nearest grid
// line, anchored at the first note received.
func monitor(port string, bpm float64) {
	in, err := midi.FindIn(port)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	fmt.Printf("Listening on %s at %.0f BPM. Ctrl+C to exit.\n", in.String(), bpm)

	step := sixteenth(bpm)
	type hit struct {
		at   time.Time
		note uint8
	}
	hits := make(chan hit, 256)

	stop, err := gomidi.ListenTo(in, func(msg gomidi.Message, timestampms int32) {
		ev, ok := midi.FromMessage(msg)
		if !ok || ev.Kind() != midi.NoteOn || ev.Data2 == 0 {
			return
		}
		select {
		case hits <- hit{at: time.Now(), note: ev.Data1}:
		default:
		}
	})
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	defer stop()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)

	var anchor time.Time
	var n int
	var sum, sumSq float64
	for {
		select {
		case h := <-hits:
			if anchor.IsZero() {
				anchor = h.at
			}
			since := h.at.Sub(anchor)
			grid := time.Duration(math.Floor(float64(since)/float64(step))) * step
			late := since - grid
			ms := float64(late) / float64(time.Millisecond)
			n++
			sum += ms
			sumSq += ms * ms
			fmt.Printf("[%s] note %3d  +%7.2f ms\n", h.at.Format("15:04:05.000"), h.note, ms)
		case <-sig:
			if n > 0 {
				mean := sum / float64(n)
				std := math.Sqrt(math.Max(sumSq/float64(n)-mean*mean, 0))
				fmt.Printf("\n%d notes, mean late %.2f ms, std %.2f ms\n", n, mean, std)
			}
			return
		}
	}
}
