package testsupport

import (
	"math"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

// TicksPerQuarter is the resolution of MIDI fixtures.
const TicksPerQuarter = 480

// MIDINote is one fixture note in beats.
type MIDINote struct {
	Onset    float64
	Duration float64
	Key      uint8
	// Channel is zero-based; 9 is the percussion channel.
	Channel uint8
}

type midiEvent struct {
	tick    uint32
	on      bool
	key     uint8
	channel uint8
}

// WriteMIDI writes a single-track Standard MIDI File holding notes.
func WriteMIDI(t testing.TB, path string, notes ...MIDINote) {
	t.Helper()

	events := make([]midiEvent, 0, len(notes)*2)
	for _, n := range notes {
		start := uint32(math.Round(n.Onset * TicksPerQuarter))
		end := uint32(math.Round((n.Onset + n.Duration) * TicksPerQuarter))
		events = append(events,
			midiEvent{tick: start, on: true, key: n.Key, channel: n.Channel},
			midiEvent{tick: end, key: n.Key, channel: n.Channel},
		)
	}
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].tick != events[j].tick {
			return events[i].tick < events[j].tick
		}
		return !events[i].on && events[j].on
	})

	var track smf.Track
	var last uint32
	for _, ev := range events {
		if ev.on {
			track.Add(ev.tick-last, midi.NoteOn(ev.channel, ev.key, 100))
		} else {
			track.Add(ev.tick-last, midi.NoteOff(ev.channel, ev.key))
		}
		last = ev.tick
	}
	track.Close(0)

	s := smf.New()
	s.TimeFormat = smf.MetricTicks(TicksPerQuarter)
	if err := s.Add(track); err != nil {
		t.Fatalf("add midi track: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := s.WriteFile(path); err != nil {
		t.Fatalf("write midi %s: %v", path, err)
	}
}
