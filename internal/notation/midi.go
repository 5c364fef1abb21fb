package notation

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"sort"

	"gitlab.com/gomidi/midi/v2/smf"
)

// percussionChannel is General MIDI channel 10. Its keys select drum sounds,
// not pitches.
const percussionChannel = 9

type midiNote struct {
	startTick int64
	endTick   int64
	key       uint8
}

// LoadMIDI decodes a Standard MIDI File. Notes come from the first track
// that contains any pitched ones; notes sharing a start tick form one group
// represented by its highest key. Percussion channel notes are ignored.
func LoadMIDI(path string) (*Document, error) {
	s, err := readSMF(path)
	if err != nil {
		return nil, parseError(path, FormatMIDI, err)
	}

	ticks, ok := s.TimeFormat.(smf.MetricTicks)
	if !ok {
		return nil, parseError(path, FormatMIDI, errors.New("only metric (ticks per quarter) time formats are supported"))
	}
	resolution := float64(ticks.Resolution())
	if resolution <= 0 {
		return nil, parseError(path, FormatMIDI, fmt.Errorf("invalid resolution %v", resolution))
	}

	var notes []midiNote
	for _, track := range s.Tracks {
		notes = trackNotes(track)
		if len(notes) > 0 {
			break
		}
	}

	doc := &Document{Path: path, Format: FormatMIDI}
	events := make([]NoteEvent, 0, len(notes))
	for _, group := range groupByStart(notes) {
		top := group[0]
		for _, n := range group[1:] {
			if n.key > top.key {
				top = n
			}
		}
		doc.NoteGroups++
		if len(group) > 1 {
			doc.ChordGroups++
		}
		onset := float64(top.startTick) / resolution
		duration := float64(top.endTick-top.startTick) / resolution
		if ev, ok := NewEvent(onset, duration, int(top.key)); ok {
			events = append(events, ev)
		}
	}
	doc.Events = NewSequence(events)
	return doc, nil
}

// readSMF wraps smf.ReadFrom, converting decoder panics on malformed input
// into errors.
func readSMF(path string) (s *smf.SMF, err error) {
	defer func() {
		if r := recover(); r != nil {
			s = nil
			err = fmt.Errorf("decode midi: %v", r)
		}
	}()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read midi file: %w", err)
	}
	s, err = smf.ReadFrom(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode midi: %w", err)
	}
	return s, nil
}

// trackNotes pairs note-on and note-off messages per channel and key in
// first-in first-out order, skipping the percussion channel. Notes still sounding at the end of the track end
// at the track's final tick.
func trackNotes(track smf.Track) []midiNote {
	type voiceKey struct{ channel, key uint8 }
	open := make(map[voiceKey][]int64)
	var notes []midiNote
	var absTicks int64

	for _, event := range track {
		absTicks += int64(event.Delta)
		var channel, key, velocity uint8
		switch {
		case event.Message.GetNoteOn(&channel, &key, &velocity) && channel == percussionChannel,
			event.Message.GetNoteOff(&channel, &key, &velocity) && channel == percussionChannel:
			continue
		case event.Message.GetNoteOn(&channel, &key, &velocity) && velocity > 0:
			vk := voiceKey{channel, key}
			open[vk] = append(open[vk], absTicks)
		case event.Message.GetNoteOn(&channel, &key, &velocity), event.Message.GetNoteOff(&channel, &key, &velocity):
			vk := voiceKey{channel, key}
			starts := open[vk]
			if len(starts) == 0 {
				continue
			}
			notes = append(notes, midiNote{startTick: starts[0], endTick: absTicks, key: key})
			open[vk] = starts[1:]
		}
	}

	for vk, starts := range open {
		for _, start := range starts {
			notes = append(notes, midiNote{startTick: start, endTick: absTicks, key: vk.key})
		}
	}

	sort.Slice(notes, func(i, j int) bool {
		if notes[i].startTick != notes[j].startTick {
			return notes[i].startTick < notes[j].startTick
		}
		if notes[i].key != notes[j].key {
			return notes[i].key < notes[j].key
		}
		return notes[i].endTick < notes[j].endTick
	})
	return notes
}

func groupByStart(notes []midiNote) [][]midiNote {
	var groups [][]midiNote
	for i := 0; i < len(notes); {
		j := i + 1
		for j < len(notes) && notes[j].startTick == notes[i].startTick {
			j++
		}
		groups = append(groups, notes[i:j])
		i = j
	}
	return groups
}
