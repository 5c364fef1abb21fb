package notation

import (
	"math"
	"sort"
)

// MinDurationBeats is the floor applied to every note duration, a 64th note
// expressed in quarter-note beats.
const MinDurationBeats = 0.0625

// DefaultBarBeats is the bar length assumed when no time signature governs a
// measure (4/4).
const DefaultBarBeats = 4.0

// NoteEvent is one melodic note: onset and duration in quarter-note beats
// from the start of the piece and a MIDI pitch number.
type NoteEvent struct {
	OnsetBeats    float64 `json:"onset_beats"`
	DurationBeats float64 `json:"duration_beats"`
	Pitch         int     `json:"pitch_midi"`
}

// Sequence is a list of note events ordered by onset, then pitch.
type Sequence []NoteEvent

// NewEvent builds a NoteEvent with onset floored at zero and duration clamped
// to MinDurationBeats. The second result is false when the pitch lies outside
// the MIDI range.
func NewEvent(onset, duration float64, pitch int) (NoteEvent, bool) {
	if pitch < 0 || pitch > 127 {
		return NoteEvent{}, false
	}
	return NoteEvent{
		OnsetBeats:    math.Max(0, onset),
		DurationBeats: ClampDuration(duration),
		Pitch:         pitch,
	}, true
}

// ClampDuration applies the MinDurationBeats floor.
func ClampDuration(beats float64) float64 {
	if math.IsNaN(beats) || beats < MinDurationBeats {
		return MinDurationBeats
	}
	return beats
}

// NewSequence copies events and sorts them by (onset, pitch).
func NewSequence(events []NoteEvent) Sequence {
	seq := make(Sequence, len(events))
	copy(seq, events)
	sort.SliceStable(seq, func(i, j int) bool {
		if seq[i].OnsetBeats != seq[j].OnsetBeats {
			return seq[i].OnsetBeats < seq[j].OnsetBeats
		}
		return seq[i].Pitch < seq[j].Pitch
	})
	return seq
}

// Measure records the notated length of one bar against the bar length its
// governing time signature requires.
type Measure struct {
	Number        string  `json:"number"`
	ActualBeats   float64 `json:"actual_beats"`
	ExpectedBeats float64 `json:"expected_beats"`
}

// Format identifies the decoder that produced a Document.
type Format string

const (
	FormatMIDI     Format = "midi"
	FormatMusicXML Format = "musicxml"
)

// Document is the decoded content of one symbolic source.
type Document struct {
	Path     string
	Format   Format
	Events   Sequence
	Measures []Measure
	// NoteGroups counts notated note elements with chords counted once and
	// unpitched notes included. ChordGroups counts the groups holding two or
	// more simultaneous notes.
	NoteGroups  int
	ChordGroups int
}
