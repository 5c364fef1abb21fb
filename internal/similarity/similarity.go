// Package similarity compares an aligned candidate sequence with its
// reference on pitch and rhythm, and measures how fragmented the candidate is.
package similarity

import (
	"math"
	"sort"

	"musicality/internal/alignment"
	"musicality/internal/notation"
)

const (
	// PitchToleranceSemitones is the average pitch error (two octaves) at
	// which pitch similarity reaches zero.
	PitchToleranceSemitones = 24.0
	// ShortNoteBeats marks a note as short (a sixteenth or less).
	ShortNoteBeats = 0.25
	// TinyNoteBeats marks a note as tiny (a thirty-second or less).
	TinyNoteBeats = 0.125
	// ShortWeight and TinyWeight combine the short and tiny ratios into the
	// fragmentation penalty.
	ShortWeight = 0.65
	TinyWeight  = 0.35
)

// binned keys each event's value by onset bin plus shift. Events are visited
// in sequence order, so when several share a bin the last one (latest onset,
// then highest pitch) wins. Chords and ornaments collapse to one value.
func binned[T any](seq notation.Sequence, shift int, value func(notation.NoteEvent) T) map[int]T {
	out := make(map[int]T, len(seq))
	for _, ev := range seq {
		out[alignment.Bin(ev.OnsetBeats)+shift] = value(ev)
	}
	return out
}

func sharedBins[T any](ref, cand map[int]T) []int {
	shared := make([]int, 0, len(cand))
	for bin := range cand {
		if _, ok := ref[bin]; ok {
			shared = append(shared, bin)
		}
	}
	sort.Ints(shared)
	return shared
}

// Pitch returns 1 - avg|pitch diff|/24 over bins shared after shifting the
// candidate by shiftBins, clamped to [0,1]. No shared bins scores 0.
func Pitch(reference, candidate notation.Sequence, shiftBins int) float64 {
	pitchOf := func(ev notation.NoteEvent) int { return ev.Pitch }
	ref := binned(reference, 0, pitchOf)
	cand := binned(candidate, shiftBins, pitchOf)
	shared := sharedBins(ref, cand)
	if len(shared) == 0 {
		return 0
	}
	total := 0.0
	for _, bin := range shared {
		total += math.Abs(float64(ref[bin] - cand[bin]))
	}
	avg := total / float64(len(shared))
	return clamp01(1 - avg/PitchToleranceSemitones)
}

// Rhythm returns the mean min/max duration ratio over shared bins. No shared
// bins scores 0.
func Rhythm(reference, candidate notation.Sequence, shiftBins int) float64 {
	durationOf := func(ev notation.NoteEvent) float64 { return notation.ClampDuration(ev.DurationBeats) }
	ref := binned(reference, 0, durationOf)
	cand := binned(candidate, shiftBins, durationOf)
	shared := sharedBins(ref, cand)
	if len(shared) == 0 {
		return 0
	}
	total := 0.0
	for _, bin := range shared {
		r, c := ref[bin], cand[bin]
		total += math.Min(r, c) / math.Max(r, c)
	}
	return clamp01(total / float64(len(shared)))
}

// FragmentationPenalty scores how much of the candidate is made of very short
// notes. An empty candidate gets the full penalty of 1.
func FragmentationPenalty(candidate notation.Sequence) float64 {
	if len(candidate) == 0 {
		return 1
	}
	short, tiny := 0, 0
	for _, ev := range candidate {
		if ev.DurationBeats <= ShortNoteBeats {
			short++
		}
		if ev.DurationBeats <= TinyNoteBeats {
			tiny++
		}
	}
	n := float64(len(candidate))
	return clamp01(ShortWeight*float64(short)/n + TinyWeight*float64(tiny)/n)
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
