// Package integrity checks that a candidate part is well-formed notation:
// every bar adds up, the line is essentially monophonic and it is not silent.
package integrity

import (
	"math"

	"musicality/internal/notation"
)

// BarTolerance is the deviation, in beats, above which a measure is broken.
const BarTolerance = 1e-5

// Thresholds are the hard gate limits.
type Thresholds struct {
	MinMeasureIntegrity float64 `json:"min_measure_integrity"`
	MaxChordDensity     float64 `json:"max_chord_density"`
}

// Report holds the integrity metrics of one candidate document and the gate
// verdict under a set of thresholds.
type Report struct {
	MeasureIntegrity float64
	ChordDensity     float64
	Notes            int
	Pass             bool
}

// MeasureIntegrity returns the share of measures whose notated length matches
// their expected bar length. No measures scores 0.
func MeasureIntegrity(measures []notation.Measure) float64 {
	if len(measures) == 0 {
		return 0
	}
	broken := 0
	for _, m := range measures {
		expected := m.ExpectedBeats
		if expected <= 0 {
			expected = notation.DefaultBarBeats
		}
		if math.Abs(m.ActualBeats-expected) > BarTolerance {
			broken++
		}
	}
	return 1 - float64(broken)/float64(len(measures))
}

// ChordDensity returns the share of note groups sounding two or more pitches.
func ChordDensity(noteGroups, chordGroups int) float64 {
	if noteGroups <= 0 {
		return 0
	}
	return math.Min(1, float64(chordGroups)/float64(noteGroups))
}

// Pass applies the gate to already computed metrics.
func (t Thresholds) Pass(measureIntegrity, chordDensity float64, notes int) bool {
	return measureIntegrity >= t.MinMeasureIntegrity &&
		chordDensity <= t.MaxChordDensity &&
		notes > 0
}

// Check computes the integrity report for a candidate document.
func Check(doc notation.Document, t Thresholds) Report {
	r := Report{
		MeasureIntegrity: MeasureIntegrity(doc.Measures),
		ChordDensity:     ChordDensity(doc.NoteGroups, doc.ChordGroups),
		Notes:            len(doc.Events),
	}
	r.Pass = t.Pass(r.MeasureIntegrity, r.ChordDensity, r.Notes)
	return r
}
