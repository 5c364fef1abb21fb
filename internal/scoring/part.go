package scoring

import (
	"musicality/internal/alignment"
	"musicality/internal/integrity"
	"musicality/internal/notation"
	"musicality/internal/similarity"
)

// PartMetrics is the score record of one candidate part against its
// reference. Recorded values are rounded to MetricPrecision; the gate and
// part score are computed from unrounded values.
type PartMetrics struct {
	HardGatePass         bool    `json:"hard_gate_pass"`
	OnsetScore           float64 `json:"onset_score"`
	PitchScore           float64 `json:"pitch_score"`
	RhythmScore          float64 `json:"rhythm_score"`
	FragmentationPenalty float64 `json:"fragmentation_penalty"`
	MeasureIntegrity     float64 `json:"measure_integrity"`
	ChordDensity         float64 `json:"chord_density"`
	TimeShiftBins        int     `json:"time_shift_bins"`
	PartScore            float64 `json:"part_score"`
	CandidateNotes       int     `json:"candidate_notes"`
}

// Scorable reports whether the candidate part produced any notes. Silent
// parts keep their floor metrics and count as 0 in the candidate average.
func (m PartMetrics) Scorable() bool {
	return m.CandidateNotes > 0
}

// ScorePart scores a decoded candidate document against a decoded reference.
func (p Policy) ScorePart(reference, candidate notation.Document) PartMetrics {
	align := alignment.Align(reference.Events, candidate.Events)
	pitch := similarity.Pitch(reference.Events, candidate.Events, align.ShiftBins)
	rhythm := similarity.Rhythm(reference.Events, candidate.Events, align.ShiftBins)
	frag := similarity.FragmentationPenalty(candidate.Events)
	report := integrity.Check(candidate, p.Gate)

	return PartMetrics{
		HardGatePass:         report.Pass,
		OnsetScore:           Round4(align.Quality),
		PitchScore:           Round4(pitch),
		RhythmScore:          Round4(rhythm),
		FragmentationPenalty: Round4(frag),
		MeasureIntegrity:     Round4(report.MeasureIntegrity),
		ChordDensity:         Round4(report.ChordDensity),
		TimeShiftBins:        align.ShiftBins,
		PartScore:            Round4(p.combine(align.Quality, pitch, rhythm, frag)),
		CandidateNotes:       report.Notes,
	}
}

// ScoreFiles decodes both files and scores them. Decode failures wrap
// notation.ErrParse.
func (p Policy) ScoreFiles(referencePath, candidatePath string) (PartMetrics, error) {
	reference, err := notation.Load(referencePath)
	if err != nil {
		return PartMetrics{}, err
	}
	candidate, err := notation.Load(candidatePath)
	if err != nil {
		return PartMetrics{}, err
	}
	return p.ScorePart(*reference, *candidate), nil
}
