// Package alignment finds the constant timing offset that best lines up a
// candidate note sequence with its reference.
//
// Onsets are discretized into sixteenth-note bins and a bounded window of
// integer shifts is scanned. There is no tempo warping: transcription adds a
// near-constant latency, which a single shift absorbs.
package alignment

import (
	"math"

	"musicality/internal/notation"
)

const (
	// BinWidthBeats is the onset bin width, one sixteenth note.
	BinWidthBeats = 0.25
	// MaxShiftBins bounds the shift search to +/- 4 beats.
	MaxShiftBins = 16
)

// Result is the winning shift and its onset F1 quality.
type Result struct {
	ShiftBins int     `json:"shift_bins"`
	Quality   float64 `json:"quality"`
}

// Bin maps an onset to its bin index. Halfway onsets round to the even bin.
func Bin(onsetBeats float64) int {
	return int(math.RoundToEven(onsetBeats / BinWidthBeats))
}

// BinSet returns the distinct onset bins of seq.
func BinSet(seq notation.Sequence) map[int]struct{} {
	bins := make(map[int]struct{}, len(seq))
	for _, ev := range seq {
		bins[Bin(ev.OnsetBeats)] = struct{}{}
	}
	return bins
}

// Align scans shifts from -MaxShiftBins to +MaxShiftBins applied to the
// candidate bins and keeps the first shift with the highest quality. A shift
// only replaces the current best when it scores strictly higher, so a run of
// zero-quality shifts leaves the result at shift 0.
func Align(reference, candidate notation.Sequence) Result {
	if len(reference) == 0 || len(candidate) == 0 {
		return Result{}
	}
	refBins := BinSet(reference)
	candBins := BinSet(candidate)

	best := Result{}
	for shift := -MaxShiftBins; shift <= MaxShiftBins; shift++ {
		q := quality(refBins, candBins, shift)
		if q > best.Quality {
			best = Result{ShiftBins: shift, Quality: q}
		}
	}
	return best
}

func quality(refBins, candBins map[int]struct{}, shift int) float64 {
	hits := 0
	for bin := range candBins {
		if _, ok := refBins[bin+shift]; ok {
			hits++
		}
	}
	precision := float64(hits) / float64(len(candBins))
	recall := float64(hits) / float64(len(refBins))
	return f1(precision, recall)
}

func f1(precision, recall float64) float64 {
	if precision+recall <= 1e-9 {
		return 0
	}
	return math.Min(1, 2*precision*recall/(precision+recall))
}
