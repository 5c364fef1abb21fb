package alignment

import (
	"testing"

	"musicality/internal/notation"
)

func seq(onsets ...float64) notation.Sequence {
	events := make([]notation.NoteEvent, 0, len(onsets))
	for i, onset := range onsets {
		ev, _ := notation.NewEvent(onset, 0.5, 60+i)
		events = append(events, ev)
	}
	return notation.NewSequence(events)
}

func TestBin(t *testing.T) {
	tests := []struct {
		onset float64
		want  int
	}{
		{0, 0},
		{0.25, 1},
		{1.0, 4},
		{0.1, 0},
		{0.2, 1},
		{0.125, 0},
		{0.375, 2},
	}
	for _, tt := range tests {
		if got := Bin(tt.onset); got != tt.want {
			t.Fatalf("Bin(%v) = %d, want %d", tt.onset, got, tt.want)
		}
	}
}

func TestAlignIdentical(t *testing.T) {
	ref := seq(0, 0.5, 1.0)
	got := Align(ref, ref)
	if got.ShiftBins != 0 || got.Quality != 1 {
		t.Fatalf("unexpected result %+v", got)
	}
}

func TestAlignRecoversConstantOffset(t *testing.T) {
	ref := seq(0, 0.5, 1.0)
	cand := seq(1.0, 1.5, 2.0)
	got := Align(ref, cand)
	if got.ShiftBins != -4 {
		t.Fatalf("expected shift -4, got %d", got.ShiftBins)
	}
	if got.Quality != 1 {
		t.Fatalf("expected quality 1, got %v", got.Quality)
	}
}

func TestAlignEmptySequences(t *testing.T) {
	ref := seq(0, 1)
	for name, pair := range map[string][2]notation.Sequence{
		"empty candidate": {ref, nil},
		"empty reference": {nil, ref},
		"both empty":      {nil, nil},
	} {
		got := Align(pair[0], pair[1])
		if got != (Result{}) {
			t.Fatalf("%s: expected zero result, got %+v", name, got)
		}
	}
}

func TestAlignOutOfWindowKeepsZeroShift(t *testing.T) {
	ref := seq(0)
	cand := seq(10)
	got := Align(ref, cand)
	if got.ShiftBins != 0 || got.Quality != 0 {
		t.Fatalf("expected zero result, got %+v", got)
	}
}

func TestAlignTieKeepsEarliestShift(t *testing.T) {
	// Reference bins {0, 8}; a single candidate bin at 4 matches either
	// reference bin, at shift -4 or +4.
	ref := seq(0, 2)
	cand := seq(1)
	got := Align(ref, cand)
	if got.ShiftBins != -4 {
		t.Fatalf("expected earliest shift -4, got %d", got.ShiftBins)
	}
}

func TestAlignPartialOverlap(t *testing.T) {
	ref := seq(0, 0.25, 0.5, 0.75)
	cand := seq(0, 0.25)
	got := Align(ref, cand)
	// precision 1, recall 0.5
	want := 2 * 1 * 0.5 / 1.5
	if got.Quality != want {
		t.Fatalf("quality = %v, want %v", got.Quality, want)
	}
}
