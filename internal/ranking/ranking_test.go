package ranking

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"musicality/internal/scoring"
)

func cand(runID string, score float64, pass bool) scoring.Candidate {
	return scoring.Candidate{RunID: runID, VariantID: runID, AggregateScore: score, HardGatePass: pass}
}

func runIDs(cs []scoring.Candidate) []string {
	ids := make([]string, len(cs))
	for i, c := range cs {
		ids[i] = c.RunID
	}
	return ids
}

func TestRankGateBeatsScore(t *testing.T) {
	ranked := Rank([]scoring.Candidate{
		cand("loud", 0.95, false),
		cand("clean", 0.7, true),
	})
	assert.Equal(t, []string{"clean", "loud"}, runIDs(ranked))
	assert.Equal(t, 1, ranked[0].Rank)
	assert.Equal(t, 2, ranked[1].Rank)
}

func TestRankIsIndependentOfInputOrder(t *testing.T) {
	a := []scoring.Candidate{
		cand("r3", 0.5, true),
		cand("r1", 0.5, true),
		cand("r2", 0.9, false),
		cand("r4", 0.8, true),
		cand("r0", 0.1, false),
	}
	b := []scoring.Candidate{a[4], a[2], a[0], a[3], a[1]}

	rankedA := Rank(a)
	rankedB := Rank(b)
	assert.Equal(t, rankedA, rankedB)
	assert.Equal(t, []string{"r4", "r1", "r3", "r2", "r0"}, runIDs(rankedA))
	assert.Equal(t, 0, a[0].Rank, "input must not be mutated")
}

func TestPromote(t *testing.T) {
	ranked := Rank([]scoring.Candidate{
		cand("a", 0.9, true),
		cand("b", 0.8, false),
		cand("c", 0.7, true),
		cand("d", 0.6, true),
	})
	assert.Equal(t, []string{"a", "c"}, runIDs(Promote(ranked, 2)))
	assert.Equal(t, []string{"a", "c", "d"}, runIDs(Promote(ranked, 10)))
	assert.Equal(t, []string{"a"}, runIDs(Promote(ranked, 0)))
	assert.Equal(t, 3, GatePassCount(ranked))
}

func TestPromoteFallsBackWhenNonePass(t *testing.T) {
	ranked := Rank([]scoring.Candidate{
		cand("x", 0.2, false),
		cand("y", 0.9, false),
		cand("z", 0.5, false),
	})
	for topN, want := range map[int][]string{
		1: {"y"},
		2: {"y", "z"},
		5: {"y", "z", "x"},
	} {
		promoted := Promote(ranked, topN)
		require.Len(t, promoted, min(topN, len(ranked)))
		assert.Equal(t, want, runIDs(promoted))
	}
	assert.Equal(t, 0, GatePassCount(ranked))
}

func TestPromoteEmpty(t *testing.T) {
	assert.Empty(t, Promote(nil, 3))
}
