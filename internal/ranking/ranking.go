// Package ranking orders scored candidates into a total order and selects
// the subset promoted to human review.
package ranking

import (
	"sort"

	"musicality/internal/scoring"
)

// Less reports whether a ranks ahead of b: gate-passing first, then higher
// aggregate score, then run id ascending.
func Less(a, b scoring.Candidate) bool {
	if a.HardGatePass != b.HardGatePass {
		return a.HardGatePass
	}
	if a.AggregateScore != b.AggregateScore {
		return a.AggregateScore > b.AggregateScore
	}
	return a.RunID < b.RunID
}

// Rank returns a sorted copy of candidates with Rank set to 1..N. The input
// order does not affect the result.
func Rank(candidates []scoring.Candidate) []scoring.Candidate {
	ranked := make([]scoring.Candidate, len(candidates))
	copy(ranked, candidates)
	sort.SliceStable(ranked, func(i, j int) bool {
		return Less(ranked[i], ranked[j])
	})
	for i := range ranked {
		ranked[i].Rank = i + 1
	}
	return ranked
}

// Promote selects up to topN gate-passing candidates from a ranked list. When
// none pass, the top topN candidates are promoted regardless of gate so a
// best-available result is always surfaced. topN below 1 is treated as 1.
func Promote(ranked []scoring.Candidate, topN int) []scoring.Candidate {
	topN = max(1, topN)
	promoted := make([]scoring.Candidate, 0, min(topN, len(ranked)))
	for _, c := range ranked {
		if len(promoted) == topN {
			break
		}
		if c.HardGatePass {
			promoted = append(promoted, c)
		}
	}
	if len(promoted) > 0 {
		return promoted
	}
	return append(promoted, ranked[:min(topN, len(ranked))]...)
}

// GatePassCount counts candidates that passed the hard gate.
func GatePassCount(candidates []scoring.Candidate) int {
	n := 0
	for _, c := range candidates {
		if c.HardGatePass {
			n++
		}
	}
	return n
}
