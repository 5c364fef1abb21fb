package scoring

import (
	"fmt"

	"musicality/internal/integrity"
)

// Policy holds the scoring weights and hard gate thresholds.
type Policy struct {
	Version             string
	OnsetWeight         float64
	PitchWeight         float64
	RhythmWeight        float64
	FragmentationWeight float64
	Gate                integrity.Thresholds
}

// PolicyV1 returns the first published policy.
func PolicyV1() Policy {
	return policyV1
}

// DefaultPolicy returns the policy used when callers do not pick one.
func DefaultPolicy() Policy {
	return policyV1
}

var policyV1 = Policy{
	Version:             "v1",
	OnsetWeight:         0.40,
	PitchWeight:         0.30,
	RhythmWeight:        0.20,
	FragmentationWeight: 0.10,
	Gate: integrity.Thresholds{
		MinMeasureIntegrity: 0.999,
		MaxChordDensity:     0.05,
	},
}

// Formula renders the part score formula as recorded in round manifests.
func (p Policy) Formula() string {
	return fmt.Sprintf("%.2f*onset + %.2f*pitch + %.2f*rhythm - %.2f*fragmentation_penalty",
		p.OnsetWeight, p.PitchWeight, p.RhythmWeight, p.FragmentationWeight)
}

// combine applies the weights. The result is clamped to [0,1].
func (p Policy) combine(onset, pitch, rhythm, fragmentation float64) float64 {
	return clamp01(p.OnsetWeight*onset + p.PitchWeight*pitch + p.RhythmWeight*rhythm - p.FragmentationWeight*fragmentation)
}
