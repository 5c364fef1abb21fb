package scoring

// ReasonNoScorableParts marks a candidate with nothing to average.
const ReasonNoScorableParts = "no_scorable_parts"

// Reasons a part is left out of a candidate's aggregate.
const (
	ExcludeMissingCandidate = "missing_candidate"
	ExcludeMissingReference = "missing_reference"
	ExcludeNoStemAssignment = "no_stem_assignment"
	ExcludeParseFailure     = "parse_failure"
)

// PartScore identifies the files a PartMetrics was computed from.
type PartScore struct {
	PartName          string      `json:"part_name"`
	StemName          string      `json:"stem_name"`
	ReferenceMIDI     string      `json:"reference_midi"`
	CandidateMusicXML string      `json:"candidate_musicxml"`
	Metrics           PartMetrics `json:"metrics"`
}

// ExcludedPart records why an exported part was not scored.
type ExcludedPart struct {
	PartName string `json:"part_name"`
	StemName string `json:"stem_name,omitempty"`
	Reason   string `json:"reason"`
	Detail   string `json:"detail,omitempty"`
}

// Candidate is the scored record of one run variant.
type Candidate struct {
	Rank           int            `json:"rank"`
	RunID          string         `json:"run_id"`
	VariantID      string         `json:"variant_id"`
	Profile        string         `json:"profile"`
	HardGatePass   bool           `json:"hard_gate_pass"`
	PartScores     []PartScore    `json:"part_scores"`
	ExcludedParts  []ExcludedPart `json:"excluded_parts"`
	AggregateScore float64        `json:"aggregate_score"`
	Reason         string         `json:"reason"`
}

// Aggregate builds the candidate record for one run variant. Parts are kept
// in the order given. The aggregate is the mean part score over every scored
// part, silent ones included. The gate is the AND of every part's gate. When
// no part was scored or every scored part is silent, the candidate scores 0,
// fails the gate and carries ReasonNoScorableParts.
func Aggregate(runID, variantID, profile string, parts []PartScore, excluded []ExcludedPart) Candidate {
	if variantID == "" {
		variantID = runID
	}
	c := Candidate{
		RunID:         runID,
		VariantID:     variantID,
		Profile:       profile,
		PartScores:    append([]PartScore{}, parts...),
		ExcludedParts: append([]ExcludedPart{}, excluded...),
	}

	total := 0.0
	sounding := 0
	pass := true
	for _, part := range parts {
		pass = pass && part.Metrics.HardGatePass
		total += part.Metrics.PartScore
		if part.Metrics.Scorable() {
			sounding++
		}
	}
	if sounding == 0 {
		c.Reason = ReasonNoScorableParts
		return c
	}
	c.AggregateScore = Round4(clamp01(total / float64(len(parts))))
	c.HardGatePass = pass
	return c
}
