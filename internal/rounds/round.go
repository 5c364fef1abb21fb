package rounds

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"musicality/internal/ranking"
	"musicality/internal/scoring"
)

// Artifact file names.
const (
	ManifestFile = "round_manifest.json"
	ScoresFile   = "auto_scores.json"
	SummaryFile  = "summary.json"
)

// TimestampLayout is the local-time layout of artifact timestamps.
const TimestampLayout = "2006-01-02T15:04:05"

// IDPrefix starts every generated round id.
const IDPrefix = "musicality_"

var (
	// ErrInvalidRoundID is returned for ids that are not a single path segment.
	ErrInvalidRoundID = errors.New("invalid round id")
	// ErrRoundExists is returned when the round directory is already present.
	ErrRoundExists = errors.New("round already exists")
	// ErrEmptyRound is returned when building a round without candidates.
	ErrEmptyRound = errors.New("round has no candidates")
)

// DefaultID returns the timestamped id used when the caller supplies none.
func DefaultID(now time.Time) string {
	return IDPrefix + now.Format("20060102_150405")
}

// ValidateID rejects ids that would escape or hide inside the rounds
// directory.
func ValidateID(id string) error {
	trimmed := strings.TrimSpace(id)
	switch {
	case trimmed == "":
		return fmt.Errorf("%w: empty", ErrInvalidRoundID)
	case trimmed != id:
		return fmt.Errorf("%w: %q has surrounding whitespace", ErrInvalidRoundID, id)
	case strings.ContainsAny(id, `/\`):
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidRoundID, id)
	case strings.HasPrefix(id, "."):
		return fmt.Errorf("%w: %q starts with a dot", ErrInvalidRoundID, id)
	}
	return nil
}

// MissingRun records a requested run that produced no candidate.
type MissingRun struct {
	RunID  string `json:"run_id"`
	Reason string `json:"reason"`
	Detail string `json:"detail,omitempty"`
}

// Manifest is round_manifest.json.
type Manifest struct {
	RoundID        string       `json:"round_id"`
	CreatedAt      string       `json:"created_at"`
	InvocationID   string       `json:"invocation_id"`
	RunsRequested  []string     `json:"runs_requested"`
	RunsMissing    []string     `json:"runs_missing"`
	MissingDetails []MissingRun `json:"missing_details"`
	CandidateCount int          `json:"candidate_count"`
	ScoreFormula   string       `json:"score_formula"`
	PolicyVersion  string       `json:"policy_version"`
}

// AutoScores is auto_scores.json.
type AutoScores struct {
	RoundID     string              `json:"round_id"`
	GeneratedAt string              `json:"generated_at"`
	Candidates  []scoring.Candidate `json:"candidates"`
}

// Summary is summary.json.
type Summary struct {
	RoundID           string              `json:"round_id"`
	GeneratedAt       string              `json:"generated_at"`
	Winner            scoring.Candidate   `json:"winner"`
	TopCandidates     []scoring.Candidate `json:"top_candidates"`
	HardGatePassCount int                 `json:"hard_gate_pass_count"`
	CandidateCount    int                 `json:"candidate_count"`
}

// Round is the full artifact set of one round.
type Round struct {
	ID       string
	Manifest Manifest
	Scores   AutoScores
	Summary  Summary
}

// Input carries everything a round is built from.
type Input struct {
	RoundID      string
	InvocationID string
	CreatedAt    time.Time
	Requested    []string
	Missing      []MissingRun
	Candidates   []scoring.Candidate
	TopN         int
	Policy       scoring.Policy
}

// Build ranks the candidates, selects the promoted subset and assembles the
// artifacts.
func Build(in Input) (*Round, error) {
	if err := ValidateID(in.RoundID); err != nil {
		return nil, err
	}
	if len(in.Candidates) == 0 {
		return nil, ErrEmptyRound
	}
	stamp := in.CreatedAt.Format(TimestampLayout)
	ranked := ranking.Rank(in.Candidates)
	promoted := ranking.Promote(ranked, in.TopN)

	missingIDs := make([]string, 0, len(in.Missing))
	for _, m := range in.Missing {
		missingIDs = append(missingIDs, m.RunID)
	}

	return &Round{
		ID: in.RoundID,
		Manifest: Manifest{
			RoundID:        in.RoundID,
			CreatedAt:      stamp,
			InvocationID:   in.InvocationID,
			RunsRequested:  append([]string{}, in.Requested...),
			RunsMissing:    missingIDs,
			MissingDetails: append([]MissingRun{}, in.Missing...),
			CandidateCount: len(ranked),
			ScoreFormula:   in.Policy.Formula(),
			PolicyVersion:  in.Policy.Version,
		},
		Scores: AutoScores{
			RoundID:     in.RoundID,
			GeneratedAt: stamp,
			Candidates:  ranked,
		},
		Summary: Summary{
			RoundID:           in.RoundID,
			GeneratedAt:       stamp,
			Winner:            promoted[0],
			TopCandidates:     promoted,
			HardGatePassCount: ranking.GatePassCount(ranked),
			CandidateCount:    len(ranked),
		},
	}, nil
}
