package evaluation

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"musicality/internal/logging"
	"musicality/internal/rounds"
	"musicality/internal/runs"
	"musicality/internal/scoring"
)

// Reasons a requested run is listed as missing.
const (
	MissingManifestNotFound = "manifest_not_found"
	MissingInvalidManifest  = "invalid_manifest"
	MissingDeadlineExceeded = "deadline_exceeded"
)

// MissingError reports a run that produced no candidate.
type MissingError struct {
	RunID  string
	Reason string
	Err    error
}

func (e *MissingError) Error() string {
	return fmt.Sprintf("run %s missing (%s): %v", e.RunID, e.Reason, e.Err)
}

func (e *MissingError) Unwrap() error { return e.Err }

// Is matches ErrRunMissing.
func (e *MissingError) Is(target error) bool { return target == ErrRunMissing }

func (e *MissingError) record() rounds.MissingRun {
	detail := ""
	if e.Err != nil {
		detail = e.Err.Error()
	}
	return rounds.MissingRun{RunID: e.RunID, Reason: e.Reason, Detail: detail}
}

// EvaluateRun scores every exported part of one run variant and aggregates
// the candidate. It returns a *MissingError when the run manifest cannot be
// loaded and the context error when cancelled between parts.
func (e *Evaluator) EvaluateRun(ctx context.Context, runsDir, runID string) (scoring.Candidate, error) {
	ctx = logging.WithRunID(ctx, runID)
	logger := logging.WithContext(ctx, e.logger)

	run, err := runs.Open(runsDir, runID)
	if err != nil {
		reason := MissingInvalidManifest
		if errors.Is(err, fs.ErrNotExist) {
			reason = MissingManifestNotFound
		}
		return scoring.Candidate{}, &MissingError{RunID: runID, Reason: reason, Err: err}
	}

	resolution := run.ResolveParts()
	excluded := append([]scoring.ExcludedPart(nil), resolution.Excluded...)
	for _, ex := range resolution.Excluded {
		logger.Debug("part excluded",
			logging.String(logging.FieldPart, ex.PartName),
			logging.String("reason", ex.Reason),
		)
	}

	scores := make([]scoring.PartScore, 0, len(resolution.Parts))
	for _, part := range resolution.Parts {
		if err := ctx.Err(); err != nil {
			return scoring.Candidate{}, err
		}
		metrics, err := e.policy.ScoreFiles(part.ReferencePath, part.CandidatePath)
		if err != nil {
			excluded = append(excluded, scoring.ExcludedPart{
				PartName: part.PartName,
				StemName: part.StemName,
				Reason:   scoring.ExcludeParseFailure,
				Detail:   err.Error(),
			})
			logging.WarnWithContext(logger, "part could not be parsed", "part_parse_failure",
				logging.String(logging.FieldPart, part.PartName),
				logging.String("stem", part.StemName),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "re-export the part or check the reference MIDI"),
				logging.String(logging.FieldImpact, "part excluded from the candidate aggregate"),
			)
			continue
		}
		scores = append(scores, scoring.PartScore{
			PartName:          part.PartName,
			StemName:          part.StemName,
			ReferenceMIDI:     part.ReferencePath,
			CandidateMusicXML: part.CandidatePath,
			Metrics:           metrics,
		})
		logger.Debug("part scored",
			logging.String(logging.FieldPart, part.PartName),
			logging.Float64("part_score", metrics.PartScore),
			logging.Bool("hard_gate_pass", metrics.HardGatePass),
			logging.Int("time_shift_bins", metrics.TimeShiftBins),
		)
	}

	candidate := scoring.Aggregate(run.ID, run.VariantID(), run.Profile(), scores, excluded)
	logRunScored(logger, candidate)
	return candidate, nil
}

func logRunScored(logger *slog.Logger, c scoring.Candidate) {
	attrs := []logging.Attr{
		logging.Float64("aggregate_score", c.AggregateScore),
		logging.Bool("hard_gate_pass", c.HardGatePass),
		logging.Int("parts_scored", len(c.PartScores)),
		logging.Int("parts_excluded", len(c.ExcludedParts)),
	}
	if c.Reason != "" {
		attrs = append(attrs, logging.String("reason", c.Reason))
	}
	logger.Info("run scored", logging.Args(attrs...)...)
}
