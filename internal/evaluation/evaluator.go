package evaluation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"musicality/internal/config"
	"musicality/internal/history"
	"musicality/internal/logging"
	"musicality/internal/rounds"
	"musicality/internal/scoring"
)

// Evaluator runs batch evaluations.
type Evaluator struct {
	cfg     *config.Config
	base    *slog.Logger
	logger  *slog.Logger
	policy  scoring.Policy
	history *history.Store
	now     func() time.Time
}

// Option configures optional Evaluator behavior.
type Option func(*Evaluator)

// WithPolicy replaces the scoring policy.
func WithPolicy(p scoring.Policy) Option {
	return func(e *Evaluator) { e.policy = p }
}

// WithHistory indexes every published round in store.
func WithHistory(store *history.Store) Option {
	return func(e *Evaluator) { e.history = store }
}

// WithClock overrides the time source used for round ids and timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Evaluator) { e.now = now }
}

// New constructs an Evaluator using the default scoring policy.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) *Evaluator {
	if logger == nil {
		logger = logging.NewNop()
	}
	e := &Evaluator{
		cfg:    cfg,
		base:   logger,
		logger: logging.NewComponentLogger(logger, "evaluation"),
		policy: scoring.DefaultPolicy(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Policy returns the scoring policy in use.
func (e *Evaluator) Policy() scoring.Policy {
	return e.policy
}

// Result is a published round.
type Result struct {
	Round *rounds.Round
	Dir   string
}

type slot struct {
	candidate *scoring.Candidate
	missing   *MissingError
}

// Evaluate scores every requested run and publishes the round. Runs that
// cannot be loaded, or that are still pending when the timeout fires, are
// listed as missing. Nothing is written when no candidate was produced.
func (e *Evaluator) Evaluate(ctx context.Context, req Request) (*Result, error) {
	if req.RunsDir == "" && e.cfg != nil {
		req.RunsDir = e.cfg.Paths.RunsDir
	}
	if req.RoundsDir == "" && e.cfg != nil {
		req.RoundsDir = e.cfg.Paths.RoundsDir
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	createdAt := e.now()
	roundID := req.RoundID
	if roundID == "" {
		roundID = rounds.DefaultID(createdAt)
	}
	invocationID := uuid.NewString()
	ctx = logging.WithInvocationID(ctx, invocationID)
	ctx = logging.WithRoundID(ctx, roundID)
	logger := logging.WithContext(ctx, e.logger)

	writer := rounds.NewWriter(req.RoundsDir, logging.WithContext(ctx, e.base))
	if _, err := os.Stat(writer.Dir(roundID)); err == nil {
		return nil, fmt.Errorf("%w: %s", rounds.ErrRoundExists, writer.Dir(roundID))
	}

	runIDs := req.runIDs()
	logger.Info("evaluation started",
		logging.Int("runs_requested", len(runIDs)),
		logging.Int("workers", req.Workers),
		logging.Duration("timeout", req.Timeout),
		logging.String("policy_version", e.policy.Version),
	)

	start := time.Now()
	slots, err := e.scoreRuns(ctx, req, runIDs)
	if err != nil {
		return nil, err
	}

	var candidates []scoring.Candidate
	var missing []rounds.MissingRun
	for _, s := range slots {
		switch {
		case s.candidate != nil:
			candidates = append(candidates, *s.candidate)
		case s.missing != nil:
			missing = append(missing, s.missing.record())
			logging.WarnWithContext(logger, "run missing from round", "run_missing",
				logging.String(logging.FieldRunID, s.missing.RunID),
				logging.String("reason", s.missing.Reason),
				logging.Error(s.missing.Err),
				logging.String(logging.FieldErrorHint, "check the run id and its manifest.json under the runs directory"),
				logging.String(logging.FieldImpact, "run listed in runs_missing and not ranked"),
			)
		}
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: %d runs requested, %d missing", ErrNoCandidates, len(runIDs), len(missing))
	}

	round, err := rounds.Build(rounds.Input{
		RoundID:      roundID,
		InvocationID: invocationID,
		CreatedAt:    createdAt,
		Requested:    runIDs,
		Missing:      missing,
		Candidates:   candidates,
		TopN:         req.TopN,
		Policy:       e.policy,
	})
	if err != nil {
		return nil, err
	}

	// Publishing must survive the scoring deadline.
	publishCtx := context.WithoutCancel(ctx)
	dir, err := writer.Write(publishCtx, round)
	if err != nil {
		return nil, err
	}

	if e.history != nil {
		if err := e.history.RecordRound(publishCtx, historyRecord(round, dir, e.now())); err != nil {
			logging.WarnWithContext(logger, "round not indexed", "history_record_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "run musicality doctor to check the history database"),
				logging.String(logging.FieldImpact, "round written but absent from round list"),
			)
		}
	}

	logger.Info("evaluation complete",
		logging.String("round_dir", dir),
		logging.Int("candidate_count", len(candidates)),
		logging.Int("runs_missing", len(missing)),
		logging.Int("hard_gate_pass_count", round.Summary.HardGatePassCount),
		logging.String("winner", round.Summary.Winner.RunID),
		logging.Duration("elapsed", time.Since(start)),
	)
	return &Result{Round: round, Dir: dir}, nil
}

// scoreRuns evaluates runs on a pool of req.Workers goroutines, keeping each
// result in its input slot.
func (e *Evaluator) scoreRuns(ctx context.Context, req Request, runIDs []string) ([]slot, error) {
	scoreCtx := ctx
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		scoreCtx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	slots := make([]slot, len(runIDs))
	sem := make(chan struct{}, req.Workers)
	var wg sync.WaitGroup

	for i, id := range runIDs {
		select {
		case sem <- struct{}{}:
		case <-scoreCtx.Done():
		}
		if scoreCtx.Err() != nil {
			break
		}
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			defer func() { <-sem }()
			candidate, err := e.EvaluateRun(scoreCtx, req.RunsDir, id)
			var missing *MissingError
			switch {
			case err == nil:
				slots[i].candidate = &candidate
			case errors.As(err, &missing):
				slots[i].missing = missing
			default:
				slots[i].missing = &MissingError{RunID: id, Reason: MissingDeadlineExceeded, Err: err}
			}
		}(i, id)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for i, id := range runIDs {
		if slots[i].candidate == nil && slots[i].missing == nil {
			slots[i].missing = &MissingError{RunID: id, Reason: MissingDeadlineExceeded, Err: scoreCtx.Err()}
		}
	}
	return slots, nil
}

func historyRecord(r *rounds.Round, dir string, recordedAt time.Time) history.Round {
	promoted := make(map[string]struct{}, len(r.Summary.TopCandidates))
	for _, c := range r.Summary.TopCandidates {
		promoted[c.RunID] = struct{}{}
	}
	entries := make([]history.Entry, 0, len(r.Scores.Candidates))
	for _, c := range r.Scores.Candidates {
		_, isPromoted := promoted[c.RunID]
		entries = append(entries, history.Entry{
			RoundID:        r.ID,
			Rank:           c.Rank,
			RunID:          c.RunID,
			VariantID:      c.VariantID,
			Profile:        c.Profile,
			HardGatePass:   c.HardGatePass,
			AggregateScore: c.AggregateScore,
			Promoted:       isPromoted,
			Reason:         c.Reason,
		})
	}
	return history.Round{
		ID:                r.ID,
		CreatedAt:         r.Manifest.CreatedAt,
		RecordedAt:        recordedAt,
		InvocationID:      r.Manifest.InvocationID,
		Dir:               dir,
		PolicyVersion:     r.Manifest.PolicyVersion,
		CandidateCount:    r.Summary.CandidateCount,
		HardGatePassCount: r.Summary.HardGatePassCount,
		RunsMissing:       len(r.Manifest.RunsMissing),
		WinnerRunID:       r.Summary.Winner.RunID,
		Entries:           entries,
	}
}
