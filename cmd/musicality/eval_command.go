package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"musicality/internal/evaluation"
	"musicality/internal/logging"
	"musicality/internal/preflight"
	"musicality/internal/rounds"
)

type evalOutput struct {
	RoundID           string              `json:"round_id"`
	RoundDir          string              `json:"round_dir"`
	Winner            string              `json:"winner"`
	CandidateCount    int                 `json:"candidate_count"`
	HardGatePassCount int                 `json:"hard_gate_pass_count"`
	TopCandidates     []string            `json:"top_candidates"`
	RunsMissing       []rounds.MissingRun `json:"runs_missing"`
}

func newEvalCommand(ctx *commandContext) *cobra.Command {
	var runIDs []string
	var runsDir string
	var outRoot string
	var roundID string
	var topN int
	var workers int
	var timeout time.Duration
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "eval [run-id...]",
		Short: "Score run variants and write a ranked round",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}

			ids := append(append([]string{}, runIDs...), args...)
			req := evaluation.NewRequest(cfg, ids)
			flags := cmd.Flags()
			if flags.Changed("runs-dir") {
				req.RunsDir = strings.TrimSpace(runsDir)
			}
			if flags.Changed("out-root") {
				req.RoundsDir = strings.TrimSpace(outRoot)
			}
			if flags.Changed("top-n") {
				req.TopN = topN
			}
			if flags.Changed("workers") {
				req.Workers = workers
			}
			if flags.Changed("timeout") {
				req.Timeout = timeout
			}
			req.RoundID = strings.TrimSpace(roundID)
			if err := req.Validate(); err != nil {
				return err
			}

			checkCfg := *cfg
			checkCfg.Paths.RunsDir = req.RunsDir
			checkCfg.Paths.RoundsDir = req.RoundsDir
			checkCfg.History.Enabled = false
			if err := os.MkdirAll(req.RoundsDir, 0o755); err != nil {
				return fmt.Errorf("create rounds directory: %w", err)
			}
			if err := requirePreflight(preflight.RunAll(cmd.Context(), &checkCfg)); err != nil {
				return err
			}

			opts := []evaluation.Option{}
			store, err := ctx.openHistory()
			if err != nil {
				logging.WarnWithContext(logger, "history unavailable", "history_open_failed",
					logging.Error(err),
					logging.String(logging.FieldErrorHint, "run musicality doctor"),
					logging.String(logging.FieldImpact, "round will not appear in round list"),
				)
			} else if store != nil {
				defer store.Close()
				opts = append(opts, evaluation.WithHistory(store))
			}

			res, err := evaluation.New(cfg, logger, opts...).Evaluate(cmd.Context(), req)
			if err != nil {
				return err
			}

			if jsonOutput {
				return writeJSON(cmd, newEvalOutput(res))
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Round %s written to %s\n", res.Round.ID, res.Dir)
			printRoundSummary(out, res.Round, shouldColorize(out))
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&runIDs, "run-id", nil, "Run variant to score (repeatable or comma separated)")
	cmd.Flags().StringVar(&runsDir, "runs-dir", "", "Directory holding run variants (default from config)")
	cmd.Flags().StringVar(&outRoot, "out-root", "", "Directory rounds are written to (default from config)")
	cmd.Flags().StringVar(&roundID, "round-id", "", "Round id (default musicality_YYYYMMDD_HHMMSS)")
	cmd.Flags().IntVar(&topN, "top-n", 0, "Candidates promoted to review (default from config)")
	cmd.Flags().IntVar(&workers, "workers", 0, "Run variants scored concurrently (default from config)")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Abandon unfinished runs after this long (default from config)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output the round summary as JSON")
	return cmd
}

// requirePreflight joins every failed check into one error.
func requirePreflight(results []preflight.Result) error {
	var failed []string
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, fmt.Sprintf("%s: %s", r.Name, r.Detail))
		}
	}
	if len(failed) == 0 {
		return nil
	}
	return errors.New("preflight failed: " + strings.Join(failed, "; "))
}

func newEvalOutput(res *evaluation.Result) evalOutput {
	top := make([]string, 0, len(res.Round.Summary.TopCandidates))
	for _, c := range res.Round.Summary.TopCandidates {
		top = append(top, c.RunID)
	}
	missing := res.Round.Manifest.MissingDetails
	if missing == nil {
		missing = []rounds.MissingRun{}
	}
	return evalOutput{
		RoundID:           res.Round.ID,
		RoundDir:          res.Dir,
		Winner:            res.Round.Summary.Winner.RunID,
		CandidateCount:    res.Round.Summary.CandidateCount,
		HardGatePassCount: res.Round.Summary.HardGatePassCount,
		TopCandidates:     top,
		RunsMissing:       missing,
	}
}
