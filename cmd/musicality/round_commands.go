package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"musicality/internal/history"
	"musicality/internal/rounds"
	"musicality/internal/votes"
)

func newRoundCommand(ctx *commandContext) *cobra.Command {
	roundCmd := &cobra.Command{
		Use:   "round",
		Short: "Inspect written rounds",
	}
	roundCmd.AddCommand(newRoundShowCommand(ctx))
	roundCmd.AddCommand(newRoundListCommand(ctx))
	return roundCmd
}

type roundShowOutput struct {
	Manifest rounds.Manifest   `json:"manifest"`
	Scores   rounds.AutoScores `json:"scores"`
	Summary  rounds.Summary    `json:"summary"`
	Votes    []votes.Tally     `json:"votes"`
}

func newRoundShowCommand(ctx *commandContext) *cobra.Command {
	var roundsDir string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show <round-id>",
		Short: "Show a round's ranked candidates and review votes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			root := cfg.Paths.RoundsDir
			if strings.TrimSpace(roundsDir) != "" {
				root = strings.TrimSpace(roundsDir)
			}

			r, err := rounds.Load(root, strings.TrimSpace(args[0]))
			if err != nil {
				return err
			}
			ledger, err := votes.Read(rounds.VotesPath(root, r.ID))
			if err != nil {
				return err
			}
			tallies := votes.TallyVotes(ledger)

			if jsonOutput {
				return writeJSON(cmd, roundShowOutput{
					Manifest: r.Manifest,
					Scores:   r.Scores,
					Summary:  r.Summary,
					Votes:    tallies,
				})
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			fmt.Fprintf(out, "Created %s (policy %s)\n", r.Manifest.CreatedAt, r.Manifest.PolicyVersion)
			printRoundSummary(out, r, colorize)
			if len(tallies) == 0 {
				fmt.Fprintln(out, "No review votes recorded")
				return nil
			}
			fmt.Fprintln(out, tallyTable(tallies))
			return nil
		},
	}

	cmd.Flags().StringVar(&roundsDir, "rounds-dir", "", "Directory rounds are read from (default from config)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output the round as JSON")
	return cmd
}

type roundListEntry struct {
	RoundID           string `json:"round_id"`
	CreatedAt         string `json:"created_at"`
	CandidateCount    int    `json:"candidate_count"`
	HardGatePassCount int    `json:"hard_gate_pass_count"`
	RunsMissing       int    `json:"runs_missing"`
	Winner            string `json:"winner"`
	PolicyVersion     string `json:"policy_version"`
}

func newRoundListCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List written rounds, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := listRounds(cmd, ctx, limit)
			if err != nil {
				return err
			}
			if jsonOutput {
				if entries == nil {
					entries = []roundListEntry{}
				}
				return writeJSON(cmd, entries)
			}

			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "No rounds recorded")
				return nil
			}
			rows := make([][]string, 0, len(entries))
			for _, e := range entries {
				rows = append(rows, []string{
					e.RoundID,
					e.CreatedAt,
					strconv.Itoa(e.CandidateCount),
					strconv.Itoa(e.HardGatePassCount),
					strconv.Itoa(e.RunsMissing),
					e.Winner,
					e.PolicyVersion,
				})
			}
			fmt.Fprintln(out, tableSpec{
				headers: []string{"Round", "Created", "Candidates", "Gate pass", "Missing", "Winner", "Policy"},
				aligns: []columnAlignment{
					alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft, alignLeft,
				},
				rows: rows,
			}.render())
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum rounds to list (0 for all)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output rounds as JSON")
	return cmd
}

// listRounds reads the history index, or scans the rounds directory when
// the index is disabled.
func listRounds(cmd *cobra.Command, ctx *commandContext, limit int) ([]roundListEntry, error) {
	if limit < 0 {
		return nil, errors.New("--limit must not be negative")
	}
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return nil, err
	}
	store, err := ctx.openHistory()
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}
	if store != nil {
		defer store.Close()
		recorded, err := store.ListRounds(cmd.Context(), limit)
		if err != nil {
			return nil, err
		}
		entries := make([]roundListEntry, 0, len(recorded))
		for _, r := range recorded {
			entries = append(entries, listEntryFromHistory(r))
		}
		return entries, nil
	}

	ids, err := rounds.ListIDs(cfg.Paths.RoundsDir)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	entries := make([]roundListEntry, 0, len(ids))
	for _, id := range ids {
		r, err := rounds.Load(cfg.Paths.RoundsDir, id)
		if err != nil {
			return nil, err
		}
		entries = append(entries, roundListEntry{
			RoundID:           r.ID,
			CreatedAt:         r.Manifest.CreatedAt,
			CandidateCount:    r.Summary.CandidateCount,
			HardGatePassCount: r.Summary.HardGatePassCount,
			RunsMissing:       len(r.Manifest.RunsMissing),
			Winner:            r.Summary.Winner.RunID,
			PolicyVersion:     r.Manifest.PolicyVersion,
		})
	}
	return entries, nil
}

func listEntryFromHistory(r history.Round) roundListEntry {
	return roundListEntry{
		RoundID:           r.ID,
		CreatedAt:         r.CreatedAt,
		CandidateCount:    r.CandidateCount,
		HardGatePassCount: r.HardGatePassCount,
		RunsMissing:       r.RunsMissing,
		Winner:            r.WinnerRunID,
		PolicyVersion:     r.PolicyVersion,
	}
}
