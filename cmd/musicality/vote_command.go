package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"musicality/internal/rounds"
	"musicality/internal/votes"
)

func newVoteCommand(ctx *commandContext) *cobra.Command {
	var roundID string
	var reviewer string
	var candidateA string
	var candidateB string
	var winner string
	var confidence string
	var notes string
	var roundsDir string

	cmd := &cobra.Command{
		Use:   "vote",
		Short: "Record a reviewer's A/B preference between two candidates of a round",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			root := cfg.Paths.RoundsDir
			if strings.TrimSpace(roundsDir) != "" {
				root = strings.TrimSpace(roundsDir)
			}

			r, err := rounds.Load(root, strings.TrimSpace(roundID))
			if err != nil {
				return err
			}
			a, b := strings.TrimSpace(candidateA), strings.TrimSpace(candidateB)
			for _, id := range []string{a, b} {
				if id != "" && !r.HasCandidate(id) {
					return fmt.Errorf("%w: %s is not a candidate of round %s", votes.ErrInvalidVote, id, r.ID)
				}
			}

			v := votes.Vote{
				RoundID:    r.ID,
				ReviewerID: reviewer,
				CandidateA: a,
				CandidateB: b,
				Winner:     votes.Winner(winner),
				Confidence: votes.Confidence(confidence),
				Notes:      notes,
			}
			path := rounds.VotesPath(root, r.ID)
			if err := votes.Append(cmd.Context(), path, v); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Recorded vote in %s\n", path)
			return nil
		},
	}

	cmd.Flags().StringVar(&roundID, "round", "", "Round id")
	cmd.Flags().StringVar(&reviewer, "reviewer", "", "Reviewer id")
	cmd.Flags().StringVar(&candidateA, "a", "", "Run id of candidate A")
	cmd.Flags().StringVar(&candidateB, "b", "", "Run id of candidate B")
	cmd.Flags().StringVar(&winner, "winner", "", "Preferred candidate: A, B or Tie")
	cmd.Flags().StringVar(&confidence, "confidence", "medium", "Reviewer confidence: low, medium or high")
	cmd.Flags().StringVar(&notes, "notes", "", "Free-form notes")
	cmd.Flags().StringVar(&roundsDir, "rounds-dir", "", "Directory rounds are read from (default from config)")
	_ = cmd.MarkFlagRequired("round")
	_ = cmd.MarkFlagRequired("winner")
	return cmd
}
