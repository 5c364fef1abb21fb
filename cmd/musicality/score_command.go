package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"musicality/internal/scoring"
)

func newScoreCommand() *cobra.Command {
	var referencePath string
	var candidatePath string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:         "score",
		Short:       "Score one candidate part against its reference transcription",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			referencePath = strings.TrimSpace(referencePath)
			candidatePath = strings.TrimSpace(candidatePath)
			if referencePath == "" || candidatePath == "" {
				return errors.New("both --reference and --candidate are required")
			}

			policy := scoring.DefaultPolicy()
			metrics, err := policy.ScoreFiles(referencePath, candidatePath)
			if err != nil {
				return fmt.Errorf("score part: %w", err)
			}

			if jsonOutput {
				return writeJSON(cmd, metrics)
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			fmt.Fprintln(out, scoreTable(metrics, colorize))
			fmt.Fprintf(out, "Policy %s: %s\n", policy.Version, policy.Formula())
			return nil
		},
	}

	cmd.Flags().StringVarP(&referencePath, "reference", "r", "", "Reference MIDI or MusicXML file")
	cmd.Flags().StringVarP(&candidatePath, "candidate", "k", "", "Candidate MusicXML file")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output metrics as JSON")
	return cmd
}

func scoreTable(m scoring.PartMetrics, colorize bool) string {
	return tableSpec{
		headers: []string{"Metric", "Value"},
		aligns:  []columnAlignment{alignLeft, alignRight},
		rows: [][]string{
			{"Onset", formatScore(m.OnsetScore)},
			{"Pitch", formatScore(m.PitchScore)},
			{"Rhythm", formatScore(m.RhythmScore)},
			{"Fragmentation penalty", formatScore(m.FragmentationPenalty)},
			{"Measure integrity", formatScore(m.MeasureIntegrity)},
			{"Chord density", formatScore(m.ChordDensity)},
			{"Time shift (bins)", strconv.Itoa(m.TimeShiftBins)},
			{"Candidate notes", strconv.Itoa(m.CandidateNotes)},
			{"Hard gate", gateLabel(m.HardGatePass, colorize)},
			{"Part score", formatScore(m.PartScore)},
		},
	}.render()
}
