package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"musicality/internal/rounds"
	"musicality/internal/scoring"
	"musicality/internal/votes"
)

func candidateTable(r *rounds.Round, colorize bool) string {
	promoted := make(map[string]struct{}, len(r.Summary.TopCandidates))
	for _, c := range r.Summary.TopCandidates {
		promoted[c.RunID] = struct{}{}
	}
	rows := make([][]string, 0, len(r.Scores.Candidates))
	for _, c := range r.Scores.Candidates {
		_, isPromoted := promoted[c.RunID]
		rows = append(rows, []string{
			strconv.Itoa(c.Rank),
			c.RunID,
			c.Profile,
			gateLabel(c.HardGatePass, colorize),
			formatScore(c.AggregateScore),
			partCounts(c),
			yesNo(isPromoted),
			c.Reason,
		})
	}
	return tableSpec{
		title:   "Round " + r.ID,
		headers: []string{"Rank", "Run", "Profile", "Gate", "Score", "Parts", "Review", "Reason"},
		aligns: []columnAlignment{
			alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft, alignLeft,
		},
		rows: rows,
	}.render()
}

// partCounts renders scored/total parts.
func partCounts(c scoring.Candidate) string {
	return fmt.Sprintf("%d/%d", len(c.PartScores), len(c.PartScores)+len(c.ExcludedParts))
}

func tallyTable(tallies []votes.Tally) string {
	rows := make([][]string, 0, len(tallies))
	for _, t := range tallies {
		rows = append(rows, []string{
			t.RunID,
			strconv.Itoa(t.Wins),
			strconv.Itoa(t.Losses),
			strconv.Itoa(t.Ties),
		})
	}
	return tableSpec{
		title:   "Review votes",
		headers: []string{"Run", "Wins", "Losses", "Ties"},
		aligns:  []columnAlignment{alignLeft, alignRight, alignRight, alignRight},
		rows:    rows,
	}.render()
}

func printRoundSummary(out io.Writer, r *rounds.Round, colorize bool) {
	fmt.Fprintln(out, candidateTable(r, colorize))
	fmt.Fprintf(out, "Winner: %s (%s)\n", r.Summary.Winner.RunID, formatScore(r.Summary.Winner.AggregateScore))
	fmt.Fprintf(out, "Hard gate passed: %d of %d\n", r.Summary.HardGatePassCount, r.Summary.CandidateCount)
	if len(r.Manifest.MissingDetails) > 0 {
		missing := make([]string, 0, len(r.Manifest.MissingDetails))
		for _, m := range r.Manifest.MissingDetails {
			missing = append(missing, fmt.Sprintf("%s (%s)", m.RunID, m.Reason))
		}
		fmt.Fprintf(out, "Missing runs: %s\n", strings.Join(missing, ", "))
	}
}
