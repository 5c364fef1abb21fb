// Package votes maintains the per-round A/B vote ledger: a CSV file with one
// row per human judgment between two candidates.
package votes

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/gofrs/flock"
)

// FileName is the ledger name inside a round directory.
const FileName = "ab_votes.csv"

// TimestampLayout matches the timestamps written by the review tooling.
const TimestampLayout = "2006-01-02T15:04:05"

// Columns is the ledger header.
var Columns = []string{"round_id", "timestamp", "reviewer_id", "candidate_a", "candidate_b", "winner", "confidence", "notes"}

// ErrInvalidVote is returned for votes that fail validation.
var ErrInvalidVote = errors.New("invalid vote")

// Winner is the outcome of one comparison.
type Winner string

const (
	WinnerA   Winner = "A"
	WinnerB   Winner = "B"
	WinnerTie Winner = "Tie"
)

// ParseWinner accepts A, B or Tie in any case.
func ParseWinner(value string) (Winner, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "a":
		return WinnerA, nil
	case "b":
		return WinnerB, nil
	case "tie":
		return WinnerTie, nil
	default:
		return "", fmt.Errorf("%w: winner must be A, B or Tie, got %q", ErrInvalidVote, value)
	}
}

// Confidence is the reviewer's certainty.
type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// ParseConfidence accepts low, medium or high; empty means medium.
func ParseConfidence(value string) (Confidence, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "low":
		return ConfidenceLow, nil
	case "", "medium":
		return ConfidenceMedium, nil
	case "high":
		return ConfidenceHigh, nil
	default:
		return "", fmt.Errorf("%w: confidence must be low, medium or high, got %q", ErrInvalidVote, value)
	}
}

// Vote is one ledger row.
type Vote struct {
	RoundID    string
	Timestamp  time.Time
	ReviewerID string
	CandidateA string
	CandidateB string
	Winner     Winner
	Confidence Confidence
	Notes      string
}

// Validate checks the fields a reviewer supplies.
func (v Vote) Validate() error {
	switch {
	case strings.TrimSpace(v.RoundID) == "":
		return fmt.Errorf("%w: round id is required", ErrInvalidVote)
	case strings.TrimSpace(v.ReviewerID) == "":
		return fmt.Errorf("%w: reviewer id is required", ErrInvalidVote)
	case strings.TrimSpace(v.CandidateA) == "" || strings.TrimSpace(v.CandidateB) == "":
		return fmt.Errorf("%w: both candidates are required", ErrInvalidVote)
	case v.CandidateA == v.CandidateB:
		return fmt.Errorf("%w: candidates must differ", ErrInvalidVote)
	}
	if _, err := ParseWinner(string(v.Winner)); err != nil {
		return err
	}
	if _, err := ParseConfidence(string(v.Confidence)); err != nil {
		return err
	}
	return nil
}

func (v Vote) record() []string {
	return []string{
		v.RoundID,
		v.Timestamp.Format(TimestampLayout),
		strings.TrimSpace(v.ReviewerID),
		v.CandidateA,
		v.CandidateB,
		string(v.Winner),
		string(v.Confidence),
		v.Notes,
	}
}

// InitLedger creates the ledger with only its header when it does not exist.
func InitLedger(path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if errors.Is(err, fs.ErrExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("create vote ledger: %w", err)
	}
	w := csv.NewWriter(f)
	if err := w.Write(Columns); err != nil {
		_ = f.Close()
		return fmt.Errorf("write vote ledger header: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		_ = f.Close()
		return fmt.Errorf("write vote ledger header: %w", err)
	}
	return f.Close()
}

// Append validates v and adds it to the ledger at path, holding an exclusive
// lock on a sibling lock file while writing. Winner and confidence are
// stored in canonical form and a zero timestamp becomes the current time.
func Append(ctx context.Context, path string, v Vote) error {
	if err := v.Validate(); err != nil {
		return err
	}
	v.Winner, _ = ParseWinner(string(v.Winner))
	v.Confidence, _ = ParseConfidence(string(v.Confidence))
	if v.Timestamp.IsZero() {
		v.Timestamp = time.Now()
	}

	lock := flock.New(path + ".lock")
	locked, err := lock.TryLockContext(ctx, 50*time.Millisecond)
	if err != nil {
		return fmt.Errorf("lock vote ledger: %w", err)
	}
	if !locked {
		return errors.New("lock vote ledger: not acquired")
	}
	defer func() {
		_ = lock.Unlock()
	}()

	if err := InitLedger(path); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open vote ledger: %w", err)
	}
	w := csv.NewWriter(f)
	if err := w.Write(v.record()); err != nil {
		_ = f.Close()
		return fmt.Errorf("append vote: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		_ = f.Close()
		return fmt.Errorf("append vote: %w", err)
	}
	return f.Close()
}

// Read returns every vote in the ledger. A missing ledger holds no votes.
// Columns are matched by header name so reordered ledgers still read.
func Read(path string) ([]Vote, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open vote ledger: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read vote ledger header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(name)] = i
	}
	field := func(row []string, name string) string {
		if i, ok := index[name]; ok && i < len(row) {
			return row[i]
		}
		return ""
	}

	var out []Vote
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read vote ledger: %w", err)
		}
		ts, _ := time.ParseInLocation(TimestampLayout, field(row, "timestamp"), time.Local)
		out = append(out, Vote{
			RoundID:    field(row, "round_id"),
			Timestamp:  ts,
			ReviewerID: field(row, "reviewer_id"),
			CandidateA: field(row, "candidate_a"),
			CandidateB: field(row, "candidate_b"),
			Winner:     Winner(field(row, "winner")),
			Confidence: Confidence(field(row, "confidence")),
			Notes:      field(row, "notes"),
		})
	}
	return out, nil
}

// Tally is one candidate's vote record.
type Tally struct {
	RunID  string `json:"run_id"`
	Wins   int    `json:"wins"`
	Losses int    `json:"losses"`
	Ties   int    `json:"ties"`
}

// Votes is the number of comparisons the candidate took part in.
func (t Tally) Votes() int { return t.Wins + t.Losses + t.Ties }

// TallyVotes counts wins, losses and ties per candidate, ordered by wins
// descending, then losses ascending, then run id.
func TallyVotes(votes []Vote) []Tally {
	byRun := map[string]*Tally{}
	get := func(id string) *Tally {
		t, ok := byRun[id]
		if !ok {
			t = &Tally{RunID: id}
			byRun[id] = t
		}
		return t
	}
	for _, v := range votes {
		a, b := get(v.CandidateA), get(v.CandidateB)
		switch Winner(strings.TrimSpace(string(v.Winner))) {
		case WinnerA:
			a.Wins++
			b.Losses++
		case WinnerB:
			b.Wins++
			a.Losses++
		default:
			a.Ties++
			b.Ties++
		}
	}
	out := make([]Tally, 0, len(byRun))
	for _, t := range byRun {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Wins != out[j].Wins {
			return out[i].Wins > out[j].Wins
		}
		if out[i].Losses != out[j].Losses {
			return out[i].Losses < out[j].Losses
		}
		return out[i].RunID < out[j].RunID
	})
	return out
}
