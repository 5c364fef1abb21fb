package rounds

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"musicality/internal/fileutil"
	"musicality/internal/votes"
)

// ErrRoundNotFound is returned when a round directory is absent.
var ErrRoundNotFound = errors.New("round not found")

// Load reads the artifacts of round id under root.
func Load(root, id string) (*Round, error) {
	if err := ValidateID(id); err != nil {
		return nil, err
	}
	dir := filepath.Join(root, id)
	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrRoundNotFound, id)
	}

	r := &Round{ID: id}
	for name, target := range map[string]any{
		ManifestFile: &r.Manifest,
		ScoresFile:   &r.Scores,
		SummaryFile:  &r.Summary,
	} {
		if err := fileutil.ReadJSON(filepath.Join(dir, name), target); err != nil {
			return nil, fmt.Errorf("load round %s: %w", id, err)
		}
	}
	return r, nil
}

// VotesPath is the ledger path of round id under root.
func VotesPath(root, id string) string {
	return filepath.Join(root, id, votes.FileName)
}

// ListIDs returns the ids of complete rounds under root, newest name first.
// Staging directories and directories without a summary are skipped.
func ListIDs(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list rounds: %w", err)
	}
	var ids []string
	for _, entry := range entries {
		if !entry.IsDir() || ValidateID(entry.Name()) != nil {
			continue
		}
		if _, err := os.Stat(filepath.Join(root, entry.Name(), SummaryFile)); err != nil {
			continue
		}
		ids = append(ids, entry.Name())
	}
	sort.Sort(sort.Reverse(sort.StringSlice(ids)))
	return ids, nil
}

// HasCandidate reports whether runID was ranked in the round.
func (r *Round) HasCandidate(runID string) bool {
	for _, c := range r.Scores.Candidates {
		if c.RunID == runID {
			return true
		}
	}
	return false
}
