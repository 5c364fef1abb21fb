package runs

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"musicality/internal/scoring"
	"musicality/internal/textutil"
)

const (
	partExportsDir = "part_exports"
	midiDir        = "midi"
)

// PartFiles locates the two files scored for one part.
type PartFiles struct {
	PartName      string
	StemName      string
	ReferencePath string
	CandidatePath string
}

// Resolution splits a run's exported parts into those with both files and
// those left out, each in manifest order.
type Resolution struct {
	Parts    []PartFiles
	Excluded []scoring.ExcludedPart
}

// ResolveParts matches every exported part to its candidate MusicXML and the
// reference MIDI of the stem assigned to it. Parts with any other status are
// skipped without a record.
func (r *Run) ResolveParts() Resolution {
	var res Resolution
	for _, part := range r.Manifest.Parts {
		if strings.TrimSpace(part.Status) != StatusExported {
			continue
		}
		candidate := r.CandidatePath(part.Name)
		if !isFile(candidate) {
			res.Excluded = append(res.Excluded, scoring.ExcludedPart{
				PartName: part.Name,
				Reason:   scoring.ExcludeMissingCandidate,
			})
			continue
		}
		stem, ok := r.Manifest.Assignments.StemFor(textutil.NormalizePartName(part.Name))
		if !ok {
			res.Excluded = append(res.Excluded, scoring.ExcludedPart{
				PartName: part.Name,
				Reason:   scoring.ExcludeNoStemAssignment,
			})
			continue
		}
		reference, ok := r.ReferencePath(stem)
		if !ok {
			res.Excluded = append(res.Excluded, scoring.ExcludedPart{
				PartName: part.Name,
				StemName: stem,
				Reason:   scoring.ExcludeMissingReference,
			})
			continue
		}
		res.Parts = append(res.Parts, PartFiles{
			PartName:      part.Name,
			StemName:      stem,
			ReferencePath: reference,
			CandidatePath: candidate,
		})
	}
	return res
}

// CandidatePath is where the run manager exports a part's MusicXML.
func (r *Run) CandidatePath(partName string) string {
	return filepath.Join(r.Dir, partExportsDir, textutil.SanitizeFileName(partName)+".musicxml")
}

// ReferencePath returns the first .mid file in the stem's MIDI directory, or
// the first .midi file when there is none.
func (r *Run) ReferencePath(stem string) (string, bool) {
	if strings.TrimSpace(stem) == "" {
		return "", false
	}
	dir := filepath.Join(r.Dir, midiDir, textutil.SanitizeFileName(stem))
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", false
	}
	for _, ext := range []string{".mid", ".midi"} {
		var names []string
		for _, entry := range entries {
			if !entry.IsDir() && strings.HasSuffix(entry.Name(), ext) {
				names = append(names, entry.Name())
			}
		}
		if len(names) > 0 {
			sort.Strings(names)
			return filepath.Join(dir, names[0]), true
		}
	}
	return "", false
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
