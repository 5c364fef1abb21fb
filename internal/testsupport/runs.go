package testsupport

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"musicality/internal/textutil"
)

// RunPart describes one exported part of a run fixture.
type RunPart struct {
	Name string
	// Status defaults to "exported".
	Status string
	// Stem is the stem assigned to the part; empty leaves it unassigned.
	Stem string
	// Candidate is MusicXML content; empty writes no candidate file.
	Candidate string
	// Reference notes are written as the stem's MIDI file; nil writes none.
	Reference []MIDINote
}

// RunFixture is a run variant directory as the pipeline lays it out.
type RunFixture struct {
	ID        string
	Profile   string
	VariantID string
	Parts     []RunPart
}

// WriteRun writes the fixture under runsDir and returns the run directory.
func WriteRun(t testing.TB, runsDir string, run RunFixture) string {
	t.Helper()

	dir := filepath.Join(runsDir, run.ID)

	var assignments bytes.Buffer
	assignments.WriteByte('{')
	type part struct {
		Name   string `json:"name"`
		Status string `json:"status"`
	}
	parts := make([]part, 0, len(run.Parts))
	first := true
	for _, p := range run.Parts {
		status := p.Status
		if status == "" {
			status = "exported"
		}
		parts = append(parts, part{Name: p.Name, Status: status})

		if p.Stem != "" {
			if !first {
				assignments.WriteByte(',')
			}
			first = false
			writeJSON(t, &assignments, p.Stem)
			assignments.WriteByte(':')
			writeJSON(t, &assignments, textutil.NormalizePartName(p.Name))
		}
		if p.Candidate != "" {
			WriteFile(t, filepath.Join(dir, "part_exports", textutil.SanitizeFileName(p.Name)+".musicxml"), []byte(p.Candidate))
		}
		if p.Reference != nil && p.Stem != "" {
			WriteMIDI(t, filepath.Join(dir, "midi", textutil.SanitizeFileName(p.Stem), "transcription.mid"), p.Reference...)
		}
	}
	assignments.WriteByte('}')

	manifest := map[string]any{
		"run_id": run.ID,
		"options": map[string]any{
			"profile":    run.Profile,
			"variant_id": run.VariantID,
		},
		"assignments": json.RawMessage(assignments.Bytes()),
		"parts":       parts,
	}
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		t.Fatalf("marshal run manifest: %v", err)
	}
	WriteFile(t, filepath.Join(dir, "manifest.json"), data)
	return dir
}

func writeJSON(t testing.TB, buf *bytes.Buffer, value string) {
	t.Helper()
	data, err := json.Marshal(value)
	if err != nil {
		t.Fatalf("marshal %q: %v", value, err)
	}
	buf.Write(data)
}
