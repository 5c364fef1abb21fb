// Package runs reads the run variant layout written by the transcription
// pipeline and resolves each exported part to its candidate notation and
// reference transcription files.
package runs

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ManifestFile is the run manifest name inside a run directory.
const ManifestFile = "manifest.json"

// StatusExported marks a part whose notation was exported.
const StatusExported = "exported"

// ErrEmptyManifest is returned for a manifest holding no fields.
var ErrEmptyManifest = errors.New("run manifest is empty")

// Assignment maps one separated stem to the instrument part it feeds.
type Assignment struct {
	Stem       string
	Instrument string
}

// Assignments keeps the manifest's stem order, which decides the match when
// two stems name the same instrument.
type Assignments []Assignment

// UnmarshalJSON decodes a JSON object into ordered pairs. Non-string values
// are rendered with their JSON text.
func (a *Assignments) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*a = nil
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("assignments: expected object, got %v", tok)
	}
	var out Assignments
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := keyTok.(string)
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("assignments[%s]: %w", key, err)
		}
		out = append(out, Assignment{Stem: key, Instrument: rawString(raw)})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*a = out
	return nil
}

func rawString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(bytes.TrimSpace(raw))
}

// StemFor returns the first stem assigned to instrument.
func (a Assignments) StemFor(instrument string) (string, bool) {
	for _, entry := range a {
		if strings.TrimSpace(entry.Instrument) == instrument {
			return entry.Stem, true
		}
	}
	return "", false
}

// Options are the pipeline options recorded for a run variant.
type Options struct {
	Profile   string `json:"profile"`
	VariantID string `json:"variant_id"`
}

// Part is one exported notation part.
type Part struct {
	Name   string `json:"name"`
	Status string `json:"status"`
}

// Manifest is the subset of the run manifest the scorer reads.
type Manifest struct {
	RunID       string      `json:"run_id"`
	Options     Options     `json:"options"`
	Assignments Assignments `json:"assignments"`
	Parts       []Part      `json:"parts"`
}

// Run is a loaded run variant directory.
type Run struct {
	ID       string
	Dir      string
	Manifest Manifest
}

// Open loads <runsDir>/<runID>/manifest.json.
func Open(runsDir, runID string) (*Run, error) {
	dir := filepath.Join(runsDir, runID)
	path := filepath.Join(dir, ManifestFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read run manifest: %w", err)
	}
	manifest, err := decodeManifest(data)
	if err != nil {
		return nil, fmt.Errorf("decode run manifest %s: %w", path, err)
	}
	id := strings.TrimSpace(manifest.RunID)
	if id == "" {
		id = filepath.Base(dir)
	}
	return &Run{ID: id, Dir: dir, Manifest: manifest}, nil
}

func decodeManifest(data []byte) (Manifest, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return Manifest{}, err
	}
	if len(fields) == 0 {
		return Manifest{}, ErrEmptyManifest
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return Manifest{}, err
	}
	return m, nil
}

// VariantID returns the recorded variant id, defaulting to the run id.
func (r *Run) VariantID() string {
	if v := strings.TrimSpace(r.Manifest.Options.VariantID); v != "" {
		return v
	}
	return r.ID
}

// Profile returns the recorded pipeline profile.
func (r *Run) Profile() string {
	return strings.TrimSpace(r.Manifest.Options.Profile)
}
