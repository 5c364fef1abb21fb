package notation

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Load decodes the symbolic source at path, choosing the decoder from the
// file extension.
func Load(path string) (*Document, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mid", ".midi":
		return LoadMIDI(path)
	case ".musicxml", ".xml":
		return LoadMusicXML(path)
	case ".mxl":
		return LoadCompressedMusicXML(path)
	default:
		return nil, parseError(path, "unknown", fmt.Errorf("%w %q", ErrUnsupportedFormat, filepath.Ext(path)))
	}
}

// LoadSequence is a convenience wrapper returning only the event sequence.
func LoadSequence(path string) (Sequence, error) {
	doc, err := Load(path)
	if err != nil {
		return nil, err
	}
	return doc.Events, nil
}
