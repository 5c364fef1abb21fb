package testsupport

import (
	"fmt"
	"math"
	"strings"
	"testing"
)

// Rest is the Note pitch that writes a rest.
const Rest = -1

// Divisions is the MusicXML divisions-per-quarter used by fixtures.
const Divisions = 48

// Note is one fixture note. Chord lists extra pitches sounding with Pitch.
type Note struct {
	Pitch int
	Beats float64
	Chord []int
}

// N is shorthand for a single-pitch Note.
func N(pitch int, beats float64) Note {
	return Note{Pitch: pitch, Beats: beats}
}

var sharpSteps = [12]struct {
	step  string
	alter int
}{
	{"C", 0}, {"C", 1}, {"D", 0}, {"D", 1}, {"E", 0}, {"F", 0},
	{"F", 1}, {"G", 0}, {"G", 1}, {"A", 0}, {"A", 1}, {"B", 0},
}

// MusicXML renders a single-part partwise score in the given time signature.
func MusicXML(beats, beatType int, measures ...[]Note) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	b.WriteString(`<score-partwise version="4.0">` + "\n")
	b.WriteString(`  <part-list><score-part id="P1"><part-name>Fixture</part-name></score-part></part-list>` + "\n")
	b.WriteString(`  <part id="P1">` + "\n")
	for i, notes := range measures {
		fmt.Fprintf(&b, "    <measure number=\"%d\">\n", i+1)
		if i == 0 {
			fmt.Fprintf(&b, "      <attributes><divisions>%d</divisions><time><beats>%d</beats><beat-type>%d</beat-type></time></attributes>\n", Divisions, beats, beatType)
		}
		for _, n := range notes {
			writeNote(&b, n.Pitch, n.Beats, false)
			for _, extra := range n.Chord {
				writeNote(&b, extra, n.Beats, true)
			}
		}
		b.WriteString("    </measure>\n")
	}
	b.WriteString("  </part>\n</score-partwise>\n")
	return b.String()
}

func writeNote(b *strings.Builder, pitch int, beats float64, chord bool) {
	b.WriteString("      <note>")
	if chord {
		b.WriteString("<chord/>")
	}
	if pitch == Rest {
		b.WriteString("<rest/>")
	} else {
		s := sharpSteps[pitch%12]
		fmt.Fprintf(b, "<pitch><step>%s</step>", s.step)
		if s.alter != 0 {
			fmt.Fprintf(b, "<alter>%d</alter>", s.alter)
		}
		fmt.Fprintf(b, "<octave>%d</octave></pitch>", pitch/12-1)
	}
	fmt.Fprintf(b, "<duration>%d</duration></note>\n", int(math.Round(beats*Divisions)))
}

// WriteMusicXML writes a MusicXML fixture to path.
func WriteMusicXML(t testing.TB, path string, beats, beatType int, measures ...[]Note) {
	t.Helper()
	WriteFile(t, path, []byte(MusicXML(beats, beatType, measures...)))
}
