// Package notation turns symbolic music files into ordered note-event
// sequences.
//
// Reference transcriptions arrive as Standard MIDI Files and candidate parts
// as MusicXML (plain or compressed .mxl). Load reads either format into a
// Document: the melodic Sequence used for similarity scoring plus the notated
// measure and note-group facts used for integrity checks. Chords collapse to
// their highest pitch, rests and unpitched notes produce no events, and every
// duration is clamped to MinDurationBeats.
//
// A file that cannot be read or decoded yields a *ParseError wrapping
// ErrParse so callers can exclude the owning part instead of zero-filling it.
package notation
