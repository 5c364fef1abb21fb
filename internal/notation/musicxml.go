package notation

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"golang.org/x/text/encoding/ianaindex"
)

var errNotPartwise = errors.New("timewise MusicXML is not supported")

type xmlPitch struct {
	Step   string  `xml:"step"`
	Alter  float64 `xml:"alter"`
	Octave int     `xml:"octave"`
}

type xmlNote struct {
	Grace     *struct{} `xml:"grace"`
	Chord     *struct{} `xml:"chord"`
	Rest      *struct{} `xml:"rest"`
	Pitch     *xmlPitch `xml:"pitch"`
	Unpitched *struct{} `xml:"unpitched"`
	Duration  string    `xml:"duration"`
}

type xmlTime struct {
	Beats       []string  `xml:"beats"`
	BeatTypes   []string  `xml:"beat-type"`
	SenzaMisura *struct{} `xml:"senza-misura"`
}

type xmlAttributes struct {
	Divisions string    `xml:"divisions"`
	Times     []xmlTime `xml:"time"`
}

type xmlCursorMove struct {
	Duration string `xml:"duration"`
}

// LoadMusicXML decodes an uncompressed partwise MusicXML file. Only the
// first <part> is read.
func LoadMusicXML(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, parseError(path, FormatMusicXML, err)
	}
	defer f.Close()

	doc, err := decodeMusicXML(f)
	if err != nil {
		return nil, parseError(path, FormatMusicXML, err)
	}
	doc.Path = path
	return doc, nil
}

func decodeMusicXML(r io.Reader) (*Document, error) {
	dec := xml.NewDecoder(r)
	dec.CharsetReader = charsetReader

	p := &partReader{divisions: 1, barBeats: DefaultBarBeats}
	doc := &Document{Format: FormatMusicXML}
	seenRoot := false
	seenPart := false

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode xml: %w", err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		if !seenRoot {
			switch start.Name.Local {
			case "score-partwise":
				seenRoot = true
				continue
			case "score-timewise":
				return nil, errNotPartwise
			default:
				return nil, fmt.Errorf("unexpected root element <%s>", start.Name.Local)
			}
		}
		if start.Name.Local != "part" || seenPart {
			if err := dec.Skip(); err != nil {
				return nil, fmt.Errorf("decode xml: %w", err)
			}
			continue
		}
		seenPart = true
		if err := p.readPart(dec, doc); err != nil {
			return nil, err
		}
	}

	if !seenRoot {
		return nil, errors.New("no score-partwise root element")
	}
	doc.Events = NewSequence(p.events)
	return doc, nil
}

func charsetReader(label string, input io.Reader) (io.Reader, error) {
	enc, err := ianaindex.IANA.Encoding(label)
	if err != nil {
		return nil, fmt.Errorf("charset %q: %w", label, err)
	}
	if enc == nil {
		return nil, fmt.Errorf("charset %q: no decoder available", label)
	}
	return enc.NewDecoder().Reader(input), nil
}

// partReader carries the divisions and time signature across measures.
type partReader struct {
	divisions   float64
	barBeats    float64
	offsetBeats float64
	events      []NoteEvent
}

// noteGroup is a note plus any <chord/> notes stacked on it.
type noteGroup struct {
	startBeats    float64
	durationBeats float64
	members       int
	topPitch      int
}

func (p *partReader) readPart(dec *xml.Decoder, doc *Document) error {
	for {
		tok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("decode part: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local != "measure" {
				if err := dec.Skip(); err != nil {
					return fmt.Errorf("decode part: %w", err)
				}
				continue
			}
			if err := p.readMeasure(dec, t, doc); err != nil {
				return err
			}
		case xml.EndElement:
			if t.Name.Local == "part" {
				return nil
			}
		}
	}
}

func (p *partReader) readMeasure(dec *xml.Decoder, start xml.StartElement, doc *Document) error {
	number := attrValue(start, "number")
	var cursor, highest float64
	var group *noteGroup

	flush := func() {
		if group == nil {
			return
		}
		doc.NoteGroups++
		if group.members > 1 {
			doc.ChordGroups++
		}
		if group.topPitch >= 0 {
			if ev, ok := NewEvent(p.offsetBeats+group.startBeats, group.durationBeats, group.topPitch); ok {
				p.events = append(p.events, ev)
			}
		}
		group = nil
	}

	for {
		tok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("decode measure %s: %w", number, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "attributes":
				var attrs xmlAttributes
				if err := dec.DecodeElement(&attrs, &t); err != nil {
					return fmt.Errorf("decode measure %s attributes: %w", number, err)
				}
				if err := p.applyAttributes(attrs); err != nil {
					return fmt.Errorf("measure %s: %w", number, err)
				}
			case "note":
				var n xmlNote
				if err := dec.DecodeElement(&n, &t); err != nil {
					return fmt.Errorf("decode measure %s note: %w", number, err)
				}
				duration, err := p.beats(n.Duration)
				if err != nil {
					return fmt.Errorf("measure %s note duration: %w", number, err)
				}
				if n.Grace != nil {
					duration = 0
				}
				if n.Rest != nil {
					flush()
					cursor += duration
					highest = math.Max(highest, cursor)
					continue
				}
				pitch := -1
				if n.Pitch != nil {
					pitch = n.Pitch.midi()
				}
				if n.Chord != nil && group != nil {
					group.members++
					if pitch > group.topPitch {
						group.topPitch = pitch
					}
					continue
				}
				flush()
				group = &noteGroup{startBeats: cursor, durationBeats: duration, members: 1, topPitch: pitch}
				cursor += duration
				highest = math.Max(highest, cursor)
			case "backup", "forward":
				var move xmlCursorMove
				if err := dec.DecodeElement(&move, &t); err != nil {
					return fmt.Errorf("decode measure %s %s: %w", number, t.Name.Local, err)
				}
				delta, err := p.beats(move.Duration)
				if err != nil {
					return fmt.Errorf("measure %s %s duration: %w", number, t.Name.Local, err)
				}
				flush()
				if t.Name.Local == "backup" {
					cursor = math.Max(0, cursor-delta)
				} else {
					cursor += delta
					highest = math.Max(highest, cursor)
				}
			default:
				if err := dec.Skip(); err != nil {
					return fmt.Errorf("decode measure %s: %w", number, err)
				}
			}
		case xml.EndElement:
			if t.Name.Local != "measure" {
				continue
			}
			flush()
			doc.Measures = append(doc.Measures, Measure{
				Number:        number,
				ActualBeats:   highest,
				ExpectedBeats: p.barBeats,
			})
			p.offsetBeats += highest
			return nil
		}
	}
}

func (p *partReader) applyAttributes(attrs xmlAttributes) error {
	if value := strings.TrimSpace(attrs.Divisions); value != "" {
		divisions, err := strconv.ParseFloat(value, 64)
		if err != nil || divisions <= 0 {
			return fmt.Errorf("invalid divisions %q", value)
		}
		p.divisions = divisions
	}
	if len(attrs.Times) == 0 {
		return nil
	}
	t := attrs.Times[0]
	if t.SenzaMisura != nil || len(t.Beats) == 0 {
		p.barBeats = DefaultBarBeats
		return nil
	}
	var total float64
	for i, beats := range t.Beats {
		if i >= len(t.BeatTypes) {
			return fmt.Errorf("time signature %q has no beat-type", beats)
		}
		count, err := sumBeats(beats)
		if err != nil {
			return err
		}
		beatType, err := strconv.ParseFloat(strings.TrimSpace(t.BeatTypes[i]), 64)
		if err != nil || beatType <= 0 {
			return fmt.Errorf("invalid beat-type %q", t.BeatTypes[i])
		}
		total += count * 4 / beatType
	}
	p.barBeats = total
	return nil
}

func (p *partReader) beats(duration string) (float64, error) {
	value := strings.TrimSpace(duration)
	if value == "" {
		return 0, nil
	}
	raw, err := strconv.ParseFloat(value, 64)
	if err != nil || raw < 0 {
		return 0, fmt.Errorf("invalid duration %q", duration)
	}
	return raw / p.divisions, nil
}

// sumBeats handles composite numerators such as "3+2".
func sumBeats(value string) (float64, error) {
	var total float64
	for _, part := range strings.Split(value, "+") {
		n, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil || n <= 0 {
			return 0, fmt.Errorf("invalid beats %q", value)
		}
		total += n
	}
	return total, nil
}

var stepSemitones = map[string]int{"C": 0, "D": 2, "E": 4, "F": 5, "G": 7, "A": 9, "B": 11}

// midi returns the MIDI number for the pitch, or -1 when it cannot be
// resolved.
func (p xmlPitch) midi() int {
	semitone, ok := stepSemitones[strings.ToUpper(strings.TrimSpace(p.Step))]
	if !ok {
		return -1
	}
	value := (p.Octave+1)*12 + semitone + int(math.Round(p.Alter))
	if value < 0 || value > 127 {
		return -1
	}
	return value
}

func attrValue(start xml.StartElement, name string) string {
	for _, attr := range start.Attr {
		if attr.Name.Local == name {
			return attr.Value
		}
	}
	return ""
}
