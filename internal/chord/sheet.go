package chord

import (
	"fmt"
	"regexp"
	"strings"
)

// LineKind classifies a rendered lyrics line
type LineKind int

const (
	LyricLine LineKind = iota
	ChordLine
	LineBreak
)

// String returns the kind name used in JSON responses
func (k LineKind) String() string {
	switch k {
	case ChordLine:
		return "chords"
	case LineBreak:
		return "break"
	default:
		return "lyrics"
	}
}

// MarshalText implements encoding.TextMarshaler
func (k LineKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (k *LineKind) UnmarshalText(text []byte) error {
	switch string(text) {
	case "lyrics":
		*k = LyricLine
	case "chords":
		*k = ChordLine
	case "break":
		*k = LineBreak
	default:
		return fmt.Errorf("chord: unknown line kind %q", text)
	}
	return nil
}

// Segment is a run of text or a single chord inside a line
type Segment struct {
	Text    string `json:"text"`
	IsChord bool   `json:"chord,omitempty"`
}

// Line is one rendered lyrics line
type Line struct {
	Kind     LineKind  `json:"kind"`
	Segments []Segment `json:"segments,omitempty"`
}

// Text joins the line back into plain text, chords in brackets
func (l Line) Text() string {
	var b strings.Builder
	for _, s := range l.Segments {
		if s.IsChord {
			b.WriteString("[" + s.Text + "]")
		} else {
			b.WriteString(s.Text)
		}
	}
	return b.String()
}

var (
	bracketPattern = regexp.MustCompile(`\[[^\]]+\]`)
	tokenPattern   = regexp.MustCompile(`^[A-G][#b]?(m|dim|aug|sus|Maj|min|\+)?(/[A-G][#b]?)?$`)
)

// IsChordToken reports whether tok is a plain chord name such as "Am",
// "F#dim" or "G/B". Extensions like "m7" are not matched.
func IsChordToken(tok string) bool {
	return tokenPattern.MatchString(tok)
}

// RenderSheet splits lyrics into lines and transposes every bracketed chord
// by semitones. Blank lines become LineBreak, lines with at least one
// bracket become ChordLine, everything else is a LyricLine.
func RenderSheet(lyrics string, semitones int, policy SpellingPolicy) []Line {
	lyrics = strings.ReplaceAll(lyrics, "\r\n", "\n")
	rawLines := strings.Split(lyrics, "\n")
	lines := make([]Line, 0, len(rawLines))

	for _, raw := range rawLines {
		if strings.TrimSpace(raw) == "" {
			lines = append(lines, Line{Kind: LineBreak})
			continue
		}

		matches := bracketPattern.FindAllStringIndex(raw, -1)
		if len(matches) == 0 {
			lines = append(lines, Line{Kind: LyricLine, Segments: []Segment{{Text: raw}}})
			continue
		}

		line := Line{Kind: ChordLine}
		last := 0
		for _, m := range matches {
			if m[0] > last {
				line.Segments = append(line.Segments, Segment{Text: raw[last:m[0]]})
			}
			name := raw[m[0]+1 : m[1]-1]
			line.Segments = append(line.Segments, Segment{
				Text:    TransposeWith(name, semitones, policy),
				IsChord: true,
			})
			last = m[1]
		}
		if last < len(raw) {
			line.Segments = append(line.Segments, Segment{Text: raw[last:]})
		}
		lines = append(lines, line)
	}
	return lines
}

// Chords returns the distinct chords of a lyrics text in order of first
// appearance.
func Chords(lyrics string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, m := range bracketPattern.FindAllString(lyrics, -1) {
		name := m[1 : len(m)-1]
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	return out
}
