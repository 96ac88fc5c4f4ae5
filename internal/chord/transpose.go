// Package chord parses and transposes chord symbols and renders lyric sheets
// with inline [Chord] tokens.
package chord

import (
	"regexp"
	"strings"

	"github.com/0xlemi/chordpad/internal/pitch"
)

// Accidental is the spelling style of a chord root
type Accidental int

const (
	// Sharp covers natural and sharp roots
	Sharp Accidental = iota

	// Flat covers roots spelled with b
	Flat
)

// String returns "sharp" or "flat"
func (a Accidental) String() string {
	if a == Flat {
		return "flat"
	}
	return "sharp"
}

// SpellingPolicy decides how a transposed root is spelled
type SpellingPolicy int

const (
	// PreserveReference always spells the new root with sharps, which is
	// what the chord charts have always shown: "Bb" down one is "A", and
	// "Eb" up two is "F", but "Bb" up one is "B" and "Db" up one is "D#".
	PreserveReference SpellingPolicy = iota

	// PreserveAccidental spells the new root from the table matching the
	// original root's accidental, so flat charts stay flat.
	PreserveAccidental
)

// ParseSpellingPolicy maps "reference" / "accidental" to a policy.
// Anything else yields PreserveReference.
func ParseSpellingPolicy(s string) SpellingPolicy {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "accidental", "preserve", "flat":
		return PreserveAccidental
	default:
		return PreserveReference
	}
}

// Symbol is a chord split into its root and an opaque suffix
type Symbol struct {
	Root   string // e.g. "C#", "Bb", "G"
	Suffix string // e.g. "m7", "sus4", "/G"
}

// String reassembles the chord symbol
func (s Symbol) String() string {
	return s.Root + s.Suffix
}

// Accidental reports the spelling style of the root
func (s Symbol) Accidental() Accidental {
	if strings.HasSuffix(s.Root, "b") {
		return Flat
	}
	return Sharp
}

var symbolPattern = regexp.MustCompile(`^([A-G][#b]?)(.*)$`)

// Parse splits a chord symbol into root and suffix. It returns false when
// the input does not start with a root note.
func Parse(chord string) (Symbol, bool) {
	m := symbolPattern.FindStringSubmatch(chord)
	if m == nil {
		return Symbol{}, false
	}
	return Symbol{Root: m[1], Suffix: m[2]}, true
}

// Transpose shifts the root of chord by semitones using the reference
// spelling. Input that is not a chord comes back unchanged.
func Transpose(chord string, semitones int) string {
	return TransposeWith(chord, semitones, PreserveReference)
}

// TransposeWith shifts the root of chord by semitones and spells the new
// root according to policy. The suffix, including any slash bass, is kept
// verbatim.
func TransposeWith(chord string, semitones int, policy SpellingPolicy) string {
	if semitones == 0 {
		return chord
	}

	sym, ok := Parse(chord)
	if !ok {
		return chord
	}

	index := pitch.PitchClassIndex(sym.Root)
	if index < 0 {
		return chord
	}
	newIndex := ((index+semitones)%12 + 12) % 12

	return spell(newIndex, sym.Accidental(), policy) + sym.Suffix
}

// spell picks the root name for a chromatic index
func spell(index int, style Accidental, policy SpellingPolicy) string {
	if policy == PreserveAccidental && style == Flat {
		return pitch.FlatNames[index]
	}
	return pitch.SharpNames[index]
}

// Interval returns the upward distance in semitones from one root to another,
// or false if either is not a pitch class.
func Interval(from, to string) (int, bool) {
	a := pitch.PitchClassIndex(from)
	b := pitch.PitchClassIndex(to)
	if a < 0 || b < 0 {
		return 0, false
	}
	return ((b-a)%12 + 12) % 12, true
}
