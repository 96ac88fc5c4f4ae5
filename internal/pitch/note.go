package pitch

import (
	"math"
	"strconv"
	"strings"
)

// DefaultFrequency is returned by NoteToFrequency for unknown pitch classes
const DefaultFrequency = 440.0

// Note represents a musical note
type Note struct {
	Name      string  // e.g., "A", "A#", "B"
	Octave    int     // e.g., 4 for middle C (C4)
	Frequency float64 // Frequency in Hz
	Cents     float64 // Cents deviation from perfect pitch (-50 to +50)
}

// String returns the note name with its octave, e.g. "A4"
func (n Note) String() string {
	return n.Name + strconv.Itoa(n.Octave)
}

// SharpNames lists the pitch classes in chromatic order with sharp spelling
var SharpNames = []string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// FlatNames lists the pitch classes in chromatic order with flat spelling
var FlatNames = []string{"C", "Db", "D", "Eb", "E", "F", "Gb", "G", "Ab", "A", "Bb", "B"}

// Reference frequencies at octave 4 (A4 = 440Hz)
var referenceFrequencies = map[string]float64{
	"C": 261.63, "C#": 277.18, "Db": 277.18, "D": 293.66, "D#": 311.13, "Eb": 311.13,
	"E": 329.63, "F": 349.23, "F#": 369.99, "Gb": 369.99, "G": 392.00, "G#": 415.30,
	"Ab": 415.30, "A": 440.00, "A#": 466.16, "Bb": 466.16, "B": 493.88,
}

// FrequencyToNote converts a frequency to the nearest equal-tempered note.
// It returns false for frequencies that are not positive.
func FrequencyToNote(frequency float64) (*Note, bool) {
	if frequency <= 0 || math.IsNaN(frequency) || math.IsInf(frequency, 0) {
		return nil, false
	}

	// MIDI note number, A4 = 69
	exact := 12*math.Log2(frequency/440.0) + 69
	noteNumber := int(math.Round(exact))

	octave := floorDiv(noteNumber, 12) - 1
	noteIndex := ((noteNumber % 12) + 12) % 12

	return &Note{
		Name:      SharpNames[noteIndex],
		Octave:    octave,
		Frequency: frequency,
		Cents:     100 * (exact - float64(noteNumber)),
	}, true
}

// floorDiv divides rounding toward negative infinity
func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// NoteToFrequency returns the frequency of a note such as "A", "Bb3" or
// "F#5". The octave defaults to 4. Unknown pitch classes fall back to
// DefaultFrequency scaled by the octave.
func NoteToFrequency(note string) float64 {
	name, octave := splitOctave(note)

	base, ok := referenceFrequencies[name]
	if !ok {
		base = DefaultFrequency
	}
	return base * math.Pow(2, float64(octave-4))
}

// splitOctave separates a trailing octave number from the pitch class
func splitOctave(note string) (string, int) {
	note = strings.TrimSpace(note)
	i := len(note)
	for i > 0 && note[i-1] >= '0' && note[i-1] <= '9' {
		i--
	}
	if i > 0 && note[i-1] == '-' && i < len(note) {
		i--
	}
	if i == len(note) {
		return note, 4
	}
	octave, err := strconv.Atoi(note[i:])
	if err != nil {
		return note[:i], 4
	}
	return note[:i], octave
}

// PitchClassIndex returns the chromatic index of a pitch class spelled with
// either table, or -1 if the name is unknown.
func PitchClassIndex(name string) int {
	for i, n := range SharpNames {
		if n == name {
			return i
		}
	}
	for i, n := range FlatNames {
		if n == name {
			return i
		}
	}
	return -1
}

// MIDINumber returns the MIDI note number of a pitch class at an octave,
// or -1 for unknown pitch classes.
func MIDINumber(name string, octave int) int {
	idx := PitchClassIndex(name)
	if idx < 0 {
		return -1
	}
	return (octave+1)*12 + idx
}
