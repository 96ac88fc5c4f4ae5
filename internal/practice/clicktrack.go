package practice

import (
	"errors"
	"fmt"
	"io"
	"math"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/0xlemi/chordpad/internal/pitch"
	"github.com/0xlemi/chordpad/internal/tone"
)

const (
	// TicksPerQuarter is the SMF resolution of exported files
	TicksPerQuarter = 480

	// General MIDI percussion channel (10, zero based) and keys
	clickChannel = 9
	accentKey    = 76 // high wood block
	beatKey      = 77 // low wood block

	padChannel = 0
)

// ClickTrack describes an exported metronome part
type ClickTrack struct {
	BPM         int
	Bars        int
	BeatsPerBar uint8
}

// WriteClickTrack writes a single-track SMF with a tempo event, the meter
// and one percussion hit per beat. The first beat of every bar is accented.
func WriteClickTrack(w io.Writer, ct ClickTrack) error {
	if ct.BPM <= 0 {
		ct.BPM = DefaultBPM
	}
	if ct.Bars <= 0 {
		return errors.New("practice: click track needs at least one bar")
	}
	if ct.BeatsPerBar == 0 {
		ct.BeatsPerBar = 4
	}

	s := smf.New()
	s.TimeFormat = smf.MetricTicks(TicksPerQuarter)

	var tr smf.Track
	tr.Add(0, smf.MetaTrackSequenceName("click"))
	tr.Add(0, smf.MetaTempo(float64(ct.BPM)))
	tr.Add(0, smf.MetaMeter(ct.BeatsPerBar, 4))

	hit := uint32(TicksPerQuarter / 8)
	var delta uint32
	for bar := 0; bar < ct.Bars; bar++ {
		for beat := uint8(0); beat < ct.BeatsPerBar; beat++ {
			key, velocity := uint8(beatKey), uint8(90)
			if beat == 0 {
				key, velocity = accentKey, 120
			}
			tr.Add(delta, midi.NoteOn(clickChannel, key, velocity))
			tr.Add(hit, midi.NoteOff(clickChannel, key))
			delta = TicksPerQuarter - hit
		}
	}
	tr.Close(delta)

	if err := s.Add(tr); err != nil {
		return fmt.Errorf("practice: add click track: %w", err)
	}
	if _, err := s.WriteTo(w); err != nil {
		return fmt.Errorf("practice: write click track: %w", err)
	}
	return nil
}

// WritePadNote writes the ambient pad for pitchClass as one held chord of
// beats quarter notes. Partials are rounded to the nearest MIDI key above
// the third-octave root.
func WritePadNote(w io.Writer, pitchClass string, bpm, beats int) error {
	pc := pitch.PitchClassIndex(pitchClass)
	if pc < 0 {
		return fmt.Errorf("practice: unknown pitch class %q", pitchClass)
	}
	if bpm <= 0 {
		bpm = DefaultBPM
	}
	if beats <= 0 {
		beats = 4
	}

	keys := PadKeys(pc)

	s := smf.New()
	s.TimeFormat = smf.MetricTicks(TicksPerQuarter)

	var tr smf.Track
	tr.Add(0, smf.MetaTrackSequenceName("pad "+pitchClass))
	tr.Add(0, smf.MetaTempo(float64(bpm)))
	for _, k := range keys {
		tr.Add(0, midi.NoteOn(padChannel, k, 80))
	}
	length := uint32(beats * TicksPerQuarter)
	for i, k := range keys {
		if i == 0 {
			tr.Add(length, midi.NoteOff(padChannel, k))
			continue
		}
		tr.Add(0, midi.NoteOff(padChannel, k))
	}
	tr.Close(0)

	if err := s.Add(tr); err != nil {
		return fmt.Errorf("practice: add pad track: %w", err)
	}
	if _, err := s.WriteTo(w); err != nil {
		return fmt.Errorf("practice: write pad track: %w", err)
	}
	return nil
}

// PadKeys returns the MIDI keys closest to the pad partials of pitch class
// index pc, rooted in octave 3.
func PadKeys(pc int) []uint8 {
	root := pitch.MIDINumber(pitch.SharpNames[pc], 3)
	keys := make([]uint8, 0, len(tone.Harmonics))
	for _, h := range tone.Harmonics {
		keys = append(keys, uint8(root+int(math.Round(12*math.Log2(h)))))
	}
	return keys
}
