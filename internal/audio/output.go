package audio

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"
)

// ErrOscillatorStopped is returned when stopping an oscillator twice
var ErrOscillatorStopped = errors.New("audio: oscillator already stopped")

// WaveformSine is the only waveform the mixer renders
const WaveformSine = "sine"

// Tone specifies a generated tone
type Tone struct {
	Frequency float64       // Hz
	Waveform  string        // "sine"
	Gain      float64       // linear, 0..1
	Duration  time.Duration // zero means sustained until Stop
}

// Oscillator is a handle on one sounding tone
type Oscillator interface {
	// Start begins playback
	Start() error

	// Stop ends playback. A second Stop returns ErrOscillatorStopped.
	Stop() error

	// SetGain changes the gain of a live or pending tone
	SetGain(gain float64)

	// Gain returns the current gain
	Gain() float64

	// Frequency returns the tone frequency in Hz
	Frequency() float64
}

// OutputProvider creates oscillators on an output device
type OutputProvider interface {
	NewOscillator(tone Tone) (Oscillator, error)
}

// Mixer sums sine voices into a mono output buffer. It implements
// OutputProvider and is safe for concurrent use.
type Mixer struct {
	mu         sync.Mutex
	sampleRate float64
	voices     map[*voice]struct{}
}

// NewMixer creates a mixer rendering at sampleRate
func NewMixer(sampleRate int) *Mixer {
	return &Mixer{
		sampleRate: float64(sampleRate),
		voices:     make(map[*voice]struct{}),
	}
}

// SampleRate returns the render sample rate
func (m *Mixer) SampleRate() float64 {
	return m.sampleRate
}

// NewOscillator creates a voice that sounds once started
func (m *Mixer) NewOscillator(tone Tone) (Oscillator, error) {
	if tone.Waveform == "" {
		tone.Waveform = WaveformSine
	}
	if tone.Waveform != WaveformSine {
		return nil, fmt.Errorf("audio: unsupported waveform %q", tone.Waveform)
	}
	if tone.Frequency <= 0 || tone.Frequency >= m.sampleRate/2 {
		return nil, fmt.Errorf("audio: frequency %.2f Hz out of range", tone.Frequency)
	}

	v := &voice{
		mixer:     m,
		frequency: tone.Frequency,
		gain:      tone.Gain,
		step:      2 * math.Pi * tone.Frequency / m.sampleRate,
	}
	if tone.Duration > 0 {
		v.remaining = int(tone.Duration.Seconds() * m.sampleRate)
		v.finite = true
	}
	return v, nil
}

// Active returns the number of sounding voices
func (m *Mixer) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.voices)
}

// StopAll silences every voice
func (m *Mixer) StopAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for v := range m.voices {
		v.stopped = true
		delete(m.voices, v)
	}
}

// Render fills out with the sum of all live voices
func (m *Mixer) Render(out []float32) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range out {
		out[i] = 0
	}
	for v := range m.voices {
		n := len(out)
		if v.finite && v.remaining < n {
			n = v.remaining
		}
		for i := 0; i < n; i++ {
			out[i] += float32(v.gain * math.Sin(v.phase))
			v.phase += v.step
			if v.phase > 2*math.Pi {
				v.phase -= 2 * math.Pi
			}
		}
		if v.finite {
			v.remaining -= n
			if v.remaining <= 0 {
				v.stopped = true
				delete(m.voices, v)
			}
		}
	}
	for i := range out {
		out[i] = clampSample(out[i])
	}
}

// voice is a sine oscillator owned by a Mixer. Its fields are guarded by
// the mixer's mutex.
type voice struct {
	mixer     *Mixer
	frequency float64
	gain      float64
	phase     float64
	step      float64
	remaining int
	finite    bool
	started   bool
	stopped   bool
}

func (v *voice) Start() error {
	v.mixer.mu.Lock()
	defer v.mixer.mu.Unlock()

	if v.stopped {
		return ErrOscillatorStopped
	}
	if v.started {
		return nil
	}
	v.started = true
	v.mixer.voices[v] = struct{}{}
	return nil
}

func (v *voice) Stop() error {
	v.mixer.mu.Lock()
	defer v.mixer.mu.Unlock()

	if v.stopped {
		return ErrOscillatorStopped
	}
	v.stopped = true
	delete(v.mixer.voices, v)
	return nil
}

func (v *voice) SetGain(gain float64) {
	v.mixer.mu.Lock()
	defer v.mixer.mu.Unlock()
	v.gain = gain
}

func (v *voice) Gain() float64 {
	v.mixer.mu.Lock()
	defer v.mixer.mu.Unlock()
	return v.gain
}

func (v *voice) Frequency() float64 {
	return v.frequency
}
