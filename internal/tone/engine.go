// Package tone plays the ambient reference-pitch pad: a sustained chord of
// sine partials above a chosen pitch class.
package tone

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/0xlemi/chordpad/internal/audio"
	"github.com/0xlemi/chordpad/internal/observe"
	"github.com/0xlemi/chordpad/internal/pitch"
)

// ErrNoPitch is returned by Start when no pitch class has been selected
var ErrNoPitch = errors.New("tone: select a pitch first")

// Harmonics are the partial ratios of the pad: fundamental, fifth, octave
// and twelfth.
var Harmonics = []float64{1, 1.5, 2, 3}

// Status is a snapshot of the pad
type Status struct {
	Pitch  string
	Active bool
	Volume float64
}

// String renders the pad status line, e.g. "D - Active"
func (s Status) String() string {
	name := s.Pitch
	if name == "" {
		name = "None"
	}
	if s.Active {
		return name + " - Active"
	}
	return name + " - Inactive"
}

// Engine owns the pad's oscillators
type Engine struct {
	output  audio.OutputProvider
	logger  *slog.Logger
	metrics *observe.Metrics

	mu          sync.Mutex
	pitch       string
	volume      float64
	oscillators []audio.Oscillator
}

// New creates an engine with the given master volume in [0, 1].
// A nil logger or metrics uses the package defaults.
func New(output audio.OutputProvider, volume float64, logger *slog.Logger, metrics *observe.Metrics) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	return &Engine{
		output:  output,
		logger:  logger,
		metrics: metrics,
		volume:  clampVolume(volume),
	}
}

// Status returns the current pad state
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Status{Pitch: e.pitch, Active: len(e.oscillators) > 0, Volume: e.volume}
}

// Active reports whether the pad is sounding
func (e *Engine) Active() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.oscillators) > 0
}

// SelectPitch chooses the pad's pitch class. A sounding pad restarts on the
// new pitch.
func (e *Engine) SelectPitch(name string) error {
	e.mu.Lock()
	e.pitch = name
	active := len(e.oscillators) > 0
	e.mu.Unlock()

	if active {
		return e.Start()
	}
	return nil
}

// Toggle starts a silent pad or stops a sounding one
func (e *Engine) Toggle() error {
	if e.Active() {
		e.Stop()
		return nil
	}
	return e.Start()
}

// Start plays the selected pitch. A sounding pad is stopped first so voices
// never overlap.
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.pitch == "" {
		return ErrNoPitch
	}
	e.stopLocked()

	frequency := pitch.NoteToFrequency(e.pitch)
	gain := e.volume / float64(len(Harmonics))

	oscillators := make([]audio.Oscillator, 0, len(Harmonics))
	for _, ratio := range Harmonics {
		osc, err := e.output.NewOscillator(audio.Tone{
			Frequency: frequency * ratio,
			Waveform:  audio.WaveformSine,
			Gain:      gain,
		})
		if err == nil {
			err = osc.Start()
		}
		if err != nil {
			for _, o := range oscillators {
				_ = o.Stop()
			}
			e.metrics.PadVoices.Add(context.Background(), -int64(len(oscillators)))
			return fmt.Errorf("tone: start %s partial %.1f: %w", e.pitch, ratio, err)
		}
		oscillators = append(oscillators, osc)
		e.metrics.PadVoices.Add(context.Background(), 1)
	}
	e.oscillators = oscillators

	e.logger.Info("ambient pad started", "pitch", e.pitch, "frequency", frequency, "volume", e.volume)
	return nil
}

// Stop silences every oscillator. It tolerates oscillators that are already
// stopped and may be called any number of times.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopLocked()
}

func (e *Engine) stopLocked() {
	if len(e.oscillators) == 0 {
		return
	}
	for _, osc := range e.oscillators {
		if err := osc.Stop(); err != nil && !errors.Is(err, audio.ErrOscillatorStopped) {
			e.logger.Warn("failed to stop pad oscillator", "err", err)
		}
	}
	e.metrics.PadVoices.Add(context.Background(), -int64(len(e.oscillators)))
	e.oscillators = nil
	e.logger.Info("ambient pad stopped", "pitch", e.pitch)
}

// Volume returns the master volume
func (e *Engine) Volume() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.volume
}

// SetVolume changes the master volume and rescales sounding oscillators in
// place.
func (e *Engine) SetVolume(volume float64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.volume = clampVolume(volume)
	gain := e.volume / float64(len(Harmonics))
	for _, osc := range e.oscillators {
		osc.SetGain(gain)
	}
}

// Close releases all audio resources. The engine can be started again.
func (e *Engine) Close() error {
	e.Stop()
	return nil
}

func clampVolume(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
