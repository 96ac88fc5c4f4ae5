// Package practice holds the song-playing helpers: the audible metronome,
// lyric autoscroll and Standard MIDI File export of click tracks.
package practice

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/0xlemi/chordpad/internal/audio"
	"github.com/0xlemi/chordpad/internal/observe"
)

const (
	// DefaultBPM is used when a song has no tempo
	DefaultBPM = 120

	DefaultClickFrequency = 800.0
	DefaultClickDuration  = 20 * time.Millisecond
)

// BeatInterval returns the time between two beats at bpm. A non-positive
// bpm falls back to DefaultBPM.
func BeatInterval(bpm int) time.Duration {
	if bpm <= 0 {
		bpm = DefaultBPM
	}
	return time.Minute / time.Duration(bpm)
}

// MetronomeOptions configures a Metronome
type MetronomeOptions struct {
	Volume         float64
	ClickFrequency float64
	ClickDuration  time.Duration
	Logger         *slog.Logger
	Metrics        *observe.Metrics
}

// Metronome plays a short sine click on every beat
type Metronome struct {
	output    audio.OutputProvider
	frequency float64
	duration  time.Duration
	logger    *slog.Logger
	metrics   *observe.Metrics

	mu     sync.Mutex
	volume float64
	bpm    int
	stop   chan struct{}
	done   chan struct{}
}

// NewMetronome creates a stopped metronome
func NewMetronome(output audio.OutputProvider, opts MetronomeOptions) *Metronome {
	if opts.ClickFrequency <= 0 {
		opts.ClickFrequency = DefaultClickFrequency
	}
	if opts.ClickDuration <= 0 {
		opts.ClickDuration = DefaultClickDuration
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Metrics == nil {
		opts.Metrics = observe.DefaultMetrics()
	}
	return &Metronome{
		output:    output,
		frequency: opts.ClickFrequency,
		duration:  opts.ClickDuration,
		logger:    opts.Logger,
		metrics:   opts.Metrics,
		volume:    clamp01(opts.Volume),
	}
}

// Start begins clicking at bpm. Starting a running metronome does nothing,
// even with a different tempo.
func (m *Metronome) Start(bpm int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stop != nil {
		return
	}
	if bpm <= 0 {
		bpm = DefaultBPM
	}
	m.bpm = bpm
	m.stop = make(chan struct{})
	m.done = make(chan struct{})
	go m.run(BeatInterval(bpm), m.stop, m.done)
	m.logger.Info("metronome started", "bpm", bpm)
}

// Stop halts the metronome and waits for the click goroutine to exit.
// Stopping a stopped metronome is a no-op.
func (m *Metronome) Stop() {
	m.mu.Lock()
	stop, done := m.stop, m.done
	m.stop, m.done = nil, nil
	m.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done
	m.logger.Info("metronome stopped")
}

// Toggle starts a stopped metronome at bpm or stops a running one
func (m *Metronome) Toggle(bpm int) {
	if m.Active() {
		m.Stop()
		return
	}
	m.Start(bpm)
}

// Active reports whether the metronome is running
func (m *Metronome) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stop != nil
}

// BPM returns the tempo of the running metronome, or 0 when stopped
func (m *Metronome) BPM() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stop == nil {
		return 0
	}
	return m.bpm
}

// Volume returns the click volume
func (m *Metronome) Volume() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.volume
}

// SetVolume sets the click volume in [0, 1]; it applies from the next click
func (m *Metronome) SetVolume(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.volume = clamp01(v)
}

func (m *Metronome) run(interval time.Duration, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			m.click()
		}
	}
}

func (m *Metronome) click() {
	osc, err := m.output.NewOscillator(audio.Tone{
		Frequency: m.frequency,
		Waveform:  audio.WaveformSine,
		Gain:      m.Volume(),
		Duration:  m.duration,
	})
	if err == nil {
		err = osc.Start()
	}
	if err != nil {
		m.logger.Warn("metronome click failed", "err", err)
		return
	}
	m.metrics.MetronomeClicks.Add(context.Background(), 1)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
