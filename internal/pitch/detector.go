package pitch

import (
	"errors"

	"github.com/0xlemi/chordpad/internal/audio"
)

// Errors
var (
	ErrEmptyBuffer   = errors.New("pitch: empty audio buffer")
	ErrNoFundamental = errors.New("pitch: no fundamental found")
	ErrOutOfRange    = errors.New("pitch: frequency outside detection range")
)

// Detector defines the interface for pitch detection
type Detector interface {
	// DetectPitch analyzes an audio buffer and returns the detected note
	DetectPitch(buffer *audio.AudioBuffer) (*Note, error)
}

// YINDetector detects pitch with the YIN difference-function method
type YINDetector struct {
	MinFrequency float64          // Lower bound of the expected range (Hz)
	MaxFrequency float64          // Upper bound of the expected range (Hz)
	Threshold    float64          // Absolute threshold on the normalized difference
	Method       DifferenceMethod // Difference function implementation
	StrictRange  bool             // Reject estimates outside [MinFrequency, MaxFrequency]
}

// NewYINDetector creates a detector for the human voice range used by the
// tap-to-hum feature.
func NewYINDetector() *YINDetector {
	return &YINDetector{
		MinFrequency: 80.0,   // Min human voice frequency
		MaxFrequency: 1000.0, // Max human voice frequency
		Threshold:    DefaultThreshold,
		Method:       Direct,
	}
}

// Estimate runs the estimator without converting to a note
func (d *YINDetector) Estimate(buffer *audio.AudioBuffer) Estimate {
	if buffer.Len() == 0 {
		return NoFundamental
	}
	return EstimateFrequency(buffer.Samples, buffer.SampleRate, d.Threshold, d.Method)
}

// DetectPitch analyzes an audio buffer and returns the detected note
func (d *YINDetector) DetectPitch(buffer *audio.AudioBuffer) (*Note, error) {
	if buffer.Len() == 0 {
		return nil, ErrEmptyBuffer
	}

	est := d.Estimate(buffer)
	if !est.Found {
		return nil, ErrNoFundamental
	}
	if d.StrictRange && !est.Within(d.MinFrequency, d.MaxFrequency) {
		return nil, ErrOutOfRange
	}

	note, ok := FrequencyToNote(est.Frequency)
	if !ok {
		return nil, ErrNoFundamental
	}
	return note, nil
}
