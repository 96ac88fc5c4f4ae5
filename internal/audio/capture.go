package audio

import (
	"context"
	"errors"
	"math"
	"sync"
)

// Errors
var (
	ErrPermissionDenied = errors.New("audio: microphone permission denied")
	ErrUnavailable      = errors.New("audio: input device unavailable")
	ErrNotCapturing     = errors.New("audio: capture not started")
	ErrAlreadyCapturing = errors.New("audio: capture already started")
)

// AudioBuffer represents one frame of mono samples normalized to [-1, 1]
type AudioBuffer struct {
	Samples    []float32
	SampleRate int
}

// Len returns the number of samples in the frame
func (b *AudioBuffer) Len() int {
	if b == nil {
		return 0
	}
	return len(b.Samples)
}

// FromUnsigned8 converts unsigned 8-bit time-domain data (silence at 128),
// as produced by browser analyser nodes, into a normalized frame.
func FromUnsigned8(data []uint8, sampleRate int) *AudioBuffer {
	samples := make([]float32, len(data))
	for i, v := range data {
		samples[i] = (float32(v) - 128) / 128
	}
	return &AudioBuffer{Samples: samples, SampleRate: sampleRate}
}

// Level calculates the RMS and dB level of a frame
func Level(buffer *AudioBuffer) (rms, db float64) {
	if buffer.Len() == 0 {
		return 0, -100
	}

	sumSquares := 0.0
	for _, sample := range buffer.Samples {
		sumSquares += float64(sample) * float64(sample)
	}
	rms = math.Sqrt(sumSquares / float64(len(buffer.Samples)))

	// Avoid log(0)
	if rms > 0.0000001 {
		db = 20 * math.Log10(rms)
	} else {
		db = -100
	}
	return rms, db
}

// Capturer defines the interface for one audio capture session
type Capturer interface {
	// Start begins audio capture
	Start() error

	// Stop ends audio capture. Stopping a stopped capturer is not an error.
	Stop() error

	// GetBuffer returns a copy of the current audio frame
	GetBuffer() (*AudioBuffer, error)

	// IsCapturing returns true if currently capturing audio
	IsCapturing() bool
}

// CaptureProvider opens capture sessions on the input device. Open asks for
// microphone access and returns a capturer that is already running; it fails
// with ErrPermissionDenied or ErrUnavailable when access is refused.
type CaptureProvider interface {
	Open(ctx context.Context) (Capturer, error)
}

// FrameCapturer is a Capturer fed by the caller instead of a device.
// It backs file and network inputs as well as tests.
type FrameCapturer struct {
	mu          sync.Mutex
	isCapturing bool
	buffer      *AudioBuffer
}

// NewFrameCapturer creates a capturer that serves frames passed to Push
func NewFrameCapturer(sampleRate int) *FrameCapturer {
	return &FrameCapturer{
		buffer: &AudioBuffer{
			Samples:    make([]float32, 0),
			SampleRate: sampleRate,
		},
	}
}

// Start begins audio capture
func (c *FrameCapturer) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.isCapturing {
		return ErrAlreadyCapturing
	}
	c.isCapturing = true
	return nil
}

// Stop ends audio capture
func (c *FrameCapturer) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.isCapturing = false
	return nil
}

// Push replaces the current frame
func (c *FrameCapturer) Push(samples []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.buffer.Samples = append(c.buffer.Samples[:0], samples...)
}

// GetBuffer returns the current audio buffer
func (c *FrameCapturer) GetBuffer() (*AudioBuffer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.isCapturing {
		return nil, ErrNotCapturing
	}

	bufferCopy := &AudioBuffer{
		Samples:    make([]float32, len(c.buffer.Samples)),
		SampleRate: c.buffer.SampleRate,
	}
	copy(bufferCopy.Samples, c.buffer.Samples)
	return bufferCopy, nil
}

// IsCapturing returns true if currently capturing audio
func (c *FrameCapturer) IsCapturing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isCapturing
}
