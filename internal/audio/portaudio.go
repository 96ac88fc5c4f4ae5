package audio

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
)

// PortAudioProvider opens capture sessions on the default input device
type PortAudioProvider struct {
	BufferSize    int
	SampleRate    int
	Channels      int
	Amplification float32
}

// NewPortAudioProvider creates a provider with the given stream settings
func NewPortAudioProvider(bufferSize, sampleRate, channels int, amplification float32) *PortAudioProvider {
	return &PortAudioProvider{
		BufferSize:    bufferSize,
		SampleRate:    sampleRate,
		Channels:      channels,
		Amplification: amplification,
	}
}

// Open starts a new capture session
func (p *PortAudioProvider) Open(ctx context.Context) (Capturer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	capturer := NewPortAudioCapturer(p.BufferSize, p.SampleRate, p.Channels)
	capturer.SetAmplification(p.Amplification)
	if err := capturer.Start(); err != nil {
		return nil, err
	}
	return capturer, nil
}

// PortAudioCapturer implements audio capture using PortAudio
type PortAudioCapturer struct {
	isCapturing   bool
	stream        *portaudio.Stream
	buffer        *AudioBuffer
	bufferSize    int
	sampleRate    int
	channels      int
	bufferMutex   sync.Mutex
	amplification float32 // Audio signal amplification factor
}

// NewPortAudioCapturer creates a new audio capturer using PortAudio
func NewPortAudioCapturer(bufferSize, sampleRate, channels int) *PortAudioCapturer {
	if channels < 1 {
		channels = 1
	}
	return &PortAudioCapturer{
		buffer: &AudioBuffer{
			Samples:    make([]float32, 0, bufferSize),
			SampleRate: sampleRate,
		},
		bufferSize:    bufferSize,
		sampleRate:    sampleRate,
		channels:      channels,
		amplification: 1.0,
	}
}

// Start initializes PortAudio and opens the default input stream.
// Each session pairs one Initialize with one Terminate in Stop.
func (c *PortAudioCapturer) Start() error {
	c.bufferMutex.Lock()
	defer c.bufferMutex.Unlock()

	if c.isCapturing {
		return ErrAlreadyCapturing
	}

	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	stream, err := portaudio.OpenDefaultStream(
		c.channels, // input channels
		0,          // output channels
		float64(c.sampleRate),
		c.bufferSize/c.channels, // frames per buffer
		c.processAudio,
	)
	if err != nil {
		portaudio.Terminate()
		return classifyOpenError(err)
	}

	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return classifyOpenError(err)
	}

	c.stream = stream
	c.isCapturing = true
	return nil
}

// classifyOpenError maps PortAudio failures onto the provider errors.
// A device that exists but refuses to open is treated as a denied grant.
func classifyOpenError(err error) error {
	if errors.Is(err, portaudio.DeviceUnavailable) || errors.Is(err, portaudio.InvalidDevice) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
}

// Stop ends audio capture and releases the device
func (c *PortAudioCapturer) Stop() error {
	c.bufferMutex.Lock()
	if !c.isCapturing {
		c.bufferMutex.Unlock()
		return nil
	}
	stream := c.stream
	c.stream = nil
	c.isCapturing = false
	c.bufferMutex.Unlock()

	// The callback takes bufferMutex, so the stream is stopped unlocked.
	stopErr := stream.Stop()
	closeErr := stream.Close()
	termErr := portaudio.Terminate()
	return errors.Join(stopErr, closeErr, termErr)
}

// processAudio is the callback function for audio processing
func (c *PortAudioCapturer) processAudio(in []float32) {
	c.bufferMutex.Lock()
	defer c.bufferMutex.Unlock()

	// Average multi-channel input down to mono
	frames := len(in) / c.channels
	samples := make([]float32, frames)
	for i := 0; i < frames; i++ {
		sum := float32(0)
		for ch := 0; ch < c.channels; ch++ {
			sum += in[i*c.channels+ch]
		}
		samples[i] = clampSample(sum / float32(c.channels) * c.amplification)
	}
	c.buffer.Samples = samples
}

// clampSample keeps amplified samples inside [-1, 1]
func clampSample(v float32) float32 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}

// GetBuffer returns the current audio buffer
func (c *PortAudioCapturer) GetBuffer() (*AudioBuffer, error) {
	c.bufferMutex.Lock()
	defer c.bufferMutex.Unlock()

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
func (c *PortAudioCapturer) IsCapturing() bool {
	c.bufferMutex.Lock()
	defer c.bufferMutex.Unlock()
	return c.isCapturing
}

// SetAmplification sets the audio amplification factor
func (c *PortAudioCapturer) SetAmplification(factor float32) {
	c.bufferMutex.Lock()
	defer c.bufferMutex.Unlock()

	// Ensure amplification is positive
	if factor < 0.1 {
		factor = 0.1
	}
	c.amplification = factor
}

// PortAudioOutput plays a Mixer through the default output device
type PortAudioOutput struct {
	*Mixer

	mu              sync.Mutex
	stream          *portaudio.Stream
	framesPerBuffer int
}

// NewPortAudioOutput creates an output with its own mixer. Call Open before
// starting oscillators to hear them.
func NewPortAudioOutput(sampleRate, framesPerBuffer int) *PortAudioOutput {
	return &PortAudioOutput{
		Mixer:           NewMixer(sampleRate),
		framesPerBuffer: framesPerBuffer,
	}
}

// Open starts the output stream. Opening an open output is a no-op.
func (o *PortAudioOutput) Open() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.stream != nil {
		return nil
	}
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("audio: output init: %w", err)
	}
	stream, err := portaudio.OpenDefaultStream(0, 1, o.SampleRate(), o.framesPerBuffer, o.Render)
	if err != nil {
		portaudio.Terminate()
		return fmt.Errorf("audio: open output: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return fmt.Errorf("audio: start output: %w", err)
	}
	o.stream = stream
	return nil
}

// Close stops the output stream and silences every voice
func (o *PortAudioOutput) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.Mixer.StopAll()
	if o.stream == nil {
		return nil
	}
	stream := o.stream
	o.stream = nil
	return errors.Join(stream.Stop(), stream.Close(), portaudio.Terminate())
}
