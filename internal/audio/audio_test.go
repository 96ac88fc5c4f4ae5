package audio

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameCapturerLifecycle(t *testing.T) {
	c := NewFrameCapturer(44100)

	_, err := c.GetBuffer()
	assert.ErrorIs(t, err, ErrNotCapturing)

	require.NoError(t, c.Start())
	assert.ErrorIs(t, c.Start(), ErrAlreadyCapturing)
	assert.True(t, c.IsCapturing())

	c.Push([]float32{0.1, -0.2, 0.3})
	buf, err := c.GetBuffer()
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, -0.2, 0.3}, buf.Samples)
	assert.Equal(t, 44100, buf.SampleRate)

	// The returned frame is a copy.
	buf.Samples[0] = 1
	again, err := c.GetBuffer()
	require.NoError(t, err)
	assert.Equal(t, float32(0.1), again.Samples[0])

	require.NoError(t, c.Stop())
	require.NoError(t, c.Stop())
	assert.False(t, c.IsCapturing())
}

func TestFromUnsigned8(t *testing.T) {
	buf := FromUnsigned8([]uint8{128, 0, 255, 192}, 48000)
	assert.Equal(t, 48000, buf.SampleRate)
	assert.Equal(t, []float32{0, -1, 127.0 / 128, 0.5}, buf.Samples)
}

func TestLevel(t *testing.T) {
	rms, db := Level(nil)
	assert.Equal(t, 0.0, rms)
	assert.Equal(t, -100.0, db)

	rms, db = Level(&AudioBuffer{Samples: []float32{0.5, -0.5, 0.5, -0.5}})
	assert.InDelta(t, 0.5, rms, 1e-9)
	assert.InDelta(t, 20*math.Log10(0.5), db, 1e-9)

	_, db = Level(&AudioBuffer{Samples: make([]float32, 16)})
	assert.Equal(t, -100.0, db)
}

func TestMixerRejectsBadTones(t *testing.T) {
	m := NewMixer(44100)

	_, err := m.NewOscillator(Tone{Frequency: 440, Waveform: "square"})
	assert.Error(t, err)

	_, err = m.NewOscillator(Tone{Frequency: 0})
	assert.Error(t, err)

	_, err = m.NewOscillator(Tone{Frequency: 30000})
	assert.Error(t, err)
}

func TestMixerSumsVoices(t *testing.T) {
	m := NewMixer(8000)

	a, err := m.NewOscillator(Tone{Frequency: 1000, Gain: 0.25})
	require.NoError(t, err)
	b, err := m.NewOscillator(Tone{Frequency: 1000, Gain: 0.25})
	require.NoError(t, err)

	out := make([]float32, 8)
	m.Render(out)
	for _, s := range out {
		assert.Zero(t, s, "voices must be silent until started")
	}

	require.NoError(t, a.Start())
	require.NoError(t, b.Start())
	assert.Equal(t, 2, m.Active())

	m.Render(out)
	// Sample 2 of a 1 kHz sine at 8 kHz sits at the positive peak.
	assert.InDelta(t, 0.5, out[2], 1e-6)

	b.SetGain(0)
	assert.Equal(t, 0.0, b.Gain())

	require.NoError(t, a.Stop())
	assert.ErrorIs(t, a.Stop(), ErrOscillatorStopped)
	assert.ErrorIs(t, a.Start(), ErrOscillatorStopped)
	assert.Equal(t, 1, m.Active())

	m.StopAll()
	assert.Equal(t, 0, m.Active())
	assert.ErrorIs(t, b.Stop(), ErrOscillatorStopped)
}

func TestMixerFiniteVoiceExpires(t *testing.T) {
	m := NewMixer(1000)

	click, err := m.NewOscillator(Tone{Frequency: 100, Gain: 1, Duration: 20 * time.Millisecond})
	require.NoError(t, err)
	require.NoError(t, click.Start())

	out := make([]float32, 64)
	m.Render(out)
	assert.Equal(t, 0, m.Active())
	for i := 20; i < len(out); i++ {
		assert.Zero(t, out[i], "sample %d after click end", i)
	}
	assert.Equal(t, 100.0, click.Frequency())
}

func TestMixerClampsOutput(t *testing.T) {
	m := NewMixer(8000)
	for i := 0; i < 4; i++ {
		osc, err := m.NewOscillator(Tone{Frequency: 1000, Gain: 1})
		require.NoError(t, err)
		require.NoError(t, osc.Start())
	}

	out := make([]float32, 8)
	m.Render(out)
	for _, s := range out {
		assert.LessOrEqual(t, s, float32(1))
		assert.GreaterOrEqual(t, s, float32(-1))
	}
}
