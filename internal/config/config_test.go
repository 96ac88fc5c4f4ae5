package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xlemi/chordpad/internal/config"
)

func TestLoadFromReader_EmptyYieldsDefaults(t *testing.T) {
	t.Parallel()
	cfg, err := config.LoadFromReader(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)
}

func TestLoadFromReader_OverridesDefaults(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  listen_addr: ":9090"
  log_level: debug
  cors_origins: ["http://localhost:3000"]
detection:
  poll_interval: 100ms
  method: fft
  strict_range: true
metronome:
  click_duration: 30ms
songs:
  file: songs.yaml
`
	cfg, err := config.LoadFromReader(strings.NewReader(yaml))
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.ListenAddr)
	assert.Equal(t, config.LogDebug, cfg.Server.LogLevel)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.Server.CORSOrigins)
	assert.Equal(t, 100*time.Millisecond, cfg.Detection.PollInterval)
	assert.Equal(t, config.MethodFFT, cfg.Detection.Method)
	assert.True(t, cfg.Detection.StrictRange)
	assert.Equal(t, 30*time.Millisecond, cfg.Metronome.ClickDuration)
	assert.Equal(t, "songs.yaml", cfg.Songs.File)

	// Untouched sections keep their defaults.
	assert.Equal(t, 44100, cfg.Audio.SampleRate)
	assert.Equal(t, 80.0, cfg.Detection.MinFrequency)
}

func TestLoadFromReader_UnknownField(t *testing.T) {
	t.Parallel()
	_, err := config.LoadFromReader(strings.NewReader("pad:\n  volumee: 0.3\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "volumee")
}

func TestValidate_JoinsAllErrors(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  log_level: loud
audio:
  channels: 3
detection:
  min_frequency: 500
  max_frequency: 400
  threshold: 1.5
  method: autocorrelation
pad:
  volume: 2
autoscroll:
  level: 11
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	require.Error(t, err)
	for _, want := range []string{
		"server.log_level",
		"audio.channels",
		"frequency range",
		"detection.threshold",
		"detection.method",
		"pad.volume",
		"autoscroll.level",
	} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestValidate_Nyquist(t *testing.T) {
	t.Parallel()
	cfg := config.Default()
	cfg.Audio.SampleRate = 1600
	err := config.Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Nyquist")
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()
	_, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoad_File(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "chordpad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("pad:\n  volume: 0.25\n"), 0o644))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0.25, cfg.Pad.Volume)
}

func TestSettings_MissingFileUsesDefaults(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "state", "settings.yaml")
	defaults := config.DefaultSettings(config.Default())

	s, err := config.OpenSettings(path, defaults, time.Millisecond, nil)
	require.NoError(t, err)
	assert.Equal(t, defaults, s.Get())

	// Nothing changed, nothing written.
	require.NoError(t, s.Flush())
	_, err = os.Stat(path)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestSettings_FlushRoundTrip(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "state", "settings.yaml")
	defaults := config.DefaultSettings(config.Default())

	s, err := config.OpenSettings(path, defaults, time.Hour, nil)
	require.NoError(t, err)
	s.Update(func(st *config.Settings) { st.MetronomeVolume = 0.8 })
	s.Update(func(st *config.Settings) { st.Transpose = -3 })
	require.NoError(t, s.Flush())

	reopened, err := config.OpenSettings(path, defaults, time.Hour, nil)
	require.NoError(t, err)
	got := reopened.Get()
	assert.Equal(t, 0.8, got.MetronomeVolume)
	assert.Equal(t, -3, got.Transpose)
	assert.Equal(t, defaults.PadVolume, got.PadVolume)
}

func TestSettings_DebouncedWrite(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "settings.yaml")

	s, err := config.OpenSettings(path, config.Settings{}, 10*time.Millisecond, nil)
	require.NoError(t, err)
	for i := 1; i <= 5; i++ {
		v := float64(i) / 10
		s.Update(func(st *config.Settings) { st.PadVolume = v })
	}

	assert.Eventually(t, func() bool {
		data, err := os.ReadFile(path)
		return err == nil && strings.Contains(string(data), "pad_volume: 0.5")
	}, 2*time.Second, 5*time.Millisecond)
}

func TestSettings_CorruptFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte("pad_volume: [oops"), 0o644))

	_, err := config.OpenSettings(path, config.Settings{}, 0, nil)
	assert.Error(t, err)
}

func TestEnums(t *testing.T) {
	t.Parallel()
	assert.True(t, config.LogWarn.IsValid())
	assert.False(t, config.LogLevel("trace").IsValid())
	assert.True(t, config.MethodDirect.IsValid())
	assert.False(t, config.DetectionMethod("").IsValid())
}
