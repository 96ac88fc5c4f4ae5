// Package config provides the configuration schema and loader for chordpad.
package config

import "time"

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// DetectionMethod selects how the YIN difference function is computed.
type DetectionMethod string

const (
	MethodDirect DetectionMethod = "direct"
	MethodFFT    DetectionMethod = "fft"
)

// IsValid reports whether m is a recognised detection method.
func (m DetectionMethod) IsValid() bool {
	return m == MethodDirect || m == MethodFFT
}

// Config is the root configuration structure.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Audio      AudioConfig      `yaml:"audio"`
	Detection  DetectionConfig  `yaml:"detection"`
	Pad        PadConfig        `yaml:"pad"`
	Metronome  MetronomeConfig  `yaml:"metronome"`
	Autoscroll AutoscrollConfig `yaml:"autoscroll"`
	Songs      SongsConfig      `yaml:"songs"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

// ServerConfig holds network and logging settings for the HTTP API.
type ServerConfig struct {
	// ListenAddr is the TCP address the API listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// CORSOrigins lists the browser origins allowed to call the API.
	// Empty allows every origin.
	CORSOrigins []string `yaml:"cors_origins"`
}

// AudioConfig describes the capture device.
type AudioConfig struct {
	SampleRate int `yaml:"sample_rate"`

	// BufferSize is the analysis frame length in samples.
	BufferSize int `yaml:"buffer_size"`

	Channels int `yaml:"channels"`

	// Amplification is a linear input gain applied before clamping.
	Amplification float64 `yaml:"amplification"`
}

// DetectionConfig tunes the pitch detection loop.
type DetectionConfig struct {
	PollInterval time.Duration   `yaml:"poll_interval"`
	MinFrequency float64         `yaml:"min_frequency"`
	MaxFrequency float64         `yaml:"max_frequency"`
	Threshold    float64         `yaml:"threshold"`
	Method       DetectionMethod `yaml:"method"`

	// StrictRange rejects estimates outside [MinFrequency, MaxFrequency]
	// instead of reporting them.
	StrictRange bool `yaml:"strict_range"`
}

// PadConfig holds the ambient pad defaults.
type PadConfig struct {
	Volume float64 `yaml:"volume"`
}

// MetronomeConfig holds the click sound.
type MetronomeConfig struct {
	Volume         float64       `yaml:"volume"`
	ClickFrequency float64       `yaml:"click_frequency"`
	ClickDuration  time.Duration `yaml:"click_duration"`
}

// AutoscrollConfig holds the lyric scroll speed.
type AutoscrollConfig struct {
	Level int `yaml:"level"`
}

// SongsConfig selects the song library. When both are set, songs from File
// are imported into the database at PostgresDSN.
type SongsConfig struct {
	File        string `yaml:"file"`
	PostgresDSN string `yaml:"postgres_dsn"`
}

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddr: ":8080",
			LogLevel:   LogInfo,
		},
		Audio: AudioConfig{
			SampleRate:    44100,
			BufferSize:    2048,
			Channels:      1,
			Amplification: 1,
		},
		Detection: DetectionConfig{
			PollInterval: 200 * time.Millisecond,
			MinFrequency: 80,
			MaxFrequency: 1000,
			Threshold:    0.1,
			Method:       MethodDirect,
		},
		Pad: PadConfig{Volume: 0.5},
		Metronome: MetronomeConfig{
			Volume:         0.5,
			ClickFrequency: 800,
			ClickDuration:  20 * time.Millisecond,
		},
		Autoscroll: AutoscrollConfig{Level: 3},
	}
}
