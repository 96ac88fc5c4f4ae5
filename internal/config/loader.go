package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads the YAML configuration file at path and returns a validated [Config].
// Fields missing from the file keep their [Default] values.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r over the defaults and
// validates the result. An empty document yields [Default].
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// Audio
	if cfg.Audio.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("audio.sample_rate must be positive, got %d", cfg.Audio.SampleRate))
	}
	if cfg.Audio.BufferSize < 4 {
		errs = append(errs, fmt.Errorf("audio.buffer_size must be at least 4, got %d", cfg.Audio.BufferSize))
	}
	if cfg.Audio.Channels < 1 || cfg.Audio.Channels > 2 {
		errs = append(errs, fmt.Errorf("audio.channels %d is out of range [1, 2]", cfg.Audio.Channels))
	}
	if cfg.Audio.Amplification <= 0 {
		errs = append(errs, fmt.Errorf("audio.amplification must be positive, got %.2f", cfg.Audio.Amplification))
	}

	// Detection
	d := cfg.Detection
	if d.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("detection.poll_interval must be positive, got %s", d.PollInterval))
	}
	if d.MinFrequency <= 0 || d.MaxFrequency <= d.MinFrequency {
		errs = append(errs, fmt.Errorf("detection frequency range [%.1f, %.1f] is invalid", d.MinFrequency, d.MaxFrequency))
	}
	if cfg.Audio.SampleRate > 0 && d.MaxFrequency >= float64(cfg.Audio.SampleRate)/2 {
		errs = append(errs, fmt.Errorf("detection.max_frequency %.1f must be below the Nyquist frequency %d", d.MaxFrequency, cfg.Audio.SampleRate/2))
	}
	if d.Threshold <= 0 || d.Threshold >= 1 {
		errs = append(errs, fmt.Errorf("detection.threshold %.3f is out of range (0, 1)", d.Threshold))
	}
	if d.Method != "" && !d.Method.IsValid() {
		errs = append(errs, fmt.Errorf("detection.method %q is invalid; valid values: direct, fft", d.Method))
	}

	// Volumes
	if cfg.Pad.Volume < 0 || cfg.Pad.Volume > 1 {
		errs = append(errs, fmt.Errorf("pad.volume %.2f is out of range [0, 1]", cfg.Pad.Volume))
	}
	if cfg.Metronome.Volume < 0 || cfg.Metronome.Volume > 1 {
		errs = append(errs, fmt.Errorf("metronome.volume %.2f is out of range [0, 1]", cfg.Metronome.Volume))
	}
	if cfg.Metronome.ClickFrequency <= 0 {
		errs = append(errs, fmt.Errorf("metronome.click_frequency must be positive, got %.1f", cfg.Metronome.ClickFrequency))
	}
	if cfg.Metronome.ClickDuration <= 0 {
		errs = append(errs, fmt.Errorf("metronome.click_duration must be positive, got %s", cfg.Metronome.ClickDuration))
	}

	if cfg.Autoscroll.Level < 0 || cfg.Autoscroll.Level > 10 {
		errs = append(errs, fmt.Errorf("autoscroll.level %d is out of range [0, 10]", cfg.Autoscroll.Level))
	}

	if cfg.Songs.File != "" && cfg.Songs.PostgresDSN != "" {
		slog.Info("songs.file and songs.postgres_dsn are both set; the file seeds the database")
	}

	return errors.Join(errs...)
}
