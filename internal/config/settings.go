package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bep/debounce"
	"gopkg.in/yaml.v3"
)

// DefaultSettingsDelay coalesces bursts of settings changes (e.g. holding
// a volume key) into a single write.
const DefaultSettingsDelay = 500 * time.Millisecond

// Settings are the user preferences that survive restarts.
type Settings struct {
	PadVolume       float64 `yaml:"pad_volume"`
	MetronomeVolume float64 `yaml:"metronome_volume"`
	Transpose       int     `yaml:"transpose"`
	AutoscrollLevel int     `yaml:"autoscroll_level"`
}

// DefaultSettings derives the initial settings from cfg.
func DefaultSettings(cfg *Config) Settings {
	return Settings{
		PadVolume:       cfg.Pad.Volume,
		MetronomeVolume: cfg.Metronome.Volume,
		AutoscrollLevel: cfg.Autoscroll.Level,
	}
}

// SettingsStore persists [Settings] to a YAML file. Updates are debounced;
// call [SettingsStore.Flush] before exiting.
type SettingsStore struct {
	path     string
	debounce func(func())
	logger   *slog.Logger

	mu      sync.Mutex
	current Settings
	dirty   bool
}

// OpenSettings loads the settings file at path. A missing file yields
// defaults; the file is created on the first save.
func OpenSettings(path string, defaults Settings, delay time.Duration, logger *slog.Logger) (*SettingsStore, error) {
	if delay <= 0 {
		delay = DefaultSettingsDelay
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &SettingsStore{
		path:     path,
		debounce: debounce.New(delay),
		logger:   logger,
		current:  defaults,
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("config: read settings %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &s.current); err != nil {
		return nil, fmt.Errorf("config: parse settings %q: %w", path, err)
	}
	return s, nil
}

// Get returns the current settings.
func (s *SettingsStore) Get() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Update applies fn to the settings and schedules a write.
func (s *SettingsStore) Update(fn func(*Settings)) {
	s.mu.Lock()
	fn(&s.current)
	s.dirty = true
	s.mu.Unlock()

	s.debounce(func() {
		if err := s.Flush(); err != nil {
			s.logger.Warn("failed to save settings", "path", s.path, "err", err)
		}
	})
}

// Flush writes pending changes now.
func (s *SettingsStore) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.dirty {
		return nil
	}

	data, err := yaml.Marshal(s.current)
	if err != nil {
		return fmt.Errorf("config: encode settings: %w", err)
	}
	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("config: create settings dir: %w", err)
		}
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("config: write settings: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("config: replace settings: %w", err)
	}
	s.dirty = false
	return nil
}
