package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/0xlemi/chordpad/internal/audio"
	"github.com/0xlemi/chordpad/internal/chord"
	"github.com/0xlemi/chordpad/internal/config"
	"github.com/0xlemi/chordpad/internal/detect"
	"github.com/0xlemi/chordpad/internal/practice"
	"github.com/0xlemi/chordpad/internal/song"
	"github.com/0xlemi/chordpad/internal/tone"
	"github.com/0xlemi/chordpad/internal/ui"
)

var (
	logFile      string
	settingsPath string
	spelling     string
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Start the terminal UI",
	RunE:  runTUI,
}

func init() {
	for _, c := range []*cobra.Command{rootCmd, tuiCmd} {
		c.Flags().StringVar(&logFile, "log-file", "chordpad.log", "file receiving logs while the UI owns the terminal")
		c.Flags().StringVar(&settingsPath, "settings", defaultSettingsPath(), "file storing volumes, transposition and scroll speed")
		c.Flags().StringVar(&spelling, "spelling", "reference", "chord spelling after transposition (reference, accidental)")
	}
	rootCmd.AddCommand(tuiCmd)
}

func defaultSettingsPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "chordpad-settings.yaml"
	}
	return filepath.Join(dir, "chordpad", "settings.yaml")
}

func runTUI(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()
	logger := newLogger(cfg.Server.LogLevel, f)
	slog.SetDefault(logger)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	songs, closeSongs, err := openSongs(ctx, cfg.Songs)
	if err != nil {
		return err
	}
	defer closeSongs()
	list, err := songs.List(ctx)
	if err != nil {
		return fmt.Errorf("list songs: %w", err)
	}
	var setlists []song.Setlist
	if store, ok := songs.(song.SetlistStore); ok {
		if setlists, err = store.Setlists(ctx); err != nil {
			return fmt.Errorf("list setlists: %w", err)
		}
	}

	settings, err := config.OpenSettings(settingsPath, config.DefaultSettings(cfg), 0, logger)
	if err != nil {
		return err
	}
	current := settings.Get()

	output := audio.NewPortAudioOutput(cfg.Audio.SampleRate, 512)
	if err := output.Open(); err != nil {
		return err
	}
	defer output.Close()

	bridge := &ui.Bridge{}
	capture := audio.NewPortAudioProvider(cfg.Audio.BufferSize, cfg.Audio.SampleRate, cfg.Audio.Channels, float32(cfg.Audio.Amplification))
	loop := detect.New(capture, newDetector(cfg.Detection), bridge, detect.Options{
		Period: cfg.Detection.PollInterval,
		Logger: logger,
	})
	defer loop.Stop()

	pad := tone.New(output, current.PadVolume, logger, nil)
	defer pad.Close()

	metronome := practice.NewMetronome(output, practice.MetronomeOptions{
		Volume:         current.MetronomeVolume,
		ClickFrequency: cfg.Metronome.ClickFrequency,
		ClickDuration:  cfg.Metronome.ClickDuration,
		Logger:         logger,
	})
	defer metronome.Stop()

	autoscroll := practice.NewAutoscroll(current.AutoscrollLevel, bridge.OnScroll)
	defer autoscroll.Stop()

	model := ui.NewModel(ui.Deps{
		Songs:      list,
		Setlists:   setlists,
		Pad:        pad,
		Loop:       loop,
		Metronome:  metronome,
		Autoscroll: autoscroll,
		Settings:   settings,
		Spelling:   chord.ParseSpellingPolicy(spelling),
	})

	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	bridge.AttachBuffered(p.Send, 64)

	logger.Info("chordpad tui starting", "songs", len(list), "setlists", len(setlists))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("run ui: %w", err)
	}
	return settings.Flush()
}
