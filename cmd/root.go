package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/0xlemi/chordpad/internal/config"
	"github.com/0xlemi/chordpad/internal/pitch"
	"github.com/0xlemi/chordpad/internal/song"
)

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "chordpad",
	Short: "Chord charts, ambient pad and tap-to-hum pitch detection",
	Long: `chordpad plays a sustained reference pad, detects a hummed pitch from the
microphone and shows chord charts transposed to any key.

Run without a subcommand to start the terminal UI.`,
	SilenceUsage: true,
	RunE:         runTUI,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to the YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override the log level (debug, info, warn, error)")
}

// loadConfig reads --config, falling back to defaults when no file is given
func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if configPath != "" {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("config file %q not found", configPath)
			}
			return nil, err
		}
	}
	if logLevel != "" {
		cfg.Server.LogLevel = config.LogLevel(logLevel)
		if !cfg.Server.LogLevel.IsValid() {
			return nil, fmt.Errorf("invalid --log-level %q", logLevel)
		}
	}
	return cfg, nil
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel, w io.Writer) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
}

// ── Wiring helpers ─────────────────────────────────────────────────────────────

func newDetector(cfg config.DetectionConfig) *pitch.YINDetector {
	d := pitch.NewYINDetector()
	d.MinFrequency = cfg.MinFrequency
	d.MaxFrequency = cfg.MaxFrequency
	d.Threshold = cfg.Threshold
	d.StrictRange = cfg.StrictRange
	if cfg.Method == config.MethodFFT {
		d.Method = pitch.FFT
	}
	return d
}

// openSongs builds the configured song store. With both a DSN and a file,
// the file seeds the database.
func openSongs(ctx context.Context, cfg config.SongsConfig) (song.Store, func(), error) {
	noop := func() {}

	var fileStore *song.MemStore
	if cfg.File != "" {
		var err error
		fileStore, err = song.LoadFile(cfg.File)
		if err != nil {
			return nil, noop, err
		}
	}

	if cfg.PostgresDSN == "" {
		if fileStore != nil {
			return fileStore, noop, nil
		}
		empty, err := song.NewMemStore()
		return empty, noop, err
	}

	pool, err := pgxpool.New(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, noop, fmt.Errorf("connect song database: %w", err)
	}
	store := song.NewPostgresStore(pool)
	if err := store.Migrate(ctx); err != nil {
		pool.Close()
		return nil, noop, err
	}
	if fileStore != nil {
		songs, err := fileStore.List(ctx)
		if err == nil {
			err = store.Import(ctx, songs)
		}
		var lists []song.Setlist
		if err == nil {
			lists, err = fileStore.Setlists(ctx)
		}
		if err == nil {
			err = store.ImportSetlists(ctx, lists)
		}
		if err != nil {
			pool.Close()
			return nil, noop, err
		}
		slog.Info("seeded song database", "file", cfg.File, "songs", len(songs), "setlists", len(lists))
	}
	return store, pool.Close, nil
}
