package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/0xlemi/chordpad/internal/api"
	"github.com/0xlemi/chordpad/internal/observe"
)

// version is overridden at build time with -ldflags.
var version = "dev"

var listenAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the song library, transposition and detection over HTTP",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&listenAddr, "addr", "", "listen address (overrides server.listen_addr)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Server.LogLevel, os.Stderr)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Metrics.Enabled {
		shutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
			ServiceName:    "chordpad",
			ServiceVersion: version,
		})
		if err != nil {
			return fmt.Errorf("init metrics: %w", err)
		}
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				logger.Warn("metrics shutdown", "err", err)
			}
		}()
	}

	songs, closeSongs, err := openSongs(ctx, cfg.Songs)
	if err != nil {
		return err
	}
	defer closeSongs()

	addr := cfg.Server.ListenAddr
	if listenAddr != "" {
		addr = listenAddr
	}

	srv := api.New(songs, newDetector(cfg.Detection), api.Options{
		CORSOrigins:   cfg.Server.CORSOrigins,
		ExposeMetrics: cfg.Metrics.Enabled,
		Logger:        logger,
		Metrics:       observe.DefaultMetrics(),
	}).NewHTTPServer(addr)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("chordpad api listening", "addr", addr, "version", version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
