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

	"github.com/mediashelf/mediashelf/internal/api"
	"github.com/mediashelf/mediashelf/internal/app"
	"github.com/mediashelf/mediashelf/internal/config"
	"github.com/mediashelf/mediashelf/internal/logger"
	"github.com/mediashelf/mediashelf/internal/scheduler"
	"github.com/mediashelf/mediashelf/internal/scheduler/tasks"
	"github.com/mediashelf/mediashelf/internal/websocket"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server (default)",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	stream := logger.NewStream(0)
	log := newLogger(cfg, stream)
	defer log.Close()

	log.Info().
		Str("version", config.Version).
		Str("logLevel", cfg.Logging.Level).
		Msg("Starting mediashelf")

	hub := websocket.NewHub(log.Logger)
	go hub.Run()
	defer hub.Stop()
	stream.Attach(hub)

	application, err := app.New(cfg, log.Logger, hub)
	if err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}
	defer application.Close()

	sched, err := scheduler.New(log.Logger)
	if err != nil {
		return err
	}
	if err := tasks.RegisterArtworkPruneTask(sched, application, cfg.Scheduler.ArtworkPruneCron, log.Logger); err != nil {
		return err
	}
	sched.Start()
	defer func() {
		if err := sched.Stop(); err != nil {
			log.Warn().Err(err).Msg("Scheduler shutdown error")
		}
	}()

	server := api.NewServer(application, hub, sched, cfg, log.Logger)
	server.EnableLogs(stream, log.FilePath())

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start(cfg.Server.Address())
	}()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case <-ctx.Done():
		log.Info().Msg("Received shutdown signal")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown error")
	}

	log.Info().Msg("Server stopped")
	return nil
}
