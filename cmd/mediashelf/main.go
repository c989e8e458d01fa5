package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mediashelf/mediashelf/internal/config"
	"github.com/mediashelf/mediashelf/internal/logger"
)

var configPath string

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "mediashelf",
		Short: "Track the movies, TV shows and anime you own or want",
		Long: `mediashelf catalogs movies, TV shows and anime, searches TMDB and AniList
to add entries, and caches poster artwork locally.

Run without a subcommand to start the server.`,
		Version:       config.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runServe,
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file")

	root.AddCommand(newServeCmd(), newSearchCmd(), newMigrateCmd())
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	return config.Load(configPath)
}

func newLogger(cfg *config.Config, stream *logger.Stream) *logger.Logger {
	return logger.New(logger.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Path:       cfg.Logging.Path,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Compress:   cfg.Logging.Compress,
		Stream:     stream,
	})
}
