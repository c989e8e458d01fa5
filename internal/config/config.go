package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Data      DataConfig      `mapstructure:"data"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Metadata  MetadataConfig  `mapstructure:"metadata"`
	Artwork   ArtworkConfig   `mapstructure:"artwork"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// DatabaseConfig holds database configuration.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// DataConfig holds the location of user data (settings file, image cache).
type DataConfig struct {
	Dir string `mapstructure:"dir"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Path       string `mapstructure:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// MetadataConfig holds configuration for the external search providers.
type MetadataConfig struct {
	TMDB    TMDBConfig    `mapstructure:"tmdb"`
	AniList AniListConfig `mapstructure:"anilist"`
	Retry   RetryConfig   `mapstructure:"retry"`
}

// TMDBConfig holds configuration for the movie/TV provider.
// APIKey is not read from the config file; it comes from user settings.
type TMDBConfig struct {
	APIKey       string `mapstructure:"-"`
	BaseURL      string `mapstructure:"base_url"`
	ImageBaseURL string `mapstructure:"image_base_url"`
	Language     string `mapstructure:"language"`
	Timeout      int    `mapstructure:"timeout"` // seconds
}

// AniListConfig holds configuration for the anime provider.
type AniListConfig struct {
	URL               string `mapstructure:"url"`
	Timeout           int    `mapstructure:"timeout"` // seconds
	RequestsPerMinute int    `mapstructure:"requests_per_minute"`
}

// RetryConfig controls backoff when a provider answers 429.
type RetryConfig struct {
	InitialDelay time.Duration `mapstructure:"initial_delay"`
	MaxRetries   int           `mapstructure:"max_retries"`
	Multiplier   float64       `mapstructure:"multiplier"`
}

// ArtworkConfig holds configuration for the artwork cache.
// An empty CacheDir resolves to <data.dir>/image_cache.
type ArtworkConfig struct {
	CacheDir string `mapstructure:"cache_dir"`
	Timeout  int    `mapstructure:"timeout"` // seconds
}

// SchedulerConfig holds cron expressions for maintenance tasks.
type SchedulerConfig struct {
	ArtworkPruneCron string `mapstructure:"artwork_prune_cron"`
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 8484,
		},
		Database: DatabaseConfig{
			Path: "./data/media_tracker.db",
		},
		Data: DataConfig{
			Dir: "./data",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Metadata: MetadataConfig{
			TMDB: TMDBConfig{
				BaseURL:      "https://api.themoviedb.org/3",
				ImageBaseURL: "https://image.tmdb.org/t/p",
				Language:     "en-US",
				Timeout:      15,
			},
			AniList: AniListConfig{
				URL:               "https://graphql.anilist.co",
				Timeout:           15,
				RequestsPerMinute: 90,
			},
			Retry: RetryConfig{
				InitialDelay: 5 * time.Second,
				MaxRetries:   3,
				Multiplier:   2.0,
			},
		},
		Artwork: ArtworkConfig{
			Timeout: 15,
		},
		Scheduler: SchedulerConfig{
			ArtworkPruneCron: "30 3 * * *",
		},
	}
}

// Load reads configuration from file and environment variables.
// Priority: environment variables > config file > defaults
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("$HOME/.mediashelf")
	}

	v.SetEnvPrefix("MEDIASHELF")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

// setDefaults mirrors Default() into viper so env vars and partial files merge correctly.
func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)

	v.SetDefault("database.path", d.Database.Path)
	v.SetDefault("data.dir", d.Data.Dir)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.path", "")
	v.SetDefault("logging.max_size_mb", 10)
	v.SetDefault("logging.max_backups", 5)
	v.SetDefault("logging.max_age_days", 30)
	v.SetDefault("logging.compress", true)

	v.SetDefault("metadata.tmdb.base_url", d.Metadata.TMDB.BaseURL)
	v.SetDefault("metadata.tmdb.image_base_url", d.Metadata.TMDB.ImageBaseURL)
	v.SetDefault("metadata.tmdb.language", d.Metadata.TMDB.Language)
	v.SetDefault("metadata.tmdb.timeout", d.Metadata.TMDB.Timeout)
	v.SetDefault("metadata.anilist.url", d.Metadata.AniList.URL)
	v.SetDefault("metadata.anilist.timeout", d.Metadata.AniList.Timeout)
	v.SetDefault("metadata.anilist.requests_per_minute", d.Metadata.AniList.RequestsPerMinute)
	v.SetDefault("metadata.retry.initial_delay", d.Metadata.Retry.InitialDelay)
	v.SetDefault("metadata.retry.max_retries", d.Metadata.Retry.MaxRetries)
	v.SetDefault("metadata.retry.multiplier", d.Metadata.Retry.Multiplier)

	v.SetDefault("artwork.cache_dir", "")
	v.SetDefault("artwork.timeout", d.Artwork.Timeout)

	v.SetDefault("scheduler.artwork_prune_cron", d.Scheduler.ArtworkPruneCron)
}

// Address returns the server address string.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ArtworkDir returns the directory holding cached artwork.
func (c *Config) ArtworkDir() string {
	if c.Artwork.CacheDir != "" {
		return c.Artwork.CacheDir
	}
	return filepath.Join(c.Data.Dir, "image_cache")
}

// SettingsPath returns the location of the user settings file.
func (c *Config) SettingsPath() string {
	return filepath.Join(c.Data.Dir, "settings.yaml")
}
