// Package config loads settings from the environment, optionally seeded from
// a .env file.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config is the full set of runtime settings.
type Config struct {
	CollectorMode string `env:"COLLECTOR_MODE" envDefault:"relay"`
	UserAgent     string `env:"REDDIT_USER_AGENT" envDefault:"reddit-lanes/1.0"`
	ClientID      string `env:"REDDIT_CLIENT_ID"`
	ClientSecret  string `env:"REDDIT_CLIENT_SECRET"`
	Username      string `env:"REDDIT_USERNAME"`
	Password      string `env:"REDDIT_PASSWORD"`

	FeedBaseURL       string        `env:"FEED_BASE_URL" envDefault:"https://www.reddit.com"`
	Relays            []string      `env:"RELAYS" envSeparator:","`
	RelayTimeout      time.Duration `env:"RELAY_TIMEOUT" envDefault:"10s"`
	RelayRateInterval time.Duration `env:"RELAY_RATE_INTERVAL" envDefault:"1s"`
	RelayRateBurst    int           `env:"RELAY_RATE_BURST" envDefault:"2"`
	PostLimit         int           `env:"POST_LIMIT" envDefault:"10"`

	DataDir    string `env:"DATA_DIR" envDefault:"data/lanes"`
	StorageKey string `env:"STORAGE_KEY" envDefault:"reddit_lanes"`

	Port               string        `env:"PORT" envDefault:"8080"`
	AutoRefresh        bool          `env:"AUTO_REFRESH" envDefault:"false"`
	RefreshInterval    time.Duration `env:"REFRESH_INTERVAL" envDefault:"5m"`
	RefreshConcurrency int           `env:"REFRESH_CONCURRENCY" envDefault:"4"`

	SeedFile     string `env:"SEED_FILE" envDefault:"input/subreddits.csv"`
	KeywordsFile string `env:"KEYWORDS_FILE" envDefault:"input/keywords.csv"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// Load reads the given .env files (missing files are ignored) and parses the
// environment.
func Load(files ...string) (Config, error) {
	for _, f := range files {
		// godotenv never overrides variables that are already set.
		_ = godotenv.Load(f)
	}
	return Parse()
}

// Parse reads the environment only.
func Parse() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c Config) Validate() error {
	switch c.CollectorMode {
	case "relay", "public", "api", "mock":
	default:
		return fmt.Errorf("unknown COLLECTOR_MODE: %s (use 'relay', 'api', or 'mock')", c.CollectorMode)
	}
	if c.PostLimit < 1 || c.PostLimit > 100 {
		return fmt.Errorf("POST_LIMIT must be between 1 and 100, got %d", c.PostLimit)
	}
	if c.RefreshConcurrency < 1 {
		return fmt.Errorf("REFRESH_CONCURRENCY must be positive, got %d", c.RefreshConcurrency)
	}
	if c.AutoRefresh && c.RefreshInterval <= 0 {
		return fmt.Errorf("REFRESH_INTERVAL must be positive when AUTO_REFRESH is set")
	}
	return nil
}

// SlogLevel maps LOG_LEVEL to a slog level, defaulting to info.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
