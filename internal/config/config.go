package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config represents the full application configuration surface.
type Config struct {
	API     APIConfig
	Console ConsoleConfig
	Stub    StubConfig
}

// APIConfig holds options for talking to the remote BizTrack service.
type APIConfig struct {
	BaseURL string
	// Timeout bounds every remote call; a hung request eventually surfaces
	// as a plain failure instead of pending forever.
	Timeout time.Duration
	// RetryCount enables resty's transport-level retries when > 0.
	RetryCount int
}

// ConsoleConfig holds client-side options.
type ConsoleConfig struct {
	// TokenPath locates the single persisted credential file.
	TokenPath string
	// WatchCron drives the dashboard auto-refresh in watch mode.
	WatchCron string
}

// StubConfig holds options for the local development server.
type StubConfig struct {
	Port string
}

// Load reads environment variables (optionally from the provided file) and
// materializes a Config instance.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed loading env file %s: %w", envFile, err)
			}
		}
	} else {
		// Ignore the returned error here; missing .env files are acceptable when
		// configuration comes from the environment directly.
		_ = godotenv.Load()
	}

	timeoutSecs, err := getenvInt("BIZTRACK_TIMEOUT_SECONDS", 15)
	if err != nil {
		return nil, err
	}
	retries, err := getenvInt("BIZTRACK_RETRY_COUNT", 0)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		API: APIConfig{
			BaseURL:    getenvWithDefault("BIZTRACK_API_URL", "http://localhost:8081"),
			Timeout:    time.Duration(timeoutSecs) * time.Second,
			RetryCount: retries,
		},
		Console: ConsoleConfig{
			TokenPath: getenvWithDefault("BIZTRACK_TOKEN_PATH", defaultTokenPath()),
			WatchCron: getenvWithDefault("BIZTRACK_WATCH_CRON", "@every 1m"),
		},
		Stub: StubConfig{
			Port: getenvWithDefault("STUB_PORT", "8081"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate ensures that required configuration fields are populated.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}

	if c.API.BaseURL == "" {
		return errors.New("BIZTRACK_API_URL must not be empty")
	}
	if c.API.Timeout <= 0 {
		return errors.New("BIZTRACK_TIMEOUT_SECONDS must be positive")
	}
	if c.API.RetryCount < 0 {
		return errors.New("BIZTRACK_RETRY_COUNT must not be negative")
	}
	if c.Console.TokenPath == "" {
		return errors.New("BIZTRACK_TOKEN_PATH must be provided")
	}
	if c.Console.WatchCron == "" {
		return errors.New("BIZTRACK_WATCH_CRON must be provided")
	}
	if c.Stub.Port == "" {
		return errors.New("STUB_PORT must be provided")
	}

	return nil
}

func defaultTokenPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".biztrack", "token")
	}
	return filepath.Join(home, ".biztrack", "token")
}

func getenvWithDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getenvInt(key string, fallback int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}
