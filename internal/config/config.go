package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog/log"
)

// Config holds the configuration for the study-enforcer service.
// Environment variables are parsed from the STUDYTRACK_ prefix, e.g.
// STUDYTRACK_HTTP_PORT, STUDYTRACK_DATA_DIR.
type Config struct {
	// HTTP Configuration
	HTTPPort int `envconfig:"HTTP_PORT" default:"3000"`

	// DataDir is the root of all persisted state. Per-user documents live
	// under DataDir/users/<username>/.
	DataDir string `envconfig:"DATA_DIR" default:"Database"`

	// Lock policy for the file store.
	LockStaleMs       int `envconfig:"LOCK_STALE_MS" default:"30000"`
	LockRefreshMs     int `envconfig:"LOCK_REFRESH_MS" default:"2000"`
	LockRetries       int `envconfig:"LOCK_RETRIES" default:"10"`
	LockMinDelayMs    int `envconfig:"LOCK_MIN_DELAY_MS" default:"100"`
	LockMaxDelayMs    int `envconfig:"LOCK_MAX_DELAY_MS" default:"2500"`
	LockBackoffFactor int `envconfig:"LOCK_BACKOFF_FACTOR" default:"2"`
}

// New creates a Config by parsing environment variables.
func New() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("STUDYTRACK", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}

	log.Info().
		Int("http_port", cfg.HTTPPort).
		Str("data_dir", cfg.DataDir).
		Dur("lock_stale", cfg.LockStale()).
		Int("lock_retries", cfg.LockRetries).
		Msg("Configuration loaded")

	return &cfg, nil
}

// NewForTesting creates a config rooted at the given directory with a
// short lock budget so failing tests do not hang.
func NewForTesting(dataDir string) *Config {
	return &Config{
		HTTPPort:          3000,
		DataDir:           dataDir,
		LockStaleMs:       2000,
		LockRefreshMs:     200,
		LockRetries:       5,
		LockMinDelayMs:    5,
		LockMaxDelayMs:    50,
		LockBackoffFactor: 2,
	}
}

func (c *Config) LockStale() time.Duration    { return time.Duration(c.LockStaleMs) * time.Millisecond }
func (c *Config) LockRefresh() time.Duration  { return time.Duration(c.LockRefreshMs) * time.Millisecond }
func (c *Config) LockMinDelay() time.Duration { return time.Duration(c.LockMinDelayMs) * time.Millisecond }
func (c *Config) LockMaxDelay() time.Duration { return time.Duration(c.LockMaxDelayMs) * time.Millisecond }

// GetHTTPAddr returns the HTTP server listen address.
func (c *Config) GetHTTPAddr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

// UsersDir is the directory holding one subdirectory per user.
func (c *Config) UsersDir() string {
	return filepath.Join(c.DataDir, "users")
}

// UsersFile is the persisted explicit user list.
func (c *Config) UsersFile() string {
	return filepath.Join(c.DataDir, "users.json")
}

// IntervalsFile is the shared pending-inactive-interval map document.
func (c *Config) IntervalsFile() string {
	return filepath.Join(c.DataDir, "inactive_intervals.json")
}

// UserDir returns Database/users/<username>.
func (c *Config) UserDir(username string) string {
	return filepath.Join(c.UsersDir(), username)
}

// LogsPath returns the user's append-log document.
func (c *Config) LogsPath(username string) string {
	return filepath.Join(c.UserDir(username), "logs.json")
}

// TimerStatePath returns the user's timer-state document.
func (c *Config) TimerStatePath(username string) string {
	return filepath.Join(c.UserDir(username), "timer_state.json")
}
