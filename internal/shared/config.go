package shared

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Detector batch scopes.
const (
	ScopePlaylist = "playlist" // evaluate every item of the playlist
	ScopeAdded    = "added"    // evaluate only the items of the event
)

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Database DatabaseConfig `toml:"database"`
	Detector DetectorConfig `toml:"detector"`
	Metadata MetadataConfig `toml:"metadata"`
	Watch    WatchConfig    `toml:"watch"`
	Log      LogConfig      `toml:"log"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
	LockPath     string `toml:"lock_path"`
}

// DetectorConfig tunes the cue fix evaluation.
type DetectorConfig struct {
	Workers  int     `toml:"workers"`   // pass one parallelism, 0 means GOMAXPROCS
	Scope    string  `toml:"scope"`     // "playlist" or "added"
	StatRate float64 `toml:"stat_rate"` // filesystem checks per second, 0 means unlimited
}

// MetadataConfig controls the tag reader.
type MetadataConfig struct {
	CacheSize int  `toml:"cache_size"`
	ReadTags  bool `toml:"read_tags"`
}

// WatchConfig controls the directory watcher.
type WatchConfig struct {
	DebounceMS int      `toml:"debounce_ms"`
	Patterns   []string `toml:"patterns"`
}

// LogConfig controls the logger.
type LogConfig struct {
	Level string `toml:"level"`
}

// Debounce returns the watch debounce window.
func (w WatchConfig) Debounce() time.Duration {
	return time.Duration(w.DebounceMS) * time.Millisecond
}

// LibraryLockPath returns the lock file guarding playlist mutations.
func (c *Config) LibraryLockPath() string {
	if c.Database.LockPath != "" {
		return c.Database.LockPath
	}
	return c.Database.Path + ".lock"
}

// Validate rejects values the detector cannot run with.
func (c *Config) Validate() error {
	switch c.Detector.Scope {
	case ScopePlaylist, ScopeAdded:
	default:
		return fmt.Errorf("%w: detector.scope must be %q or %q, got %q", ErrInvalidConfig, ScopePlaylist, ScopeAdded, c.Detector.Scope)
	}
	if c.Detector.Workers < 0 {
		return fmt.Errorf("%w: detector.workers must not be negative", ErrInvalidConfig)
	}
	if c.Detector.StatRate < 0 {
		return fmt.Errorf("%w: detector.stat_rate must not be negative", ErrInvalidConfig)
	}
	if c.Metadata.CacheSize < 0 {
		return fmt.Errorf("%w: metadata.cache_size must not be negative", ErrInvalidConfig)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("%w: database.path is required", ErrInvalidConfig)
	}
	if _, err := ParseLogLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Keys missing from the file keep their default values.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
