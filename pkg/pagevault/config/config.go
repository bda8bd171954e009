package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"
)

// RotationConfig configures log file rotation.
type RotationConfig struct {
	MaxSize    string `mapstructure:"max_size"`
	MaxAge     int    `mapstructure:"max_age"`
	MaxBackups int    `mapstructure:"max_backups"`
	Daily      bool   `mapstructure:"daily"`
}

// LoggingConfig configures application logging.
type LoggingConfig struct {
	Level      string            `mapstructure:"level"`
	Path       string            `mapstructure:"path"`
	Rotation   RotationConfig    `mapstructure:"rotation"`
	Components map[string]string `mapstructure:"components"`
}

// CaptureConfig configures snapshot capture behavior.
type CaptureConfig struct {
	// Theme is the appearance applied before serialization:
	// device, light, or dark.
	Theme string `mapstructure:"theme"`

	// FetchTimeout bounds a single resource fetch.
	FetchTimeout time.Duration `mapstructure:"fetch_timeout"`

	// HydrationPatterns are inline-script signatures stripped from
	// captured documents. Empty means use the built-in defaults.
	HydrationPatterns []string `mapstructure:"hydration_patterns"`
}

// StoreConfig configures manifest and payload storage.
type StoreConfig struct {
	// ManifestPath is the manifest JSON file. Empty uses the default
	// under $XDG_DATA_HOME/pagevault.
	ManifestPath string `mapstructure:"manifest_path"`

	// SnapshotsDir holds one HTML file per offline snapshot. Empty uses
	// the default under $XDG_DATA_HOME/pagevault.
	SnapshotsDir string `mapstructure:"snapshots_dir"`

	// DebounceInterval coalesces bursts of scroll/open updates into a
	// single manifest write.
	DebounceInterval time.Duration `mapstructure:"debounce_interval"`
}

// ViewerConfig configures the local replay server.
type ViewerConfig struct {
	Addr string `mapstructure:"addr"`
}

// Config represents the application configuration.
type Config struct {
	CacheCapacity int           `mapstructure:"cache_capacity"`
	Capture       CaptureConfig `mapstructure:"capture"`
	Store         StoreConfig   `mapstructure:"store"`
	Viewer        ViewerConfig  `mapstructure:"viewer"`
	Logging       LoggingConfig `mapstructure:"logging"`
}

// Load loads configuration from file and environment variables.
// Config file locations (in order of precedence):
//   - $XDG_CONFIG_HOME/pagevault/config.yaml
//   - $HOME/.config/pagevault/config.yaml
//
// Environment variables are prefixed with PAGEVAULT_
// (e.g., PAGEVAULT_CACHE_CAPACITY).
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile loads configuration like Load, but from the given file when
// cfgFile is non-empty.
func LoadFile(cfgFile string) (*Config, error) {
	v := viper.New()

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get user home directory: %w", err)
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")

		if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
			v.AddConfigPath(filepath.Join(xdgConfigHome, "pagevault"))
		}
		v.AddConfigPath(filepath.Join(homeDir, ".config", "pagevault"))
	}

	v.SetEnvPrefix("PAGEVAULT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("cache_capacity", DefaultCacheCapacity)
	v.SetDefault("capture.theme", DefaultTheme)
	v.SetDefault("capture.fetch_timeout", DefaultFetchTimeout)
	v.SetDefault("capture.hydration_patterns", []string{})
	v.SetDefault("store.manifest_path", "")
	v.SetDefault("store.snapshots_dir", "")
	v.SetDefault("store.debounce_interval", DefaultDebounceInterval)
	v.SetDefault("viewer.addr", DefaultServeAddr)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.path", "")
	v.SetDefault("logging.rotation.max_size", "10MB")
	v.SetDefault("logging.rotation.max_age", 30)
	v.SetDefault("logging.rotation.max_backups", 5)
	v.SetDefault("logging.rotation.daily", true)
	v.SetDefault("logging.components", map[string]string{
		"store":   "info",
		"capture": "info",
		"viewer":  "info",
		"inliner": "warn",
	})

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is acceptable; we use defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Store.ManifestPath == "" {
		cfg.Store.ManifestPath = DefaultManifestPath()
	} else if strings.HasPrefix(cfg.Store.ManifestPath, "~") {
		cfg.Store.ManifestPath = filepath.Join(homeDir, cfg.Store.ManifestPath[1:])
	}

	if cfg.Store.SnapshotsDir == "" {
		cfg.Store.SnapshotsDir = DefaultSnapshotsDir()
	} else if strings.HasPrefix(cfg.Store.SnapshotsDir, "~") {
		cfg.Store.SnapshotsDir = filepath.Join(homeDir, cfg.Store.SnapshotsDir[1:])
	}

	if len(cfg.Capture.HydrationPatterns) == 0 {
		cfg.Capture.HydrationPatterns = DefaultHydrationPatterns
	}

	return &cfg, nil
}

// ConfigDir returns the configuration directory path.
func ConfigDir() (string, error) {
	if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
		return filepath.Join(xdgConfigHome, "pagevault"), nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	return filepath.Join(homeDir, ".config", "pagevault"), nil
}

// EnsureConfigDir creates the config directory if it doesn't exist.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	return nil
}

// DataDir returns $XDG_DATA_HOME/pagevault/ for the manifest and payloads.
func DataDir() string {
	return filepath.Join(xdg.DataHome, "pagevault")
}

// StateDir returns $XDG_STATE_HOME/pagevault/ for log files.
func StateDir() string {
	return filepath.Join(xdg.StateHome, "pagevault")
}

// DefaultManifestPath returns the default manifest file path.
func DefaultManifestPath() string {
	return filepath.Join(DataDir(), "manifest.json")
}

// DefaultSnapshotsDir returns the default snapshot payload directory.
func DefaultSnapshotsDir() string {
	return filepath.Join(DataDir(), "snapshots")
}

// DefaultLogPath returns the default log file path.
func DefaultLogPath() string {
	return filepath.Join(StateDir(), "pagevault.log")
}

// EnsureDataDir creates the data directory if it doesn't exist.
func EnsureDataDir() error {
	if err := os.MkdirAll(DataDir(), 0o755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}
	return nil
}

// WriteDefault writes a default config file if none exists.
// Returns nil if a config file already exists.
func WriteDefault() error {
	if err := EnsureConfigDir(); err != nil {
		return err
	}

	configDir, err := ConfigDir()
	if err != nil {
		return err
	}

	configPath := filepath.Join(configDir, "config.yaml")

	if _, err := os.Stat(configPath); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("failed to check config file: %w", err)
	}

	defaultConfig := fmt.Sprintf(`# Pagevault Configuration

# Number of decoded HTML payloads kept warm in memory
cache_capacity: %d

# Capture settings
capture:
  # Appearance applied before serialization: device, light, dark
  theme: %s
  # Per-resource fetch timeout
  fetch_timeout: %s
  # Inline-script signatures stripped from captures (empty = built-in list)
  hydration_patterns: []

# Storage settings
store:
  # Manifest file (empty means $XDG_DATA_HOME/pagevault/manifest.json)
  manifest_path: ""
  # Snapshot payload directory (empty means $XDG_DATA_HOME/pagevault/snapshots)
  snapshots_dir: ""
  # Quiet period coalescing scroll/open updates into one write
  debounce_interval: %s

# Replay server
viewer:
  addr: %s

# Logging configuration
logging:
  # Log level: debug, info, warn, error
  level: info
  # Log file path (empty means $XDG_STATE_HOME/pagevault/pagevault.log)
  path: ""
  rotation:
    max_size: 10MB
    max_age: 30       # days
    max_backups: 5
    daily: true
  # Per-component log levels
  components:
    store: info
    capture: info
    viewer: info
    inliner: warn
`, DefaultCacheCapacity, DefaultTheme, DefaultFetchTimeout, DefaultDebounceInterval, DefaultServeAddr)

	if err := os.WriteFile(configPath, []byte(defaultConfig), 0o644); err != nil {
		return fmt.Errorf("failed to write default config: %w", err)
	}

	return nil
}
