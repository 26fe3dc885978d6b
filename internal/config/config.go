package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/joho/godotenv"

	"clipdeck/pkg/models"
)

var (
	ErrInvalidPort      = errors.New("invalid port: must be between 1 and 65535")
	ErrInvalidServerURL = errors.New("invalid server URL: must be an http or https URL")
	ErrInvalidCacheSize = errors.New("invalid download size cap: must be non-negative")
	ErrInvalidDecimals  = errors.New("invalid size decimals: must be between 0 and 10")
	ErrInvalidLogLevel  = errors.New("invalid log level: must be debug, info, warn or error")
)

// Environment variables that override the config file
const (
	EnvServerURL   = "CLIPDECK_SERVER_URL"
	EnvDownloadDir = "CLIPDECK_DOWNLOAD_DIR"
	EnvMpvPath     = "CLIPDECK_MPV_PATH"
	EnvControlPort = "CLIPDECK_CONTROL_PORT"
	EnvLogs        = "LOGS"
)

// Manager handles configuration loading, saving, and updates
type Manager struct {
	mu         sync.RWMutex
	config     *models.Config
	configPath string
}

// NewManager creates a new configuration manager
// If the config file doesn't exist, it creates one with default values
func NewManager(configPath string) (*Manager, error) {
	manager := &Manager{
		configPath: configPath,
		config:     models.DefaultConfig(),
	}

	if _, err := os.Stat(configPath); err == nil {
		if err := manager.load(); err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	} else {
		configDir := filepath.Dir(configPath)
		if err := os.MkdirAll(configDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create config directory: %w", err)
		}

		if err := manager.Save(); err != nil {
			return nil, fmt.Errorf("failed to save default config: %w", err)
		}
	}

	if err := Validate(manager.config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return manager, nil
}

// Get returns a copy of the configuration as stored on disk
func (m *Manager) Get() *models.Config {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cfg := *m.config
	return &cfg
}

// Effective returns the stored configuration with environment overrides
// applied. Overrides are never written back.
func (m *Manager) Effective() (*models.Config, error) {
	cfg := m.Get()
	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Update applies a function to the configuration and saves it
func (m *Manager) Update(fn func(*models.Config)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	updated := *m.config
	fn(&updated)

	if err := Validate(&updated); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	m.config = &updated
	return m.save()
}

// Save writes the current configuration to disk
func (m *Manager) Save() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.save()
}

// load reads configuration from disk. Fields missing from the file keep
// their defaults.
func (m *Manager) load() error {
	data, err := os.ReadFile(m.configPath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := models.DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config JSON: %w", err)
	}

	m.config = mergeWithDefaults(cfg)

	return nil
}

// save writes configuration to disk (must be called with lock held)
func (m *Manager) save() error {
	data, err := json.MarshalIndent(m.config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(m.configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// mergeWithDefaults fills in defaults for fields explicitly left empty
func mergeWithDefaults(cfg *models.Config) *models.Config {
	defaults := models.DefaultConfig()

	if cfg.ServerURL == "" {
		cfg.ServerURL = defaults.ServerURL
	}
	if cfg.MpvPath == "" {
		cfg.MpvPath = defaults.MpvPath
	}
	if cfg.ControlPort == 0 {
		cfg.ControlPort = defaults.ControlPort
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = defaults.LogLevel
	}

	return cfg
}

// Validate checks if the configuration is valid
func Validate(cfg *models.Config) error {
	u, err := url.Parse(cfg.ServerURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ErrInvalidServerURL
	}

	if cfg.ControlPort < 1 || cfg.ControlPort > 65535 {
		return ErrInvalidPort
	}

	if cfg.DownloadMaxSizeGB < 0 {
		return ErrInvalidCacheSize
	}

	if cfg.SizeDecimals < 0 || cfg.SizeDecimals > 10 {
		return ErrInvalidDecimals
	}

	if _, err := ParseLogLevel(cfg.LogLevel); err != nil {
		return err
	}

	return nil
}

// LoadEnvFiles loads variables from the given dotenv files, skipping the
// ones that do not exist. Variables already set in the environment win.
func LoadEnvFiles(files ...string) error {
	var present []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			present = append(present, f)
		}
	}
	if len(present) == 0 {
		return nil
	}

	if err := godotenv.Load(present...); err != nil {
		return fmt.Errorf("failed to load env files: %w", err)
	}
	return nil
}

// ApplyEnv overrides cfg with whatever CLIPDECK_* variables are set
func ApplyEnv(cfg *models.Config) error {
	if v := os.Getenv(EnvServerURL); v != "" {
		cfg.ServerURL = v
	}
	if v := os.Getenv(EnvDownloadDir); v != "" {
		cfg.DownloadDir = v
	}
	if v := os.Getenv(EnvMpvPath); v != "" {
		cfg.MpvPath = v
	}
	if v := os.Getenv(EnvControlPort); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q", ErrInvalidPort, EnvControlPort, v)
		}
		cfg.ControlPort = port
		cfg.ControlEnabled = true
	}
	if v, err := strconv.ParseBool(os.Getenv(EnvLogs)); err == nil && v {
		cfg.LogLevel = "debug"
	}
	return nil
}

// ParseLogLevel maps a config log level onto slog
func ParseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("%w: %q", ErrInvalidLogLevel, level)
	}
}

// DownloadPath returns the configured downloads directory, or the default
// one under the data directory
func DownloadPath(cfg *models.Config) string {
	if cfg.DownloadDir != "" {
		return cfg.DownloadDir
	}
	return filepath.Join(GetDataDir(), "downloads")
}

// GetDataDir returns the application data directory
func GetDataDir() string {
	if configDir, err := os.UserConfigDir(); err == nil {
		dataDir := filepath.Join(configDir, "clipdeck")
		os.MkdirAll(dataDir, 0755)
		return dataDir
	}

	if home, err := os.UserHomeDir(); err == nil {
		dataDir := filepath.Join(home, ".clipdeck")
		os.MkdirAll(dataDir, 0755)
		return dataDir
	}

	return "."
}

// GetDefaultConfigPath returns the default configuration file path
func GetDefaultConfigPath() string {
	return filepath.Join(GetDataDir(), "config.json")
}

// GetDefaultSessionPath returns where the login session is kept
func GetDefaultSessionPath() string {
	return filepath.Join(GetDataDir(), "session.json")
}
