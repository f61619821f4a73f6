package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ssargent/beanstore/pkg/storage"
)

// Config represents the beanstore configuration
type Config struct {
	DataDir    string     `yaml:"data_dir"`
	Port       int        `yaml:"port"`
	Bind       string     `yaml:"bind"`
	Storage    Storage    `yaml:"storage"`
	Procedures Procedures `yaml:"procedures"`
	Security   Security   `yaml:"security"`
	Logging    Logging    `yaml:"logging"`
}

// Storage selects and tunes the storage engine
type Storage struct {
	Engine     string `yaml:"engine"`
	SyncWrites bool   `yaml:"sync_writes"`
}

// Procedures bounds how procedures run
type Procedures struct {
	MaxRedo     int           `yaml:"max_redo"`
	MaxDuration time.Duration `yaml:"max_duration"`
	LockStripes int           `yaml:"lock_stripes"`
}

// Security contains security-related configuration
type Security struct {
	APIKey        string `yaml:"api_key"`
	MaxRecordSize int    `yaml:"max_record_size"`
}

// Logging contains logging configuration
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		DataDir: "./data",
		Port:    8080,
		Bind:    "127.0.0.1",
		Storage: Storage{
			Engine: storage.EnginePebble,
		},
		Procedures: Procedures{
			MaxRedo:     5,
			MaxDuration: 30 * time.Second,
			LockStripes: 1024,
		},
		Security: Security{
			APIKey:        "auto",
			MaxRecordSize: 1 << 20,
		},
		Logging: Logging{
			Level:  "info",
			Format: "text",
		},
	}
}

// Validate reports the first setting that cannot work.
func (c *Config) Validate() error {
	var errs []error
	if c.DataDir == "" && c.Storage.Engine != storage.EngineMemory {
		errs = append(errs, errors.New("data_dir is required"))
	}
	if c.Port < 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	switch c.Storage.Engine {
	case storage.EnginePebble, storage.EngineBolt, storage.EngineLog, storage.EngineMemory:
	default:
		errs = append(errs, fmt.Errorf("storage.engine %q: %w", c.Storage.Engine, storage.ErrUnknownEngine))
	}
	if c.Procedures.MaxRedo < 0 {
		errs = append(errs, errors.New("procedures.max_redo must not be negative"))
	}
	if c.Procedures.MaxDuration < 0 {
		errs = append(errs, errors.New("procedures.max_duration must not be negative"))
	}
	if c.Security.MaxRecordSize < 0 {
		errs = append(errs, errors.New("security.max_record_size must not be negative"))
	}
	if _, err := c.Logging.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	switch c.Logging.Format {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format %q: want text or json", c.Logging.Format))
	}
	return errors.Join(errs...)
}

// SlogLevel parses Level.
func (l Logging) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if l.Level == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(strings.ToLower(l.Level))); err != nil {
		return 0, fmt.Errorf("logging.level: %w", err)
	}
	return level, nil
}

// NewLogger builds the process logger writing to w.
func (l Logging) NewLogger(w io.Writer) (*slog.Logger, error) {
	level, err := l.SlogLevel()
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if l.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

// LoadConfig loads configuration from the specified path
func LoadConfig(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file does not exist: %s", configPath)
	}

	if !filepath.IsAbs(configPath) {
		absPath, err := filepath.Abs(configPath)
		if err != nil {
			return nil, fmt.Errorf("invalid config path: %w", err)
		}
		configPath = absPath
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Start from defaults so older files pick up new settings.
	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveConfig saves the configuration to the specified path with secure permissions
func SaveConfig(config *Config, configPath string) error {
	configDir := filepath.Dir(configPath)
	if err := os.MkdirAll(configDir, 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// GenerateSecureKey generates a cryptographically secure random key
func GenerateSecureKey(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate secure key: %w", err)
	}
	return hex.EncodeToString(bytes), nil
}

// BootstrapConfig creates a new configuration with a generated API key and
// writes it to configPath
func BootstrapConfig(configPath string, dataDir string) (*Config, error) {
	config := DefaultConfig()
	if dataDir != "" {
		config.DataDir = dataDir
	}

	apiKey, err := GenerateSecureKey(32)
	if err != nil {
		return nil, fmt.Errorf("failed to generate API key: %w", err)
	}
	config.Security.APIKey = apiKey

	if err := SaveConfig(config, configPath); err != nil {
		return nil, fmt.Errorf("failed to save bootstrap config: %w", err)
	}

	return config, nil
}

// GetDefaultConfigPath returns the default configuration path for the current platform
func GetDefaultConfigPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "./beanstore.yaml"
	}

	// ~/.config/beanstore/config.yaml
	return filepath.Join(homeDir, ".config", "beanstore", "config.yaml")
}

// ConfigExists checks if a configuration file exists
func ConfigExists(configPath string) bool {
	_, err := os.Stat(configPath)
	return !os.IsNotExist(err)
}
