// Package config loads and bootstraps the shapebin YAML configuration.
package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/ssargent/shapebin/pkg/codec"
	"github.com/ssargent/shapebin/pkg/meta"
	"github.com/ssargent/shapebin/pkg/wire"
)

// Config represents the shapebin configuration
type Config struct {
	DataDir  string   `yaml:"data_dir"`
	Port     int      `yaml:"port"`
	Bind     string   `yaml:"bind"`
	Security Security `yaml:"security"`
	Codec    Codec    `yaml:"codec"`
	Journal  Journal  `yaml:"journal"`
	Storage  Storage  `yaml:"storage"`
	Logging  Logging  `yaml:"logging"`
}

// Security contains security-related configuration
type Security struct {
	APIKey string `yaml:"api_key"`
}

// Codec selects the encoding options used by the CLI and the server
type Codec struct {
	Endian        string `yaml:"endian"`         // big, little or native
	AddressLength int    `yaml:"address_length"` // 0 = native
	NameCase      string `yaml:"name_case"`      // snake, kebab, camel, ...
	Concurrent    bool   `yaml:"concurrent"`
}

// Journal configures the append-only blob journal
type Journal struct {
	Path          string        `yaml:"path"` // relative to data_dir
	FsyncInterval time.Duration `yaml:"fsync_interval"`
	BufferSize    int           `yaml:"buffer_size"`
}

// Storage configures the pebble blob store
type Storage struct {
	Path        string `yaml:"path"` // relative to data_dir
	Sync        bool   `yaml:"sync"`
	MaxBlobSize int64  `yaml:"max_blob_size"`
}

// Logging contains logging configuration
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json or console
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		DataDir: "./data",
		Port:    8080,
		Bind:    "127.0.0.1",
		Security: Security{
			APIKey: "auto",
		},
		Codec: Codec{
			Endian:     "native",
			Concurrent: true,
		},
		Journal: Journal{
			Path:       "journal/blobs.journal",
			BufferSize: 64 * 1024,
		},
		Storage: Storage{
			Path:        "blobs",
			MaxBlobSize: 64 << 20,
		},
		Logging: Logging{
			Level:  "info",
			Format: "console",
		},
	}
}

// LoadConfig loads configuration from the specified path. Keys missing from
// the file keep their default values.
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

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
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

// BootstrapConfig creates a new configuration with a generated API key
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
		return "./shapebin.yaml"
	}

	// ~/.config/shapebin/config.yaml
	return filepath.Join(homeDir, ".config", "shapebin", "config.yaml")
}

// ConfigExists checks if a configuration file exists
func ConfigExists(configPath string) bool {
	_, err := os.Stat(configPath)
	return !os.IsNotExist(err)
}

// Validate checks values that cannot be caught by the YAML decoder
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if _, err := c.CodecOptions(); err != nil {
		return err
	}
	if _, err := zapcore.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("invalid logging level: %w", err)
	}
	switch c.Logging.Format {
	case "", "json", "console":
	default:
		return fmt.Errorf("invalid logging format %q", c.Logging.Format)
	}
	return nil
}

// CodecOptions converts the codec section into codec options
func (c *Config) CodecOptions() ([]codec.Option, error) {
	endian, err := wire.ParseEndian(c.Codec.Endian)
	if err != nil {
		return nil, fmt.Errorf("invalid codec endian: %w", err)
	}
	names, err := meta.ParseNameTransform(c.Codec.NameCase)
	if err != nil {
		return nil, fmt.Errorf("invalid codec name_case: %w", err)
	}
	if n := c.Codec.AddressLength; n != 0 && !wire.ValidAddressLength(n) {
		return nil, fmt.Errorf("invalid codec address_length %d", n)
	}
	return []codec.Option{
		codec.WithEndian(endian),
		codec.WithAddressLength(c.Codec.AddressLength),
		codec.WithNameTransform(names),
		codec.WithConcurrency(c.Codec.Concurrent),
	}, nil
}

// JournalPath returns the absolute or data-dir relative journal path
func (c *Config) JournalPath() string {
	return c.resolve(c.Journal.Path)
}

// StoragePath returns the absolute or data-dir relative blob store path
func (c *Config) StoragePath() string {
	return c.resolve(c.Storage.Path)
}

func (c *Config) resolve(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.DataDir, p)
}

// NewLogger builds a zap logger from the logging section
func (c *Config) NewLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid logging level: %w", err)
	}

	var zc zap.Config
	if c.Logging.Format == "json" {
		zc = zap.NewProductionConfig()
	} else {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}
