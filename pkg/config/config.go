package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config represents the complete cask configuration.
//
// Configuration sources (in order of precedence):
//  1. CLI flags (highest priority)
//  2. Environment variables (CASK_*)
//  3. Configuration file (YAML)
//  4. Default values (lowest priority)
//
// Profile Configuration Pattern:
// Each backend type defines its own option set. A profile carries a type
// discriminator plus one type-specific section; only the section matching
// the selected type is used.
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging"`

	// DefaultProfile names the profile used when none is selected
	// explicitly. Defaults to the first configured profile.
	DefaultProfile string `mapstructure:"default_profile"`

	// Profiles defines the available storage backends
	Profiles []ProfileConfig `mapstructure:"profiles" validate:"dive"`

	// LinkServer configures the share-link HTTP endpoint
	LinkServer LinkServerConfig `mapstructure:"link_server"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive)
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" validate:"required"`
}

// ProfileConfig defines a single storage profile.
//
// The Type field determines which backend implementation is used. Only
// the corresponding type-specific section is read.
type ProfileConfig struct {
	// Name identifies the profile on the command line and in share links
	Name string `mapstructure:"name" validate:"required"`

	// Type specifies which backend implementation to use
	// Valid values: s3, azure, sftp, localfs, memory
	Type string `mapstructure:"type" validate:"required,oneof=s3 azure sftp localfs memory"`

	// S3 contains S3-specific options
	// Only used when Type = "s3"
	S3 map[string]any `mapstructure:"s3"`

	// Azure contains Azure-specific options
	// Only used when Type = "azure"
	Azure map[string]any `mapstructure:"azure"`

	// SFTP contains SFTP-specific options
	// Only used when Type = "sftp"
	SFTP map[string]any `mapstructure:"sftp"`

	// LocalFS contains local-filesystem options
	// Only used when Type = "localfs"
	LocalFS map[string]any `mapstructure:"localfs"`

	// Memory contains in-memory options
	// Only used when Type = "memory"
	Memory map[string]any `mapstructure:"memory"`
}

// LinkServerConfig configures the HTTP endpoint serving internal share
// links.
type LinkServerConfig struct {
	// Listen is the address to bind, e.g. ":8091"
	Listen string `mapstructure:"listen"`

	// RequestsPerSecond caps the sustained request rate
	// 0 disables rate limiting
	RequestsPerSecond uint `mapstructure:"requests_per_second"`

	// Burst is the token bucket capacity
	// Defaults to twice RequestsPerSecond when limiting is enabled
	Burst uint `mapstructure:"burst"`
}

// Load loads configuration from file, environment, and defaults.
//
// Parameters:
//   - configPath: Path to config file (empty string uses default location)
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: Configuration loading or validation error
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)

	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// setupViper configures viper with environment variables and config file settings.
func setupViper(v *viper.Viper, configPath string) {
	// Environment variables use the CASK_ prefix and underscores
	// Example: CASK_LOGGING_LEVEL=DEBUG
	v.SetEnvPrefix("CASK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the configuration file if it exists.
func readConfigFile(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found is acceptable - use defaults
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// getConfigDir returns the configuration directory path.
//
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config, or falls back to
// the current directory if the home directory cannot be determined.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "cask")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "cask")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}
