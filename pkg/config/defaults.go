package config

import (
	"strings"
)

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// This function is called after loading configuration from file and environment
// variables to fill in any missing values with sensible defaults.
//
// Default Strategy:
//   - Zero values (0, "", false, nil) are replaced with defaults
//   - Explicit values are preserved
//   - Backend-specific defaults are handled by backend constructors
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyLinkServerDefaults(&cfg.LinkServer)

	for i := range cfg.Profiles {
		applyProfileDefaults(&cfg.Profiles[i])
	}

	// The first profile is the default when none is named.
	if cfg.DefaultProfile == "" && len(cfg.Profiles) > 0 {
		cfg.DefaultProfile = cfg.Profiles[0].Name
	}
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	// Normalize log level to uppercase for consistent internal representation
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Output == "" {
		cfg.Output = "stderr"
	}
}

// applyLinkServerDefaults sets share-link server defaults.
func applyLinkServerDefaults(cfg *LinkServerConfig) {
	if cfg.Listen == "" {
		cfg.Listen = ":8091"
	}
	if cfg.RequestsPerSecond > 0 && cfg.Burst == 0 {
		cfg.Burst = cfg.RequestsPerSecond * 2
	}
}

// applyProfileDefaults initializes the per-type option maps.
func applyProfileDefaults(cfg *ProfileConfig) {
	if cfg.S3 == nil {
		cfg.S3 = make(map[string]any)
	}
	if cfg.Azure == nil {
		cfg.Azure = make(map[string]any)
	}
	if cfg.SFTP == nil {
		cfg.SFTP = make(map[string]any)
	}
	if cfg.LocalFS == nil {
		cfg.LocalFS = make(map[string]any)
	}
	if cfg.Memory == nil {
		cfg.Memory = make(map[string]any)
	}
}
