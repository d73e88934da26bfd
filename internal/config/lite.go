// Package config provides configuration management for the risk server.
// This file contains the lightweight configuration for standalone operation.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/cardiocare-risk-server/internal/domain"
)

// LiteConfig is a simplified configuration for standalone operation.
// It requires no external databases and keeps everything under DataDir.
type LiteConfig struct {
	// Data storage
	DataDir        string // Base directory for data files
	RecordsBackend string // csv or sqlite

	// Classifier
	ModelPath string // Logistic regression artifact; empty means DataDir/model.json

	// Sessions
	SessionTTL time.Duration

	// Logging
	LogLevel  string // Log level: debug, info, warn, error
	LogFormat string // Log format: json, text
}

// DefaultLiteConfig returns a configuration with sensible defaults.
func DefaultLiteConfig() *LiteConfig {
	homeDir, _ := os.UserHomeDir()
	dataDir := filepath.Join(homeDir, ".cardiocare")

	return &LiteConfig{
		DataDir:        dataDir,
		RecordsBackend: domain.RecordsBackendCSV,
		SessionTTL:     8 * time.Hour,
		LogLevel:       "info",
		LogFormat:      "json",
	}
}

// LoadLiteConfig loads configuration from environment variables.
// Falls back to defaults if not set.
func LoadLiteConfig() *LiteConfig {
	cfg := DefaultLiteConfig()

	if v := os.Getenv("CARDIOCARE_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("CARDIOCARE_RECORDS_BACKEND"); v == domain.RecordsBackendCSV || v == domain.RecordsBackendSQLite {
		cfg.RecordsBackend = v
	}
	cfg.ModelPath = os.Getenv("CARDIOCARE_MODEL_PATH")

	if v := os.Getenv("CARDIOCARE_SESSION_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.SessionTTL = d
		}
	}

	if v := os.Getenv("CARDIOCARE_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("CARDIOCARE_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}

	return cfg
}

// RecordsCSVPath returns the path of the CSV record file.
func (c *LiteConfig) RecordsCSVPath() string {
	return filepath.Join(c.DataDir, "patient_records.csv")
}

// RecordsDBPath returns the path of the SQLite record database.
func (c *LiteConfig) RecordsDBPath() string {
	return filepath.Join(c.DataDir, "patient_records.db")
}

// ResolvedModelPath returns ModelPath, or the default artifact location.
func (c *LiteConfig) ResolvedModelPath() string {
	if c.ModelPath != "" {
		return c.ModelPath
	}
	return filepath.Join(c.DataDir, "model.json")
}

// ExportDir returns the directory for exports.
func (c *LiteConfig) ExportDir() string {
	return filepath.Join(c.DataDir, "exports")
}

// EnsureDataDir creates the data directory if it doesn't exist.
func (c *LiteConfig) EnsureDataDir() error {
	if err := os.MkdirAll(c.DataDir, 0755); err != nil {
		return err
	}
	return os.MkdirAll(c.ExportDir(), 0755)
}

// ToConfig expands the lite settings into a full configuration with a
// single in-memory session store.
func (c *LiteConfig) ToConfig() *domain.Config {
	backend := c.RecordsBackend
	if backend == "" {
		backend = domain.RecordsBackendCSV
	}
	return &domain.Config{
		Records: domain.RecordsConfig{
			Backend:    backend,
			CSVPath:    c.RecordsCSVPath(),
			SQLitePath: c.RecordsDBPath(),
		},
		Model: domain.ModelConfig{
			Source: domain.ModelSourceFile,
			Path:   c.ResolvedModelPath(),
		},
		Session: domain.SessionConfig{
			Backend:     domain.SessionBackendMemory,
			MaxSessions: 16,
			IdleTTL:     c.SessionTTL,
		},
		Logging: domain.LoggingConfig{
			Level:  c.LogLevel,
			Format: c.LogFormat,
		},
	}
}
