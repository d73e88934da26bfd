package config

import (
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/viper"

	"github.com/cardiocare-risk-server/internal/database"
	"github.com/cardiocare-risk-server/internal/domain"
)

var _ domain.ConfigManager = (*Manager)(nil)

// Manager implements the ConfigManager interface using Viper
// Reload swaps the loaded values under mu; getters see either the old or
// the new configuration, never a mix.
type Manager struct {
	configFile string

	mu     sync.RWMutex
	v      *viper.Viper
	config *domain.Config
}

// NewManager creates a new configuration manager. configFile may be empty,
// in which case config.yaml is searched in the default locations.
func NewManager(configFile string) (*Manager, error) {
	m := &Manager{configFile: configFile}
	if err := m.loadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return m, nil
}

// loadConfig loads configuration from various sources
func (m *Manager) loadConfig() error {
	v := viper.New()

	if m.configFile != "" {
		v.SetConfigFile(m.configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/cardiocare/")
	}

	v.SetEnvPrefix("CARDIOCARE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Read configuration file (optional - will use defaults and env vars if not found)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &domain.Config{}
	if err := v.Unmarshal(config); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}

	m.mu.Lock()
	m.v = v
	m.config = config
	m.mu.Unlock()
	return nil
}

func (m *Manager) current() *domain.Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

func (m *Manager) environment() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return strings.ToLower(m.v.GetString("environment"))
}

// setDefaults sets default configuration values. Every key needs a default
// so AutomaticEnv can override it during Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.database", "cardiocare")
	v.SetDefault("database.username", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.conn_max_lifetime", "1h")
	v.SetDefault("database.conn_max_idle_time", "30m")
	v.SetDefault("database.migrations_path", database.DefaultMigrationsPath)

	// Record store defaults
	v.SetDefault("records.backend", domain.RecordsBackendCSV)
	v.SetDefault("records.csv_path", "data/patient_records.csv")
	v.SetDefault("records.sqlite_path", "data/patient_records.db")

	// Model defaults
	v.SetDefault("model.source", domain.ModelSourceFile)
	v.SetDefault("model.path", "models/heart_logistic.json")
	v.SetDefault("model.remote_url", "")
	v.SetDefault("model.timeout", "10s")
	v.SetDefault("model.rate_limit", 20)
	v.SetDefault("model.cache_size", 256)

	// Session defaults
	v.SetDefault("session.backend", domain.SessionBackendMemory)
	v.SetDefault("session.max_sessions", 1024)
	v.SetDefault("session.idle_ttl", "30m")
	v.SetDefault("session.redis_url", "redis://localhost:6379/0")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// GetConfig returns the complete configuration
func (m *Manager) GetConfig() *domain.Config {
	return m.current()
}

// GetServerConfig returns server configuration
func (m *Manager) GetServerConfig() *domain.ServerConfig {
	return &m.current().Server
}

// GetDatabaseConfig returns database configuration
func (m *Manager) GetDatabaseConfig() *domain.DatabaseConfig {
	return &m.current().Database
}

// GetRecordsConfig returns record store configuration
func (m *Manager) GetRecordsConfig() *domain.RecordsConfig {
	return &m.current().Records
}

// GetModelConfig returns classifier configuration
func (m *Manager) GetModelConfig() *domain.ModelConfig {
	return &m.current().Model
}

// GetSessionConfig returns session store configuration
func (m *Manager) GetSessionConfig() *domain.SessionConfig {
	return &m.current().Session
}

// Reload reloads the configuration
func (m *Manager) Reload() error {
	return m.loadConfig()
}

// Validate validates the configuration
func (m *Manager) Validate() error {
	config := m.current()

	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	switch config.Records.Backend {
	case domain.RecordsBackendCSV:
		if config.Records.CSVPath == "" {
			return fmt.Errorf("records CSV path is required")
		}
	case domain.RecordsBackendSQLite:
		if config.Records.SQLitePath == "" {
			return fmt.Errorf("records SQLite path is required")
		}
	case domain.RecordsBackendPostgres:
		if config.Database.Host == "" {
			return fmt.Errorf("database host is required")
		}
		if config.Database.Database == "" {
			return fmt.Errorf("database name is required")
		}
		if config.Database.Username == "" {
			return fmt.Errorf("database username is required")
		}
	default:
		return fmt.Errorf("invalid records backend: %s", config.Records.Backend)
	}

	switch config.Model.Source {
	case domain.ModelSourceFile:
		if config.Model.Path == "" {
			return fmt.Errorf("model path is required")
		}
	case domain.ModelSourceRemote:
		if config.Model.RemoteURL == "" {
			return fmt.Errorf("model remote URL is required")
		}
	default:
		return fmt.Errorf("invalid model source: %s", config.Model.Source)
	}

	switch config.Session.Backend {
	case domain.SessionBackendMemory:
		if config.Session.MaxSessions <= 0 {
			return fmt.Errorf("session max_sessions must be positive")
		}
	case domain.SessionBackendRedis:
		if config.Session.RedisURL == "" {
			return fmt.Errorf("Redis URL is required")
		}
	default:
		return fmt.Errorf("invalid session backend: %s", config.Session.Backend)
	}
	if config.Session.IdleTTL <= 0 {
		return fmt.Errorf("session idle_ttl must be positive")
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(config.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", config.Logging.Level)
	}

	return nil
}

// GetDatabaseURL returns the postgres:// URL used for migrations
func (m *Manager) GetDatabaseURL() string {
	return database.ConfigFrom(m.current().Database).URL()
}

// IsProduction returns true if running in production mode
func (m *Manager) IsProduction() bool {
	return m.environment() == "production"
}

// IsDevelopment returns true if running in development mode
func (m *Manager) IsDevelopment() bool {
	env := m.environment()
	return env == "development" || env == "dev" || env == ""
}
