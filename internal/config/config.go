// Package config provides configuration management for dealscope.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const (
	// DefaultWorkerPort is the default HTTP port for the worker service.
	DefaultWorkerPort = 38710

	// DefaultMaxConns is the default database connection pool size.
	DefaultMaxConns = 10

	// DefaultHistoryDays is the default lookback for score history queries.
	DefaultHistoryDays = 30
)

// Config holds the application configuration.
type Config struct {
	// Worker settings
	WorkerPort int `json:"worker_port"`

	// Database settings. DBDSN selects PostgreSQL; when empty, DBPath opens
	// a local SQLite file.
	DBDSN    string `json:"db_dsn"`
	DBPath   string `json:"db_path"`
	MaxConns int    `json:"max_conns"`

	// Alerting settings
	RedFlagTriggers []string `json:"red_flag_triggers"`
}

var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// DataDir returns the data directory path (~/.dealscope).
func DataDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".dealscope")
}

// DBPath returns the default database file path.
func DBPath() string {
	return filepath.Join(DataDir(), "dealscope.db")
}

// SettingsPath returns the settings file path.
func SettingsPath() string {
	return filepath.Join(DataDir(), "settings.json")
}

// EnsureDataDir creates the data directory if it doesn't exist.
func EnsureDataDir() error {
	return os.MkdirAll(DataDir(), 0750)
}

// EnsureSettings creates a default settings file if it doesn't exist.
func EnsureSettings() error {
	path := SettingsPath()

	if _, err := os.Stat(path); err == nil {
		return nil // File exists
	}

	defaultSettings := `{
  "DEALSCOPE_WORKER_PORT": 38710,
  "DEALSCOPE_DB_DSN": "",
  "DEALSCOPE_MAX_CONNS": 10,
  "DEALSCOPE_RED_FLAG_TRIGGERS": "metric_inconsistency,team_departure,runway_concern"
}
`
	return os.WriteFile(path, []byte(defaultSettings), 0600)
}

// EnsureAll ensures all required directories and files exist.
func EnsureAll() error {
	if err := EnsureDataDir(); err != nil {
		return err
	}
	return EnsureSettings()
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		WorkerPort: DefaultWorkerPort,
		DBPath:     DBPath(),
		MaxConns:   DefaultMaxConns,
	}
}

// Load loads configuration from the settings file, merging with defaults.
// Environment variables with the same names override file settings.
func Load() (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(SettingsPath())
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	// Load settings into a map to preserve unknown fields
	var settings map[string]interface{}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &settings); err != nil {
			settings = nil // Keep defaults on parse error
		}
	}

	if v, ok := settings["DEALSCOPE_WORKER_PORT"].(float64); ok && v > 0 {
		cfg.WorkerPort = int(v)
	}
	if v, ok := settings["DEALSCOPE_DB_DSN"].(string); ok && v != "" {
		cfg.DBDSN = v
	}
	if v, ok := settings["DEALSCOPE_DB_PATH"].(string); ok && v != "" {
		cfg.DBPath = v
	}
	if v, ok := settings["DEALSCOPE_MAX_CONNS"].(float64); ok && v > 0 {
		cfg.MaxConns = int(v)
	}
	if v, ok := settings["DEALSCOPE_RED_FLAG_TRIGGERS"].(string); ok && v != "" {
		cfg.RedFlagTriggers = splitTrim(v)
	}

	// Environment overrides
	if v := os.Getenv("DEALSCOPE_WORKER_PORT"); v != "" {
		var p int
		if err := json.Unmarshal([]byte(v), &p); err == nil && p > 0 {
			cfg.WorkerPort = p
		}
	}
	if v := os.Getenv("DEALSCOPE_DB_DSN"); v != "" {
		cfg.DBDSN = v
	}
	if v := os.Getenv("DEALSCOPE_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("DEALSCOPE_MAX_CONNS"); v != "" {
		var p int
		if err := json.Unmarshal([]byte(v), &p); err == nil && p > 0 {
			cfg.MaxConns = p
		}
	}
	if v := os.Getenv("DEALSCOPE_RED_FLAG_TRIGGERS"); v != "" {
		cfg.RedFlagTriggers = splitTrim(v)
	}

	return cfg, nil
}

// splitTrim splits a comma-separated string and trims whitespace.
func splitTrim(s string) []string {
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

// Get returns the global configuration, loading it if necessary.
func Get() *Config {
	configOnce.Do(func() {
		var err error
		globalConfig, err = Load()
		if err != nil {
			globalConfig = Default()
		}
	})

	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}

// GetWorkerPort returns the worker port from environment or config.
func GetWorkerPort() int {
	if port := os.Getenv("DEALSCOPE_WORKER_PORT"); port != "" {
		var p int
		if err := json.Unmarshal([]byte(port), &p); err == nil && p > 0 {
			return p
		}
	}
	return Get().WorkerPort
}
