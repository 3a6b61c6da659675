// Package config handles RuneDB configuration via YAML files and
// environment variables.
//
// Configuration precedence (highest to lowest):
//  1. Command-line flags (--data-dir, --isolation, etc.)
//  2. Environment variables (RUNEDB_*)
//  3. Config file (runedb.yaml)
//  4. Built-in defaults
//
// Example Usage:
//
//	cfg, err := config.LoadFromFile(config.FindConfigFile())
//	if err != nil {
//		log.Fatalf("invalid config: %v", err)
//	}
//	fmt.Printf("data dir: %s\n", cfg.Database.DataDir)
//
// Environment variables (all use the RUNEDB_ prefix):
//
// Database:
//   - RUNEDB_DATA_DIR="./data"
//   - RUNEDB_IN_MEMORY=true
//   - RUNEDB_ISOLATION="read_committed" | "repeatable_read" | "serializable" | "snapshot"
//   - RUNEDB_TX_TIMEOUT=30s
//   - RUNEDB_WAL_SYNC_MODE="immediate" | "batch" | "none"
//   - RUNEDB_WAL_SYNC_INTERVAL=100ms
//
// Query:
//   - RUNEDB_QUERY_TIMEOUT=60s
//   - RUNEDB_MAX_ROWS=0 (unlimited)
//
// Logging:
//   - RUNEDB_LOG_LEVEL="INFO"
//   - RUNEDB_LOG_FORMAT="text" | "json"
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all RuneDB configuration.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Query    QueryConfig    `yaml:"query"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// DatabaseConfig holds storage and transaction settings.
type DatabaseConfig struct {
	// DataDir is the directory for blocks and the write-ahead log.
	DataDir string `yaml:"data_dir"`

	// InMemory skips persistence entirely: no badger, no WAL.
	InMemory bool `yaml:"in_memory"`

	// DefaultIsolation is the isolation level used when a transaction
	// does not request one explicitly.
	DefaultIsolation string `yaml:"isolation"`

	// TransactionTimeout bounds a single transaction's lifetime.
	TransactionTimeout time.Duration `yaml:"tx_timeout"`

	// WALSyncMode controls when WAL writes reach the disk:
	//   "immediate" (default): fsync every commit - safest
	//   "batch":     fsync every WALSyncInterval
	//   "none":      rely on the OS - fastest, data loss on crash
	WALSyncMode string `yaml:"wal_sync_mode"`

	// WALSyncInterval for batch sync mode.
	WALSyncInterval time.Duration `yaml:"wal_sync_interval"`
}

// QueryConfig holds query execution settings.
type QueryConfig struct {
	// Timeout bounds a single query's execution.
	Timeout time.Duration `yaml:"timeout"`

	// MaxRows caps result sets; 0 means unlimited.
	MaxRows int `yaml:"max_rows"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the built-in defaults.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			DataDir:            "./data",
			DefaultIsolation:   "read_committed",
			TransactionTimeout: 30 * time.Second,
			WALSyncMode:        "immediate",
			WALSyncInterval:    100 * time.Millisecond,
		},
		Query: QueryConfig{
			Timeout: 60 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "INFO",
			Format: "text",
		},
	}
}

// FindConfigFile locates runedb.yaml: RUNEDB_CONFIG, then the working
// directory, then ~/.runedb/. Returns "" when none exists.
func FindConfigFile() string {
	if p := os.Getenv("RUNEDB_CONFIG"); p != "" {
		return p
	}
	candidates := []string{"runedb.yaml", "runedb.yml"}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates,
			filepath.Join(home, ".runedb", "runedb.yaml"))
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// LoadFromFile reads a YAML config, layering environment variables on
// top. An empty path skips the file and loads defaults + environment.
func LoadFromFile(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromEnv loads defaults overridden by environment variables only.
func LoadFromEnv() *Config {
	cfg := Default()
	cfg.applyEnv()
	return cfg
}

func (c *Config) applyEnv() {
	if v := os.Getenv("RUNEDB_DATA_DIR"); v != "" {
		c.Database.DataDir = v
	}
	if v := os.Getenv("RUNEDB_IN_MEMORY"); v != "" {
		c.Database.InMemory = parseBool(v, c.Database.InMemory)
	}
	if v := os.Getenv("RUNEDB_ISOLATION"); v != "" {
		c.Database.DefaultIsolation = v
	}
	if v := os.Getenv("RUNEDB_TX_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Database.TransactionTimeout = d
		}
	}
	if v := os.Getenv("RUNEDB_WAL_SYNC_MODE"); v != "" {
		c.Database.WALSyncMode = v
	}
	if v := os.Getenv("RUNEDB_WAL_SYNC_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Database.WALSyncInterval = d
		}
	}
	if v := os.Getenv("RUNEDB_QUERY_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Query.Timeout = d
		}
	}
	if v := os.Getenv("RUNEDB_MAX_ROWS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Query.MaxRows = n
		}
	}
	if v := os.Getenv("RUNEDB_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("RUNEDB_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
}

func parseBool(v string, fallback bool) bool {
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

// Validate checks settings for internal consistency.
func (c *Config) Validate() error {
	switch c.Database.WALSyncMode {
	case "immediate", "batch", "none":
	default:
		return fmt.Errorf("config: invalid wal_sync_mode %q", c.Database.WALSyncMode)
	}
	switch c.Database.DefaultIsolation {
	case "read_committed", "repeatable_read", "serializable", "snapshot":
	default:
		return fmt.Errorf("config: invalid isolation %q", c.Database.DefaultIsolation)
	}
	if !c.Database.InMemory && c.Database.DataDir == "" {
		return fmt.Errorf("config: data_dir is required unless in_memory is set")
	}
	if c.Query.MaxRows < 0 {
		return fmt.Errorf("config: max_rows must be >= 0")
	}
	return nil
}

// String renders a short, secret-free summary.
func (c *Config) String() string {
	return fmt.Sprintf("Config{dataDir=%s inMemory=%v isolation=%s walSync=%s}",
		c.Database.DataDir, c.Database.InMemory,
		c.Database.DefaultIsolation, c.Database.WALSyncMode)
}
