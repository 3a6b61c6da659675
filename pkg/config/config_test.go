package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "./data", cfg.Database.DataDir)
	assert.Equal(t, "read_committed", cfg.Database.DefaultIsolation)
	assert.Equal(t, "immediate", cfg.Database.WALSyncMode)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromFile(t *testing.T) {
	t.Run("yaml_overrides_defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "runedb.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
database:
  data_dir: /var/lib/runedb
  isolation: serializable
  wal_sync_mode: batch
  wal_sync_interval: 250ms
query:
  max_rows: 1000
logging:
  level: DEBUG
`), 0o644))

		cfg, err := LoadFromFile(path)
		require.NoError(t, err)
		assert.Equal(t, "/var/lib/runedb", cfg.Database.DataDir)
		assert.Equal(t, "serializable", cfg.Database.DefaultIsolation)
		assert.Equal(t, "batch", cfg.Database.WALSyncMode)
		assert.Equal(t, 250*time.Millisecond, cfg.Database.WALSyncInterval)
		assert.Equal(t, 1000, cfg.Query.MaxRows)
		assert.Equal(t, "DEBUG", cfg.Logging.Level)
		// Untouched sections keep defaults.
		assert.Equal(t, 60*time.Second, cfg.Query.Timeout)
	})

	t.Run("env_overrides_yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "runedb.yaml")
		require.NoError(t, os.WriteFile(path, []byte("database:\n  isolation: snapshot\n"), 0o644))
		t.Setenv("RUNEDB_ISOLATION", "repeatable_read")
		t.Setenv("RUNEDB_TX_TIMEOUT", "5s")

		cfg, err := LoadFromFile(path)
		require.NoError(t, err)
		assert.Equal(t, "repeatable_read", cfg.Database.DefaultIsolation)
		assert.Equal(t, 5*time.Second, cfg.Database.TransactionTimeout)
	})

	t.Run("empty_path_loads_defaults", func(t *testing.T) {
		cfg, err := LoadFromFile("")
		require.NoError(t, err)
		assert.Equal(t, "./data", cfg.Database.DataDir)
	})

	t.Run("missing_file_errors", func(t *testing.T) {
		_, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})

	t.Run("invalid_yaml_errors", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "runedb.yaml")
		require.NoError(t, os.WriteFile(path, []byte("database: [not a map"), 0o644))
		_, err := LoadFromFile(path)
		assert.Error(t, err)
	})
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("RUNEDB_DATA_DIR", "/tmp/rune")
	t.Setenv("RUNEDB_IN_MEMORY", "true")
	t.Setenv("RUNEDB_MAX_ROWS", "42")
	t.Setenv("RUNEDB_LOG_FORMAT", "json")

	cfg := LoadFromEnv()
	assert.Equal(t, "/tmp/rune", cfg.Database.DataDir)
	assert.True(t, cfg.Database.InMemory)
	assert.Equal(t, 42, cfg.Query.MaxRows)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestValidate(t *testing.T) {
	t.Run("bad_sync_mode", func(t *testing.T) {
		cfg := Default()
		cfg.Database.WALSyncMode = "sometimes"
		assert.Error(t, cfg.Validate())
	})

	t.Run("bad_isolation", func(t *testing.T) {
		cfg := Default()
		cfg.Database.DefaultIsolation = "chaos"
		assert.Error(t, cfg.Validate())
	})

	t.Run("missing_data_dir", func(t *testing.T) {
		cfg := Default()
		cfg.Database.DataDir = ""
		assert.Error(t, cfg.Validate())

		cfg.Database.InMemory = true
		assert.NoError(t, cfg.Validate())
	})
}

func TestFindConfigFile(t *testing.T) {
	t.Run("env_var_wins", func(t *testing.T) {
		t.Setenv("RUNEDB_CONFIG", "/etc/runedb/custom.yaml")
		assert.Equal(t, "/etc/runedb/custom.yaml", FindConfigFile())
	})
}
