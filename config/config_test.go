package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadConfig(t *testing.T) {
	t.Run("defaults without a file", func(t *testing.T) {
		cfg, err := LoadConfig("")
		require.NoError(t, err)

		assert.Equal(t, 8080, cfg.Server.Port)
		assert.Equal(t, DriverMemory, cfg.Storage.Driver)
		assert.Equal(t, "invitation.events", cfg.Kafka.Topics.Events)
		assert.False(t, cfg.Kafka.Enabled)
		assert.Equal(t, "invitation:events", cfg.Events.RedisChannel)
	})

	t.Run("file overrides defaults", func(t *testing.T) {
		path := writeConfig(t, `
[server]
port = 9000

[storage]
driver = "sqlite"

[sqlite]
path = "/tmp/inv.db"

[kafka]
enabled = true
brokers = ["kafka-1:9092", "kafka-2:9092"]
`)
		cfg, err := LoadConfig(path)
		require.NoError(t, err)

		assert.Equal(t, 9000, cfg.Server.Port)
		assert.Equal(t, DriverSQLite, cfg.Storage.Driver)
		assert.Equal(t, "/tmp/inv.db", cfg.SQLite.Path)
		assert.True(t, cfg.Kafka.Enabled)
		assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
		assert.Equal(t, 5, cfg.Kafka.Producer.MaxRetries)
	})

	t.Run("environment overrides file", func(t *testing.T) {
		path := writeConfig(t, "[storage]\ndriver = \"sqlite\"\n")
		t.Setenv("INVITATION_STORAGE_DRIVER", "redis")

		cfg, err := LoadConfig(path)
		require.NoError(t, err)
		assert.Equal(t, DriverRedis, cfg.Storage.Driver)
	})

	t.Run("unknown driver is rejected", func(t *testing.T) {
		path := writeConfig(t, "[storage]\ndriver = \"mongo\"\n")
		_, err := LoadConfig(path)
		assert.Error(t, err)
	})

	t.Run("missing file is an error", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.toml"))
		assert.Error(t, err)
	})
}
