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
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultsWithoutFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err, "explicit path must exist")

	// No explicit path: defaults apply.
	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, int64(1<<25), cfg.Engine.PriceLevels)
	assert.Equal(t, ":9000", cfg.Gateway.Addr)
	assert.Equal(t, 50, cfg.Dashboard.IntervalMS)
	assert.False(t, cfg.Kafka.Enabled)
}

func TestFileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
log_level: debug
engine:
  price_levels: 65536
  pool_capacity: 4096
gateway:
  addr: ":9999"
kafka:
  enabled: true
  brokers: ["k1:9092", "k2:9092"]
  topic: md.events
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, int64(65536), cfg.Engine.PriceLevels)
	assert.Equal(t, 4096, cfg.Engine.PoolCapacity)
	assert.Equal(t, ":9999", cfg.Gateway.Addr)
	assert.True(t, cfg.Kafka.Enabled)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	// Untouched keys keep their defaults.
	assert.Equal(t, ":8080", cfg.Dashboard.Addr)
}

func TestPriceLevelsMustBeWordAligned(t *testing.T) {
	path := writeConfig(t, `
engine:
  price_levels: 1000
`)
	_, err := Load(path)
	assert.Error(t, err)
}
