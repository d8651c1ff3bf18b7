package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, ":8000", cfg.HTTPAddr)
	assert.Equal(t, "MYXL_API_KEY", cfg.APIKeyEnv)
	assert.Equal(t, "api.key", cfg.APIKeyFile)
	assert.Equal(t, DriverMemory, cfg.TokenStore.Driver)
	assert.Equal(t, 30*time.Second, cfg.Upstream.Timeout)
	assert.Empty(t, cfg.Kafka.Brokers)
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gateway.yaml")
	body := []byte(`
http_addr: ":9000"
upstream:
  base_url: "https://api.example.test"
  timeout: 5s
token_store:
  driver: redis
  dsn: "redis://localhost:6379/0"
`)
	require.NoError(t, os.WriteFile(path, body, 0o600))

	t.Setenv("HTTP_ADDR", ":9001")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9001", cfg.HTTPAddr)
	assert.Equal(t, "https://api.example.test", cfg.Upstream.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.Upstream.Timeout)
	assert.Equal(t, DriverRedis, cfg.TokenStore.Driver)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	t.Setenv("TOKEN_STORE_DRIVER", "sqlite")
	_, err := Load("")
	assert.Error(t, err)
}
