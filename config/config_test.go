package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_FileAndEnvironment(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9090
database:
  host: db.internal
  name: bookings
holds:
  ttl: 10m
broker:
  driver: kafka
  url: k1:9092,k2:9092
outbox:
  max_attempts: 8
`), 0o600))

	t.Setenv("BOOKING_DB_HOST", "override.internal")
	t.Setenv("BOOKING_DB_MAX_OPEN_CONNS", "7")
	t.Setenv("BOOKING_OUTBOX_BASE_BACKOFF", "2s")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "override.internal", cfg.Database.Host)
	assert.Equal(t, "bookings", cfg.Database.Name)
	assert.Equal(t, 7, cfg.Database.MaxOpenConns)
	assert.Equal(t, 10*time.Minute, cfg.Holds.TTL)
	assert.Equal(t, "kafka", cfg.Broker.Driver)
	assert.Equal(t, 8, cfg.Outbox.MaxAttempts)
	assert.Equal(t, 2*time.Second, cfg.Outbox.BaseBackoff)

	// untouched defaults survive
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, time.Minute, cfg.Holds.CleanupInterval)

	wc := cfg.Outbox.ToWorkerConfig()
	assert.Equal(t, 2*time.Second, wc.BaseBackoff)
	assert.Equal(t, 50, wc.BatchSize)

	bc := cfg.Broker.ToBrokerConfig()
	assert.Equal(t, "k1:9092,k2:9092", bc.URL)
}

func TestLoadConfig_RejectsUnknownBroker(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("broker:\n  driver: carrier-pigeon\n"), 0o600))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestDatabaseConfig_DSN(t *testing.T) {
	c := DatabaseConfig{Host: "h", Port: 5432, User: "u", Password: "p", Name: "n", SSLMode: "disable"}
	assert.Equal(t, "host=h port=5432 user=u password=p dbname=n sslmode=disable", c.DSN())
}
