package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"draw_queue/internal/presence"
	"draw_queue/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("ENV_CHEK", "1")
	t.Setenv("JWT_ACCESS_SECRET", "s3cret")

	c, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", c.HTTP.Addr())
	assert.Equal(t, storage.DriverPostgres, c.DB.Driver)
	assert.Equal(t, 2*time.Second, c.DB.LockTimeout)
	assert.Equal(t, "s3cret", c.Auth.AccessSecret)
	assert.Equal(t, 1, c.Queue.MaxConcurrentActive)
	assert.Equal(t, 2*time.Minute, c.Queue.ActiveSlotTTL)
	assert.Equal(t, time.Minute, c.Queue.WaitingIdleTTL)
	assert.Equal(t, 15*time.Second, c.Queue.ReapEvery())
	assert.True(t, c.Queue.ReaperEnabled)
	assert.Equal(t, presence.FanoutLocal, c.Presence.Fanout)
	assert.Equal(t, 30*time.Second, c.Presence.PingInterval)
}

func TestLoadConfigEnvironment(t *testing.T) {
	t.Setenv("ENV_CHEK", "1")
	t.Setenv("JWT_ACCESS_SECRET", "s3cret")
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("ACTIVE_SLOT_TTL", "90s")
	t.Setenv("QUEUE_REAP_PARALLELISM", "8")
	t.Setenv("MAX_CONCURRENT_ACTIVE", "3")
	t.Setenv("PRESENCE_FANOUT", "redis")
	t.Setenv("REDIS_ADDR", "cache:6380")

	c, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "db.internal", c.DB.Host)
	assert.Equal(t, 90*time.Second, c.Queue.ActiveSlotTTL)
	assert.Equal(t, 8, c.Queue.ReapParallelism)
	assert.Equal(t, 3, c.Queue.MaxConcurrentActive)
	assert.Equal(t, presence.FanoutRedis, c.Presence.Fanout)
	assert.Equal(t, "cache:6380", c.Redis.Addr)
}

func TestLoadConfigFile(t *testing.T) {
	t.Setenv("ENV_CHEK", "1")
	path := filepath.Join(t.TempDir(), "drawqueue.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
auth:
  access_secret: from-file
db:
  driver: memory
queue:
  waiting_idle_ttl: 45s
`), 0o600))

	c, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "from-file", c.Auth.AccessSecret)
	assert.Equal(t, storage.DriverMemory, c.DB.Driver)
	assert.Equal(t, 45*time.Second, c.Queue.WaitingIdleTTL)
}

func TestLoadConfigRejects(t *testing.T) {
	t.Setenv("ENV_CHEK", "1")

	_, err := LoadConfig("")
	assert.ErrorContains(t, err, "JWT_ACCESS_SECRET")

	t.Setenv("JWT_ACCESS_SECRET", "s3cret")
	t.Setenv("PRESENCE_FANOUT", "carrier-pigeon")
	_, err = LoadConfig("")
	assert.ErrorContains(t, err, "fanout")
}
