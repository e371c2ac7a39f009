package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "chansync.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "port: \"9090\"\n"))
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, "at_least_one", cfg.Sync.BatchPolicy)
	assert.Equal(t, 4, cfg.Sync.MaxParallel)
	assert.Equal(t, int64(50), cfg.Sync.HistorySize)
	assert.Equal(t, 30*time.Second, cfg.Transport.Timeout)
	assert.Equal(t, 3, cfg.Transport.MaxRetries)
	assert.Equal(t, time.Second, cfg.Transport.BaseDelay)
	assert.Equal(t, 10*time.Second, cfg.Transport.MaxDelay)

	assert.Equal(t, *Default(), Config{
		RedisAddr: cfg.RedisAddr, Port: "8080", MaxConcurrent: cfg.MaxConcurrent,
		Sync: cfg.Sync, Transport: cfg.Transport,
	})
}

func TestLoad_Full(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
redis_address: redis:6379
seed_file: /etc/chansync/seed.json
sync:
  parallel: true
  batch_policy: all_or_nothing
transport:
  timeout: 15s
  max_retries: -1
  circuit_breaker: true
channels:
  expedia:
    base_url: http://127.0.0.1:8089
    requests_per_minute: 60
  airbnb:
    disabled: true
schedules:
  - cron: "*/30 * * * *"
    property_id: p1
    sync_type: availability
    channel_ids: [c1]
`))
	require.NoError(t, err)
	assert.True(t, cfg.Sync.Parallel)
	assert.Equal(t, 15*time.Second, cfg.Transport.Timeout)
	assert.Equal(t, -1, cfg.Transport.MaxRetries)
	assert.True(t, cfg.Transport.CircuitBreaker)
	assert.Equal(t, 60, cfg.Channels["expedia"].RequestsPerMinute)
	assert.True(t, cfg.Channels["airbnb"].Disabled)
	require.Len(t, cfg.Schedules, 1)
	assert.Equal(t, []string{"c1"}, cfg.Schedules[0].ChannelIDs)
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string]string{
		"policy":        "sync:\n  batch_policy: most\n",
		"delays":        "transport:\n  base_delay: 5s\n  max_delay: 1s\n",
		"base url":      "channels:\n  expedia:\n    base_url: ftp://x\n",
		"negative rpm":  "channels:\n  expedia:\n    requests_per_minute: -5\n",
		"schedule type": "schedules:\n  - cron: '@daily'\n    property_id: p1\n    sync_type: booking\n",
		"schedule prop": "schedules:\n  - cron: '@daily'\n    sync_type: rates\n",
		"yaml":          "sync: [",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.Error(t, err)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("CHANSYNC_REDIS_ADDR", "redis.internal:6379")
	t.Setenv("CHANSYNC_PORT", "7000")
	t.Setenv("CHANSYNC_SEED_FILE", "")

	cfg := Default()
	cfg.SeedFile = "keep.json"
	cfg.ApplyEnv()
	assert.Equal(t, "redis.internal:6379", cfg.RedisAddr)
	assert.Equal(t, "7000", cfg.Port)
	assert.Equal(t, "keep.json", cfg.SeedFile)
}

func TestLoad_ShippedExample(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", DefaultPath))
	require.NoError(t, err)
	assert.Equal(t, "configs/seed.json", cfg.SeedFile)
	assert.Len(t, cfg.Schedules, 2)
}
