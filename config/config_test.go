package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("QUILL_CONFIG", "")
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Equal(t, DefaultRedisAddr, cfg.Redis.Addr)
	assert.Equal(t, DefaultRelatedLimit, cfg.Related.DefaultLimit)
	assert.Equal(t, time.Hour, cfg.Related.TTL)
	assert.Equal(t, DefaultRefreshCron, cfg.Snapshot.RefreshCron)
	assert.Empty(t, cfg.Kafka.Brokers)
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quill.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
port: "9000"
redis:
  addr: redis:6379
related:
  default_limit: 6
  ttl: 30m
snapshot:
  s3_bucket: content
  s3_prefix: /cms/
kafka:
  brokers: [kafka:9092]
`), 0o644))

	t.Setenv("QUILL_CONFIG", path)
	t.Setenv("PORT", "9100")
	t.Setenv("KAFKA_BOOTSTRAP_SERVERS", "k1:9092, k2:9092")
	t.Setenv("LOG_DEBUG", "true")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9100", cfg.Port)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.Equal(t, 6, cfg.Related.DefaultLimit)
	assert.Equal(t, 30*time.Minute, cfg.Related.TTL)
	assert.Equal(t, "cms/", cfg.S3Prefix())
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.True(t, cfg.Debug)
}

func TestLoad_InvalidValues(t *testing.T) {
	cases := map[string]map[string]string{
		"bad int":        {"RELATED_DEFAULT_LIMIT": "four"},
		"limit too big":  {"RELATED_DEFAULT_LIMIT": "500"},
		"zero ttl":       {"RELATED_TTL_SECONDS": "0"},
		"bad bool":       {"LOG_DEBUG": "maybe"},
		"two snapshots":  {"SNAPSHOT_FILE": "snap.json", "S3_BUCKET": "b"},
		"missing config": {"QUILL_CONFIG": "/does/not/exist.yaml"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv("QUILL_CONFIG", "")
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
