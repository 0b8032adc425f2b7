package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNormalizeClampsKnobs(t *testing.T) {
	c := Default()
	c.Sync.AppendChunkSize = 0
	c.Sync.GetUpdatesMax = 1_000_000
	c.Sync.GetUpdatesLimit = 99_999
	c.Sync.WaitMinTimeoutMs = -5
	c.Sync.WaitMaxTimeoutMs = 999_999_999
	c.Sync.PollIntervalMs = 1
	c.Fanout.ChunkSize = 10_000_000
	c.Fanout.Concurrency = 0
	c.Fanout.Backend = "rabbitmq"
	c.Normalize()

	if c.Sync.AppendChunkSize < 10 || c.Sync.AppendChunkSize > 2000 {
		t.Fatalf("appendChunkSize=%d out of range", c.Sync.AppendChunkSize)
	}
	if c.Sync.GetUpdatesMax != 1000 {
		t.Fatalf("getUpdatesMax=%d, want cap 1000", c.Sync.GetUpdatesMax)
	}
	if c.Sync.GetUpdatesLimit > c.Sync.GetUpdatesMax {
		t.Fatalf("limit %d exceeds max %d", c.Sync.GetUpdatesLimit, c.Sync.GetUpdatesMax)
	}
	if c.Sync.WaitMinTimeoutMs != 50 {
		t.Fatalf("waitMin=%d, want 50", c.Sync.WaitMinTimeoutMs)
	}
	if c.Sync.WaitMaxTimeoutMs != 90_000 {
		t.Fatalf("waitMax=%d, want 90000", c.Sync.WaitMaxTimeoutMs)
	}
	if c.Sync.PollIntervalMs != 100 {
		t.Fatalf("pollInterval=%d, want 100", c.Sync.PollIntervalMs)
	}
	if c.Fanout.ChunkSize != 5000 {
		t.Fatalf("fanout chunk=%d, want 5000", c.Fanout.ChunkSize)
	}
	if c.Fanout.Concurrency != 1 {
		t.Fatalf("concurrency=%d, want 1", c.Fanout.Concurrency)
	}
	if c.Fanout.Backend != "kafka" {
		t.Fatalf("unknown backend must fall back to kafka, got %s", c.Fanout.Backend)
	}
}

func TestNormalizeWaitMaxNeverBelowMin(t *testing.T) {
	c := Default()
	c.Sync.WaitMinTimeoutMs = 5000
	c.Sync.WaitMaxTimeoutMs = 100 // 倒挂
	c.Normalize()
	if c.Sync.WaitMaxTimeoutMs < c.Sync.WaitMinTimeoutMs {
		t.Fatalf("waitMax %d < waitMin %d", c.Sync.WaitMaxTimeoutMs, c.Sync.WaitMinTimeoutMs)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "psync.yaml")
	body := []byte(`
mongo:
  uri: mongodb://mongo-test:27017
  database: psync_test
sync:
  appendChunkSize: 100
  wakeChannel: "test:wake"
fanout:
  backend: nats
`)
	if err := os.WriteFile(path, body, 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Mongo.Uri != "mongodb://mongo-test:27017" || cfg.Mongo.Database != "psync_test" {
		t.Fatalf("mongo config not applied: %+v", cfg.Mongo)
	}
	if cfg.Sync.AppendChunkSize != 100 {
		t.Fatalf("appendChunkSize=%d, want 100", cfg.Sync.AppendChunkSize)
	}
	if cfg.Sync.WakeChannel != "test:wake" {
		t.Fatalf("wakeChannel=%s", cfg.Sync.WakeChannel)
	}
	if cfg.Fanout.Backend != "nats" {
		t.Fatalf("backend=%s, want nats", cfg.Fanout.Backend)
	}
	// 没给的字段保持默认
	if cfg.Redis.Addr != "localhost:6379" {
		t.Fatalf("redis default lost: %s", cfg.Redis.Addr)
	}
	if cfg.Sync.GetUpdatesLimit != 100 {
		t.Fatalf("getUpdatesLimit default lost: %d", cfg.Sync.GetUpdatesLimit)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/psync.yaml"); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("PSYNC_MONGO_URI", "mongodb://env-host:27017")
	t.Setenv("PSYNC_REDIS_ADDR", "env-redis:6379")

	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Mongo.Uri != "mongodb://env-host:27017" {
		t.Fatalf("env mongo override lost: %s", cfg.Mongo.Uri)
	}
	if cfg.Redis.Addr != "env-redis:6379" {
		t.Fatalf("env redis override lost: %s", cfg.Redis.Addr)
	}
}

func TestDurationHelpers(t *testing.T) {
	s := SyncConfig{WaitMinTimeoutMs: 200, WaitMaxTimeoutMs: 60_000, PollIntervalMs: 2_000, AckTTLHours: 168}
	if s.WaitMin() != 200*time.Millisecond {
		t.Fatalf("waitMin=%v", s.WaitMin())
	}
	if s.WaitMax() != time.Minute {
		t.Fatalf("waitMax=%v", s.WaitMax())
	}
	if s.PollEvery() != 2*time.Second {
		t.Fatalf("pollEvery=%v", s.PollEvery())
	}
	if s.AckTTL() != 168*time.Hour {
		t.Fatalf("ackTTL=%v", s.AckTTL())
	}
}
