package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 8080 || cfg.Server.Address != "0.0.0.0" {
		t.Fatalf("server defaults wrong: %+v", cfg.Server)
	}
	if cfg.Tail.ReplayWindow != 256 || cfg.Tail.SubscriberBuffer != 64 {
		t.Fatalf("tail defaults wrong: %+v", cfg.Tail)
	}
	if cfg.Retention.IdempotencyTTL != 24*time.Hour {
		t.Fatalf("retention default wrong: %v", cfg.Retention.IdempotencyTTL)
	}
	if cfg.Security.RateLimit.RPS != 50 || cfg.Security.RateLimit.Burst != 100 {
		t.Fatalf("rate limit defaults wrong: %+v", cfg.Security.RateLimit)
	}
}

func TestLoadYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
server:
  address: 127.0.0.1
  port: 9999
storage:
  db_path: /tmp/chatsync-test
tail:
  replay_window: 32
notify:
  max_pooled_payload: "1 MiB"
retention:
  enabled: true
  cron: "*/5 * * * *"
  idempotency_ttl: 1h
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 9999 || cfg.Server.Address != "127.0.0.1" {
		t.Fatalf("server not loaded: %+v", cfg.Server)
	}
	if cfg.Storage.DBPath != "/tmp/chatsync-test" {
		t.Fatalf("db path not loaded: %q", cfg.Storage.DBPath)
	}
	if cfg.Tail.ReplayWindow != 32 {
		t.Fatalf("replay window = %d", cfg.Tail.ReplayWindow)
	}
	if !cfg.Retention.Enabled || cfg.Retention.IdempotencyTTL != time.Hour {
		t.Fatalf("retention not loaded: %+v", cfg.Retention)
	}
	n, err := cfg.MaxPooledPayloadBytes()
	if err != nil {
		t.Fatalf("pool cap: %v", err)
	}
	if n != 1<<20 {
		t.Fatalf("pool cap = %d, want 1 MiB", n)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("CHATSYNC_PORT", "7070")
	t.Setenv("CHATSYNC_DB_PATH", "/tmp/env-db")
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 7070 {
		t.Fatalf("env port not applied: %d", cfg.Server.Port)
	}
	if cfg.Storage.DBPath != "/tmp/env-db" {
		t.Fatalf("env db path not applied: %q", cfg.Storage.DBPath)
	}
}

func TestApplyFlags(t *testing.T) {
	cfg := &Config{}
	cfg.ApplyDefaults()
	ApplyFlags(cfg, Flags{
		Addr: "127.0.0.1:6000",
		DB:   "/tmp/flag-db",
		Set:  map[string]bool{"addr": true, "db": true},
	})
	if cfg.ListenAddr() != "127.0.0.1:6000" {
		t.Fatalf("addr flag not applied: %s", cfg.ListenAddr())
	}
	if cfg.Storage.DBPath != "/tmp/flag-db" {
		t.Fatalf("db flag not applied: %s", cfg.Storage.DBPath)
	}
}
