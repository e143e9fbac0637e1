package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "worker.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
app:
  name: ewb-sync-worker
lmstfy:
  host: 127.0.0.1
mysql:
  dsn: root:root@tcp(127.0.0.1:3306)/transport
redis:
  addr: 127.0.0.1:6379
validation:
  base_url: http://validation.local
update:
  endpoint: http://update.local/api
workers:
  - name: w1
    queue_name: ewb_jobs
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Bulk.ItemDelay != DefaultItemDelay {
		t.Fatalf("expected item delay %v, got %v", DefaultItemDelay, cfg.Bulk.ItemDelay)
	}
	if cfg.Validation.CacheTTL != DefaultCacheTTL {
		t.Fatalf("expected cache ttl %v, got %v", DefaultCacheTTL, cfg.Validation.CacheTTL)
	}
	if cfg.Validation.CacheBackend != "redis" {
		t.Fatalf("expected redis backend, got %q", cfg.Validation.CacheBackend)
	}
	if cfg.Bulk.CancelChannel != DefaultCancelChannel {
		t.Fatalf("unexpected cancel channel %q", cfg.Bulk.CancelChannel)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestLoad_OverridesDurations(t *testing.T) {
	path := writeConfig(t, `
app:
  name: ewb
bulk:
  item_delay: 250ms
  call_timeout: 10s
validation:
  cache_ttl: 2h
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Bulk.ItemDelay != 250*time.Millisecond {
		t.Fatalf("unexpected item delay %v", cfg.Bulk.ItemDelay)
	}
	if cfg.Bulk.CallTimeout != 10*time.Second {
		t.Fatalf("unexpected call timeout %v", cfg.Bulk.CallTimeout)
	}
	if cfg.Validation.CacheTTL != 2*time.Hour {
		t.Fatalf("unexpected cache ttl %v", cfg.Validation.CacheTTL)
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			App:        AppConfig{Name: "ewb"},
			Lmstfy:     LmstfyConfig{Host: "127.0.0.1"},
			MySQL:      MySQLConfig{DSN: "root:root@tcp(127.0.0.1:3306)/transport"},
			Redis:      RedisConfig{Addr: "127.0.0.1:6379"},
			Validation: ValidationConfig{BaseURL: "http://v", CacheBackend: "redis"},
			Update:     UpdateConfig{Endpoint: "http://u"},
			Workers:    []WorkerConfig{{Name: "w"}},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "ok", mutate: func(c *Config) {}},
		{name: "memory backend without redis", mutate: func(c *Config) {
			c.Validation.CacheBackend = "memory"
			c.Redis.Addr = ""
		}},
		{name: "missing app name", mutate: func(c *Config) { c.App.Name = "" }, wantErr: true},
		{name: "unknown backend", mutate: func(c *Config) { c.Validation.CacheBackend = "disk" }, wantErr: true},
		{name: "redis backend without addr", mutate: func(c *Config) { c.Redis.Addr = "" }, wantErr: true},
		{name: "no workers", mutate: func(c *Config) { c.Workers = nil }, wantErr: true},
		{name: "no mysql dsn", mutate: func(c *Config) { c.MySQL.DSN = "" }, wantErr: true},
		{name: "no update endpoint", mutate: func(c *Config) { c.Update.Endpoint = "" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr && err == nil {
				t.Fatalf("expected error")
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestValidateServer(t *testing.T) {
	base := func() *Config {
		return &Config{
			MySQL:      MySQLConfig{DSN: "root:root@tcp(127.0.0.1:3306)/transport"},
			Redis:      RedisConfig{Addr: "127.0.0.1:6379"},
			Lmstfy:     LmstfyConfig{Host: "127.0.0.1", Queue: "ewb_jobs"},
			Validation: ValidationConfig{CacheBackend: "redis"},
		}
	}

	if err := base().ValidateServer(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cfg := base()
	cfg.Validation.CacheBackend = "disk"
	if err := cfg.ValidateServer(); err == nil {
		t.Fatalf("unknown cache backend should be rejected")
	}

	cfg = base()
	cfg.Lmstfy.Queue = ""
	if err := cfg.ValidateServer(); err == nil {
		t.Fatalf("missing job queue should be rejected")
	}
}
