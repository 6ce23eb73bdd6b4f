package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadYAML(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
log_level: debug
auth:
  base_url: http://auth.internal:5000/api
  timeout: 5s
credential_store:
  driver: file
  path: /tmp/token.json
api:
  enabled: true
  addr: ":9000"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("log_level = %q", cfg.LogLevel)
	}
	if cfg.Auth.BaseURL != "http://auth.internal:5000/api" || cfg.Auth.Timeout != 5*time.Second {
		t.Fatalf("auth = %+v", cfg.Auth)
	}
	if cfg.API.Addr != ":9000" {
		t.Fatalf("api.addr = %q", cfg.API.Addr)
	}
}

func TestLoadJSON(t *testing.T) {
	path := writeConfig(t, "config.json", `{
  "log_level": "warn",
  "auth": {"base_url": "http://localhost:5000/api"},
  "storage": {"enabled": true, "driver": "postgres", "dsn": "postgres://localhost/secdash"}
}`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LogLevel != "warn" {
		t.Fatalf("log_level = %q", cfg.LogLevel)
	}
	if !cfg.Storage.Enabled || cfg.Storage.Driver != "postgres" {
		t.Fatalf("storage = %+v", cfg.Storage)
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
auth:
  base_url: http://localhost:5000/api
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Auth.Timeout != 10*time.Second {
		t.Fatalf("timeout default = %v", cfg.Auth.Timeout)
	}
	if cfg.CredStore.Driver != "file" || cfg.CredStore.Path == "" {
		t.Fatalf("credstore defaults = %+v", cfg.CredStore)
	}
	if cfg.API.LoginPath != "/login" {
		t.Fatalf("login_path default = %q", cfg.API.LoginPath)
	}
	if cfg.Feed.ChannelBuffer != 10000 || cfg.Feed.TrafficStoreLimit != 10000 {
		t.Fatalf("feed defaults = %+v", cfg.Feed)
	}
}

func TestTrafficStoreLimitIndependentOfChannelBuffer(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
auth:
  base_url: http://localhost:5000/api
feed:
  channel_buffer: 500
  traffic_store_limit: 2000
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Feed.ChannelBuffer != 500 || cfg.Feed.TrafficStoreLimit != 2000 {
		t.Fatalf("feed = %+v", cfg.Feed)
	}
}

func TestLoadEmptyFile(t *testing.T) {
	path := writeConfig(t, "config.yaml", "   \n")
	if _, err := Load(path); err == nil {
		t.Fatal("empty config accepted")
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing base_url", func(c *Config) { c.Auth.BaseURL = "" }},
		{"bad credstore driver", func(c *Config) { c.CredStore.Driver = "vault" }},
		{"redis without addr", func(c *Config) { c.CredStore.Driver = "redis"; c.CredStore.Addr = "" }},
		{"api without addr", func(c *Config) { c.API.Enabled = true; c.API.Addr = "" }},
		{"kafka without brokers", func(c *Config) {
			c.Feed.Kafka.Enabled = true
			c.Feed.Kafka.GroupID = "secdash"
			c.Feed.Kafka.AlertsTopic = "alerts"
		}},
		{"kafka without topics", func(c *Config) {
			c.Feed.Kafka.Enabled = true
			c.Feed.Kafka.Brokers = []string{"localhost:9092"}
			c.Feed.Kafka.GroupID = "secdash"
		}},
		{"bad storage driver", func(c *Config) { c.Storage.Enabled = true; c.Storage.Driver = "mongo" }},
	}
	for _, tc := range cases {
		cfg := DefaultConfig()
		tc.mutate(cfg)
		if err := Validate(cfg); err == nil {
			t.Errorf("%s: invalid config accepted", tc.name)
		}
	}
	if err := Validate(DefaultConfig()); err != nil {
		t.Fatalf("default config rejected: %v", err)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LogLevel = "debug"
	cfg.Feed.Synthetic.Enabled = true
	cfg.Feed.Synthetic.Seed = 42

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := Save(path, cfg); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.LogLevel != "debug" || !loaded.Feed.Synthetic.Enabled || loaded.Feed.Synthetic.Seed != 42 {
		t.Fatalf("roundtrip lost fields: %+v", loaded.Feed.Synthetic)
	}
}

func TestManagerReload(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
log_level: info
auth:
  base_url: http://localhost:5000/api
`)
	m, err := NewManager(path)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	if m.Get().LogLevel != "info" {
		t.Fatalf("log_level = %q", m.Get().LogLevel)
	}

	if err := os.WriteFile(path, []byte("log_level: debug\nauth:\n  base_url: http://localhost:5000/api\n"), 0o644); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}
	if _, err := m.Reload(); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if m.Get().LogLevel != "debug" {
		t.Fatalf("log_level after reload = %q", m.Get().LogLevel)
	}
}

func TestStaticManager(t *testing.T) {
	m := NewStaticManager(nil)
	if m.Get().LogLevel != "info" {
		t.Fatalf("static default = %q", m.Get().LogLevel)
	}
	needs, err := m.NeedsReload()
	if err != nil || needs {
		t.Fatalf("static manager wants reload: %v %v", needs, err)
	}
}
