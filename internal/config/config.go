package config

import (
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	LogLevel  string          `json:"log_level" yaml:"log_level"`
	Auth      AuthConfig      `json:"auth" yaml:"auth"`
	CredStore CredStoreConfig `json:"credential_store" yaml:"credential_store"`
	Feed      FeedConfig      `json:"feed" yaml:"feed"`
	Storage   StorageConfig   `json:"storage" yaml:"storage"`
	API       APIConfig       `json:"api" yaml:"api"`
}

type AuthConfig struct {
	BaseURL string        `json:"base_url" yaml:"base_url"`
	Timeout time.Duration `json:"timeout" yaml:"timeout"`
}

type CredStoreConfig struct {
	Driver string `json:"driver" yaml:"driver"`
	Path   string `json:"path" yaml:"path"`
	DSN    string `json:"dsn" yaml:"dsn"`
	Addr   string `json:"addr" yaml:"addr"`
	Key    string `json:"key" yaml:"key"`
}

type FeedConfig struct {
	ChannelBuffer     int             `json:"channel_buffer" yaml:"channel_buffer"`
	TrafficStoreLimit int             `json:"traffic_store_limit" yaml:"traffic_store_limit"`
	Kafka             KafkaConfig     `json:"kafka" yaml:"kafka"`
	Synthetic         SyntheticConfig `json:"synthetic" yaml:"synthetic"`
}

type KafkaConfig struct {
	Enabled      bool     `json:"enabled" yaml:"enabled"`
	Brokers      []string `json:"brokers" yaml:"brokers"`
	AlertsTopic  string   `json:"alerts_topic" yaml:"alerts_topic"`
	TrafficTopic string   `json:"traffic_topic" yaml:"traffic_topic"`
	GroupID      string   `json:"group_id" yaml:"group_id"`
}

type SyntheticConfig struct {
	Enabled        bool  `json:"enabled" yaml:"enabled"`
	Seed           int64 `json:"seed" yaml:"seed"`
	Alerts         int   `json:"alerts" yaml:"alerts"`
	TrafficRecords int   `json:"traffic_records" yaml:"traffic_records"`
}

type StorageConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Driver  string `json:"driver" yaml:"driver"`
	DSN     string `json:"dsn" yaml:"dsn"`
}

type APIConfig struct {
	Enabled   bool   `json:"enabled" yaml:"enabled"`
	Addr      string `json:"addr" yaml:"addr"`
	LoginPath string `json:"login_path" yaml:"login_path"`
}

func DefaultConfig() *Config {
	return &Config{
		LogLevel: "info",
		Auth: AuthConfig{
			BaseURL: "http://localhost:5000/api",
			Timeout: 10 * time.Second,
		},
		CredStore: CredStoreConfig{
			Driver: "file",
			Path:   "secdash-token.json",
			DSN:    "file:secdash.db?_pragma=busy_timeout(5000)",
			Key:    "secdash:token",
		},
		Feed: FeedConfig{
			ChannelBuffer:     10000,
			TrafficStoreLimit: 10000,
			Kafka:             KafkaConfig{Enabled: false},
			Synthetic:         SyntheticConfig{Enabled: false, Alerts: 12, TrafficRecords: 100},
		},
		Storage: StorageConfig{Enabled: false, Driver: "sqlite", DSN: "file:secdash.db?_pragma=busy_timeout(5000)"},
		API:     APIConfig{Enabled: true, Addr: ":8081", LoginPath: "/login"},
	}
}

func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	content, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()

	trimmed := strings.TrimSpace(string(content))
	if len(trimmed) == 0 {
		return nil, errors.New("config file is empty")
	}
	var decodeErr error
	if looksLikeJSON(trimmed) {
		decodeErr = json.Unmarshal([]byte(trimmed), cfg)
	} else {
		decodeErr = yaml.Unmarshal([]byte(trimmed), cfg)
	}
	if decodeErr != nil {
		return nil, decodeErr
	}
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	if path == "" || cfg == nil {
		return errors.New("config path or config is empty")
	}
	var data []byte
	var err error
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".json" {
		data, err = json.MarshalIndent(cfg, "", "  ")
	} else {
		data, err = yaml.Marshal(cfg)
	}
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func looksLikeJSON(s string) bool {
	for _, ch := range s {
		if ch == '{' || ch == '[' {
			return true
		}
		if ch > ' ' {
			return false
		}
	}
	return false
}

func applyDefaults(cfg *Config) {
	if cfg.Auth.Timeout <= 0 {
		cfg.Auth.Timeout = 10 * time.Second
	}
	if cfg.CredStore.Driver == "" {
		cfg.CredStore.Driver = "file"
	}
	if cfg.CredStore.Path == "" {
		cfg.CredStore.Path = "secdash-token.json"
	}
	if cfg.CredStore.Key == "" {
		cfg.CredStore.Key = "secdash:token"
	}
	if cfg.Feed.ChannelBuffer <= 0 {
		cfg.Feed.ChannelBuffer = 10000
	}
	if cfg.Feed.TrafficStoreLimit <= 0 {
		cfg.Feed.TrafficStoreLimit = 10000
	}
	if cfg.Feed.Synthetic.Alerts <= 0 {
		cfg.Feed.Synthetic.Alerts = 12
	}
	if cfg.Feed.Synthetic.TrafficRecords <= 0 {
		cfg.Feed.Synthetic.TrafficRecords = 100
	}
	if cfg.API.LoginPath == "" {
		cfg.API.LoginPath = "/login"
	}
}

func Validate(cfg *Config) error {
	if cfg.Auth.BaseURL == "" {
		return errors.New("auth.base_url is required")
	}
	switch strings.ToLower(cfg.CredStore.Driver) {
	case "file", "sqlite", "redis":
	default:
		return errors.New("credential_store.driver must be file, sqlite or redis")
	}
	if strings.ToLower(cfg.CredStore.Driver) == "redis" && cfg.CredStore.Addr == "" {
		return errors.New("credential_store.addr required when driver is redis")
	}
	if cfg.API.Enabled && cfg.API.Addr == "" {
		return errors.New("api.addr required when api.enabled is true")
	}
	if cfg.Feed.Kafka.Enabled {
		if len(cfg.Feed.Kafka.Brokers) == 0 || cfg.Feed.Kafka.GroupID == "" {
			return errors.New("feed.kafka requires brokers and group_id")
		}
		if cfg.Feed.Kafka.AlertsTopic == "" && cfg.Feed.Kafka.TrafficTopic == "" {
			return errors.New("feed.kafka requires alerts_topic or traffic_topic")
		}
	}
	if cfg.Storage.Enabled {
		switch strings.ToLower(cfg.Storage.Driver) {
		case "sqlite", "postgres", "postgresql":
		default:
			return errors.New("storage.driver must be sqlite or postgres")
		}
	}
	return nil
}

type Manager struct {
	path    string
	cfg     atomic.Value
	modTime time.Time
}

func NewManager(path string) (*Manager, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	m := &Manager{path: path}
	m.cfg.Store(cfg)
	info, err := os.Stat(path)
	if err == nil {
		m.modTime = info.ModTime()
	}
	return m, nil
}

func NewStaticManager(cfg *Config) *Manager {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	m := &Manager{}
	m.cfg.Store(cfg)
	return m
}

func (m *Manager) Get() *Config {
	if v := m.cfg.Load(); v != nil {
		return v.(*Config)
	}
	return DefaultConfig()
}

func (m *Manager) Path() string {
	return m.path
}

func (m *Manager) Reload() (*Config, error) {
	cfg, err := Load(m.path)
	if err != nil {
		return nil, err
	}
	m.cfg.Store(cfg)
	if info, err := os.Stat(m.path); err == nil {
		m.modTime = info.ModTime()
	}
	return cfg, nil
}

func (m *Manager) NeedsReload() (bool, error) {
	if m.path == "" {
		return false, nil
	}
	info, err := os.Stat(m.path)
	if err != nil {
		return false, err
	}
	return info.ModTime().After(m.modTime), nil
}

func (m *Manager) Watch(interval time.Duration, onReload func(*Config), onError func(error), stop <-chan struct{}) {
	if interval <= 0 {
		interval = 3 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			needs, err := m.NeedsReload()
			if err != nil {
				if onError != nil {
					onError(err)
				}
				continue
			}
			if !needs {
				continue
			}
			cfg, err := m.Reload()
			if err != nil {
				if onError != nil {
					onError(err)
				}
				continue
			}
			if onReload != nil {
				onReload(cfg)
			}
		case <-stop:
			return
		}
	}
}

func ResolvePath(path string) string {
	if path == "" {
		return path
	}
	if filepath.IsAbs(path) {
		return path
	}
	cwd, err := os.Getwd()
	if err != nil {
		return path
	}
	return filepath.Join(cwd, path)
}
