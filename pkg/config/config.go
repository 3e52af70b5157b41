package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

//go:generate go run ../../cmd/schema/main.go schema.json

// Config holds the application configuration
type Config struct {
	Server   ServerConfig   `yaml:"server" json:"server" jsonschema:"description=Server configuration"`
	Storage  StorageConfig  `yaml:"storage" json:"storage" jsonschema:"description=State storage configuration"`
	Schedule ScheduleConfig `yaml:"schedule" json:"schedule" jsonschema:"description=Scheduler configuration"`
	Fetch    FetchConfig    `yaml:"fetch" json:"fetch" jsonschema:"description=Feed fetching configuration"`
	Matches  MatchesConfig  `yaml:"matches" json:"matches" jsonschema:"description=Match retention configuration"`
	Notify   NotifyConfig   `yaml:"notify" json:"notify" jsonschema:"description=Notification sinks configuration"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Listen  string        `yaml:"listen" json:"listen" jsonschema:"default=:8080,description=HTTP server listen address"`
	Timeout time.Duration `yaml:"timeout" json:"timeout" jsonschema:"default=30s,description=HTTP server timeout"`
	BaseURL string        `yaml:"base_url" json:"base_url" jsonschema:"default=http://localhost:8080,description=Base URL for RSS output and external links"`
}

// StorageConfig holds state persistence settings
type StorageConfig struct {
	Type string `yaml:"type" json:"type" jsonschema:"default=sqlite,enum=sqlite,enum=json,description=Storage backend"`
	DSN  string `yaml:"dsn" json:"dsn" jsonschema:"default=file:feedmon.db?cache=shared&mode=rwc&_txlock=immediate,description=SQLite connection string"`
	Path string `yaml:"path" json:"path" jsonschema:"default=feedmon.json,description=State file for the json backend"`
}

// ScheduleConfig holds check cycle settings
type ScheduleConfig struct {
	Interval    time.Duration `yaml:"interval" json:"interval" jsonschema:"default=5m,description=Interval between check cycles"`
	MaxWorkers  int           `yaml:"max_workers" json:"max_workers" jsonschema:"default=5,minimum=1,description=Maximum concurrent feed fetches"`
	GracePeriod time.Duration `yaml:"grace_period" json:"grace_period" jsonschema:"default=10s,description=Time to let a running cycle finish on shutdown"`
	RunOnStart  bool          `yaml:"run_on_start" json:"run_on_start" jsonschema:"default=true,description=Run a cycle right after start"`
}

// FetchConfig holds feed request settings
type FetchConfig struct {
	Timeout     time.Duration `yaml:"timeout" json:"timeout" jsonschema:"default=10s,description=Feed request timeout"`
	UserAgent   string        `yaml:"user_agent" json:"user_agent" jsonschema:"description=User agent for feed requests"`
	MaxBodySize int64         `yaml:"max_body_size" json:"max_body_size" jsonschema:"default=10485760,description=Maximum feed body size in bytes"`
}

// MatchesConfig holds match lifecycle settings
type MatchesConfig struct {
	Retention int `yaml:"retention" json:"retention" jsonschema:"default=100,minimum=1,description=Number of recent matches kept"`
}

// NotifyConfig holds notification sinks settings
type NotifyConfig struct {
	Log      bool           `yaml:"log" json:"log" jsonschema:"default=true,description=Log new matches"`
	Timeout  time.Duration  `yaml:"timeout" json:"timeout" jsonschema:"default=30s,description=Delivery timeout per notification"`
	Webhook  WebhookConfig  `yaml:"webhook" json:"webhook" jsonschema:"description=Webhook sink"`
	Telegram TelegramConfig `yaml:"telegram" json:"telegram" jsonschema:"description=Telegram sink"`
}

// WebhookConfig holds webhook sink settings, disabled if URL is empty
type WebhookConfig struct {
	URL     string        `yaml:"url" json:"url" jsonschema:"description=URL receiving POSTed match events"`
	Timeout time.Duration `yaml:"timeout" json:"timeout" jsonschema:"default=10s,description=Request timeout"`
	Retries int           `yaml:"retries" json:"retries" jsonschema:"default=3,description=Delivery attempts"`
}

// TelegramConfig holds telegram sink settings, disabled if Token is empty
type TelegramConfig struct {
	Token  string `yaml:"token" json:"token" jsonschema:"description=Bot token (can use environment variable)"`
	ChatID int64  `yaml:"chat_id" json:"chat_id" jsonschema:"description=Chat receiving match messages"`
}

// Load reads configuration from a YAML file. Empty path gives the default configuration.
func Load(path string) (*Config, error) {
	// bool options enabled by default, yaml keeps them unless set explicitly
	cfg := Config{
		Schedule: ScheduleConfig{RunOnStart: true},
		Notify:   NotifyConfig{Log: true},
	}
	if path != "" {
		data, err := os.ReadFile(path) //nolint:gosec // file path comes from CLI flag
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}

		// expand environment variables
		expanded := os.ExpandEnv(string(data))

		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	// verify against embedded schema
	if err := VerifyAgainstEmbeddedSchema(&cfg); err != nil {
		return nil, fmt.Errorf("verify config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(cfg *Config) {
	// server
	if cfg.Server.Listen == "" {
		cfg.Server.Listen = ":8080"
	}
	if cfg.Server.Timeout == 0 {
		cfg.Server.Timeout = 30 * time.Second
	}
	if cfg.Server.BaseURL == "" {
		cfg.Server.BaseURL = "http://localhost:8080"
	}

	// storage
	if cfg.Storage.Type == "" {
		cfg.Storage.Type = "sqlite"
	}
	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "file:feedmon.db?cache=shared&mode=rwc&_txlock=immediate"
	}
	if cfg.Storage.Path == "" {
		cfg.Storage.Path = "feedmon.json"
	}

	// schedule
	if cfg.Schedule.Interval == 0 {
		cfg.Schedule.Interval = 5 * time.Minute
	}
	if cfg.Schedule.MaxWorkers == 0 {
		cfg.Schedule.MaxWorkers = 5
	}
	if cfg.Schedule.GracePeriod == 0 {
		cfg.Schedule.GracePeriod = 10 * time.Second
	}

	// fetch
	if cfg.Fetch.Timeout == 0 {
		cfg.Fetch.Timeout = 10 * time.Second
	}
	if cfg.Fetch.MaxBodySize == 0 {
		cfg.Fetch.MaxBodySize = 10 * 1024 * 1024
	}

	// matches
	if cfg.Matches.Retention == 0 {
		cfg.Matches.Retention = 100
	}

	// notify
	if cfg.Notify.Timeout == 0 {
		cfg.Notify.Timeout = 30 * time.Second
	}
	if cfg.Notify.Webhook.Timeout == 0 {
		cfg.Notify.Webhook.Timeout = 10 * time.Second
	}
	if cfg.Notify.Webhook.Retries == 0 {
		cfg.Notify.Webhook.Retries = 3
	}
}

// validate checks configuration for correctness
func validate(cfg *Config) error {
	if cfg.Server.Timeout < time.Second {
		return fmt.Errorf("server timeout must be at least 1 second")
	}

	switch cfg.Storage.Type {
	case "sqlite", "json":
	default:
		return fmt.Errorf("storage.type must be sqlite or json, got %q", cfg.Storage.Type)
	}

	if cfg.Schedule.Interval < time.Second {
		return fmt.Errorf("schedule.interval must be at least 1 second")
	}
	if cfg.Schedule.MaxWorkers < 1 {
		return fmt.Errorf("schedule.max_workers must be at least 1")
	}
	if cfg.Fetch.Timeout < 100*time.Millisecond {
		return fmt.Errorf("fetch.timeout must be at least 100ms")
	}
	if cfg.Matches.Retention < 1 {
		return fmt.Errorf("matches.retention must be at least 1")
	}
	if cfg.Notify.Telegram.Token != "" && cfg.Notify.Telegram.ChatID == 0 {
		return fmt.Errorf("notify.telegram.chat_id is required with a token")
	}
	return nil
}
