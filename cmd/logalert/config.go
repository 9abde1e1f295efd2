// Package main provides the logalert CLI.
package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/good-yellow-bee/logalert/internal/notifier"
)

// Config represents the logalert configuration.
type Config struct {
	Server             ServerConfig    `yaml:"server"`
	Database           DatabaseConfig  `yaml:"database"`
	LogSource          LogSourceConfig `yaml:"log_source"`
	Alerting           AlertingConfig  `yaml:"alerting"`
	LocalNotifications LocalConfig     `yaml:"local_notifications"`
	Kafka              KafkaConfig     `yaml:"kafka"`
	Logging            LoggingConfig   `yaml:"logging"`
	Verbose            bool            `yaml:"-"` // set via CLI flag
}

// ServerConfig contains listener settings.
type ServerConfig struct {
	HTTPAddress    string `yaml:"http_address"`    // API listen address (default: :8080)
	MetricsAddress string `yaml:"metrics_address"` // Prometheus listen address, empty disables
}

// DatabaseConfig contains storage settings.
type DatabaseConfig struct {
	Path string `yaml:"path"` // SQLite file holding rules and cooldown state
}

// LogSourceConfig describes where recent logs are fetched from.
type LogSourceConfig struct {
	URL     string `yaml:"url"`     // empty disables background refresh
	Timeout string `yaml:"timeout"` // default: 10s
}

// AlertingConfig contains engine and dispatch settings.
type AlertingConfig struct {
	CooldownMinutes   int             `yaml:"cooldown_minutes"`    // 1-60, default 5
	PollInterval      string          `yaml:"poll_interval"`       // default: 10s
	DefaultWebhookURL string          `yaml:"default_webhook_url"` // used when a rule has none
	SendTimeout       string          `yaml:"send_timeout"`        // per channel, default: 10s
	RateLimit         RateLimitConfig `yaml:"rate_limit"`
}

// RateLimitConfig bounds outgoing dispatches.
type RateLimitConfig struct {
	Enabled   bool `yaml:"enabled"`
	PerMinute int  `yaml:"per_minute"`
	Burst     int  `yaml:"burst"`
}

// LocalConfig configures terminal notifications.
type LocalConfig struct {
	Enabled bool   `yaml:"enabled"`
	Mode    string `yaml:"mode"` // granted, denied or prompt
}

// KafkaConfig configures the Kafka channel.
type KafkaConfig struct {
	Enabled     bool     `yaml:"enabled"`
	Brokers     []string `yaml:"brokers"`
	Topic       string   `yaml:"topic"`
	Compression string   `yaml:"compression"`
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json or console
}

// LoadConfig loads configuration from a YAML file. Environment overrides
// are applied after the file is parsed.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.applyEnv(os.Getenv); err != nil {
		return nil, err
	}
	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// DefaultConfig returns a configuration with default values and
// environment overrides applied.
func DefaultConfig() (*Config, error) {
	cfg := &Config{}
	if err := cfg.applyEnv(os.Getenv); err != nil {
		return nil, err
	}
	cfg.setDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// setDefaults sets default values for missing config fields.
func (c *Config) setDefaults() {
	if c.Server.HTTPAddress == "" {
		c.Server.HTTPAddress = ":8080"
	}
	if c.Database.Path == "" {
		c.Database.Path = "./data/logalert.db"
	}
	if c.LogSource.Timeout == "" {
		c.LogSource.Timeout = "10s"
	}
	if c.Alerting.CooldownMinutes == 0 {
		c.Alerting.CooldownMinutes = 5
	}
	if c.Alerting.PollInterval == "" {
		c.Alerting.PollInterval = "10s"
	}
	if c.Alerting.SendTimeout == "" {
		c.Alerting.SendTimeout = "10s"
	}
	if c.Alerting.RateLimit.PerMinute == 0 {
		c.Alerting.RateLimit.PerMinute = 30
	}
	if c.Alerting.RateLimit.Burst == 0 {
		c.Alerting.RateLimit.Burst = 10
	}
	if c.LocalNotifications.Mode == "" {
		c.LocalNotifications.Mode = notifier.TerminalModePrompt
	}
	if c.Kafka.Topic == "" {
		c.Kafka.Topic = "logalert-events"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
}

// applyEnv overrides fields from LOGALERT_* variables.
func (c *Config) applyEnv(getenv func(string) string) error {
	if v := getenv("LOGALERT_WEBHOOK_URL"); v != "" {
		c.Alerting.DefaultWebhookURL = v
	}
	if v := getenv("LOGALERT_COOLDOWN_MIN"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("LOGALERT_COOLDOWN_MIN: %w", err)
		}
		c.Alerting.CooldownMinutes = n
	}
	if v := getenv("LOGALERT_POLL_INTERVAL"); v != "" {
		c.Alerting.PollInterval = v
	}
	if v := getenv("LOGALERT_DB_PATH"); v != "" {
		c.Database.Path = v
	}
	if v := getenv("LOGALERT_LOG_SOURCE_URL"); v != "" {
		c.LogSource.URL = v
	}
	return nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.HTTPAddress == "" {
		return fmt.Errorf("server.http_address is required")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Alerting.CooldownMinutes < 1 || c.Alerting.CooldownMinutes > 60 {
		return fmt.Errorf("alerting.cooldown_minutes must be between 1 and 60")
	}
	if d, err := time.ParseDuration(c.Alerting.PollInterval); err != nil {
		return fmt.Errorf("invalid alerting.poll_interval: %w", err)
	} else if d < time.Second {
		return fmt.Errorf("alerting.poll_interval must be at least 1s")
	}
	if _, err := time.ParseDuration(c.Alerting.SendTimeout); err != nil {
		return fmt.Errorf("invalid alerting.send_timeout: %w", err)
	}
	if _, err := time.ParseDuration(c.LogSource.Timeout); err != nil {
		return fmt.Errorf("invalid log_source.timeout: %w", err)
	}
	if c.Alerting.DefaultWebhookURL != "" {
		if err := notifier.ValidateWebhookURL(c.Alerting.DefaultWebhookURL); err != nil {
			return fmt.Errorf("alerting.default_webhook_url: %w", err)
		}
	}
	if c.Alerting.RateLimit.PerMinute < 0 || c.Alerting.RateLimit.Burst < 0 {
		return fmt.Errorf("alerting.rate_limit values must not be negative")
	}
	if c.Kafka.Enabled {
		kc := c.kafkaConfig()
		if err := kc.Validate(); err != nil {
			return fmt.Errorf("kafka: %w", err)
		}
	}
	return nil
}

// Cooldown returns the configured global cooldown.
func (c *Config) Cooldown() time.Duration {
	return time.Duration(c.Alerting.CooldownMinutes) * time.Minute
}

// PollInterval returns the background refresh interval.
func (c *Config) PollInterval() time.Duration {
	d, _ := time.ParseDuration(c.Alerting.PollInterval)
	return d
}

func (c *Config) dispatcherConfig() notifier.DispatcherConfig {
	timeout, _ := time.ParseDuration(c.Alerting.SendTimeout)
	return notifier.DispatcherConfig{
		SendTimeout: timeout,
		RateLimit: notifier.RateLimitConfig{
			Enabled:   c.Alerting.RateLimit.Enabled,
			PerMinute: c.Alerting.RateLimit.PerMinute,
			Burst:     c.Alerting.RateLimit.Burst,
		},
	}
}

func (c *Config) logSourceTimeout() time.Duration {
	d, _ := time.ParseDuration(c.LogSource.Timeout)
	return d
}

func (c *Config) kafkaConfig() notifier.KafkaConfig {
	return notifier.KafkaConfig{
		Brokers:     c.Kafka.Brokers,
		Topic:       c.Kafka.Topic,
		Compression: c.Kafka.Compression,
	}
}
