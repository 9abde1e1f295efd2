package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"LOGALERT_WEBHOOK_URL",
		"LOGALERT_COOLDOWN_MIN",
		"LOGALERT_POLL_INTERVAL",
		"LOGALERT_DB_PATH",
		"LOGALERT_LOG_SOURCE_URL",
	} {
		t.Setenv(k, "")
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "logalert.yaml")
	if err := os.WriteFile(path, []byte(body), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaultConfig(t *testing.T) {
	clearEnv(t)

	cfg, err := DefaultConfig()
	if err != nil {
		t.Fatalf("DefaultConfig: %v", err)
	}
	if cfg.Server.HTTPAddress != ":8080" {
		t.Errorf("HTTPAddress = %q", cfg.Server.HTTPAddress)
	}
	if cfg.Cooldown() != 5*time.Minute {
		t.Errorf("Cooldown() = %v, want 5m", cfg.Cooldown())
	}
	if cfg.PollInterval() != 10*time.Second {
		t.Errorf("PollInterval() = %v, want 10s", cfg.PollInterval())
	}
	if cfg.LocalNotifications.Mode != "prompt" {
		t.Errorf("LocalNotifications.Mode = %q", cfg.LocalNotifications.Mode)
	}

	dc := cfg.dispatcherConfig()
	if dc.SendTimeout != 10*time.Second {
		t.Errorf("SendTimeout = %v", dc.SendTimeout)
	}
	if dc.RateLimit.Enabled || dc.RateLimit.PerMinute != 30 || dc.RateLimit.Burst != 10 {
		t.Errorf("RateLimit = %+v", dc.RateLimit)
	}
}

func TestLoadConfig_File(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
server:
  http_address: "127.0.0.1:9090"
  metrics_address: ":9100"
database:
  path: /tmp/alerts.db
log_source:
  url: http://localhost:3000/api/logs
  timeout: 3s
alerting:
  cooldown_minutes: 15
  poll_interval: 30s
  default_webhook_url: https://hooks.example.com/alert
  rate_limit:
    enabled: true
    per_minute: 12
kafka:
  enabled: true
  brokers: ["localhost:9092"]
logging:
  level: debug
  format: console
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Server.HTTPAddress != "127.0.0.1:9090" {
		t.Errorf("HTTPAddress = %q", cfg.Server.HTTPAddress)
	}
	if cfg.Cooldown() != 15*time.Minute {
		t.Errorf("Cooldown() = %v", cfg.Cooldown())
	}
	if cfg.PollInterval() != 30*time.Second {
		t.Errorf("PollInterval() = %v", cfg.PollInterval())
	}
	if cfg.logSourceTimeout() != 3*time.Second {
		t.Errorf("logSourceTimeout() = %v", cfg.logSourceTimeout())
	}
	if rl := cfg.dispatcherConfig().RateLimit; !rl.Enabled || rl.PerMinute != 12 || rl.Burst != 10 {
		t.Errorf("RateLimit = %+v", rl)
	}
	if kc := cfg.kafkaConfig(); kc.Topic != "logalert-events" || len(kc.Brokers) != 1 {
		t.Errorf("kafkaConfig() = %+v", kc)
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("LOGALERT_COOLDOWN_MIN", "20")
	t.Setenv("LOGALERT_WEBHOOK_URL", "https://env.example.com/hook")
	t.Setenv("LOGALERT_DB_PATH", "/var/lib/logalert/env.db")
	t.Setenv("LOGALERT_POLL_INTERVAL", "2m")
	t.Setenv("LOGALERT_LOG_SOURCE_URL", "http://logs.internal/api")

	path := writeConfig(t, "alerting:\n  cooldown_minutes: 5\n")
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Alerting.CooldownMinutes != 20 {
		t.Errorf("CooldownMinutes = %d, want 20", cfg.Alerting.CooldownMinutes)
	}
	if cfg.Alerting.DefaultWebhookURL != "https://env.example.com/hook" {
		t.Errorf("DefaultWebhookURL = %q", cfg.Alerting.DefaultWebhookURL)
	}
	if cfg.Database.Path != "/var/lib/logalert/env.db" {
		t.Errorf("Database.Path = %q", cfg.Database.Path)
	}
	if cfg.PollInterval() != 2*time.Minute {
		t.Errorf("PollInterval() = %v", cfg.PollInterval())
	}
	if cfg.LogSource.URL != "http://logs.internal/api" {
		t.Errorf("LogSource.URL = %q", cfg.LogSource.URL)
	}
}

func TestLoadConfig_Errors(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		env     map[string]string
		wantErr string
	}{
		{"invalid yaml", "server: [", nil, "parse config"},
		{"cooldown too large", "alerting:\n  cooldown_minutes: 61\n", nil, "cooldown_minutes"},
		{"negative cooldown", "alerting:\n  cooldown_minutes: -1\n", nil, "cooldown_minutes"},
		{"bad poll interval", "alerting:\n  poll_interval: soon\n", nil, "poll_interval"},
		{"poll interval too short", "alerting:\n  poll_interval: 10ms\n", nil, "poll_interval"},
		{"bad send timeout", "alerting:\n  send_timeout: x\n", nil, "send_timeout"},
		{"bad webhook", "alerting:\n  default_webhook_url: ftp://example.com\n", nil, "default_webhook_url"},
		{"kafka without brokers", "kafka:\n  enabled: true\n", nil, "kafka"},
		{"bad env cooldown", "", map[string]string{"LOGALERT_COOLDOWN_MIN": "five"}, "LOGALERT_COOLDOWN_MIN"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := LoadConfig(writeConfig(t, tt.body))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
