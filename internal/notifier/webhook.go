package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/good-yellow-bee/logalert/internal/models"
	"github.com/good-yellow-bee/logalert/pkg/buildinfo"
)

// WebhookEventType is the type field of every webhook payload.
const WebhookEventType = "cloud-monitoring.alert"

// WebhookConfig holds webhook channel configuration.
type WebhookConfig struct {
	DefaultURL string        // Used when a rule has no webhook URL of its own
	Timeout    time.Duration // HTTP client timeout (default: 30s)
}

// ValidateWebhookURL checks that u is an absolute http or https URL.
func ValidateWebhookURL(u string) error {
	parsed, err := url.Parse(u)
	if err != nil {
		return fmt.Errorf("invalid webhook URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("webhook URL must use http or https")
	}
	if parsed.Host == "" {
		return fmt.Errorf("webhook URL must include a host")
	}
	return nil
}

// Validate validates the webhook configuration. An empty default URL is allowed.
func (c *WebhookConfig) Validate() error {
	if c.DefaultURL == "" {
		return nil
	}
	return ValidateWebhookURL(c.DefaultURL)
}

// WebhookPayload is the JSON body posted for each fired event.
type WebhookPayload struct {
	Type         string            `json:"type"`
	RuleID       string            `json:"ruleId"`
	RuleName     string            `json:"ruleName"`
	MatchedCount int               `json:"matchedCount"`
	WindowStart  time.Time         `json:"windowStart"`
	WindowEnd    time.Time         `json:"windowEnd"`
	LatestLog    *models.LogRecord `json:"latestLog,omitempty"`
	CreatedAt    time.Time         `json:"createdAt"`
}

// NewWebhookPayload builds the payload for event.
func NewWebhookPayload(event *models.AlertEvent) WebhookPayload {
	return WebhookPayload{
		Type:         WebhookEventType,
		RuleID:       event.RuleID,
		RuleName:     event.RuleName,
		MatchedCount: event.MatchedCount,
		WindowStart:  event.WindowStart,
		WindowEnd:    event.WindowEnd,
		LatestLog:    event.LatestLog,
		CreatedAt:    event.CreatedAt,
	}
}

// WebhookNotifier posts events as JSON to the rule's webhook URL, falling
// back to a process-wide default.
type WebhookNotifier struct {
	defaultURL atomic.Value // string
	httpClient *http.Client
}

// NewWebhookNotifier creates a new webhook notifier.
func NewWebhookNotifier(config WebhookConfig) (*WebhookNotifier, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid webhook config: %w", err)
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}

	w := &WebhookNotifier{
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
	w.defaultURL.Store(config.DefaultURL)
	return w, nil
}

// Name returns "webhook".
func (w *WebhookNotifier) Name() string {
	return "webhook"
}

// DefaultURL returns the current fallback URL.
func (w *WebhookNotifier) DefaultURL() string {
	s, _ := w.defaultURL.Load().(string)
	return s
}

// SetDefaultURL replaces the fallback URL. Safe to call while sends are in flight.
func (w *WebhookNotifier) SetDefaultURL(u string) {
	w.defaultURL.Store(u)
}

// Send posts the event. Without any URL the send is skipped.
func (w *WebhookNotifier) Send(ctx context.Context, event *models.AlertEvent, rule *models.AlertRule) error {
	target := w.DefaultURL()
	if rule != nil && rule.WebhookURL != "" {
		target = rule.WebhookURL
	}
	if target == "" {
		return fmt.Errorf("no webhook URL: %w", ErrSkipped)
	}

	jsonData, err := json.Marshal(NewWebhookPayload(event))
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", buildinfo.UserAgent())

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("webhook error: status %d, body: %s", resp.StatusCode, string(body))
	}

	return nil
}

// Close is a no-op for the webhook notifier.
func (w *WebhookNotifier) Close() error {
	return nil
}
