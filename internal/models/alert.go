package models

import (
	"strings"
	"time"
)

// Rule defaults applied on creation.
const (
	DefaultRuleName      = "New rule"
	DefaultThreshold     = 1
	DefaultWindowMinutes = 10
)

// AlertRule is a persistent alert definition. Rules are never edited after
// creation apart from toggling Enabled, so the ID stays a stable cooldown key.
type AlertRule struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	Severities      []string `json:"severities"`
	SourceIncludes  string   `json:"sourceIncludes"`
	MessageIncludes string   `json:"messageIncludes"`
	Threshold       int      `json:"threshold"`
	WindowMinutes   int      `json:"windowMinutes"`
	Enabled         bool     `json:"enabled"`
	WebhookURL      string   `json:"webhookUrl,omitempty"`
}

// Window returns the rule's trailing window as a duration.
func (r *AlertRule) Window() time.Duration {
	return time.Duration(r.WindowMinutes) * time.Minute
}

// Clone returns a deep copy of the rule.
func (r *AlertRule) Clone() *AlertRule {
	c := *r
	if r.Severities != nil {
		c.Severities = append(make([]string, 0, len(r.Severities)), r.Severities...)
	}
	return &c
}

// RuleInput carries the caller-supplied fields for a new rule. Nil fields
// take their defaults.
type RuleInput struct {
	Name            *string  `json:"name,omitempty" yaml:"name,omitempty"`
	Severities      []string `json:"severities,omitempty" yaml:"severities,omitempty"`
	SourceIncludes  *string  `json:"sourceIncludes,omitempty" yaml:"source_includes,omitempty"`
	MessageIncludes *string  `json:"messageIncludes,omitempty" yaml:"message_includes,omitempty"`
	Threshold       *int     `json:"threshold,omitempty" yaml:"threshold,omitempty"`
	WindowMinutes   *int     `json:"windowMinutes,omitempty" yaml:"window_minutes,omitempty"`
	Enabled         *bool    `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	WebhookURL      *string  `json:"webhookUrl,omitempty" yaml:"webhook_url,omitempty"`
}

// NewAlertRule builds a rule from input with defaults applied, strings
// trimmed, and threshold and window clamped to at least 1.
func NewAlertRule(id string, in RuleInput) *AlertRule {
	rule := &AlertRule{
		ID:            id,
		Name:          DefaultRuleName,
		Severities:    []string{},
		Threshold:     DefaultThreshold,
		WindowMinutes: DefaultWindowMinutes,
		Enabled:       true,
	}

	if in.Name != nil {
		if name := strings.TrimSpace(*in.Name); name != "" {
			rule.Name = name
		}
	}
	for _, s := range in.Severities {
		if s = strings.TrimSpace(s); s != "" {
			rule.Severities = append(rule.Severities, s)
		}
	}
	if in.SourceIncludes != nil {
		rule.SourceIncludes = strings.TrimSpace(*in.SourceIncludes)
	}
	if in.MessageIncludes != nil {
		rule.MessageIncludes = strings.TrimSpace(*in.MessageIncludes)
	}
	if in.Threshold != nil {
		rule.Threshold = max(1, *in.Threshold)
	}
	if in.WindowMinutes != nil {
		rule.WindowMinutes = max(1, *in.WindowMinutes)
	}
	if in.Enabled != nil {
		rule.Enabled = *in.Enabled
	}
	if in.WebhookURL != nil {
		rule.WebhookURL = strings.TrimSpace(*in.WebhookURL)
	}

	return rule
}

// AlertEvent is produced once per rule firing. Events are transient: they are
// returned to the caller and handed to the dispatcher, never persisted here.
type AlertEvent struct {
	ID           string     `json:"id"`
	RuleID       string     `json:"ruleId"`
	RuleName     string     `json:"ruleName"`
	MatchedCount int        `json:"matchedCount"`
	WindowStart  time.Time  `json:"windowStart"`
	WindowEnd    time.Time  `json:"windowEnd"`
	LatestLog    *LogRecord `json:"latestLog,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
}

// LatestMessage returns the message of the latest matching log, or "".
func (e *AlertEvent) LatestMessage() string {
	if e.LatestLog == nil {
		return ""
	}
	return e.LatestLog.Message
}
