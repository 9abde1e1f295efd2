// Package alerting implements the alert rule evaluation engine: rule storage,
// time-windowed predicate matching, cooldown suppression and dispatch of
// fired events.
package alerting

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/good-yellow-bee/logalert/internal/kvstore"
	"github.com/good-yellow-bee/logalert/internal/logger"
	"github.com/good-yellow-bee/logalert/internal/metrics"
	"github.com/good-yellow-bee/logalert/internal/models"
)

// RulesKey is the store key holding the JSON array of rules.
const RulesKey = "alert-rules"

// IDGenerator returns a new unique id.
type IDGenerator func() string

// NewUUID is the default IDGenerator.
func NewUUID() string {
	return uuid.NewString()
}

// RuleRepository stores alert rules as a single ordered JSON array. Every
// mutation rewrites the whole array.
type RuleRepository struct {
	mu    sync.Mutex
	store kvstore.Store
	newID IDGenerator
	log   zerolog.Logger
}

// NewRuleRepository creates a repository on store. A nil newID uses NewUUID.
func NewRuleRepository(store kvstore.Store, newID IDGenerator) *RuleRepository {
	if newID == nil {
		newID = NewUUID
	}
	return &RuleRepository{
		store: store,
		newID: newID,
		log:   logger.WithComponent("alerting"),
	}
}

// List returns all rules in insertion order. A missing or unreadable stored
// value yields an empty list.
func (r *RuleRepository) List(ctx context.Context) []*models.AlertRule {
	return r.load(ctx)
}

// ListEnabled returns the enabled rules in insertion order.
func (r *RuleRepository) ListEnabled(ctx context.Context) []*models.AlertRule {
	all := r.load(ctx)
	enabled := make([]*models.AlertRule, 0, len(all))
	for _, rule := range all {
		if rule.Enabled {
			enabled = append(enabled, rule)
		}
	}
	return enabled
}

// Get returns a rule by id.
func (r *RuleRepository) Get(ctx context.Context, id string) (*models.AlertRule, bool) {
	for _, rule := range r.load(ctx) {
		if rule.ID == id {
			return rule, true
		}
	}
	return nil, false
}

// Add creates a rule from in, applying defaults and clamping, and appends it.
// The only error is a failed write to the store.
func (r *RuleRepository) Add(ctx context.Context, in models.RuleInput) (*models.AlertRule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rule := models.NewAlertRule(r.newID(), in)
	rules := append(r.load(ctx), rule)
	if err := r.save(ctx, rules); err != nil {
		return nil, err
	}

	r.log.Info().Str("rule_id", rule.ID).Str("rule", rule.Name).Msg("alert rule created")
	return rule.Clone(), nil
}

// Remove deletes the rule with id. Removing an unknown id is a no-op.
func (r *RuleRepository) Remove(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current := r.load(ctx)
	remaining := make([]*models.AlertRule, 0, len(current))
	for _, rule := range current {
		if rule.ID != id {
			remaining = append(remaining, rule)
		}
	}
	if err := r.save(ctx, remaining); err != nil {
		return err
	}

	if len(remaining) != len(current) {
		r.log.Info().Str("rule_id", id).Msg("alert rule removed")
	}
	return nil
}

// SetEnabled toggles the enabled flag of the rule with id.
func (r *RuleRepository) SetEnabled(ctx context.Context, id string, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rules := r.load(ctx)
	found := false
	for _, rule := range rules {
		if rule.ID == id {
			rule.Enabled = enabled
			found = true
		}
	}
	if !found {
		return nil
	}
	if err := r.save(ctx, rules); err != nil {
		return err
	}

	r.log.Info().Str("rule_id", id).Bool("enabled", enabled).Msg("alert rule toggled")
	return nil
}

func (r *RuleRepository) load(ctx context.Context) []*models.AlertRule {
	raw, ok, err := r.store.Get(ctx, RulesKey)
	if err != nil {
		r.log.Warn().Err(err).Msg("read rules failed, treating as empty")
		return []*models.AlertRule{}
	}
	if !ok || raw == "" {
		return []*models.AlertRule{}
	}

	var rules []*models.AlertRule
	if err := json.Unmarshal([]byte(raw), &rules); err != nil {
		metrics.StoreCorruptTotal.WithLabelValues(RulesKey).Inc()
		r.log.Warn().Err(err).Msg("stored rules are corrupt, treating as empty")
		return []*models.AlertRule{}
	}

	out := make([]*models.AlertRule, 0, len(rules))
	for _, rule := range rules {
		if rule == nil {
			continue
		}
		rule.Threshold = max(1, rule.Threshold)
		rule.WindowMinutes = max(1, rule.WindowMinutes)
		if rule.Severities == nil {
			rule.Severities = []string{}
		}
		out = append(out, rule)
	}
	return out
}

func (r *RuleRepository) save(ctx context.Context, rules []*models.AlertRule) error {
	data, err := json.Marshal(rules)
	if err != nil {
		return fmt.Errorf("marshal rules: %w", err)
	}
	if err := r.store.Set(ctx, RulesKey, string(data)); err != nil {
		return fmt.Errorf("save rules: %w", err)
	}
	return nil
}
