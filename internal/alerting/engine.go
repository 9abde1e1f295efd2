package alerting

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/good-yellow-bee/logalert/internal/logger"
	"github.com/good-yellow-bee/logalert/internal/metrics"
	"github.com/good-yellow-bee/logalert/internal/models"
)

// DefaultCooldown is the global cooldown applied to every rule.
const DefaultCooldown = 5 * time.Minute

// EventDispatcher delivers fired events. Dispatch must not block.
type EventDispatcher interface {
	Dispatch(event *models.AlertEvent, rule *models.AlertRule)
}

// Engine ties the rule repository, cooldown tracker, evaluator and
// dispatcher together. It has no timer of its own; callers drive it.
type Engine struct {
	rules      *RuleRepository
	cooldown   *CooldownTracker
	evaluator  *Evaluator
	dispatcher EventDispatcher
	history    *EventHistory

	cooldownPeriod atomic.Int64
	now            func() time.Time

	stats *EngineStats
	log   zerolog.Logger
}

// EngineStats tracks engine statistics using atomic operations for lock-free access.
type EngineStats struct {
	Passes        atomic.Int64
	LogsEvaluated atomic.Int64
	AlertsFired   atomic.Int64
}

// EngineOptions configures the alert engine.
type EngineOptions struct {
	// Cooldown is the minimum time between two firings of the same rule.
	Cooldown time.Duration
	// Now overrides the clock.
	Now func() time.Time
	// NewID generates event ids.
	NewID IDGenerator
	// HistorySize is how many recent events are kept for display.
	HistorySize int
}

// DefaultEngineOptions returns default engine options.
func DefaultEngineOptions() *EngineOptions {
	return &EngineOptions{
		Cooldown:    DefaultCooldown,
		Now:         time.Now,
		NewID:       NewUUID,
		HistorySize: DefaultHistorySize,
	}
}

// NewEngine creates an alert engine. dispatcher may be nil.
func NewEngine(rules *RuleRepository, tracker *CooldownTracker, dispatcher EventDispatcher, opts *EngineOptions) *Engine {
	if opts == nil {
		opts = DefaultEngineOptions()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	e := &Engine{
		rules:      rules,
		cooldown:   tracker,
		evaluator:  NewEvaluator(tracker, opts.NewID),
		dispatcher: dispatcher,
		history:    NewEventHistory(opts.HistorySize),
		now:        opts.Now,
		stats:      &EngineStats{},
		log:        logger.WithComponent("alerting"),
	}
	e.SetCooldown(opts.Cooldown)
	return e
}

// Evaluate runs one pass over logs at the current time.
func (e *Engine) Evaluate(ctx context.Context, logs []models.LogRecord) []*models.AlertEvent {
	return e.EvaluateAt(ctx, logs, e.now())
}

// EvaluateAt runs one pass at a specific time. Enabled rules are loaded from
// the repository, fired events are handed to the dispatcher and returned in
// rule order. Dispatch completion is not awaited.
func (e *Engine) EvaluateAt(ctx context.Context, logs []models.LogRecord, now time.Time) []*models.AlertEvent {
	start := time.Now()
	defer func() {
		metrics.EvaluationDuration.Observe(time.Since(start).Seconds())
	}()

	rules := e.rules.ListEnabled(ctx)
	metrics.EvaluationsTotal.Inc()
	metrics.RulesEnabled.Set(float64(len(rules)))
	e.stats.Passes.Add(1)
	e.stats.LogsEvaluated.Add(int64(len(logs)))

	events := e.evaluator.Evaluate(ctx, rules, logs, now, e.Cooldown())
	if len(events) == 0 {
		return events
	}

	e.history.Add(events...)

	byID := make(map[string]*models.AlertRule, len(rules))
	for _, rule := range rules {
		byID[rule.ID] = rule
	}

	for _, event := range events {
		e.stats.AlertsFired.Add(1)
		metrics.AlertsFiredTotal.Inc()
		e.log.Info().
			Str("rule_id", event.RuleID).
			Str("rule", event.RuleName).
			Int("matched", event.MatchedCount).
			Time("window_start", event.WindowStart).
			Time("window_end", event.WindowEnd).
			Msg("alert fired")

		if e.dispatcher != nil {
			e.dispatcher.Dispatch(event, byID[event.RuleID])
		}
	}

	return events
}

// RecentEvents returns the most recently fired events, newest first.
func (e *Engine) RecentEvents() []*models.AlertEvent {
	return e.history.Recent()
}

// Rules returns the rule repository.
func (e *Engine) Rules() *RuleRepository {
	return e.rules
}

// RemoveRule deletes a rule and prunes cooldown entries of rules that no
// longer exist.
func (e *Engine) RemoveRule(ctx context.Context, id string) error {
	if err := e.rules.Remove(ctx, id); err != nil {
		return err
	}

	remaining := e.rules.List(ctx)
	keep := make([]string, len(remaining))
	for i, rule := range remaining {
		keep[i] = rule.ID
	}
	if n := e.cooldown.Prune(ctx, keep); n > 0 {
		e.log.Debug().Int("pruned", n).Msg("stale cooldown entries pruned")
	}
	return nil
}

// LastFired returns when a rule last fired.
func (e *Engine) LastFired(ctx context.Context, ruleID string) (time.Time, bool) {
	return e.cooldown.LastFired(ctx, ruleID)
}

// Cooldown returns the current global cooldown.
func (e *Engine) Cooldown() time.Duration {
	return time.Duration(e.cooldownPeriod.Load())
}

// SetCooldown replaces the global cooldown. Negative values are treated as zero.
func (e *Engine) SetCooldown(d time.Duration) {
	if d < 0 {
		d = 0
	}
	e.cooldownPeriod.Store(int64(d))
}

// EngineStatsSnapshot is a snapshot of engine statistics for reporting.
type EngineStatsSnapshot struct {
	Passes           int64 `json:"passes"`
	LogsEvaluated    int64 `json:"logs_evaluated"`
	AlertsFired      int64 `json:"alerts_fired"`
	AlertsSuppressed int64 `json:"alerts_suppressed"`
}

// Stats returns a snapshot of engine statistics.
func (e *Engine) Stats() EngineStatsSnapshot {
	return EngineStatsSnapshot{
		Passes:           e.stats.Passes.Load(),
		LogsEvaluated:    e.stats.LogsEvaluated.Load(),
		AlertsFired:      e.stats.AlertsFired.Load(),
		AlertsSuppressed: e.evaluator.Suppressed(),
	}
}
