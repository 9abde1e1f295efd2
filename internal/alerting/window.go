package alerting

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/good-yellow-bee/logalert/internal/metrics"
	"github.com/good-yellow-bee/logalert/internal/models"
)

// Evaluator counts matching logs in each rule's trailing window and builds
// events for rules that reach their threshold.
type Evaluator struct {
	cooldown *CooldownTracker
	newID    IDGenerator

	suppressed atomic.Int64
}

// NewEvaluator creates an evaluator that consults and updates tracker.
func NewEvaluator(tracker *CooldownTracker, newID IDGenerator) *Evaluator {
	if newID == nil {
		newID = NewUUID
	}
	return &Evaluator{
		cooldown: tracker,
		newID:    newID,
	}
}

// Evaluate checks every rule against logs at now. Rules are independent; the
// returned events keep the order of rules. Disabled rules never fire.
func (e *Evaluator) Evaluate(ctx context.Context, rules []*models.AlertRule, logs []models.LogRecord, now time.Time, cooldown time.Duration) []*models.AlertEvent {
	var events []*models.AlertEvent
	for _, rule := range rules {
		if event := e.evaluateRule(ctx, rule, logs, now, cooldown); event != nil {
			events = append(events, event)
		}
	}
	return events
}

// Suppressed returns how many rule checks were skipped due to cooldown.
func (e *Evaluator) Suppressed() int64 {
	return e.suppressed.Load()
}

func (e *Evaluator) evaluateRule(ctx context.Context, rule *models.AlertRule, logs []models.LogRecord, now time.Time, cooldown time.Duration) *models.AlertEvent {
	if !rule.Enabled {
		return nil
	}

	unlock := e.cooldown.Lock(rule.ID)
	defer unlock()

	if e.cooldown.IsInCooldown(ctx, rule.ID, now, cooldown) {
		e.suppressed.Add(1)
		metrics.AlertsSuppressedTotal.Inc()
		return nil
	}

	windowStart := now.Add(-rule.Window())

	count := 0
	var latest *models.LogRecord
	for i := range logs {
		entry := &logs[i]
		if entry.Timestamp.Before(windowStart) || entry.Timestamp.After(now) {
			continue
		}
		if !Matches(entry, rule) {
			continue
		}
		count++
		if latest == nil || entry.Timestamp.After(latest.Timestamp) {
			latest = entry
		}
	}

	if count == 0 || count < rule.Threshold {
		return nil
	}

	snapshot := *latest
	event := &models.AlertEvent{
		ID:           e.newID(),
		RuleID:       rule.ID,
		RuleName:     rule.Name,
		MatchedCount: count,
		WindowStart:  windowStart,
		WindowEnd:    now,
		LatestLog:    &snapshot,
		CreatedAt:    now,
	}

	e.cooldown.RecordFired(ctx, rule.ID, now)
	return event
}
