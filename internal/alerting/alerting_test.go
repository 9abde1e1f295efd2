package alerting

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/good-yellow-bee/logalert/internal/kvstore"
	"github.com/good-yellow-bee/logalert/internal/models"
)

var baseTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestMatches(t *testing.T) {
	record := &models.LogRecord{
		Severity: "error",
		Source:   "Payment-Service",
		Message:  "Card DECLINED by issuer",
	}

	tests := []struct {
		name string
		rule models.AlertRule
		want bool
	}{
		{
			name: "empty filters match",
			rule: models.AlertRule{},
			want: true,
		},
		{
			name: "severity case-insensitive member",
			rule: models.AlertRule{Severities: []string{"WARN", "ERROR"}},
			want: true,
		},
		{
			name: "severity not a member",
			rule: models.AlertRule{Severities: []string{"FATAL"}},
			want: false,
		},
		{
			name: "source substring case-insensitive",
			rule: models.AlertRule{SourceIncludes: "payment"},
			want: true,
		},
		{
			name: "source substring missing",
			rule: models.AlertRule{SourceIncludes: "checkout"},
			want: false,
		},
		{
			name: "message substring case-insensitive",
			rule: models.AlertRule{MessageIncludes: "declined"},
			want: true,
		},
		{
			name: "message substring missing",
			rule: models.AlertRule{MessageIncludes: "timeout"},
			want: false,
		},
		{
			name: "all filters must hold",
			rule: models.AlertRule{
				Severities:      []string{"error"},
				SourceIncludes:  "PAYMENT",
				MessageIncludes: "timeout",
			},
			want: false,
		},
		{
			name: "all filters hold",
			rule: models.AlertRule{
				Severities:      []string{"Error"},
				SourceIncludes:  "service",
				MessageIncludes: "card",
			},
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Matches(record, &tt.rule); got != tt.want {
				t.Errorf("Matches() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMatches_EmptyRuleMatchesEveryLog(t *testing.T) {
	rule := &models.AlertRule{Severities: []string{}}
	logs := []models.LogRecord{
		{},
		{Severity: "DEBUG"},
		{Severity: "custom", Source: "x", Message: "y"},
		{Severity: "FATAL", Source: "db", Message: "disk full"},
	}
	for i := range logs {
		if !Matches(&logs[i], rule) {
			t.Errorf("log %d should match empty rule", i)
		}
	}
}

func newTestEvaluator() (*Evaluator, *CooldownTracker) {
	tracker := NewCooldownTracker(kvstore.NewMemoryStore())
	return NewEvaluator(tracker, seqIDs("evt")), tracker
}

func paymentRule() *models.AlertRule {
	return &models.AlertRule{
		ID:             "rule-payment",
		Name:           "Payment errors",
		Severities:     []string{"ERROR", "FATAL"},
		SourceIncludes: "payment",
		Threshold:      3,
		WindowMinutes:  10,
		Enabled:        true,
	}
}

func TestEvaluator_PaymentScenarioFires(t *testing.T) {
	ev, _ := newTestEvaluator()
	now := baseTime

	logs := []models.LogRecord{
		logAt("ERROR", "payment-service", "declined 1", now.Add(-5*time.Minute)),
		logAt("ERROR", "payment-service", "declined 2", now.Add(-4*time.Minute)),
		logAt("ERROR", "payment-service", "declined 3", now.Add(-1*time.Minute)),
		logAt("ERROR", "payment-service", "declined 4", now.Add(-3*time.Minute)),
		logAt("INFO", "payment-service", "all good", now.Add(-30*time.Second)),
	}

	events := ev.Evaluate(context.Background(), []*models.AlertRule{paymentRule()}, logs, now, 5*time.Minute)
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}

	event := events[0]
	if event.MatchedCount != 4 {
		t.Errorf("MatchedCount = %d, want 4", event.MatchedCount)
	}
	if event.RuleID != "rule-payment" || event.RuleName != "Payment errors" {
		t.Errorf("rule reference = %q/%q", event.RuleID, event.RuleName)
	}
	if event.ID != "evt-1" {
		t.Errorf("ID = %q, want evt-1", event.ID)
	}
	if !event.WindowEnd.Equal(now) || !event.CreatedAt.Equal(now) {
		t.Errorf("WindowEnd/CreatedAt = %v/%v, want %v", event.WindowEnd, event.CreatedAt, now)
	}
	if got := event.WindowEnd.Sub(event.WindowStart); got != 10*time.Minute {
		t.Errorf("window length = %v, want 10m", got)
	}
	if event.LatestLog == nil || event.LatestLog.Message != "declined 3" {
		t.Errorf("LatestLog = %+v, want declined 3", event.LatestLog)
	}
}

func TestEvaluator_BelowThresholdDoesNotFire(t *testing.T) {
	ev, tracker := newTestEvaluator()
	now := baseTime

	logs := []models.LogRecord{
		logAt("ERROR", "payment-service", "declined 1", now.Add(-2*time.Minute)),
		logAt("FATAL", "payment-service", "declined 2", now.Add(-1*time.Minute)),
		logAt("ERROR", "payment-service", "too old", now.Add(-11*time.Minute)),
		logAt("ERROR", "auth-service", "other source", now.Add(-1*time.Minute)),
	}

	events := ev.Evaluate(context.Background(), []*models.AlertRule{paymentRule()}, logs, now, 5*time.Minute)
	if len(events) != 0 {
		t.Fatalf("got %d events, want 0", len(events))
	}
	if _, ok := tracker.LastFired(context.Background(), "rule-payment"); ok {
		t.Error("cooldown should not be recorded when the rule does not fire")
	}
}

func TestEvaluator_WindowBoundsInclusive(t *testing.T) {
	ev, _ := newTestEvaluator()
	now := baseTime
	rule := &models.AlertRule{ID: "r", Name: "any", Threshold: 2, WindowMinutes: 10, Enabled: true}

	logs := []models.LogRecord{
		logAt("INFO", "a", "at start", now.Add(-10*time.Minute)),
		logAt("INFO", "a", "at end", now),
		logAt("INFO", "a", "before start", now.Add(-10*time.Minute-time.Nanosecond)),
		logAt("INFO", "a", "in future", now.Add(time.Second)),
	}

	events := ev.Evaluate(context.Background(), []*models.AlertRule{rule}, logs, now, 0)
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	if events[0].MatchedCount != 2 {
		t.Errorf("MatchedCount = %d, want 2", events[0].MatchedCount)
	}
	if events[0].LatestLog.Message != "at end" {
		t.Errorf("LatestLog = %q, want at end", events[0].LatestLog.Message)
	}
}

func TestEvaluator_EmptyLogs(t *testing.T) {
	ev, _ := newTestEvaluator()
	rule := &models.AlertRule{ID: "r", Threshold: 1, WindowMinutes: 1, Enabled: true}

	if events := ev.Evaluate(context.Background(), []*models.AlertRule{rule}, nil, baseTime, 0); len(events) != 0 {
		t.Errorf("got %d events, want 0", len(events))
	}
}

func TestEvaluator_ZeroThresholdNeverFiresOnNoMatches(t *testing.T) {
	ev, _ := newTestEvaluator()
	rule := &models.AlertRule{ID: "r", Threshold: 0, WindowMinutes: 1, Enabled: true, MessageIncludes: "nope"}
	logs := []models.LogRecord{logAt("INFO", "a", "hello", baseTime)}

	if events := ev.Evaluate(context.Background(), []*models.AlertRule{rule}, logs, baseTime, 0); len(events) != 0 {
		t.Errorf("got %d events, want 0", len(events))
	}
}

func TestEvaluator_DisabledRuleNeverFires(t *testing.T) {
	ev, _ := newTestEvaluator()
	rule := paymentRule()
	rule.Enabled = false

	logs := []models.LogRecord{
		logAt("ERROR", "payment-service", "x", baseTime),
		logAt("ERROR", "payment-service", "x", baseTime),
		logAt("ERROR", "payment-service", "x", baseTime),
	}
	if events := ev.Evaluate(context.Background(), []*models.AlertRule{rule}, logs, baseTime, 0); len(events) != 0 {
		t.Errorf("disabled rule fired %d events", len(events))
	}
}

func TestEvaluator_RulesIndependentAndOrdered(t *testing.T) {
	ev, _ := newTestEvaluator()
	now := baseTime

	rules := []*models.AlertRule{
		{ID: "b", Name: "b", Threshold: 1, WindowMinutes: 5, Enabled: true, SourceIncludes: "api"},
		{ID: "never", Name: "never", Threshold: 100, WindowMinutes: 5, Enabled: true},
		{ID: "a", Name: "a", Threshold: 2, WindowMinutes: 60, Enabled: true},
	}
	logs := []models.LogRecord{
		logAt("INFO", "api", "1", now.Add(-time.Minute)),
		logAt("INFO", "db", "2", now.Add(-30*time.Minute)),
	}

	events := ev.Evaluate(context.Background(), rules, logs, now, 5*time.Minute)
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[0].RuleID != "b" || events[1].RuleID != "a" {
		t.Errorf("event order = %s, %s; want b, a", events[0].RuleID, events[1].RuleID)
	}
	if events[1].MatchedCount != 2 {
		t.Errorf("rule a MatchedCount = %d, want 2", events[1].MatchedCount)
	}
}

func TestEvaluator_LatestLogIsSnapshot(t *testing.T) {
	ev, _ := newTestEvaluator()
	rule := &models.AlertRule{ID: "r", Threshold: 1, WindowMinutes: 5, Enabled: true}
	logs := []models.LogRecord{logAt("INFO", "a", "original", baseTime)}

	events := ev.Evaluate(context.Background(), []*models.AlertRule{rule}, logs, baseTime, 0)
	logs[0].Message = "mutated"
	if events[0].LatestLog.Message != "original" {
		t.Errorf("LatestLog shares storage with input logs")
	}
}

func TestEvaluator_CooldownScenario(t *testing.T) {
	ev, tracker := newTestEvaluator()
	rule := paymentRule()
	cooldown := 5 * time.Minute
	ctx := context.Background()

	matchingAt := func(now time.Time) []models.LogRecord {
		return []models.LogRecord{
			logAt("ERROR", "payment-service", "a", now.Add(-time.Minute)),
			logAt("ERROR", "payment-service", "b", now.Add(-2*time.Minute)),
			logAt("ERROR", "payment-service", "c", now.Add(-3*time.Minute)),
		}
	}

	t0 := baseTime
	if events := ev.Evaluate(ctx, []*models.AlertRule{rule}, matchingAt(t0), t0, cooldown); len(events) != 1 {
		t.Fatalf("t=0: got %d events, want 1", len(events))
	}
	if last, ok := tracker.LastFired(ctx, rule.ID); !ok || !last.Equal(t0) {
		t.Fatalf("last fired = %v, %v; want %v", last, ok, t0)
	}

	t2 := t0.Add(2 * time.Minute)
	if events := ev.Evaluate(ctx, []*models.AlertRule{rule}, matchingAt(t2), t2, cooldown); len(events) != 0 {
		t.Fatalf("t=2m: got %d events, want 0 (cooldown)", len(events))
	}
	if ev.Suppressed() != 1 {
		t.Errorf("Suppressed() = %d, want 1", ev.Suppressed())
	}

	t6 := t0.Add(6 * time.Minute)
	events := ev.Evaluate(ctx, []*models.AlertRule{rule}, matchingAt(t6), t6, cooldown)
	if len(events) != 1 {
		t.Fatalf("t=6m: got %d events, want 1", len(events))
	}
	if !events[0].CreatedAt.Equal(t6) {
		t.Errorf("CreatedAt = %v, want %v", events[0].CreatedAt, t6)
	}
}

func TestEvaluator_ConcurrentPassesFireOnce(t *testing.T) {
	ev, _ := newTestEvaluator()
	rule := &models.AlertRule{ID: "r", Name: "r", Threshold: 1, WindowMinutes: 5, Enabled: true}
	logs := []models.LogRecord{logAt("ERROR", "a", "boom", baseTime)}

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		fired int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			events := ev.Evaluate(context.Background(), []*models.AlertRule{rule}, logs, baseTime, time.Minute)
			mu.Lock()
			fired += len(events)
			mu.Unlock()
		}()
	}
	wg.Wait()

	if fired != 1 {
		t.Errorf("overlapping passes fired %d events, want 1", fired)
	}
}

func newTestEngine(t *testing.T, dispatcher EventDispatcher) (*Engine, *RuleRepository) {
	t.Helper()
	store := kvstore.NewMemoryStore()
	repo := NewRuleRepository(store, seqIDs("rule"))
	tracker := NewCooldownTracker(store)
	engine := NewEngine(repo, tracker, dispatcher, &EngineOptions{
		Cooldown: 5 * time.Minute,
		Now:      func() time.Time { return baseTime },
		NewID:    seqIDs("evt"),
	})
	return engine, repo
}

func TestEngine_EvaluateDispatchesFiredEvents(t *testing.T) {
	dispatcher := &recordingDispatcher{}
	engine, repo := newTestEngine(t, dispatcher)
	ctx := context.Background()

	rule, err := repo.Add(ctx, models.RuleInput{
		Name:           strPtr("Payment errors"),
		Severities:     []string{"ERROR", "FATAL"},
		SourceIncludes: strPtr("payment"),
		Threshold:      intPtr(3),
		WebhookURL:     strPtr("https://hooks.example.com/pay"),
	})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	logs := []models.LogRecord{
		logAt("ERROR", "payment-service", "1", baseTime.Add(-4*time.Minute)),
		logAt("ERROR", "payment-service", "2", baseTime.Add(-3*time.Minute)),
		logAt("ERROR", "payment-service", "3", baseTime.Add(-2*time.Minute)),
		logAt("ERROR", "payment-service", "4", baseTime.Add(-1*time.Minute)),
		logAt("INFO", "payment-service", "ok", baseTime.Add(-1*time.Minute)),
	}

	events := engine.Evaluate(ctx, logs)
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	if events[0].MatchedCount != 4 {
		t.Errorf("MatchedCount = %d, want 4", events[0].MatchedCount)
	}

	if dispatcher.count() != 1 {
		t.Fatalf("dispatched %d events, want 1", dispatcher.count())
	}
	if dispatcher.rules[0] == nil || dispatcher.rules[0].ID != rule.ID {
		t.Errorf("dispatched rule = %+v, want %s", dispatcher.rules[0], rule.ID)
	}
	if dispatcher.rules[0].WebhookURL != "https://hooks.example.com/pay" {
		t.Errorf("dispatched rule lost webhook url")
	}

	// Second pass at the same time is suppressed by cooldown.
	if again := engine.Evaluate(ctx, logs); len(again) != 0 {
		t.Errorf("second pass fired %d events, want 0", len(again))
	}

	stats := engine.Stats()
	if stats.Passes != 2 || stats.AlertsFired != 1 || stats.AlertsSuppressed != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if stats.LogsEvaluated != 10 {
		t.Errorf("LogsEvaluated = %d, want 10", stats.LogsEvaluated)
	}
}

func TestEngine_DisabledRuleSkipped(t *testing.T) {
	dispatcher := &recordingDispatcher{}
	engine, repo := newTestEngine(t, dispatcher)
	ctx := context.Background()

	rule, _ := repo.Add(ctx, models.RuleInput{Name: strPtr("any")})
	if err := repo.SetEnabled(ctx, rule.ID, false); err != nil {
		t.Fatalf("SetEnabled: %v", err)
	}

	logs := []models.LogRecord{logAt("ERROR", "a", "b", baseTime)}
	if events := engine.Evaluate(ctx, logs); len(events) != 0 {
		t.Errorf("disabled rule fired")
	}
	if dispatcher.count() != 0 {
		t.Errorf("dispatcher called for disabled rule")
	}

	if err := repo.SetEnabled(ctx, rule.ID, true); err != nil {
		t.Fatalf("SetEnabled: %v", err)
	}
	if events := engine.Evaluate(ctx, logs); len(events) != 1 {
		t.Errorf("re-enabled rule should fire, got %d events", len(events))
	}
}

func TestEngine_NilDispatcher(t *testing.T) {
	engine, repo := newTestEngine(t, nil)
	ctx := context.Background()
	repo.Add(ctx, models.RuleInput{})

	events := engine.Evaluate(ctx, []models.LogRecord{logAt("INFO", "a", "b", baseTime)})
	if len(events) != 1 {
		t.Errorf("got %d events, want 1", len(events))
	}
}

func TestEngine_SetCooldown(t *testing.T) {
	engine, repo := newTestEngine(t, nil)
	ctx := context.Background()
	repo.Add(ctx, models.RuleInput{})
	logs := []models.LogRecord{logAt("INFO", "a", "b", baseTime)}

	engine.SetCooldown(0)
	if engine.Cooldown() != 0 {
		t.Fatalf("Cooldown() = %v", engine.Cooldown())
	}
	for i := 0; i < 3; i++ {
		if events := engine.EvaluateAt(ctx, logs, baseTime); len(events) != 1 {
			t.Fatalf("pass %d: got %d events with zero cooldown, want 1", i, len(events))
		}
	}

	engine.SetCooldown(-time.Minute)
	if engine.Cooldown() != 0 {
		t.Errorf("negative cooldown should clamp to 0, got %v", engine.Cooldown())
	}
}

func TestEngine_RemoveRulePrunesCooldown(t *testing.T) {
	engine, repo := newTestEngine(t, nil)
	ctx := context.Background()

	keep, _ := repo.Add(ctx, models.RuleInput{Name: strPtr("keep")})
	gone, _ := repo.Add(ctx, models.RuleInput{Name: strPtr("gone")})

	engine.Evaluate(ctx, []models.LogRecord{logAt("INFO", "a", "b", baseTime)})
	if _, ok := engine.LastFired(ctx, gone.ID); !ok {
		t.Fatal("expected cooldown entry for fired rule")
	}

	if err := engine.RemoveRule(ctx, gone.ID); err != nil {
		t.Fatalf("RemoveRule: %v", err)
	}
	if _, ok := engine.LastFired(ctx, gone.ID); ok {
		t.Error("cooldown entry of removed rule should be pruned")
	}
	if _, ok := engine.LastFired(ctx, keep.ID); !ok {
		t.Error("cooldown entry of remaining rule should survive")
	}
	if len(repo.List(ctx)) != 1 {
		t.Errorf("rules after removal = %d, want 1", len(repo.List(ctx)))
	}
}

func TestEngine_RecentEvents(t *testing.T) {
	engine, repo := newTestEngine(t, nil)
	ctx := context.Background()
	repo.Add(ctx, models.RuleInput{Name: strPtr("first")})
	repo.Add(ctx, models.RuleInput{Name: strPtr("second")})

	if len(engine.RecentEvents()) != 0 {
		t.Fatal("expected no recent events before evaluation")
	}

	engine.Evaluate(ctx, []models.LogRecord{logAt("INFO", "a", "b", baseTime)})

	recent := engine.RecentEvents()
	if len(recent) != 2 {
		t.Fatalf("RecentEvents() = %d, want 2", len(recent))
	}
	if recent[0].RuleName != "second" || recent[1].RuleName != "first" {
		t.Errorf("order = %s, %s; want newest first", recent[0].RuleName, recent[1].RuleName)
	}
}
