package alerting

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/good-yellow-bee/logalert/internal/kvstore"
	"github.com/good-yellow-bee/logalert/internal/logger"
	"github.com/good-yellow-bee/logalert/internal/metrics"
)

// LastFiredKey is the store key holding the rule id -> last fired map.
const LastFiredKey = "alert-last-fired"

// CooldownTracker records when each rule last fired. State lives in the
// store as a JSON object of rule id to RFC 3339 timestamp.
type CooldownTracker struct {
	// mu serializes read-modify-write of the stored map.
	mu sync.Mutex
	// locks holds one *sync.Mutex per rule id.
	locks sync.Map

	store kvstore.Store
	log   zerolog.Logger
}

// NewCooldownTracker creates a tracker on store.
func NewCooldownTracker(store kvstore.Store) *CooldownTracker {
	return &CooldownTracker{
		store: store,
		log:   logger.WithComponent("alerting"),
	}
}

// Lock acquires the per-rule critical section and returns its release func.
// Callers hold it across IsInCooldown and RecordFired so overlapping
// evaluation passes cannot both fire the same rule.
func (c *CooldownTracker) Lock(ruleID string) func() {
	v, _ := c.locks.LoadOrStore(ruleID, &sync.Mutex{})
	m := v.(*sync.Mutex)
	m.Lock()
	return m.Unlock
}

// IsInCooldown reports whether ruleID fired less than cooldown before now.
func (c *CooldownTracker) IsInCooldown(ctx context.Context, ruleID string, now time.Time, cooldown time.Duration) bool {
	last, ok := c.LastFired(ctx, ruleID)
	if !ok {
		return false
	}
	return now.Sub(last) < cooldown
}

// LastFired returns the last recorded fire time for ruleID.
func (c *CooldownTracker) LastFired(ctx context.Context, ruleID string) (time.Time, bool) {
	raw, ok := c.load(ctx)[ruleID]
	if !ok {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		c.log.Warn().Str("rule_id", ruleID).Str("value", raw).Msg("invalid last-fired timestamp ignored")
		return time.Time{}, false
	}
	return t, true
}

// RecordFired stores at as the last fire time for ruleID. A failed write is
// logged; the rule may then fire again on the next pass.
func (c *CooldownTracker) RecordFired(ctx context.Context, ruleID string, at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	m := c.load(ctx)
	m[ruleID] = at.UTC().Format(time.RFC3339Nano)
	c.save(ctx, m)
}

// Prune drops entries for rule ids not in keep and returns how many were removed.
func (c *CooldownTracker) Prune(ctx context.Context, keep []string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	live := make(map[string]struct{}, len(keep))
	for _, id := range keep {
		live[id] = struct{}{}
	}

	m := c.load(ctx)
	removed := 0
	for id := range m {
		if _, ok := live[id]; !ok {
			delete(m, id)
			removed++
		}
	}
	if removed > 0 {
		c.save(ctx, m)
	}
	return removed
}

func (c *CooldownTracker) load(ctx context.Context) map[string]string {
	raw, ok, err := c.store.Get(ctx, LastFiredKey)
	if err != nil {
		c.log.Warn().Err(err).Msg("read cooldowns failed, treating as empty")
		return make(map[string]string)
	}
	if !ok || raw == "" {
		return make(map[string]string)
	}

	var m map[string]string
	if err := json.Unmarshal([]byte(raw), &m); err != nil || m == nil {
		metrics.StoreCorruptTotal.WithLabelValues(LastFiredKey).Inc()
		c.log.Warn().Err(err).Msg("stored cooldowns are corrupt, treating as empty")
		return make(map[string]string)
	}
	return m
}

func (c *CooldownTracker) save(ctx context.Context, m map[string]string) {
	data, err := json.Marshal(m)
	if err != nil {
		c.log.Error().Err(err).Msg("marshal cooldowns failed")
		return
	}
	if err := c.store.Set(ctx, LastFiredKey, string(data)); err != nil {
		c.log.Error().Err(err).Msg("save cooldowns failed")
	}
}
