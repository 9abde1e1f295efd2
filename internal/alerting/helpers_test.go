package alerting

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/good-yellow-bee/logalert/internal/kvstore"
	"github.com/good-yellow-bee/logalert/internal/models"
)

// seqIDs returns a deterministic IDGenerator producing prefix-1, prefix-2, ...
func seqIDs(prefix string) IDGenerator {
	var n atomic.Int64
	return func() string {
		return fmt.Sprintf("%s-%d", prefix, n.Add(1))
	}
}

// failingStore reads from an embedded memory store but can fail writes or reads.
type failingStore struct {
	*kvstore.MemoryStore
	failGet bool
	failSet bool
}

func newFailingStore() *failingStore {
	return &failingStore{MemoryStore: kvstore.NewMemoryStore()}
}

func (s *failingStore) Get(ctx context.Context, key string) (string, bool, error) {
	if s.failGet {
		return "", false, errors.New("disk on fire")
	}
	return s.MemoryStore.Get(ctx, key)
}

func (s *failingStore) Set(ctx context.Context, key, value string) error {
	if s.failSet {
		return errors.New("disk full")
	}
	return s.MemoryStore.Set(ctx, key, value)
}

// recordingDispatcher captures dispatched events.
type recordingDispatcher struct {
	mu     sync.Mutex
	events []*models.AlertEvent
	rules  []*models.AlertRule
}

func (d *recordingDispatcher) Dispatch(event *models.AlertEvent, rule *models.AlertRule) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, event)
	d.rules = append(d.rules, rule)
}

func (d *recordingDispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.events)
}

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }
func boolPtr(b bool) *bool    { return &b }

func logAt(severity, source, message string, ts time.Time) models.LogRecord {
	return models.LogRecord{
		Severity:  severity,
		Source:    source,
		Message:   message,
		Timestamp: ts,
	}
}
