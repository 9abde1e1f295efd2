package alerting

import (
	"sync"

	"github.com/good-yellow-bee/logalert/internal/models"
)

// DefaultHistorySize is how many recent events an EventHistory keeps.
const DefaultHistorySize = 5

// EventHistory keeps the most recent fired events in memory, newest first.
type EventHistory struct {
	mu     sync.RWMutex
	size   int
	events []*models.AlertEvent
}

// NewEventHistory creates a history holding at most size events.
func NewEventHistory(size int) *EventHistory {
	if size <= 0 {
		size = DefaultHistorySize
	}
	return &EventHistory{size: size}
}

// Add records events in the order given; the last one becomes the newest.
func (h *EventHistory) Add(events ...*models.AlertEvent) {
	if len(events) == 0 {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	merged := make([]*models.AlertEvent, 0, len(events)+len(h.events))
	for i := len(events) - 1; i >= 0; i-- {
		merged = append(merged, events[i])
	}
	merged = append(merged, h.events...)
	if len(merged) > h.size {
		merged = merged[:h.size]
	}
	h.events = merged
}

// Recent returns the stored events, newest first.
func (h *EventHistory) Recent() []*models.AlertEvent {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]*models.AlertEvent{}, h.events...)
}

// Len returns how many events are stored.
func (h *EventHistory) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.events)
}
