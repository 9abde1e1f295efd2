// Package notifier delivers fired alert events to notification channels.
package notifier

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/good-yellow-bee/logalert/internal/logger"
	"github.com/good-yellow-bee/logalert/internal/metrics"
	"github.com/good-yellow-bee/logalert/internal/models"
)

// DefaultSendTimeout bounds a single channel send.
const DefaultSendTimeout = 10 * time.Second

// ErrSkipped is returned by a notifier that had nothing to do for an event,
// for example a webhook without a URL or a denied local permission.
var ErrSkipped = errors.New("notification skipped")

// Notifier is the interface for all notification channels.
type Notifier interface {
	// Name returns the channel name (e.g., "webhook", "local").
	Name() string
	// Send delivers one event. rule may be nil.
	Send(ctx context.Context, event *models.AlertEvent, rule *models.AlertRule) error
	// Close releases any resources.
	Close() error
}

// DispatcherConfig configures a Dispatcher.
type DispatcherConfig struct {
	SendTimeout time.Duration
	RateLimit   RateLimitConfig
}

// DefaultDispatcherConfig returns default dispatcher settings.
func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		SendTimeout: DefaultSendTimeout,
		RateLimit:   DefaultRateLimitConfig(),
	}
}

// Dispatcher fans fired events out to every registered channel. Each send
// runs in its own goroutine; failures are logged and counted, never returned.
type Dispatcher struct {
	mu          sync.RWMutex
	notifiers   []Notifier
	rateLimiter *RateLimiter
	sendTimeout time.Duration

	wg  sync.WaitGroup
	log zerolog.Logger
}

// NewDispatcher creates a new notification dispatcher.
func NewDispatcher(config DispatcherConfig) *Dispatcher {
	if config.SendTimeout <= 0 {
		config.SendTimeout = DefaultSendTimeout
	}
	return &Dispatcher{
		rateLimiter: NewRateLimiter(config.RateLimit),
		sendTimeout: config.SendTimeout,
		log:         logger.WithComponent("notifier"),
	}
}

// Register adds a notifier. A notifier with the same name is replaced.
func (d *Dispatcher) Register(n Notifier) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, existing := range d.notifiers {
		if existing.Name() == n.Name() {
			d.notifiers[i] = n
			return
		}
	}
	d.notifiers = append(d.notifiers, n)
}

// Unregister removes a notifier by name.
func (d *Dispatcher) Unregister(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, n := range d.notifiers {
		if n.Name() == name {
			d.notifiers = append(d.notifiers[:i], d.notifiers[i+1:]...)
			return
		}
	}
}

// Get returns a notifier by name.
func (d *Dispatcher) Get(name string) (Notifier, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, n := range d.notifiers {
		if n.Name() == name {
			return n, true
		}
	}
	return nil, false
}

// Names returns the registered channel names in registration order.
func (d *Dispatcher) Names() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	names := make([]string, len(d.notifiers))
	for i, n := range d.notifiers {
		names[i] = n.Name()
	}
	return names
}

// Dispatch starts delivery of event on every channel and returns at once.
func (d *Dispatcher) Dispatch(event *models.AlertEvent, rule *models.AlertRule) {
	if !d.rateLimiter.Allow() {
		metrics.NotificationsDropped.Inc()
		d.log.Warn().
			Str("rule_id", event.RuleID).
			Str("event_id", event.ID).
			Msg("notification rate limited, event not dispatched")
		return
	}

	d.mu.RLock()
	notifiers := append([]Notifier(nil), d.notifiers...)
	d.mu.RUnlock()

	for _, n := range notifiers {
		d.wg.Add(1)
		go func(n Notifier) {
			defer d.wg.Done()
			d.send(n, event, rule)
		}(n)
	}
}

func (d *Dispatcher) send(n Notifier, event *models.AlertEvent, rule *models.AlertRule) {
	ctx, cancel := context.WithTimeout(context.Background(), d.sendTimeout)
	defer cancel()

	start := time.Now()
	err := n.Send(ctx, event, rule)
	metrics.NotificationDuration.WithLabelValues(n.Name()).Observe(time.Since(start).Seconds())

	switch {
	case err == nil:
		metrics.NotificationsTotal.WithLabelValues(n.Name(), "success").Inc()
		d.log.Debug().Str("channel", n.Name()).Str("event_id", event.ID).Msg("notification sent")
	case errors.Is(err, ErrSkipped):
		metrics.NotificationsTotal.WithLabelValues(n.Name(), "skipped").Inc()
		d.log.Debug().Err(err).Str("channel", n.Name()).Str("event_id", event.ID).Msg("notification skipped")
	default:
		metrics.NotificationsTotal.WithLabelValues(n.Name(), "failure").Inc()
		d.log.Warn().Err(err).
			Str("channel", n.Name()).
			Str("rule_id", event.RuleID).
			Str("event_id", event.ID).
			Msg("notification failed")
	}
}

// Wait blocks until all in-flight sends finish.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// RateLimitStats returns the rate limiter statistics.
func (d *Dispatcher) RateLimitStats() RateLimitStats {
	return d.rateLimiter.Stats()
}

// Close waits for in-flight sends and closes all registered notifiers.
func (d *Dispatcher) Close() error {
	d.Wait()

	d.mu.Lock()
	defer d.mu.Unlock()

	var errs []error
	for _, n := range d.notifiers {
		if err := n.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", n.Name(), err))
		}
	}
	d.notifiers = nil

	return errors.Join(errs...)
}
