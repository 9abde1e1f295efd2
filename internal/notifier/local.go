package notifier

import (
	"context"
	"fmt"
	"sync"

	"github.com/good-yellow-bee/logalert/internal/models"
)

// Permission is the state of the local notification permission.
type Permission string

const (
	PermissionDefault Permission = "default"
	PermissionGranted Permission = "granted"
	PermissionDenied  Permission = "denied"
)

// Facility is a platform notification surface.
type Facility interface {
	// Available reports whether notifications can be shown at all.
	Available() bool
	// Permission returns the current permission state.
	Permission() Permission
	// RequestPermission asks the user and returns the resulting state.
	RequestPermission(ctx context.Context) (Permission, error)
	// Show displays one notification.
	Show(title, body string) error
}

// LocalTitle returns the notification title for event.
func LocalTitle(event *models.AlertEvent) string {
	return "Alert: " + event.RuleName
}

// LocalBody returns the notification body for event.
func LocalBody(event *models.AlertEvent) string {
	return fmt.Sprintf("%d match(es). Latest: %s", event.MatchedCount, event.LatestMessage())
}

// LocalNotifier shows events through a Facility. Permission is requested at
// most once per notifier while it is still undecided.
type LocalNotifier struct {
	facility Facility

	// mu serializes permission prompts.
	mu sync.Mutex
}

// NewLocalNotifier creates a local notifier on facility.
func NewLocalNotifier(facility Facility) *LocalNotifier {
	return &LocalNotifier{facility: facility}
}

// Name returns "local".
func (l *LocalNotifier) Name() string {
	return "local"
}

// Send shows the event if permission is granted, asking first if undecided.
func (l *LocalNotifier) Send(ctx context.Context, event *models.AlertEvent, rule *models.AlertRule) error {
	if l.facility == nil || !l.facility.Available() {
		return fmt.Errorf("local notifications unavailable: %w", ErrSkipped)
	}

	perm, err := l.permission(ctx)
	if err != nil {
		return fmt.Errorf("request permission: %w", err)
	}
	if perm != PermissionGranted {
		return fmt.Errorf("permission %s: %w", perm, ErrSkipped)
	}

	if err := l.facility.Show(LocalTitle(event), LocalBody(event)); err != nil {
		return fmt.Errorf("show notification: %w", err)
	}
	return nil
}

func (l *LocalNotifier) permission(ctx context.Context) (Permission, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	perm := l.facility.Permission()
	if perm == PermissionGranted || perm == PermissionDenied {
		return perm, nil
	}
	return l.facility.RequestPermission(ctx)
}

// Close is a no-op for the local notifier.
func (l *LocalNotifier) Close() error {
	return nil
}
