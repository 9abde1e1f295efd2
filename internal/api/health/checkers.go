package health

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// SQLiteChecker checks SQLite database connectivity.
type SQLiteChecker struct {
	db *sql.DB
}

// NewSQLiteChecker creates a new SQLite health checker.
func NewSQLiteChecker(db *sql.DB) *SQLiteChecker {
	return &SQLiteChecker{db: db}
}

// Name returns the checker name.
func (c *SQLiteChecker) Name() string {
	return "sqlite"
}

// Check verifies the SQLite database is accessible.
func (c *SQLiteChecker) Check(ctx context.Context) error {
	if c.db == nil {
		return fmt.Errorf("database not initialized")
	}
	return c.db.PingContext(ctx)
}

// RefreshChecker reports whether the refresh cycle has succeeded recently.
type RefreshChecker struct {
	lastSuccess func() time.Time
	maxAge      time.Duration
	now         func() time.Time
}

// NewRefreshChecker creates a checker that fails when the last successful
// refresh is older than maxAge. A zero last-success time counts as not yet run.
func NewRefreshChecker(lastSuccess func() time.Time, maxAge time.Duration) *RefreshChecker {
	return &RefreshChecker{lastSuccess: lastSuccess, maxAge: maxAge, now: time.Now}
}

// Name returns the checker name.
func (c *RefreshChecker) Name() string {
	return "refresh"
}

// Check verifies a refresh succeeded within maxAge.
func (c *RefreshChecker) Check(ctx context.Context) error {
	if c.lastSuccess == nil {
		return fmt.Errorf("refresh cycle not configured")
	}
	last := c.lastSuccess()
	if last.IsZero() {
		return fmt.Errorf("no successful refresh yet")
	}
	if age := c.now().Sub(last); age > c.maxAge {
		return fmt.Errorf("last successful refresh %s ago", age.Round(time.Second))
	}
	return nil
}
