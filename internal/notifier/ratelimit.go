package notifier

import (
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter is a token bucket limiting how many fired events are
// dispatched per minute.
type RateLimiter struct {
	limiter   *rate.Limiter
	perMinute int
	burst     int
	enabled   bool

	allowed atomic.Int64
	dropped atomic.Int64
}

// RateLimitConfig holds rate limiter configuration.
type RateLimitConfig struct {
	Enabled   bool // Whether rate limiting is enabled (default: false)
	PerMinute int  // Sustained dispatches per minute (default: 30)
	Burst     int  // Dispatches allowed at once (default: 10)
}

// DefaultRateLimitConfig returns default rate limit settings.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		Enabled:   false,
		PerMinute: 30,
		Burst:     10,
	}
}

// NewRateLimiter creates a new rate limiter with the given configuration.
func NewRateLimiter(config RateLimitConfig) *RateLimiter {
	if config.PerMinute <= 0 {
		config.PerMinute = 30
	}
	if config.Burst <= 0 {
		config.Burst = 10
	}

	every := time.Minute / time.Duration(config.PerMinute)
	return &RateLimiter{
		limiter:   rate.NewLimiter(rate.Every(every), config.Burst),
		perMinute: config.PerMinute,
		burst:     config.Burst,
		enabled:   config.Enabled,
	}
}

// Allow reports whether a dispatch may proceed now.
func (r *RateLimiter) Allow() bool {
	return r.AllowAt(time.Now())
}

// AllowAt reports whether a dispatch may proceed at t.
func (r *RateLimiter) AllowAt(t time.Time) bool {
	if !r.enabled || r.limiter.AllowN(t, 1) {
		r.allowed.Add(1)
		return true
	}
	r.dropped.Add(1)
	return false
}

// Dropped returns the number of dispatches denied.
func (r *RateLimiter) Dropped() int64 {
	return r.dropped.Load()
}

// Stats returns rate limiter statistics.
func (r *RateLimiter) Stats() RateLimitStats {
	return RateLimitStats{
		Allowed:   r.allowed.Load(),
		Dropped:   r.dropped.Load(),
		PerMinute: r.perMinute,
		Burst:     r.burst,
		Enabled:   r.enabled,
	}
}

// RateLimitStats contains rate limiter statistics.
type RateLimitStats struct {
	Allowed   int64 `json:"allowed"`
	Dropped   int64 `json:"dropped"`
	PerMinute int   `json:"per_minute"`
	Burst     int   `json:"burst"`
	Enabled   bool  `json:"enabled"`
}
