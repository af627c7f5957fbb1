// Package ratelimit provides Redis-backed fixed-window limits shared by all
// API instances.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// KeyPrefix namespaces limiter counters in Redis
const KeyPrefix = "rl:"

// Decision is the outcome of one Allow call
type Decision struct {
	Allowed    bool
	Count      int
	Limit      int
	RetryAfter time.Duration
}

// WindowLimiterConfig configures a WindowLimiter
type WindowLimiterConfig struct {
	// Redis is required; counters live there so limits hold across instances
	Redis redis.Cmdable
	// Name separates independent limits, e.g. "signup"
	Name string
	// Limit is the number of hits allowed per window per subject
	Limit int
	// Window is the fixed window length
	Window time.Duration
}

// Validate checks the configuration
func (c *WindowLimiterConfig) Validate() error {
	if c.Redis == nil {
		return errors.New("redis client is required")
	}
	if c.Name == "" {
		return errors.New("limiter name is required")
	}
	if c.Limit <= 0 {
		return fmt.Errorf("limit must be positive, got %d", c.Limit)
	}
	if c.Window < time.Second {
		return fmt.Errorf("window must be at least 1s, got %s", c.Window)
	}
	return nil
}

// WindowLimiter counts hits per subject in fixed windows
type WindowLimiter struct {
	redis  redis.Cmdable
	name   string
	limit  int
	window time.Duration
	now    func() time.Time
}

// NewWindowLimiter creates a limiter
func NewWindowLimiter(cfg *WindowLimiterConfig) (*WindowLimiter, error) {
	if cfg == nil {
		return nil, errors.New("configuration is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &WindowLimiter{
		redis:  cfg.Redis,
		name:   cfg.Name,
		limit:  cfg.Limit,
		window: cfg.Window,
		now:    time.Now,
	}, nil
}

// INCR and the first EXPIRE must happen together or a crash between them
// leaves a counter that never resets.
var incrScript = redis.NewScript(`
	local n = redis.call('INCR', KEYS[1])
	if n == 1 then
		redis.call('PEXPIRE', KEYS[1], ARGV[1])
	end
	return n
`)

func (l *WindowLimiter) key(subject string, windowStart time.Time) string {
	return KeyPrefix + l.name + ":" + strings.ToLower(subject) + ":" + strconv.FormatInt(windowStart.UnixMilli(), 10)
}

// Allow records one hit for subject and reports whether it is within the limit
func (l *WindowLimiter) Allow(ctx context.Context, subject string) (Decision, error) {
	now := l.now()
	windowStart := now.Truncate(l.window)
	retryAfter := windowStart.Add(l.window).Sub(now)

	n, err := incrScript.Run(ctx, l.redis, []string{l.key(subject, windowStart)}, l.window.Milliseconds()).Int()
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit %s: %w", l.name, err)
	}

	d := Decision{Allowed: n <= l.limit, Count: n, Limit: l.limit}
	if !d.Allowed {
		d.RetryAfter = retryAfter
	}
	return d, nil
}

// AllowAll records a hit for every subject and is allowed only if all are
func (l *WindowLimiter) AllowAll(ctx context.Context, subjects ...string) (Decision, error) {
	out := Decision{Allowed: true, Limit: l.limit}
	for _, s := range subjects {
		if s == "" {
			continue
		}
		d, err := l.Allow(ctx, s)
		if err != nil {
			return Decision{}, err
		}
		if d.Count > out.Count {
			out.Count = d.Count
		}
		if !d.Allowed {
			out.Allowed = false
			if d.RetryAfter > out.RetryAfter {
				out.RetryAfter = d.RetryAfter
			}
		}
	}
	return out, nil
}
