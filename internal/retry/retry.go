// Package retry implements exponential backoff for infrastructure
// connections at startup. User actions are never retried.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/cleanward/internal/logging"
)

// Policy configures backoff
type Policy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// DefaultPolicy returns 1s, 2s, 4s, 8s between five attempts
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:  5,
		InitialDelay: time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
	}
}

// Result describes a finished Do call
type Result struct {
	Attempts      int
	TotalDuration time.Duration
	LastError     error
}

// permanentError stops the loop immediately
type permanentError struct{ err error }

func (p permanentError) Error() string { return p.err.Error() }
func (p permanentError) Unwrap() error { return p.err }

// Permanent marks err so Do returns it without further attempts
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanentError{err: err}
}

// Do calls fn until it succeeds, returns a Permanent error, the attempts
// run out, or ctx is done.
func Do(ctx context.Context, name string, p Policy, fn func(ctx context.Context, attempt int) error) (Result, error) {
	logger := logging.FromContext(ctx).WithField("operation", name)
	start := time.Now()

	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 1
	}

	var res Result
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		res.Attempts = attempt

		err := fn(ctx, attempt)
		if err == nil {
			res.TotalDuration = time.Since(start)
			if attempt > 1 {
				logger.WithField("attempts", attempt).Info("operation succeeded after retry")
			}
			return res, nil
		}
		res.LastError = err

		var perm permanentError
		if errors.As(err, &perm) {
			res.TotalDuration = time.Since(start)
			return res, perm.err
		}

		if attempt == p.MaxAttempts {
			break
		}

		delay := Delay(p, attempt)
		logger.WithFields(map[string]interface{}{
			"attempt":      attempt,
			"max_attempts": p.MaxAttempts,
			"delay":        delay.String(),
		}).WithError(err).Warn("operation failed, backing off")

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			res.TotalDuration = time.Since(start)
			res.LastError = ctx.Err()
			return res, ctx.Err()
		}
	}

	res.TotalDuration = time.Since(start)
	logger.WithError(res.LastError).WithField("attempts", res.Attempts).Error("operation failed after max attempts")
	return res, fmt.Errorf("%s failed after %d attempts: %w", name, res.Attempts, res.LastError)
}

// Delay returns the wait after the given attempt
func Delay(p Policy, attempt int) time.Duration {
	mult := p.Multiplier
	if mult < 1 {
		mult = 1
	}
	d := float64(p.InitialDelay) * math.Pow(mult, float64(attempt-1))
	if p.MaxDelay > 0 && d > float64(p.MaxDelay) {
		d = float64(p.MaxDelay)
	}
	return time.Duration(d)
}
