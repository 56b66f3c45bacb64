// Package backoff implements a bounded multiplicative retry policy for
// reconnecting clients. Retries are capped: callers get an explicit terminal
// failure instead of an endless reconnect loop.
package backoff

import (
	"context"
	"errors"
	"time"
)

// ErrRetriesExhausted is returned once the policy's retry budget is spent.
var ErrRetriesExhausted = errors.New("backoff: retries exhausted")

// Policy describes a bounded multiplicative backoff schedule.
type Policy struct {
	// Initial is the delay before the first retry.
	Initial time.Duration
	// Multiplier scales the delay after each failed attempt.
	Multiplier float64
	// Max caps the delay between attempts.
	Max time.Duration
	// MaxRetries bounds the number of retries; 0 means no retries.
	MaxRetries int
}

// DefaultPolicy mirrors the reconnect behavior expected of dissemination
// clients: quick first retry, capped growth, bounded attempts.
func DefaultPolicy() Policy {
	return Policy{
		Initial:    500 * time.Millisecond,
		Multiplier: 2.0,
		Max:        10 * time.Second,
		MaxRetries: 8,
	}
}

// Delay returns the wait before retry attempt n (0-based).
func (p Policy) Delay(attempt int) time.Duration {
	d := p.Initial
	for i := 0; i < attempt; i++ {
		d = time.Duration(float64(d) * p.Multiplier)
		if d >= p.Max {
			return p.Max
		}
	}
	if d > p.Max {
		return p.Max
	}
	return d
}

// Retry runs fn until it succeeds, the retry budget is exhausted, or ctx is
// canceled. The last error is wrapped under ErrRetriesExhausted so callers
// can distinguish a terminal connection failure from a transient one.
func (p Policy) Retry(ctx context.Context, fn func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 0; ; attempt++ {
		if err := fn(ctx); err == nil {
			return nil
		} else {
			lastErr = err
		}

		if attempt >= p.MaxRetries {
			return errors.Join(ErrRetriesExhausted, lastErr)
		}

		timer := time.NewTimer(p.Delay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
