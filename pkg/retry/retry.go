// Package retry provides the shared retry policy used by the AI router, the
// calendar gateway and the email delivery orchestrator. One policy type,
// parameterized per call site, instead of three ad hoc loops.
package retry

import (
	"context"
	"math/rand"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Policy describes a bounded exponential backoff schedule with an optional
// retryable-error predicate. The zero value is not usable; construct with
// DefaultPolicy and override fields as needed.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Multiplier  float64
	MaxDelay    time.Duration
	Jitter      float64 // randomization factor in [0, 1]
	Retryable   func(error) bool
}

// DefaultPolicy returns the baseline schedule: three attempts, 500ms base,
// doubling, capped at 10s, with 20% jitter. Every error is retryable.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   500 * time.Millisecond,
		Multiplier:  2.0,
		MaxDelay:    10 * time.Second,
		Jitter:      0.2,
	}
}

func (p Policy) retryable(err error) bool {
	if p.Retryable == nil {
		return true
	}

	return p.Retryable(err)
}

func (p Policy) newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.BaseDelay
	b.Multiplier = p.Multiplier
	b.MaxInterval = p.MaxDelay
	b.RandomizationFactor = p.Jitter
	b.Reset()

	return b
}

// Do runs op up to MaxAttempts times, sleeping the backoff interval between
// attempts. It stops early when the error is classified non-retryable or the
// context is cancelled, and returns the last error observed.
func (p Policy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	b := p.newBackOff()

	var lastErr error

	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}

		if !p.retryable(lastErr) || attempt == p.MaxAttempts {
			return lastErr
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(b.NextBackOff()):
		}
	}

	return lastErr
}

// Sleep blocks for the attempt's delay with jitter applied, returning early
// with the context error on cancellation. Callers that need to observe every
// attempt (e.g. for decision logging) drive their own loop and use Sleep
// between attempts instead of Do.
func (p Policy) Sleep(ctx context.Context, attempt int) error {
	d := p.Delay(attempt)
	if d <= 0 {
		return nil
	}

	if p.Jitter > 0 {
		// Spread the delay over [d*(1-jitter), d*(1+jitter)].
		span := float64(d) * p.Jitter
		d = time.Duration(float64(d) - span + 2*span*rand.Float64())
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// Delay returns the deterministic (jitter-free) delay before the given
// attempt: base * multiplier^(attempt-1), capped at MaxDelay. Attempts are
// 1-based; attempt 1 has no delay.
func (p Policy) Delay(attempt int) time.Duration {
	if attempt <= 1 {
		return 0
	}

	d := p.BaseDelay
	for i := 2; i < attempt; i++ {
		d = time.Duration(float64(d) * p.Multiplier)
		if d >= p.MaxDelay {
			return p.MaxDelay
		}
	}

	if d > p.MaxDelay {
		return p.MaxDelay
	}

	return d
}
