package retry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/meetflow/meetflow/pkg/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDelaySchedule(t *testing.T) {
	p := retry.Policy{
		BaseDelay:  time.Second,
		Multiplier: 2.0,
		MaxDelay:   5 * time.Second,
	}

	assert.Equal(t, time.Duration(0), p.Delay(1))
	assert.Equal(t, time.Second, p.Delay(2))
	assert.Equal(t, 2*time.Second, p.Delay(3))
	assert.Equal(t, 4*time.Second, p.Delay(4))
	assert.Equal(t, 5*time.Second, p.Delay(5))
	assert.Equal(t, 5*time.Second, p.Delay(10))
}

func TestDoRetriesUntilSuccess(t *testing.T) {
	p := retry.Policy{
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		Multiplier:  2.0,
		MaxDelay:    5 * time.Millisecond,
	}

	var calls int

	err := p.Do(t.Context(), func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}

		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoStopsOnNonRetryable(t *testing.T) {
	terminal := errors.New("terminal")

	p := retry.Policy{
		MaxAttempts: 5,
		BaseDelay:   time.Millisecond,
		Multiplier:  2.0,
		MaxDelay:    5 * time.Millisecond,
		Retryable:   func(err error) bool { return !errors.Is(err, terminal) },
	}

	var calls int

	err := p.Do(t.Context(), func(context.Context) error {
		calls++

		return terminal
	})

	require.ErrorIs(t, err, terminal)
	assert.Equal(t, 1, calls)
}

func TestDoReturnsLastErrorAfterExhaustion(t *testing.T) {
	p := retry.Policy{
		MaxAttempts: 2,
		BaseDelay:   time.Millisecond,
		Multiplier:  2.0,
		MaxDelay:    5 * time.Millisecond,
	}

	boom := errors.New("boom")

	err := p.Do(t.Context(), func(context.Context) error { return boom })
	require.ErrorIs(t, err, boom)
}

func TestSleepHonorsCancellation(t *testing.T) {
	p := retry.DefaultPolicy()
	p.BaseDelay = time.Minute

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	err := p.Sleep(ctx, 2)
	require.ErrorIs(t, err, context.Canceled)
}
