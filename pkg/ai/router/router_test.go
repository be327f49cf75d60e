package router_test

import (
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/meetflow/meetflow/pkg/ai"
	"github.com/meetflow/meetflow/pkg/ai/router"
	"github.com/meetflow/meetflow/pkg/models"
	"github.com/meetflow/meetflow/pkg/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T) (*router.Router, *ai.MockProvider, *ai.MockProvider) {
	t.Helper()

	complex := ai.NewMockProvider("complex")
	simple := ai.NewMockProvider("simple")

	cfg := router.DefaultConfig("complex", "simple")
	cfg.Retry = retry.Policy{
		MaxAttempts: 2,
		BaseDelay:   time.Millisecond,
		Multiplier:  2.0,
		MaxDelay:    5 * time.Millisecond,
		Retryable:   ai.IsRetryable,
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	r, err := router.New(cfg, logger, complex, simple)
	require.NoError(t, err)

	return r, complex, simple
}

func TestRouterRequiresTwoProviders(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	_, err := router.New(router.DefaultConfig("complex", "simple"), logger, ai.NewMockProvider("complex"))
	require.Error(t, err)
}

func TestRouterAssignsFunctionsByComplexity(t *testing.T) {
	r, complex, simple := newTestRouter(t)

	_, err := r.ExtractMeetingIntent(t.Context(), nil)
	require.NoError(t, err)

	_, err = r.Chat(t.Context(), []models.Message{{Role: "user", Content: "hi"}})
	require.NoError(t, err)

	assert.Equal(t, 1, complex.Calls(ai.FuncExtractMeetingIntent))
	assert.Equal(t, 0, simple.Calls(ai.FuncExtractMeetingIntent))
	assert.Equal(t, 1, simple.Calls(ai.FuncChat))
	assert.Equal(t, 0, complex.Calls(ai.FuncChat))
}

func TestRouterFallsBackExactlyOnce(t *testing.T) {
	r, complex, simple := newTestRouter(t)
	complex.FailWith(ai.FuncExtractMeetingIntent, errors.New("request timeout"))

	intent, err := r.ExtractMeetingIntent(t.Context(), nil)
	require.NoError(t, err)
	assert.Equal(t, "schedule", intent.Intent)

	// Retryable error: primary is retried to exhaustion, secondary called once.
	assert.Equal(t, 2, complex.Calls(ai.FuncExtractMeetingIntent))
	assert.Equal(t, 1, simple.Calls(ai.FuncExtractMeetingIntent))

	var fallbacks int

	for _, d := range r.Log().All() {
		if d.FallbackUsed {
			fallbacks++

			assert.True(t, d.Success)
			assert.Equal(t, "simple", d.ActualProvider)
			assert.Equal(t, "complex", d.RequestedProvider)
		}
	}

	assert.Equal(t, 1, fallbacks)
}

func TestRouterDoesNotRetryTerminalErrors(t *testing.T) {
	r, complex, simple := newTestRouter(t)
	complex.FailWith(ai.FuncGenerateMeetingAgenda, errors.New("invalid api key"))

	_, err := r.GenerateMeetingAgenda(t.Context(), "Sync", "", nil, 60, "")
	require.NoError(t, err)

	// Auth errors skip the retry loop but still fall back once.
	assert.Equal(t, 1, complex.Calls(ai.FuncGenerateMeetingAgenda))
	assert.Equal(t, 1, simple.Calls(ai.FuncGenerateMeetingAgenda))
}

func TestRouterExhaustsBothProviders(t *testing.T) {
	r, complex, simple := newTestRouter(t)
	complex.FailWith(ai.FuncExtractMeetingIntent, errors.New("request timeout"))
	simple.FailWith(ai.FuncExtractMeetingIntent, errors.New("service unavailable"))

	_, err := r.ExtractMeetingIntent(t.Context(), nil)
	require.Error(t, err)
	require.ErrorIs(t, err, ai.ErrProvidersExhausted)

	var pe *ai.ProviderError

	require.ErrorAs(t, err, &pe)
	assert.Equal(t, ai.ErrorClassTransient, pe.Class)
}

func TestRouterStatsAndRecommendations(t *testing.T) {
	r, _, _ := newTestRouter(t)

	now := time.Now().UTC()

	for i := range 10 {
		r.Log().Append(models.RoutingDecision{
			ID:                uuid.New().String(),
			Function:          ai.FuncChat,
			RequestedProvider: "complex",
			ActualProvider:    "complex",
			FallbackUsed:      i < 3,
			Latency:           100 * time.Millisecond,
			Success:           i != 0,
			Timestamp:         now,
		})
	}

	stats := r.Stats(time.Hour)
	assert.Equal(t, 10, stats.TotalCalls)
	assert.Equal(t, 9, stats.Successes)
	assert.InDelta(t, 0.9, stats.SuccessRate, 0.001)
	assert.InDelta(t, 0.3, stats.FallbackRate, 0.001)
	assert.Equal(t, 100*time.Millisecond, stats.AvgLatency)
	assert.Positive(t, stats.EstimatedCost)

	recs := r.Recommendations(time.Hour)
	require.NotEmpty(t, recs)
	assert.Contains(t, recs[0], "fallback rate")
}

func TestRouterStatsEmptyWindow(t *testing.T) {
	r, _, _ := newTestRouter(t)

	stats := r.Stats(time.Hour)
	assert.Zero(t, stats.TotalCalls)
	assert.Empty(t, r.Recommendations(time.Hour))
}

func TestGetServiceHealth(t *testing.T) {
	r, complex, _ := newTestRouter(t)

	health := r.GetServiceHealth(t.Context())
	assert.True(t, health.Healthy)
	require.Len(t, health.Providers, 2)

	complex.FailWith(ai.FuncChat, errors.New("connection refused"))

	health = r.GetServiceHealth(t.Context())
	assert.False(t, health.Healthy)
}
