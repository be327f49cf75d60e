// Package router maps logical AI functions onto one of two interchangeable
// providers, executing with a bounded timeout, retrying transient faults with
// backoff, and failing over to the secondary provider. Callers never learn
// which provider served a request; every attempt is recorded as a
// models.RoutingDecision.
package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/meetflow/meetflow/pkg/ai"
	"github.com/meetflow/meetflow/pkg/models"
	"github.com/meetflow/meetflow/pkg/otelhelper"
	"github.com/meetflow/meetflow/pkg/retry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Config holds the per-function provider assignment and execution limits.
// Assignments are configuration, not hardcoded per call site; functions with
// no explicit assignment fall back to the complexity heuristic.
type Config struct {
	Assignments map[string]string
	Timeout     time.Duration
	Retry       retry.Policy
	CostPerCall map[string]float64
}

// DefaultConfig routes structured-reasoning functions to the complex
// provider and short deterministic tasks to the simple one.
func DefaultConfig(complexProvider, simpleProvider string) Config {
	pol := retry.DefaultPolicy()
	pol.Retryable = ai.IsRetryable

	return Config{
		Assignments: map[string]string{
			ai.FuncExtractMeetingIntent:  complexProvider,
			ai.FuncGenerateMeetingAgenda: complexProvider,
			ai.FuncGenerateActionItems:   complexProvider,
			ai.FuncGenerateMeetingTitles: simpleProvider,
			ai.FuncChat:                  simpleProvider,
			ai.FuncVerifyAttendees:       simpleProvider,
		},
		Timeout: 30 * time.Second,
		Retry:   pol,
		CostPerCall: map[string]float64{
			complexProvider: 0.012,
			simpleProvider:  0.002,
		},
	}
}

// Router executes AI functions against an ordered pair of providers.
type Router struct {
	cfg       Config
	providers map[string]ai.Provider
	order     []string
	log       *DecisionLog
	logger    *slog.Logger
	tracer    trace.Tracer
}

// New builds a router over the given providers. The first provider whose
// name is not assigned to a function acts as its fallback.
func New(cfg Config, logger *slog.Logger, providers ...ai.Provider) (*Router, error) {
	if len(providers) < 2 {
		return nil, errors.New("router requires two providers")
	}

	byName := make(map[string]ai.Provider, len(providers))
	order := make([]string, 0, len(providers))

	for _, p := range providers {
		byName[p.Name()] = p
		order = append(order, p.Name())
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = retry.DefaultPolicy()
		cfg.Retry.Retryable = ai.IsRetryable
	}

	return &Router{
		cfg:       cfg,
		providers: byName,
		order:     order,
		log:       NewDecisionLog(),
		logger:    logger.With("module", "ai_router"),
		tracer:    noop.NewTracerProvider().Tracer("ai_router"),
	}, nil
}

// SetTracer enables span creation for provider attempts. Without it the
// router uses a no-op tracer.
func (r *Router) SetTracer(tracer trace.Tracer) {
	r.tracer = tracer
}

// Log exposes the routing decision log for analytics consumers.
func (r *Router) Log() *DecisionLog {
	return r.log
}

// pair resolves the primary and secondary provider for a function.
func (r *Router) pair(function string) (primary, secondary ai.Provider, primaryName string) {
	primaryName = r.cfg.Assignments[function]

	if _, ok := r.providers[primaryName]; !ok {
		// No assignment: first registered provider handles complex work.
		primaryName = r.order[0]
	}

	for _, name := range r.order {
		if name != primaryName {
			return r.providers[primaryName], r.providers[name], primaryName
		}
	}

	return r.providers[primaryName], nil, primaryName
}

func (r *Router) record(function, requested string, p ai.Provider, fallback bool, latency time.Duration, err error) {
	decision := models.RoutingDecision{
		ID:                uuid.New().String(),
		Function:          function,
		RequestedProvider: requested,
		ActualProvider:    p.Name(),
		FallbackUsed:      fallback,
		Latency:           latency,
		Success:           err == nil,
		Timestamp:         time.Now().UTC(),
	}

	if err != nil {
		decision.Error = err.Error()
	}

	r.log.Append(decision)
}

// execute runs one logical function with retry on the primary provider and a
// single secondary-provider fallback. The raw provider result is returned
// unmodified.
func execute[T any](ctx context.Context, r *Router, function string, call func(ctx context.Context, p ai.Provider) (T, error)) (T, error) {
	primary, secondary, primaryName := r.pair(function)

	invoke := func(p ai.Provider) (T, error) {
		attemptCtx, span := otelhelper.StartSpan(ctx, r.tracer, "ai provider call",
			attribute.String(otelhelper.FunctionKey, function),
			attribute.String(otelhelper.ProviderKey, p.Name()),
			attribute.Bool(otelhelper.FallbackKey, p.Name() != primaryName),
		)
		defer span.End()

		callCtx, cancel := context.WithTimeout(attemptCtx, r.cfg.Timeout)
		defer cancel()

		start := time.Now()
		result, err := call(callCtx, p)
		r.record(function, primaryName, p, p.Name() != primaryName, time.Since(start), err)

		if err != nil {
			otelhelper.SetError(span, err)
		}

		return result, err
	}

	var (
		result T
		err    error
	)

	for attempt := 1; attempt <= r.cfg.Retry.MaxAttempts; attempt++ {
		result, err = invoke(primary)
		if err == nil {
			return result, nil
		}

		r.logger.Warn("provider attempt failed",
			"function", function,
			"provider", primaryName,
			"attempt", attempt,
			"error", err)

		if !ai.IsRetryable(err) || attempt == r.cfg.Retry.MaxAttempts {
			break
		}

		if sleepErr := r.cfg.Retry.Sleep(ctx, attempt+1); sleepErr != nil {
			err = sleepErr

			break
		}
	}

	if secondary == nil {
		var zero T

		return zero, err
	}

	r.logger.Info("falling back to secondary provider",
		"function", function,
		"primary", primaryName,
		"secondary", secondary.Name())

	result, fallbackErr := invoke(secondary)
	if fallbackErr == nil {
		return result, nil
	}

	var zero T

	return zero, &ai.ProviderError{
		Provider: secondary.Name(),
		Class:    ai.Classify(fallbackErr),
		Err:      fmt.Errorf("%w: primary: %v, secondary: %v", ai.ErrProvidersExhausted, err, fallbackErr),
	}
}

// ExtractMeetingIntent routes intent extraction.
func (r *Router) ExtractMeetingIntent(ctx context.Context, messages []models.Message) (*ai.Intent, error) {
	return execute(ctx, r, ai.FuncExtractMeetingIntent, func(ctx context.Context, p ai.Provider) (*ai.Intent, error) {
		return p.ExtractMeetingIntent(ctx, messages)
	})
}

// GenerateMeetingTitles routes title suggestion.
func (r *Router) GenerateMeetingTitles(ctx context.Context, context_ string, attendees []string, extra string) ([]string, error) {
	return execute(ctx, r, ai.FuncGenerateMeetingTitles, func(ctx context.Context, p ai.Provider) ([]string, error) {
		return p.GenerateMeetingTitles(ctx, context_, attendees, extra)
	})
}

// GenerateMeetingAgenda routes agenda generation.
func (r *Router) GenerateMeetingAgenda(ctx context.Context, title, purpose string, attendees []string, durationMinutes int, extra string) (*ai.AgendaContent, error) {
	return execute(ctx, r, ai.FuncGenerateMeetingAgenda, func(ctx context.Context, p ai.Provider) (*ai.AgendaContent, error) {
		return p.GenerateMeetingAgenda(ctx, title, purpose, attendees, durationMinutes, extra)
	})
}

// GenerateActionItems routes action item generation.
func (r *Router) GenerateActionItems(ctx context.Context, title, purpose string, attendees, topics []string, extra string) ([]ai.ActionItem, error) {
	return execute(ctx, r, ai.FuncGenerateActionItems, func(ctx context.Context, p ai.Provider) ([]ai.ActionItem, error) {
		return p.GenerateActionItems(ctx, title, purpose, attendees, topics, extra)
	})
}

// Chat routes free-form conversation.
func (r *Router) Chat(ctx context.Context, messages []models.Message) (string, error) {
	return execute(ctx, r, ai.FuncChat, func(ctx context.Context, p ai.Provider) (string, error) {
		return p.Chat(ctx, messages)
	})
}

// VerifyAttendees routes attendee verification.
func (r *Router) VerifyAttendees(ctx context.Context, emails []string) ([]ai.AttendeeVerification, error) {
	return execute(ctx, r, ai.FuncVerifyAttendees, func(ctx context.Context, p ai.Provider) ([]ai.AttendeeVerification, error) {
		return p.VerifyAttendees(ctx, emails)
	})
}

// ProviderHealth is the probe result for one provider.
type ProviderHealth struct {
	Provider  string        `json:"provider"`
	Available bool          `json:"available"`
	Latency   time.Duration `json:"latency"`
	Error     string        `json:"error,omitempty"`
}

// ServiceHealth aggregates provider probes.
type ServiceHealth struct {
	Healthy   bool             `json:"healthy"`
	Providers []ProviderHealth `json:"providers"`
	CheckedAt time.Time        `json:"checked_at"`
}

// GetServiceHealth actively probes both providers with a short chat round
// trip. Meant for health-check callers, not the hot path.
func (r *Router) GetServiceHealth(ctx context.Context) ServiceHealth {
	health := ServiceHealth{Healthy: true, CheckedAt: time.Now().UTC()}

	ping := []models.Message{{Role: "user", Content: "ping", Timestamp: time.Now().UTC()}}

	for _, name := range r.order {
		p := r.providers[name]

		probeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		start := time.Now()
		_, err := p.Chat(probeCtx, ping)
		cancel()

		ph := ProviderHealth{
			Provider:  name,
			Available: err == nil,
			Latency:   time.Since(start),
		}

		if err != nil {
			ph.Error = err.Error()
			health.Healthy = false
		}

		health.Providers = append(health.Providers, ph)
	}

	return health
}
