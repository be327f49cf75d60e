// Package anthropic adapts the Anthropic Messages API to the ai.Provider
// contract. It is the default backend for complex generation functions.
package anthropic

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/meetflow/meetflow/pkg/ai"
	"github.com/meetflow/meetflow/pkg/models"
)

const ProviderName = "anthropic"

// Options configures the adapter. Extend via functional options to keep the
// constructor signature stable.
type Options struct {
	Model       anthropic.Model
	Temperature float64
	MaxTokens   int64
	APIKey      string
}

// Provider wraps the Anthropic client behind ai.Provider.
type Provider struct {
	client *anthropic.Client
	opts   Options
}

// New creates an Anthropic provider using the official client.
func New(optFns ...func(o *Options)) *Provider {
	opts := Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.7,
		MaxTokens:   2048,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}

	client := anthropic.NewClient(clientOpts...)

	return &Provider{client: &client, opts: opts}
}

// NewFromClient creates a provider from an existing client, useful for tests.
func NewFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Provider {
	opts := Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.7,
		MaxTokens:   2048,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Provider{client: client, opts: opts}
}

func (p *Provider) Name() string { return ProviderName }

// complete issues one non-streaming messages call and returns the
// concatenated text blocks.
func (p *Provider) complete(ctx context.Context, system, user string) (string, error) {
	params := anthropic.MessageNewParams{
		Model:       p.opts.Model,
		MaxTokens:   p.opts.MaxTokens,
		Temperature: anthropic.Float(p.opts.Temperature),
		Messages:    []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(user))},
	}

	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	resp, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return "", ai.NewProviderError(ProviderName, fmt.Errorf("anthropic api error: %w", err))
	}

	var text string

	for _, block := range resp.Content {
		if block.Type == "text" {
			text += block.AsText().Text
		}
	}

	if text == "" {
		return "", &ai.ProviderError{
			Provider: ProviderName,
			Class:    ai.ErrorClassMalformed,
			Err:      fmt.Errorf("empty completion"),
		}
	}

	return text, nil
}

func (p *Provider) ExtractMeetingIntent(ctx context.Context, messages []models.Message) (*ai.Intent, error) {
	system, user := ai.IntentPrompt(messages)

	raw, err := p.complete(ctx, system, user)
	if err != nil {
		return nil, err
	}

	intent, err := ai.ParseIntent(raw)
	if err != nil {
		return nil, ai.NewProviderError(ProviderName, err)
	}

	return intent, nil
}

func (p *Provider) GenerateMeetingTitles(ctx context.Context, context_ string, attendees []string, extra string) ([]string, error) {
	system, user := ai.TitlesPrompt(context_, attendees, extra)

	raw, err := p.complete(ctx, system, user)
	if err != nil {
		return nil, err
	}

	titles, err := ai.ParseTitles(raw)
	if err != nil {
		return nil, ai.NewProviderError(ProviderName, err)
	}

	return titles, nil
}

func (p *Provider) GenerateMeetingAgenda(ctx context.Context, title, purpose string, attendees []string, durationMinutes int, extra string) (*ai.AgendaContent, error) {
	system, user := ai.AgendaPrompt(title, purpose, attendees, durationMinutes, extra)

	raw, err := p.complete(ctx, system, user)
	if err != nil {
		return nil, err
	}

	agenda, err := ai.ParseAgenda(raw)
	if err != nil {
		return nil, ai.NewProviderError(ProviderName, err)
	}

	return agenda, nil
}

func (p *Provider) GenerateActionItems(ctx context.Context, title, purpose string, attendees, topics []string, extra string) ([]ai.ActionItem, error) {
	system, user := ai.ActionItemsPrompt(title, purpose, attendees, topics, extra)

	raw, err := p.complete(ctx, system, user)
	if err != nil {
		return nil, err
	}

	items, err := ai.ParseActionItems(raw)
	if err != nil {
		return nil, ai.NewProviderError(ProviderName, err)
	}

	return items, nil
}

func (p *Provider) Chat(ctx context.Context, messages []models.Message) (string, error) {
	var user string
	for _, m := range messages {
		user += m.Role + ": " + m.Content + "\n"
	}

	return p.complete(ctx, "You are a helpful meeting scheduling assistant.", user)
}

func (p *Provider) VerifyAttendees(ctx context.Context, emails []string) ([]ai.AttendeeVerification, error) {
	system, user := ai.VerifyAttendeesPrompt(emails)

	raw, err := p.complete(ctx, system, user)
	if err != nil {
		return nil, err
	}

	results, err := ai.ParseVerifications(raw)
	if err != nil {
		return nil, ai.NewProviderError(ProviderName, err)
	}

	return results, nil
}
