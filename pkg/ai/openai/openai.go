// Package openai adapts the OpenAI Chat Completions API to the ai.Provider
// contract. It is the default backend for short, low-latency tasks.
package openai

import (
	"context"
	"fmt"

	"github.com/meetflow/meetflow/pkg/ai"
	"github.com/meetflow/meetflow/pkg/models"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const ProviderName = "openai"

// Options configures the adapter.
type Options struct {
	Model               string
	Temperature         float64
	MaxCompletionTokens int64
	APIKey              string
}

// Provider wraps the OpenAI client behind ai.Provider.
type Provider struct {
	client *openai.Client
	opts   Options
}

// New creates an OpenAI provider using the official client.
func New(optFns ...func(o *Options)) *Provider {
	opts := Options{
		Model:               openai.ChatModelGPT4oMini,
		Temperature:         0.4,
		MaxCompletionTokens: 2048,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}

	client := openai.NewClient(clientOpts...)

	return &Provider{client: &client, opts: opts}
}

// NewFromClient creates a provider from an existing client, useful for tests.
func NewFromClient(client *openai.Client, optFns ...func(o *Options)) *Provider {
	opts := Options{
		Model:               openai.ChatModelGPT4oMini,
		Temperature:         0.4,
		MaxCompletionTokens: 2048,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Provider{client: client, opts: opts}
}

func (p *Provider) Name() string { return ProviderName }

func (p *Provider) complete(ctx context.Context, system, user string) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model:               p.opts.Model,
		Temperature:         openai.Float(p.opts.Temperature),
		MaxCompletionTokens: openai.Int(p.opts.MaxCompletionTokens),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
	}

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", ai.NewProviderError(ProviderName, fmt.Errorf("openai api error: %w", err))
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", &ai.ProviderError{
			Provider: ProviderName,
			Class:    ai.ErrorClassMalformed,
			Err:      fmt.Errorf("empty completion"),
		}
	}

	return resp.Choices[0].Message.Content, nil
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
