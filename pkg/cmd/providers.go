package cmd

import (
	"log/slog"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/meetflow/meetflow/pkg/ai/anthropic"
	"github.com/meetflow/meetflow/pkg/ai/openai"
	"github.com/meetflow/meetflow/pkg/ai/router"
)

// RouterConfig carries the provider credentials and model overrides read
// from flags.
type RouterConfig struct {
	AnthropicAPIKey string
	AnthropicModel  string
	OpenAIAPIKey    string
	OpenAIModel     string
}

// NewRouter wires both providers behind the routing layer. Anthropic handles
// structured generation, OpenAI the short deterministic tasks.
func NewRouter(cfg RouterConfig, logger *slog.Logger) (*router.Router, error) {
	complex := anthropic.New(func(o *anthropic.Options) {
		if cfg.AnthropicAPIKey != "" {
			o.APIKey = cfg.AnthropicAPIKey
		}

		if cfg.AnthropicModel != "" {
			o.Model = anthropicsdk.Model(cfg.AnthropicModel)
		}
	})

	simple := openai.New(func(o *openai.Options) {
		if cfg.OpenAIAPIKey != "" {
			o.APIKey = cfg.OpenAIAPIKey
		}

		if cfg.OpenAIModel != "" {
			o.Model = cfg.OpenAIModel
		}
	})

	routerCfg := router.DefaultConfig(anthropic.ProviderName, openai.ProviderName)

	return router.New(routerCfg, logger, complex, simple)
}
