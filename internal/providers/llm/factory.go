package llm

import (
	"context"
	"fmt"

	"github.com/sandevgo/tuskchat/internal/config"
	"github.com/sandevgo/tuskchat/pkg/log"
)

// NewGatewayFromConfig registers every backend that has a credential (or a
// base URL for local servers).
func NewGatewayFromConfig(ctx context.Context, defaultProvider string, cfg *config.ProviderConfig) (*Gateway, error) {
	gw := NewGateway(defaultProvider, cfg.Timeout)

	if cfg.OpenAIAPIKey != "" {
		gw.Register("openai", NewOpenAI(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.OpenAIModel), cfg.OpenAIModel)
	}
	if cfg.OpenRouterAPIKey != "" {
		gw.Register("openrouter", NewOpenRouter(cfg.OpenRouterAPIKey, cfg.OpenRouterModel), cfg.OpenRouterModel)
	}
	if cfg.AnthropicAPIKey != "" {
		gw.Register("anthropic", NewAnthropic(cfg.AnthropicAPIKey, cfg.AnthropicModel), cfg.AnthropicModel)
	}
	if cfg.GeminiAPIKey != "" {
		gemini, err := NewGemini(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, "")
		if err != nil {
			return nil, err
		}
		gw.Register("gemini", gemini, cfg.GeminiModel)
	}
	if cfg.OllamaBaseURL != "" {
		gw.Register("ollama", NewOllama(cfg.OllamaBaseURL, cfg.OllamaAPIKey, cfg.OllamaModel), cfg.OllamaModel)
	}
	if cfg.CustomBaseURL != "" {
		gw.Register("custom", NewCustomOpenAI(cfg.CustomBaseURL, cfg.CustomAPIKey, cfg.CustomModel), cfg.CustomModel)
	}

	providers := gw.Providers()
	if len(providers) == 0 {
		log.FromCtx(ctx).Warn().Msg("no llm provider configured, chat requests will fail")
	}

	log.FromCtx(ctx).Info().
		Strs("providers", providers).
		Str("default", defaultProvider).
		Msg("starting llm gateway")

	return gw, nil
}

// ParseModelRef splits "provider/model". A bare name is treated as a model of
// the current provider unless it matches a provider key.
func ParseModelRef(ref string, providers []string) (provider, model string, err error) {
	if ref == "" {
		return "", "", fmt.Errorf("empty model reference")
	}
	for _, p := range providers {
		if ref == p {
			return p, "", nil
		}
		if len(ref) > len(p)+1 && ref[:len(p)+1] == p+"/" {
			return p, ref[len(p)+1:], nil
		}
	}
	return "", ref, nil
}
