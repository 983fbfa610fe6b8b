package config

import (
	"context"
	"time"
)

// ProviderConfig holds credentials per backend. A backend without a
// credential (or base URL for local ones) is not configured.
type ProviderConfig struct {
	OpenAIAPIKey  string `env:"TUSK_OPENAI_API_KEY"`
	OpenAIModel   string `env:"TUSK_OPENAI_MODEL" envDefault:"gpt-4o-mini"`
	OpenAIBaseURL string `env:"TUSK_OPENAI_BASE_URL" envDefault:"https://api.openai.com"`

	OpenRouterAPIKey string `env:"TUSK_OPENROUTER_API_KEY"`
	OpenRouterModel  string `env:"TUSK_OPENROUTER_MODEL" envDefault:"google/gemma-3-27b-it:free"`

	AnthropicAPIKey string `env:"TUSK_ANTHROPIC_API_KEY"`
	AnthropicModel  string `env:"TUSK_ANTHROPIC_MODEL" envDefault:"claude-3-5-haiku-latest"`

	GeminiAPIKey string `env:"TUSK_GEMINI_API_KEY"`
	GeminiModel  string `env:"TUSK_GEMINI_MODEL" envDefault:"gemini-2.0-flash"`

	OllamaBaseURL string `env:"TUSK_OLLAMA_BASE_URL"`
	OllamaAPIKey  string `env:"TUSK_OLLAMA_API_KEY"`
	OllamaModel   string `env:"TUSK_OLLAMA_MODEL" envDefault:"llama3.2"`

	CustomBaseURL string `env:"TUSK_CUSTOM_OPENAI_BASE_URL"`
	CustomAPIKey  string `env:"TUSK_CUSTOM_OPENAI_API_KEY"`
	CustomModel   string `env:"TUSK_CUSTOM_OPENAI_MODEL"`

	Timeout time.Duration `env:"TUSK_PROVIDER_TIMEOUT" envDefault:"120s"`
}

func NewProviderConfig(ctx context.Context) *ProviderConfig {
	return mustLoad[ProviderConfig](ctx, "Provider")
}
