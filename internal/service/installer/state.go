package installer

import (
	"strings"

	"github.com/sandevgo/tuskchat/internal/config"
	"github.com/sandevgo/tuskchat/pkg/env"
)

const (
	channelHTTP     = "HTTP API"
	channelTelegram = "Telegram"
)

// InstallState collects the answers as typed config sections, starting from
// their defaults.
type InstallState struct {
	Provider  string
	Channels  []string
	App       config.AppConfig
	Providers config.ProviderConfig
	RAG       config.RAGConfig
	Telegram  config.TelegramConfig
	Debug     bool
}

func NewInstallState() *InstallState {
	return &InstallState{
		App:       config.Defaults[config.AppConfig](),
		Providers: config.Defaults[config.ProviderConfig](),
		RAG:       config.Defaults[config.RAGConfig](),
	}
}

func (s *InstallState) HasChannel(name string) bool {
	for _, c := range s.Channels {
		if c == name {
			return true
		}
	}
	return false
}

// SetAPIKey stores key for the selected provider.
func (s *InstallState) SetAPIKey(key string) {
	switch s.Provider {
	case "openai":
		s.Providers.OpenAIAPIKey = key
	case "openrouter":
		s.Providers.OpenRouterAPIKey = key
	case "anthropic":
		s.Providers.AnthropicAPIKey = key
	case "gemini":
		s.Providers.GeminiAPIKey = key
	case "ollama":
		s.Providers.OllamaAPIKey = key
	case "custom":
		s.Providers.CustomAPIKey = key
	}
}

// SetBaseURL stores url for the providers served from a custom endpoint.
func (s *InstallState) SetBaseURL(url string) {
	switch s.Provider {
	case "ollama":
		s.Providers.OllamaBaseURL = url
	case "custom":
		s.Providers.CustomBaseURL = url
	}
}

// SetModel stores the default model of the selected provider.
func (s *InstallState) SetModel(model string) {
	switch s.Provider {
	case "openai":
		s.Providers.OpenAIModel = model
	case "openrouter":
		s.Providers.OpenRouterModel = model
	case "anthropic":
		s.Providers.AnthropicModel = model
	case "gemini":
		s.Providers.GeminiModel = model
	case "ollama":
		s.Providers.OllamaModel = model
	case "custom":
		s.Providers.CustomModel = model
	}
}

// Env renders the collected configuration as .env content.
func (s *InstallState) Env() (string, error) {
	var b strings.Builder
	for _, section := range []any{&s.App, &s.Providers, &s.RAG, &s.Telegram} {
		content, err := env.MarshalEnv(section)
		if err != nil {
			return "", err
		}
		b.WriteString(content)
	}
	if s.Debug {
		b.WriteString("TUSK_DEBUG=1\n")
	}
	return b.String(), nil
}
