package config

import (
	"context"
	"path/filepath"
)

type AppConfig struct {
	RuntimePath     string `env:"TUSK_RUNTIME_PATH" envDefault:".tuskchat"`
	DefaultProvider string `env:"TUSK_LLM_PROVIDER" envDefault:"openrouter"`

	// Transport Flags
	EnableTelegram bool   `env:"TUSK_ENABLE_TELEGRAM" envDefault:"false"`
	EnableHTTP     bool   `env:"TUSK_ENABLE_HTTP" envDefault:"true"`
	HTTPAddr       string `env:"TUSK_HTTP_ADDR" envDefault:"127.0.0.1:8080"`

	// Context Management
	ContextWindowSize  int `env:"TUSK_CONTEXT_WINDOW_SIZE" envDefault:"30"`
	ContextBudgetChars int `env:"TUSK_CONTEXT_BUDGET_CHARS" envDefault:"24000"`
	MaxOutputTokens    int `env:"TUSK_MAX_OUTPUT_TOKENS" envDefault:"2048"`

	// Turn behaviour
	ProviderRetries  int  `env:"TUSK_PROVIDER_RETRIES" envDefault:"0"`
	EnhanceResponses bool `env:"TUSK_ENHANCE_RESPONSES" envDefault:"false"`
}

func NewAppConfig(ctx context.Context) *AppConfig {
	return mustLoad[AppConfig](ctx, "App")
}

func (c AppConfig) GetRuntimePath() string {
	return resolveRuntimePath(c.RuntimePath)
}

func (c AppConfig) GetSystemPath() string {
	return filepath.Join(c.GetRuntimePath(), "SYSTEM.md")
}

func (c AppConfig) GetModesPath() string {
	return filepath.Join(c.GetRuntimePath(), "modes")
}

func (c AppConfig) GetInboxPath() string {
	return filepath.Join(c.GetRuntimePath(), "inbox")
}

func (c AppConfig) GetVectorPath() string {
	return filepath.Join(c.GetRuntimePath(), "vectors")
}

func (c AppConfig) GetDatabasePath() string {
	return filepath.Join(c.GetRuntimePath(), "tuskchat.db")
}

func (c AppConfig) GetContextWindowSize() int {
	return c.ContextWindowSize
}

func (c AppConfig) GetContextBudgetChars() int {
	return c.ContextBudgetChars
}
