package installer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/sandevgo/tuskchat/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func completedState() *InstallState {
	state := NewInstallState()
	state.Provider = "anthropic"
	state.App.DefaultProvider = "anthropic"
	state.SetAPIKey("sk-ant-test")
	state.SetModel("claude-sonnet-4-5")
	state.RAG.Provider = "hash"
	state.Channels = []string{channelTelegram}
	state.Telegram.Token = "123:abc"
	state.Telegram.OwnerID = 77

	_, _ = NewFinalizationStep().Update(nil, state, 0, 0)
	return state
}

func TestInstallState_EnvRoundTrip(t *testing.T) {
	content, err := completedState().Env()
	require.NoError(t, err)

	vars, err := godotenv.Unmarshal(content)
	require.NoError(t, err)

	opts := env.Options{Environment: vars}
	app, err := env.ParseAsWithOptions[config.AppConfig](opts)
	require.NoError(t, err)
	assert.Equal(t, "anthropic", app.DefaultProvider)
	assert.True(t, app.EnableTelegram)
	assert.False(t, app.EnableHTTP)
	assert.Equal(t, 30, app.ContextWindowSize)

	prov, err := env.ParseAsWithOptions[config.ProviderConfig](opts)
	require.NoError(t, err)
	assert.Equal(t, "sk-ant-test", prov.AnthropicAPIKey)
	assert.Equal(t, "claude-sonnet-4-5", prov.AnthropicModel)
	assert.Empty(t, prov.OpenAIAPIKey)

	rag, err := env.ParseAsWithOptions[config.RAGConfig](opts)
	require.NoError(t, err)
	assert.True(t, rag.Enabled())
	assert.Equal(t, 256, rag.Dims)

	tg, err := env.ParseAsWithOptions[config.TelegramConfig](opts)
	require.NoError(t, err)
	assert.Equal(t, "tg:77", tg.SubjectID())
}

func TestInstallState_HTTPOnly(t *testing.T) {
	state := NewInstallState()
	state.Provider = "ollama"
	state.SetBaseURL("http://127.0.0.1:11434")
	state.Channels = []string{channelHTTP}
	_, _ = NewFinalizationStep().Update(nil, state, 0, 0)

	content, err := state.Env()
	require.NoError(t, err)
	assert.Contains(t, content, "TUSK_OLLAMA_BASE_URL=http://127.0.0.1:11434\n")
	assert.Contains(t, content, "TUSK_ENABLE_HTTP=true\n")
	assert.NotContains(t, content, "TUSK_TELEGRAM_TOKEN")
}

func TestSaveEnv(t *testing.T) {
	dir := t.TempDir()

	require.NoError(t, saveEnv(dir, completedState()))
	info, err := os.Stat(filepath.Join(dir, ".env"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	assert.Error(t, saveEnv(dir, completedState()), "an existing .env is never overwritten")
}

func TestInitFiles(t *testing.T) {
	cfg := config.AppConfig{RuntimePath: t.TempDir()}

	require.NoError(t, initFiles(&cfg))
	assert.FileExists(t, cfg.GetSystemPath())
	assert.FileExists(t, filepath.Join(cfg.GetModesPath(), "general.md"))
	assert.DirExists(t, cfg.GetInboxPath())
}
