package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("TUSK_RUNTIME_PATH", t.TempDir())

	app, err := Load[AppConfig]()
	require.NoError(t, err)
	assert.Equal(t, 30, app.GetContextWindowSize())
	assert.Equal(t, 0, app.ProviderRetries)
	assert.False(t, app.EnhanceResponses)

	prov, err := Load[ProviderConfig]()
	require.NoError(t, err)
	assert.Equal(t, 120*time.Second, prov.Timeout)

	rag, err := Load[RAGConfig]()
	require.NoError(t, err)
	assert.False(t, rag.Enabled())

	kn, err := Load[KnowledgeConfig]()
	require.NoError(t, err)
	assert.Equal(t, 5, kn.MaxTopics)
	assert.Equal(t, []string{"**/*.md", "**/*.txt", "**/*.html"}, kn.InboxPatterns)
}

func TestAppConfig_Paths(t *testing.T) {
	dir := t.TempDir()
	app := AppConfig{RuntimePath: dir}

	assert.Equal(t, filepath.Join(dir, "tuskchat.db"), app.GetDatabasePath())
	assert.Equal(t, filepath.Join(dir, "modes"), app.GetModesPath())
	assert.Equal(t, filepath.Join(dir, "inbox"), app.GetInboxPath())
}

func TestRAGConfig_Enabled(t *testing.T) {
	tests := []struct {
		provider string
		want     bool
	}{
		{"", false},
		{"none", false},
		{"hash", true},
		{"openai", true},
	}
	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			assert.Equal(t, tt.want, RAGConfig{Provider: tt.provider}.Enabled())
		})
	}
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, LoadEnvFile(context.Background(), dir), "missing file is not an error")

	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("TUSK_TEST_ONLY_VALUE=42\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("TUSK_TEST_ONLY_VALUE") })

	require.NoError(t, LoadEnvFile(context.Background(), dir))
	assert.Equal(t, "42", os.Getenv("TUSK_TEST_ONLY_VALUE"))
}

func TestTelegramConfig_Required(t *testing.T) {
	t.Setenv("TUSK_TELEGRAM_TOKEN", "")
	_, err := Load[TelegramConfig]()
	assert.Error(t, err)

	t.Setenv("TUSK_TELEGRAM_TOKEN", "token")
	t.Setenv("TUSK_TELEGRAM_OWNER_ID", "77")
	cfg, err := Load[TelegramConfig]()
	require.NoError(t, err)
	assert.Equal(t, "tg:77", cfg.SubjectID())
}

func TestDefaults(t *testing.T) {
	t.Setenv("TUSK_CONTEXT_WINDOW_SIZE", "99")

	app := Defaults[AppConfig]()
	assert.Equal(t, 30, app.ContextWindowSize, "the process environment is ignored")
	assert.True(t, app.EnableHTTP)

	tg := Defaults[TelegramConfig]()
	assert.Empty(t, tg.Token)
}
