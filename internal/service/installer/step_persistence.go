package installer

import (
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sandevgo/tuskchat/internal/config"
	"github.com/sandevgo/tuskchat/internal/service/memory"
)

// SaveEnvStep writes the collected configuration to .env file
type SaveEnvStep struct {
	err   error
	saved bool
}

func NewSaveEnvStep() Step {
	return &SaveEnvStep{}
}

func (s *SaveEnvStep) Init() tea.Cmd {
	return func() tea.Msg { return nextMsg{} }
}

func (s *SaveEnvStep) Update(msg tea.Msg, state *InstallState, width, height int) (Step, tea.Cmd) {
	if s.saved {
		return nil, nil
	}

	if err := saveEnv(config.GetRuntimePath(), state); err != nil {
		s.err = err
		return s, nil
	}

	s.saved = true
	return nil, nil
}

func saveEnv(path string, state *InstallState) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("failed to create runtime directory: %w", err)
	}

	envPath := filepath.Join(path, ".env")
	if _, err := os.Stat(envPath); err == nil {
		return fmt.Errorf(".env file already exists at %s", envPath)
	}

	content, err := state.Env()
	if err != nil {
		return err
	}
	return os.WriteFile(envPath, []byte(content), 0o600)
}

func (s *SaveEnvStep) View(state *InstallState) string {
	if s.err != nil {
		return errorStyle.Render(fmt.Sprintf("Error: %v", s.err)) + "\n\n(press ctrl+c to quit)\n"
	}
	if s.saved {
		return "Configuration saved successfully!\n"
	}
	return "Saving configuration...\n"
}

// InitializeFilesStep writes the editable prompt templates and the inbox
// directory into the runtime path
type InitializeFilesStep struct {
	err  error
	done bool
}

func NewInitializeFilesStep() Step {
	return &InitializeFilesStep{}
}

func (s *InitializeFilesStep) Init() tea.Cmd {
	return func() tea.Msg { return nextMsg{} }
}

func (s *InitializeFilesStep) Update(msg tea.Msg, state *InstallState, width, height int) (Step, tea.Cmd) {
	if s.done {
		return nil, nil
	}

	appCfg := state.App
	appCfg.RuntimePath = config.GetRuntimePath()

	if err := initFiles(&appCfg); err != nil {
		s.err = err
		return s, nil
	}

	s.done = true
	return nil, nil
}

func initFiles(cfg *config.AppConfig) error {
	if err := memory.WriteDefaults(cfg); err != nil {
		return fmt.Errorf("failed to write prompt templates: %w", err)
	}
	if err := os.MkdirAll(cfg.GetInboxPath(), 0o755); err != nil {
		return fmt.Errorf("failed to create inbox: %w", err)
	}
	return nil
}

func (s *InitializeFilesStep) View(state *InstallState) string {
	if s.err != nil {
		return errorStyle.Render(fmt.Sprintf("Error: %v", s.err)) + "\n\n(press ctrl+c to quit)\n"
	}
	if s.done {
		return "Runtime files initialized successfully!\n"
	}
	return "Initializing runtime files...\n"
}
