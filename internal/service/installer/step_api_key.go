package installer

import (
	"fmt"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// APIKeyStep collects the API key of the selected provider. Keys for local
// servers are optional.
type APIKeyStep struct {
	input      textinput.Model
	provider   string
	title      string
	isOptional bool
}

func NewAPIKeyStep() Step {
	return &APIKeyStep{}
}

func (s *APIKeyStep) Init() tea.Cmd {
	return func() tea.Msg { return nextMsg{} }
}

func (s *APIKeyStep) initProvider(state *InstallState) bool {
	s.provider = state.Provider

	s.input = textinput.New()
	s.input.Focus()
	s.input.CharLimit = 255
	s.input.Width = 40
	s.input.EchoMode = textinput.EchoPassword
	s.input.EchoCharacter = '•'

	switch s.provider {
	case "anthropic":
		s.title = "Anthropic API Key"
		s.input.Placeholder = "sk-ant-..."
	case "openai":
		s.title = "OpenAI API Key"
		s.input.Placeholder = "sk-..."
	case "openrouter":
		s.title = "OpenRouter API Key"
		s.input.Placeholder = "sk-or-v1-..."
	case "gemini":
		s.title = "Gemini API Key"
		s.input.Placeholder = "AIza..."
	case "ollama", "custom":
		s.title = "API Key"
		s.isOptional = true
		s.input.Placeholder = "Optional - press Enter to skip"
		s.input.EchoMode = textinput.EchoNormal
	default:
		return false
	}
	return true
}

func (s *APIKeyStep) Update(msg tea.Msg, state *InstallState, width, height int) (Step, tea.Cmd) {
	if s.provider == "" {
		if !s.initProvider(state) {
			return nil, nil
		}
		return s, textinput.Blink
	}

	var cmd tea.Cmd
	s.input, cmd = s.input.Update(msg)

	if key, ok := msg.(tea.KeyMsg); ok && key.String() == "enter" {
		if s.input.Value() == "" && !s.isOptional {
			return s, cmd
		}
		state.SetAPIKey(s.input.Value())
		return nil, nil
	}
	return s, cmd
}

func (s *APIKeyStep) View(state *InstallState) string {
	if s.provider == "" {
		return "Loading..."
	}

	optionalHint := ""
	if s.isOptional {
		optionalHint = " (optional - press Enter to skip)"
	}

	return fmt.Sprintf("Enter your %s%s:\n\n%s\n\n(press enter to confirm)\n",
		s.title, optionalHint, s.input.View())
}
