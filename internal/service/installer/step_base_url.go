package installer

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// BaseURLStep asks for the endpoint of Ollama and custom OpenAI-compatible
// servers. Other providers skip it.
type BaseURLStep struct {
	input    textinput.Model
	required bool
	ready    bool
}

func NewBaseURLStep() Step {
	ti := textinput.New()
	ti.Focus()
	ti.Width = 50
	return &BaseURLStep{input: ti}
}

func (s *BaseURLStep) Init() tea.Cmd {
	return func() tea.Msg { return nextMsg{} }
}

func (s *BaseURLStep) Update(msg tea.Msg, state *InstallState, width, height int) (Step, tea.Cmd) {
	if !s.ready {
		switch state.Provider {
		case "ollama":
			s.input.Placeholder = "http://127.0.0.1:11434"
		case "custom":
			s.input.Placeholder = "https://api.example.com/v1"
			s.required = true
		default:
			return nil, nil
		}
		s.ready = true
		return s, textinput.Blink
	}

	var cmd tea.Cmd
	s.input, cmd = s.input.Update(msg)

	if key, ok := msg.(tea.KeyMsg); ok && key.String() == "enter" {
		val := strings.TrimSpace(s.input.Value())
		if val == "" {
			if s.required {
				return s, cmd
			}
			val = s.input.Placeholder
		}
		state.SetBaseURL(val)
		return nil, nil
	}
	return s, cmd
}

func (s *BaseURLStep) View(state *InstallState) string {
	return "Enter the server Base URL:\n\n" + s.input.View() + "\n\n(press enter to confirm)\n"
}
