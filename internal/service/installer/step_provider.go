package installer

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
)

type choice struct {
	key   string
	title string
}

// ProviderStep allows selection of the default AI provider
type ProviderStep struct {
	choices []choice
	cursor  int
}

func NewProviderStep() Step {
	return &ProviderStep{
		choices: []choice{
			{"openrouter", "OpenRouter"},
			{"openai", "OpenAI"},
			{"anthropic", "Anthropic"},
			{"gemini", "Google Gemini"},
			{"ollama", "Ollama"},
			{"custom", "Custom OpenAI-compatible"},
		},
	}
}

func (s *ProviderStep) Init() tea.Cmd {
	return nil
}

func (s *ProviderStep) Update(msg tea.Msg, state *InstallState, width, height int) (Step, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "up", "k":
			if s.cursor > 0 {
				s.cursor--
			}
		case "down", "j":
			if s.cursor < len(s.choices)-1 {
				s.cursor++
			}
		case "enter":
			state.Provider = s.choices[s.cursor].key
			state.App.DefaultProvider = state.Provider
			return nil, nil
		}
	}
	return s, nil
}

func (s *ProviderStep) View(state *InstallState) string {
	var b strings.Builder
	b.WriteString("Select your default AI Provider:\n\n")
	renderChoices(&b, s.choices, s.cursor)
	b.WriteString("\n(press ctrl+c to quit)\n")
	return b.String()
}

func renderChoices(b *strings.Builder, choices []choice, cursor int) {
	for i, c := range choices {
		if cursor == i {
			b.WriteString(selStyle.Render(fmt.Sprintf("❯ %s", c.title)) + "\n")
		} else {
			b.WriteString(itemStyle.Render(fmt.Sprintf("  %s", c.title)) + "\n")
		}
	}
}
