package installer

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
)

// EmbeddingStep selects the embedding backend of the semantic memory. The
// hosted ones fall back to the chat key of the same backend.
type EmbeddingStep struct {
	choices []choice
	cursor  int
}

func NewEmbeddingStep() Step {
	return &EmbeddingStep{
		choices: []choice{
			{"none", "Disabled (no semantic memory)"},
			{"hash", "Local hashing (offline, lower quality)"},
			{"openai", "OpenAI embeddings"},
			{"gemini", "Gemini embeddings"},
		},
	}
}

func (s *EmbeddingStep) Init() tea.Cmd {
	return nil
}

func (s *EmbeddingStep) Update(msg tea.Msg, state *InstallState, width, height int) (Step, tea.Cmd) {
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
			key := s.choices[s.cursor].key
			if key != "none" {
				state.RAG.Provider = key
				state.RAG.Persist = true
			}
			return nil, nil
		}
	}
	return s, nil
}

func (s *EmbeddingStep) View(state *InstallState) string {
	var b strings.Builder
	b.WriteString("Select the embedding provider for memory:\n\n")
	renderChoices(&b, s.choices, s.cursor)
	b.WriteString("\n(press ctrl+c to quit)\n")
	return b.String()
}
