package installer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var ErrInterrupted = errors.New("tuskchat installation interrupted")

var (
	titleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Bold(true)
	itemStyle  = lipgloss.NewStyle().PaddingLeft(2)
	selStyle   = lipgloss.NewStyle().PaddingLeft(2).Foreground(lipgloss.Color("5"))
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// Step is one screen of the wizard. Update returns nil when the step is
// done; returning another Step replaces the current one.
type Step interface {
	Init() tea.Cmd
	Update(msg tea.Msg, state *InstallState, width, height int) (Step, tea.Cmd)
	View(state *InstallState) string
}

func defaultSteps() []Step {
	return []Step{
		NewProviderStep(),
		NewAPIKeyStep(),
		NewBaseURLStep(),
		NewModelStep(),
		NewEmbeddingStep(),
		NewChannelStep(),
		NewTelegramTokenStep(),
		NewTelegramOwnerStep(),
		NewFinalizationStep(),
		NewSaveEnvStep(),
		NewInitializeFilesStep(),
	}
}

type item struct {
	id    string
	title string
	desc  string
}

func (i item) Title() string       { return i.title }
func (i item) Description() string { return i.desc }
func (i item) FilterValue() string { return i.id }

type modelsMsg []list.Item
type errMsg error
type nextMsg struct{}

type wizard struct {
	steps   []Step
	current int
	state   *InstallState

	cancelled bool
	err       error
	width     int
	height    int
}

func newWizard(steps []Step) wizard {
	return wizard{steps: steps, state: NewInstallState()}
}

func (w wizard) Init() tea.Cmd {
	if len(w.steps) == 0 {
		return tea.Quit
	}
	return w.steps[0].Init()
}

func (w wizard) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		w.width, w.height = msg.Width, msg.Height
	case errMsg:
		w.err = msg
		return w, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			w.cancelled = true
			return w, tea.Quit
		case "esc":
			if w.err != nil {
				// retry the step that failed
				w.err = nil
				return w, w.steps[w.current].Init()
			}
		}
	}

	if w.err != nil || w.current >= len(w.steps) {
		return w, nil
	}

	next, cmd := w.steps[w.current].Update(msg, w.state, w.width, w.height)
	if next != nil {
		w.steps[w.current] = next
		return w, cmd
	}

	w.current++
	if w.current >= len(w.steps) {
		return w, tea.Quit
	}
	return w, w.steps[w.current].Init()
}

func (w wizard) View() string {
	switch {
	case w.cancelled:
		return "Installation cancelled.\n"
	case w.current >= len(w.steps):
		return "Configuration complete!\n"
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("Installing TuskChat 🦣"))
	b.WriteString(dimStyle.Render(fmt.Sprintf("  step %d of %d", w.current+1, len(w.steps))))
	b.WriteString("\n\n")

	if w.err != nil {
		b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", w.err)))
		b.WriteString("\n\n(esc to retry, ctrl+c to quit)\n")
		return b.String()
	}

	b.WriteString(w.steps[w.current].View(w.state))
	return b.String()
}

// RunWizard runs the interactive installer and returns the collected state.
func RunWizard() (*InstallState, error) {
	final, err := tea.NewProgram(newWizard(defaultSteps()), tea.WithAltScreen()).Run()
	if err != nil {
		return nil, err
	}

	w := final.(wizard)
	if w.cancelled {
		return nil, ErrInterrupted
	}
	return w.state, nil
}
