package installer

import (
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingStep finishes on enter and records how often it was initialized.
type countingStep struct {
	name  string
	inits *int
}

func (s countingStep) Init() tea.Cmd {
	*s.inits++
	return nil
}

func (s countingStep) Update(msg tea.Msg, state *InstallState, _, _ int) (Step, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok && key.Type == tea.KeyEnter {
		state.Provider = s.name
		return nil, nil
	}
	return s, nil
}

func (s countingStep) View(*InstallState) string { return s.name + "\n" }

func TestWizard_Advances(t *testing.T) {
	var a, b int
	w := newWizard([]Step{countingStep{"first", &a}, countingStep{"second", &b}})
	w.Init()
	assert.Equal(t, 1, a)

	assert.Contains(t, w.View(), "step 1 of 2")
	assert.Contains(t, w.View(), "first")

	m, _ := w.Update(tea.KeyMsg{Type: tea.KeyEnter})
	w = m.(wizard)
	assert.Equal(t, 1, w.current)
	assert.Equal(t, 1, b)
	assert.Equal(t, "first", w.state.Provider)

	m, cmd := w.Update(tea.KeyMsg{Type: tea.KeyEnter})
	w = m.(wizard)
	require.NotNil(t, cmd)
	assert.Equal(t, "second", w.state.Provider)
	assert.Equal(t, "Configuration complete!\n", w.View())
}

func TestWizard_ErrorRetry(t *testing.T) {
	var a int
	w := newWizard([]Step{countingStep{"only", &a}})
	w.Init()

	m, _ := w.Update(errMsg(errors.New("no network")))
	w = m.(wizard)
	assert.Contains(t, w.View(), "no network")

	// keys other than esc are swallowed while the error is shown
	m, _ = w.Update(tea.KeyMsg{Type: tea.KeyEnter})
	w = m.(wizard)
	assert.Equal(t, 0, w.current)

	m, _ = w.Update(tea.KeyMsg{Type: tea.KeyEsc})
	w = m.(wizard)
	assert.Nil(t, w.err)
	assert.Equal(t, 2, a)
}

func TestWizard_Cancel(t *testing.T) {
	var a int
	w := newWizard([]Step{countingStep{"only", &a}})

	m, _ := w.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	w = m.(wizard)
	assert.True(t, w.cancelled)
	assert.Equal(t, "Installation cancelled.\n", w.View())
}
