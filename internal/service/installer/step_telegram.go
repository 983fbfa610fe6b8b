package installer

import (
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// TelegramTokenStep collects the Telegram bot token
type TelegramTokenStep struct {
	input textinput.Model
}

func NewTelegramTokenStep() Step {
	ti := textinput.New()
	ti.Focus()
	ti.CharLimit = 255
	ti.Width = 40
	ti.Placeholder = "123456789:ABCDEF..."
	ti.EchoMode = textinput.EchoPassword
	ti.EchoCharacter = '•'

	return &TelegramTokenStep{
		input: ti,
	}
}

func (s *TelegramTokenStep) Init() tea.Cmd {
	return func() tea.Msg { return nextMsg{} }
}

func (s *TelegramTokenStep) Update(msg tea.Msg, state *InstallState, width, height int) (Step, tea.Cmd) {
	if !state.HasChannel(channelTelegram) {
		return nil, nil
	}

	var cmd tea.Cmd
	s.input, cmd = s.input.Update(msg)

	if key, ok := msg.(tea.KeyMsg); ok && key.String() == "enter" {
		if token := strings.TrimSpace(s.input.Value()); token != "" {
			state.Telegram.Token = token
			return nil, nil
		}
	}
	return s, cmd
}

func (s *TelegramTokenStep) View(state *InstallState) string {
	return "Enter your Telegram Bot Token:\n\n" +
		s.input.View() + "\n\n" +
		"(press enter to confirm)\n"
}

// TelegramOwnerStep collects the Telegram owner ID
type TelegramOwnerStep struct {
	input textinput.Model
	err   error
}

func NewTelegramOwnerStep() Step {
	ti := textinput.New()
	ti.Focus()
	ti.CharLimit = 32
	ti.Width = 40
	ti.Placeholder = "123456789"
	ti.EchoMode = textinput.EchoNormal

	return &TelegramOwnerStep{
		input: ti,
	}
}

func (s *TelegramOwnerStep) Init() tea.Cmd {
	return func() tea.Msg { return nextMsg{} }
}

func (s *TelegramOwnerStep) Update(msg tea.Msg, state *InstallState, width, height int) (Step, tea.Cmd) {
	if !state.HasChannel(channelTelegram) {
		return nil, nil
	}

	var cmd tea.Cmd
	s.input, cmd = s.input.Update(msg)

	if key, ok := msg.(tea.KeyMsg); ok && key.String() == "enter" {
		id, err := strconv.ParseInt(strings.TrimSpace(s.input.Value()), 10, 64)
		if err != nil {
			s.err = err
			return s, cmd
		}
		state.Telegram.OwnerID = id
		return nil, nil
	}
	return s, cmd
}

func (s *TelegramOwnerStep) View(state *InstallState) string {
	view := "Enter your Telegram User ID (Owner):\n\n" + s.input.View() + "\n\n"
	if s.err != nil {
		view += errorStyle.Render("The ID must be a number") + "\n"
	}
	return view + "(press enter to confirm)\n"
}
