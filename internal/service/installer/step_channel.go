package installer

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
)

// ChannelStep allows selection of the transports to serve
type ChannelStep struct {
	choices []choice
	cursor  int
}

func NewChannelStep() Step {
	return &ChannelStep{
		choices: []choice{
			{channelHTTP, "HTTP API"},
			{channelTelegram, "Telegram"},
			{channelHTTP + "+" + channelTelegram, "HTTP API and Telegram"},
		},
	}
}

func (s *ChannelStep) Init() tea.Cmd {
	return nil
}

func (s *ChannelStep) Update(msg tea.Msg, state *InstallState, width, height int) (Step, tea.Cmd) {
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
			state.Channels = strings.Split(s.choices[s.cursor].key, "+")
			return nil, nil
		}
	}
	return s, nil
}

func (s *ChannelStep) View(state *InstallState) string {
	var b strings.Builder
	b.WriteString("Select your Chat Channels:\n\n")
	renderChoices(&b, s.choices, s.cursor)
	b.WriteString("\n(press ctrl+c to quit)\n")
	return b.String()
}
