package installer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/sandevgo/tuskchat/internal/core"
	"github.com/sandevgo/tuskchat/internal/providers/llm"
)

type skipMsg struct{}

// ModelStep lists the models of the selected provider. Providers that do
// not publish a list keep their default model.
type ModelStep struct {
	list     list.Model
	loading  bool
	fetching bool // Ensures we only trigger the API call once
	err      error
}

func NewModelStep() Step {
	l := list.New([]list.Item{}, list.NewDefaultDelegate(), 0, 0)
	l.Title = "Select AI Model"
	l.SetShowStatusBar(true)
	l.SetFilteringEnabled(true)
	l.Styles.Title = titleStyle

	return &ModelStep{
		list:    l,
		loading: true,
	}
}

func (s *ModelStep) Init() tea.Cmd {
	return func() tea.Msg { return nextMsg{} }
}

func (s *ModelStep) fetch(state *InstallState) tea.Cmd {
	provider := state.Provider
	cfg := state.Providers
	cfg.Timeout = 30 * time.Second

	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
		defer cancel()

		gw, err := llm.NewGatewayFromConfig(ctx, provider, &cfg)
		if err != nil {
			return errMsg(err)
		}
		models, err := gw.Models(ctx, provider)
		if errors.Is(err, core.ErrInvalidInput) || (err == nil && len(models) == 0) {
			return skipMsg{}
		}
		if err != nil {
			return errMsg(err)
		}

		items := make([]list.Item, 0, len(models))
		for _, mod := range models {
			title := mod.Name
			if title == "" {
				title = mod.ID
			}
			items = append(items, item{
				id:    mod.ID,
				title: title,
				desc:  fmt.Sprintf("ID: %s | Context: %d", mod.ID, mod.ContextLength),
			})
		}
		return modelsMsg(items)
	}
}

func (s *ModelStep) Update(msg tea.Msg, state *InstallState, width, height int) (Step, tea.Cmd) {
	// 1. Trigger fetch once when we enter the step
	if s.loading && !s.fetching {
		s.fetching = true
		return s, s.fetch(state)
	}

	s.list.SetSize(width, height-4)

	var cmd tea.Cmd
	switch msg := msg.(type) {
	case skipMsg:
		return nil, nil

	case modelsMsg:
		s.list.SetItems(msg)
		s.loading = false
		s.fetching = false
		return s, nil

	case errMsg:
		s.loading = false
		s.fetching = false
		s.err = msg
		return s, nil

	case tea.KeyMsg:
		if s.err != nil {
			switch msg.String() {
			case "enter":
				s.err = nil
				s.loading = true
				return s, s.fetch(state)
			case "s":
				return nil, nil
			}
			return s, nil
		}

		if msg.String() == "enter" {
			wasFiltering := s.list.FilterState() == list.Filtering
			s.list, cmd = s.list.Update(msg)

			if wasFiltering || s.list.FilterState() == list.Filtering {
				return s, cmd
			}

			if i, ok := s.list.SelectedItem().(item); ok {
				state.SetModel(i.id)
				return nil, nil
			}
			return s, cmd
		}
	}

	s.list, cmd = s.list.Update(msg)
	return s, cmd
}

func (s *ModelStep) View(state *InstallState) string {
	if s.err != nil {
		return errorStyle.Render(fmt.Sprintf("Error fetching models: %v", s.err)) +
			"\n\nCheck your API key and internet connection.\n\n(press enter to retry, s to keep the default model, ctrl+c to quit)\n"
	}
	if s.loading {
		return fmt.Sprintf("Fetching models from %s...\n", state.Provider)
	}
	return s.list.View()
}
