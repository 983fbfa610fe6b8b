// Package ui holds the terminal styles shared by the CLI help and the REPL.
// Only the 16 ANSI colors are used so the output follows the terminal theme.
package ui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

var (
	TitleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("6")).Bold(true).MarginBottom(1)
	UsageStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	DescStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	FlagStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))

	// MetaStyle dims turn statistics under an answer.
	MetaStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Italic(true)
	ErrorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
)

// TurnStats renders the usage line printed after a streamed answer.
func TurnStats(tokens int, costUSD float64) string {
	return MetaStyle.Render(fmt.Sprintf("[%d tokens, $%.4f]", tokens, costUSD))
}
