package components

import (
	"strings"

	"github.com/theirongolddev/cbudget/internal/tui/theme"

	"github.com/charmbracelet/lipgloss"
)

// RenderStatusBar renders the bottom bar: key hints on the left, the sync
// status and data age on the right.
func RenderStatusBar(width int, status string, tone theme.Tone, dataAge string) string {
	t := theme.Active

	base := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)
	statusStyle := lipgloss.NewStyle().Foreground(t.Color(tone)).Background(t.Surface).Bold(true)

	left := base.Render(" [?]help  [/]search  [q]uit")
	right := statusStyle.Render(status)
	if dataAge != "" {
		right += base.Render("  " + dataAge)
	}
	right += base.Render(" ")

	padding := width - lipgloss.Width(left) - lipgloss.Width(right)
	if padding < 1 {
		padding = 1
	}
	return left + base.Render(strings.Repeat(" ", padding)) + right
}
