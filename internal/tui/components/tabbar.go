package components

import (
	"strings"

	"github.com/theirongolddev/cbudget/internal/tui/theme"

	"github.com/charmbracelet/lipgloss"
)

// Tab represents a single tab in the tab bar.
type Tab struct {
	Name string
	Key  rune
}

// Tabs defines all available tabs.
var Tabs = []Tab{
	{Name: "總覽", Key: 'o'},
	{Name: "專案", Key: 'p'},
	{Name: "AI 分析", Key: 'a'},
}

// tabLabel is the unstyled text of a tab. Inactive tabs show their key.
func tabLabel(tab Tab, active bool) string {
	if active {
		return " " + tab.Name + " "
	}
	return " " + tab.Name + "[" + string(tab.Key) + "] "
}

// TabVisualWidth returns the rendered width of a tab.
func TabVisualWidth(idx int, active bool) int {
	return lipgloss.Width(tabLabel(Tabs[idx], active))
}

// RenderTabBar renders the tab bar with the given active index.
func RenderTabBar(activeIdx int, width int) string {
	t := theme.Active

	activeStyle := lipgloss.NewStyle().
		Foreground(t.Accent).
		Background(t.SurfaceHover).
		Bold(true)
	inactiveStyle := lipgloss.NewStyle().
		Foreground(t.TextMuted).
		Background(t.Background)
	sepStyle := lipgloss.NewStyle().Background(t.Background)

	parts := make([]string, len(Tabs))
	for i, tab := range Tabs {
		label := tabLabel(tab, i == activeIdx)
		if i == activeIdx {
			parts[i] = activeStyle.Render(label)
		} else {
			parts[i] = inactiveStyle.Render(label)
		}
	}

	bar := strings.Join(parts, sepStyle.Render(" "))
	if gap := width - lipgloss.Width(bar); gap > 0 {
		bar += sepStyle.Render(strings.Repeat(" ", gap))
	}
	return bar
}

// TabIdxByKey returns the tab index for a given key press, or -1.
func TabIdxByKey(key rune) int {
	for i, tab := range Tabs {
		if tab.Key == key {
			return i
		}
	}
	return -1
}
