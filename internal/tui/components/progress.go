package components

import (
	"fmt"
	"strings"

	"github.com/theirongolddev/cbudget/internal/cli"
	"github.com/theirongolddev/cbudget/internal/tui/theme"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"
)

// ProgressBar renders overall payment progress. pct is in percent; the
// bar saturates at 100 but the label shows the true figure.
func ProgressBar(pct float64, width int) string {
	t := theme.Active
	frac := clampFrac(pct / 100)
	filled := int(frac * float64(width))

	barColor := t.Accent
	if pct > 100 {
		barColor = t.Red
	}

	filledStyle := lipgloss.NewStyle().Foreground(barColor).Background(t.Surface)
	emptyStyle := lipgloss.NewStyle().Foreground(t.TextDim).Background(t.Surface)
	pctStyle := lipgloss.NewStyle().Foreground(barColor).Background(t.Surface).Bold(true)
	spaceStyle := lipgloss.NewStyle().Background(t.Surface)

	var b strings.Builder
	b.WriteString(filledStyle.Render(strings.Repeat("█", filled)))
	b.WriteString(emptyStyle.Render(strings.Repeat("░", width-filled)))

	return b.String() + spaceStyle.Render(" ") + pctStyle.Render(cli.FormatPercent(pct))
}

// ColorForRatio maps a bill ratio in percent to a color: red once a project
// is billed past its budget, orange when close.
func ColorForRatio(pct float64) lipgloss.Color {
	t := theme.Active
	switch {
	case pct > 100:
		return t.Red
	case pct >= 90:
		return t.Orange
	case pct >= 50:
		return t.Yellow
	default:
		return t.Green
	}
}

// RatioBar renders a labeled bill-ratio bar.
func RatioBar(label string, pct float64, labelW, barWidth int) string {
	t := theme.Active
	color := ColorForRatio(pct)

	bar := progress.New(
		progress.WithSolidFill(string(color)),
		progress.WithWidth(barWidth),
		progress.WithoutPercentage(),
	)
	bar.EmptyColor = string(t.TextDim)

	labelStyle := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)
	pctStyle := lipgloss.NewStyle().Foreground(color).Background(t.Surface).Bold(true)
	spaceStyle := lipgloss.NewStyle().Background(t.Surface)

	return labelStyle.Render(FitWidth(label, labelW)) +
		spaceStyle.Render(" ") +
		bar.ViewAs(clampFrac(pct/100)) +
		spaceStyle.Render(" ") +
		pctStyle.Render(fmt.Sprintf("%7s", cli.FormatPercent(pct)))
}

func clampFrac(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

// FitWidth truncates or pads s to exactly w terminal cells.
func FitWidth(s string, w int) string {
	if lipgloss.Width(s) > w {
		runes := []rune(s)
		for len(runes) > 0 && lipgloss.Width(string(runes)+"…") > w {
			runes = runes[:len(runes)-1]
		}
		s = string(runes) + "…"
	}
	if gap := w - lipgloss.Width(s); gap > 0 {
		s += strings.Repeat(" ", gap)
	}
	return s
}
