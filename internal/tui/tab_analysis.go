package tui

import (
	"errors"
	"strings"

	"github.com/theirongolddev/cbudget/internal/analysis"
	"github.com/theirongolddev/cbudget/internal/tui/components"
	"github.com/theirongolddev/cbudget/internal/tui/theme"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
)

// analysisState holds the analysis tab state.
type analysisState struct {
	analyzer *analysis.Analyzer
	running  bool
	report   *analysis.Report
	rendered string // report text rendered for the current width
	scrollY  int
}

// start marks a request in flight. It reports false when analysis is
// unavailable or already running.
func (as *analysisState) start() bool {
	if as.analyzer == nil || as.running || as.analyzer.Running() {
		return false
	}
	as.running = true
	return true
}

func (as *analysisState) finish(r analysis.Report, width int) {
	as.running = false
	as.report = &r
	as.scrollY = 0
	as.render(width)
}

// render formats the report as terminal markdown. Failed reports and
// renderer errors fall back to the plain text.
func (as *analysisState) render(width int) {
	if as.report == nil || width <= 0 {
		return
	}
	text := as.report.Text
	if as.report.Failed || text == "" {
		as.rendered = text
		return
	}

	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithWordWrap(components.CardInnerWidth(width)-2),
	)
	if err == nil {
		if out, rerr := r.Render(text); rerr == nil {
			as.rendered = strings.Trim(out, "\n")
			return
		}
	}
	as.rendered = text
}

func (as *analysisState) scroll(key string, page int) {
	switch key {
	case "j", "down":
		as.scrollY++
	case "k", "up":
		as.scrollY--
	case "ctrl+d":
		as.scrollY += page
	case "ctrl+u":
		as.scrollY -= page
	case "g":
		as.scrollY = 0
	}
	as.scrollY = max(as.scrollY, 0)
}

func (a App) renderAnalysisTab(cw, h int) string {
	t := theme.Active
	mutedStyle := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)
	errStyle := lipgloss.NewStyle().Foreground(t.Red).Background(t.Surface).Bold(true)
	ai := a.ai

	switch {
	case ai.analyzer == nil:
		return components.ContentCard("AI 分析",
			mutedStyle.Render("設定 GEMINI_API_KEY 或 [analysis] api_key 以啟用 AI 分析"), cw)
	case ai.running:
		return components.ContentCard("AI 分析",
			a.spinner.View()+mutedStyle.Render(" 分析中..."), cw)
	case ai.report == nil:
		return components.ContentCard("AI 分析",
			mutedStyle.Render("按 [r] 產生專案預算分析報告"), cw)
	case errors.Is(ai.report.Err, analysis.ErrNoProjects):
		return components.ContentCard("AI 分析",
			mutedStyle.Render("尚無專案資料可供分析"), cw)
	case errors.Is(ai.report.Err, analysis.ErrBusy):
		return components.ContentCard("AI 分析",
			mutedStyle.Render("已有分析正在進行，請稍候再按 [r]"), cw)
	case ai.report.Failed:
		return components.ContentCard("AI 分析",
			errStyle.Render(ai.report.Text)+"\n\n"+mutedStyle.Render("按 [r] 重試"), cw)
	}

	lines := strings.Split(ai.rendered, "\n")
	visible := max(h-4, 1) // card border + title + footer
	start := min(ai.scrollY, max(len(lines)-visible, 0))
	end := min(start+visible, len(lines))

	body := strings.Join(lines[start:end], "\n") + "\n" +
		mutedStyle.Render("[j/k] 捲動  [r] 重新分析")
	return components.ContentCard("AI 分析", body, cw)
}
