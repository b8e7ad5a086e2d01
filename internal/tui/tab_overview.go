package tui

import (
	"cmp"
	"slices"
	"strings"

	"github.com/theirongolddev/cbudget/internal/cli"
	"github.com/theirongolddev/cbudget/internal/model"
	"github.com/theirongolddev/cbudget/internal/pipeline"
	"github.com/theirongolddev/cbudget/internal/tui/components"
	"github.com/theirongolddev/cbudget/internal/tui/theme"

	"github.com/charmbracelet/lipgloss"
)

const topVarianceCount = 5

func (a App) renderOverviewTab(cw, h int) string {
	t := theme.Active
	s := a.summary
	mutedStyle := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)

	if s.Projects == 0 {
		return components.ContentCard("總覽", mutedStyle.Render("尚無專案資料，請使用 cbudget import <檔案> 匯入"), cw)
	}

	metrics := a.overviewMetrics()
	var cards string
	if a.isCompactLayout() {
		cards = components.MetricCardRow(metrics[:3], cw) + "\n" + components.MetricCardRow(metrics[3:], cw)
	} else {
		cards = components.MetricCardRow(metrics, cw)
	}

	barW := max(components.CardInnerWidth(cw)-10, 10)
	progress := components.ContentCard("整體請款進度", components.ProgressBar(s.OverallProgress, barW), cw)

	halves := components.LayoutRow(cw, 2)
	lists := components.CardRow([]string{
		a.renderOverBilledCard(halves[0]),
		a.renderVarianceCard(halves[1]),
	})

	return cards + "\n" + progress + "\n" + lists
}

func (a App) overviewMetrics() []components.Metric {
	s := a.summary

	paidTone := theme.ToneNeutral
	if s.OverallProgress > 100 {
		paidTone = theme.ToneBad
	}
	variance := s.TotalExec - s.TotalOriginal
	varianceTone := theme.ToneNeutral
	if variance > 0 {
		varianceTone = theme.ToneWarn
	}
	overTone := theme.ToneGood
	if len(a.overBilled) > 0 {
		overTone = theme.ToneBad
	}

	return []components.Metric{
		{Label: "專案數", Value: cli.FormatNumber(int64(s.Projects)), Note: "總面積 " + cli.FormatAmount(s.TotalArea)},
		{Label: "原始預算", Value: cli.FormatAmount(s.TotalOriginal)},
		{Label: "執行預算", Value: cli.FormatAmount(s.TotalExec), Note: "差異 " + cli.FormatSignedAmount(variance), Tone: varianceTone},
		{Label: "已請款", Value: cli.FormatAmount(s.TotalPaid), Note: "進度 " + cli.FormatPercent(s.OverallProgress), Tone: paidTone},
		{Label: "超請款", Value: cli.FormatNumber(int64(len(a.overBilled))), Tone: overTone},
	}
}

func (a App) renderOverBilledCard(w int) string {
	t := theme.Active
	if len(a.overBilled) == 0 {
		ok := lipgloss.NewStyle().Foreground(t.Green).Background(t.Surface)
		return components.ContentCard("超請款專案", ok.Render("無超請款專案"), w)
	}

	inner := components.CardInnerWidth(w)
	labelW := min(inner/3, 16)
	barW := max(inner-labelW-10, 4)

	rows := make([]string, 0, len(a.overBilled))
	for _, p := range a.overBilled {
		m := pipeline.ProjectMetricsFor(p)
		rows = append(rows, components.RatioBar(p.Name, m.BillRatio, labelW, barW))
	}
	return components.ContentCard("超請款專案", strings.Join(rows, "\n"), w)
}

// renderVarianceCard lists the projects whose executed budget moved most
// against the original, by absolute variance rate.
func (a App) renderVarianceCard(w int) string {
	t := theme.Active
	list := slices.Clone(a.state.Projects)
	slices.SortStableFunc(list, func(x, y model.Project) int {
		vx := abs(pipeline.ProjectMetricsFor(x).VarianceRate)
		vy := abs(pipeline.ProjectMetricsFor(y).VarianceRate)
		return cmp.Compare(vy, vx)
	})
	if len(list) > topVarianceCount {
		list = list[:topVarianceCount]
	}

	inner := components.CardInnerWidth(w)
	nameStyle := lipgloss.NewStyle().Foreground(t.TextPrimary).Background(t.Surface)
	upStyle := lipgloss.NewStyle().Foreground(t.Orange).Background(t.Surface)
	downStyle := lipgloss.NewStyle().Foreground(t.Green).Background(t.Surface)

	rows := make([]string, 0, len(list))
	for _, p := range list {
		m := pipeline.ProjectMetricsFor(p)
		rate := cli.FormatSignedPercent(m.VarianceRate)
		style := downStyle
		if m.VarianceRate > 0 {
			style = upStyle
		}
		rows = append(rows, nameStyle.Render(components.FitWidth(p.Name, max(inner-10, 4)))+
			style.Render(padLeft(rate, 10)))
	}
	return components.ContentCard("預算差異率", strings.Join(rows, "\n"), w)
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
